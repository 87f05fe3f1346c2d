package campaigns

import (
	"database/sql"
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null"

	"github.com/youssefotb/remindmcp/common"
)

// Store owns all campaign state. A single SQLite file, single writer;
// cascades handle opt-in and log cleanup on campaign delete.
type Store struct {
	db *sql.DB
	l  *logrus.Entry
}

// Open opens (creating if missing) the database at path and applies the
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_fk=1&_loc=UTC", path))
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	// sqlite allows one writer; serializing the pool also keeps in-memory
	// databases on a single connection.
	db.SetMaxOpenConns(1)

	for i, migration := range dbSchemas {
		if _, err := db.Exec(migration); err != nil {
			db.Close()
			return nil, errors.WithMessagef(err, "applying migration %d", i+1)
		}
	}

	return &Store{
		db: db,
		l:  common.GetLogger("campaigns.store"),
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const campaignColumns = `id, title, channel_id, message_id, emoji, remind_at, created_at, status`

// CreateCampaign inserts a new active campaign. A (channel_id, message_id,
// emoji) collision returns a DuplicateError carrying the existing id.
func (s *Store) CreateCampaign(title null.String, channelID, messageID, emoji string, remindAt time.Time) (*Campaign, error) {
	const q = `INSERT INTO campaigns (title, channel_id, message_id, emoji, remind_at, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	res, err := s.db.Exec(q, title, channelID, messageID, emoji, remindAt.UTC(), now, string(StatusActive))
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.campaignByTriple(channelID, messageID, emoji)
			if lookupErr == nil {
				return nil, &common.DuplicateError{ExistingID: existing.ID}
			}
		}
		return nil, errors.WithStackIf(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	s.l.Infof("created campaign %d for message %s emoji %s", id, messageID, emoji)

	return &Campaign{
		ID:        id,
		Title:     title,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
		RemindAt:  remindAt.UTC(),
		CreatedAt: now,
		Status:    StatusActive,
	}, nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (s *Store) campaignByTriple(channelID, messageID, emoji string) (*Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE channel_id=? AND message_id=? AND emoji=?`
	return s.scanCampaign(s.db.QueryRow(q, channelID, messageID, emoji))
}

// Campaign returns the campaign with the given id.
func (s *Store) Campaign(id int64) (*Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=?`

	c, err := s.scanCampaign(s.db.QueryRow(q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithMessagef(common.ErrNotFound, "campaign %d", id)
		}
		return nil, err
	}

	return c, nil
}

func (s *Store) scanCampaign(row *sql.Row) (*Campaign, error) {
	c := &Campaign{}
	err := row.Scan(&c.ID, &c.Title, &c.ChannelID, &c.MessageID, &c.Emoji, &c.RemindAt, &c.CreatedAt, &c.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.WithStackIf(err)
	}
	return c, nil
}

// Campaigns lists campaigns, optionally filtered by status.
func (s *Store) Campaigns(filter Status) ([]*Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY id`
	var args []interface{}
	if filter != "" {
		q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=? ORDER BY id`
		args = append(args, string(filter))
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}
	defer rows.Close()

	result := make([]*Campaign, 0)
	for rows.Next() {
		c := &Campaign{}
		err = rows.Scan(&c.ID, &c.Title, &c.ChannelID, &c.MessageID, &c.Emoji, &c.RemindAt, &c.CreatedAt, &c.Status)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}
		result = append(result, c)
	}

	return result, errors.WithStackIf(rows.Err())
}

// DueCampaigns returns active campaigns whose remind_at has passed, ordered
// by remind_at ascending.
func (s *Store) DueCampaigns(now time.Time) ([]*Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status=? AND remind_at <= ? ORDER BY remind_at ASC, id ASC`

	rows, err := s.db.Query(q, string(StatusActive), now.UTC())
	if err != nil {
		return nil, errors.WithStackIf(err)
	}
	defer rows.Close()

	result := make([]*Campaign, 0)
	for rows.Next() {
		c := &Campaign{}
		err = rows.Scan(&c.ID, &c.Title, &c.ChannelID, &c.MessageID, &c.Emoji, &c.RemindAt, &c.CreatedAt, &c.Status)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}
		result = append(result, c)
	}

	return result, errors.WithStackIf(rows.Err())
}

// SetCampaignStatus moves a campaign through the lifecycle state machine,
// rejecting transitions the machine does not allow. Setting StatusDeleted
// performs the cascade delete.
func (s *Store) SetCampaignStatus(id int64, next Status) error {
	c, err := s.Campaign(id)
	if err != nil {
		return err
	}

	if !c.Status.CanTransitionTo(next) {
		return errors.WithMessagef(common.ErrInvalidState,
			"cannot transition campaign %d from %s to %s", id, c.Status, next)
	}

	if next == StatusDeleted {
		return s.DeleteCampaign(id)
	}

	_, err = s.db.Exec(`UPDATE campaigns SET status=? WHERE id=?`, string(next), id)
	return errors.WithStackIf(err)
}

// DeleteCampaign removes a campaign; opt-ins and reminder logs cascade.
func (s *Store) DeleteCampaign(id int64) error {
	res, err := s.db.Exec(`DELETE FROM campaigns WHERE id=?`, id)
	if err != nil {
		return errors.WithStackIf(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStackIf(err)
	}
	if n == 0 {
		return errors.WithMessagef(common.ErrNotFound, "campaign %d", id)
	}

	s.l.Infof("deleted campaign %d", id)
	return nil
}

// UpsertOptIn records a user's opt-in, reporting whether a new row was
// inserted. An existing (campaign, user) pair is left untouched, so
// usernames are not refreshed on re-tally.
func (s *Store) UpsertOptIn(campaignID int64, userID, username string, talliedAt time.Time) (bool, error) {
	const q = `INSERT INTO opt_ins (campaign_id, user_id, username, tallied_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (campaign_id, user_id) DO NOTHING`

	res, err := s.db.Exec(q, campaignID, userID, username, talliedAt.UTC())
	if err != nil {
		return false, errors.WithStackIf(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStackIf(err)
	}

	return n > 0, nil
}

// OptIns returns a page of opt-ins for a campaign, keyed by user_id for
// stable cursoring.
func (s *Store) OptIns(campaignID int64, limit int, afterUserID string) ([]*OptIn, error) {
	q := `SELECT id, campaign_id, user_id, username, tallied_at FROM opt_ins
		WHERE campaign_id=? ORDER BY user_id LIMIT ?`
	args := []interface{}{campaignID, limit}
	if afterUserID != "" {
		q = `SELECT id, campaign_id, user_id, username, tallied_at FROM opt_ins
			WHERE campaign_id=? AND user_id > ? ORDER BY user_id LIMIT ?`
		args = []interface{}{campaignID, afterUserID, limit}
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}
	defer rows.Close()

	return scanOptIns(rows)
}

// AllOptIns returns every opt-in of a campaign in insertion order, the order
// the reminder broadcast mentions them in.
func (s *Store) AllOptIns(campaignID int64) ([]*OptIn, error) {
	const q = `SELECT id, campaign_id, user_id, username, tallied_at FROM opt_ins
		WHERE campaign_id=? ORDER BY id`

	rows, err := s.db.Query(q, campaignID)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}
	defer rows.Close()

	return scanOptIns(rows)
}

func scanOptIns(rows *sql.Rows) ([]*OptIn, error) {
	result := make([]*OptIn, 0)
	for rows.Next() {
		o := &OptIn{}
		var username null.String
		err := rows.Scan(&o.ID, &o.CampaignID, &o.UserID, &username, &o.TalliedAt)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}
		o.Username = username.String
		result = append(result, o)
	}

	return result, errors.WithStackIf(rows.Err())
}

// CountOptIns returns the number of opt-ins recorded for a campaign.
func (s *Store) CountOptIns(campaignID int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM opt_ins WHERE campaign_id=?`, campaignID).Scan(&n)
	if err != nil {
		return 0, errors.WithStackIf(err)
	}
	return n, nil
}

// AppendReminderLog writes the audit row for one broadcast attempt.
func (s *Store) AppendReminderLog(campaignID int64, sentAt time.Time, recipientCount, messageChunks int, success bool, errorMessage null.String) error {
	const q = `INSERT INTO reminder_logs (campaign_id, sent_at, recipient_count, message_chunks, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(q, campaignID, sentAt.UTC(), recipientCount, messageChunks, success, errorMessage)
	return errors.WithStackIf(err)
}

// ReminderLogs returns a campaign's broadcast audit trail, oldest first.
func (s *Store) ReminderLogs(campaignID int64) ([]*ReminderLog, error) {
	const q = `SELECT id, campaign_id, sent_at, recipient_count, message_chunks, success, error_message
		FROM reminder_logs WHERE campaign_id=? ORDER BY id`

	rows, err := s.db.Query(q, campaignID)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}
	defer rows.Close()

	result := make([]*ReminderLog, 0)
	for rows.Next() {
		rl := &ReminderLog{}
		err = rows.Scan(&rl.ID, &rl.CampaignID, &rl.SentAt, &rl.RecipientCount, &rl.MessageChunks, &rl.Success, &rl.ErrorMessage)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}
		result = append(result, rl)
	}

	return result, errors.WithStackIf(rows.Err())
}
