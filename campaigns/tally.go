package campaigns

import (
	"github.com/pkg/errors"
)

// TallyResult reports the outcome of reconciling Discord reactions into the
// opt-in set.
type TallyResult struct {
	CampaignID     int64 `json:"campaign_id"`
	Total          int   `json:"total_optins"`
	NewOptIns      int   `json:"new_optins"`
	ExistingOptIns int   `json:"existing_optins"`
}

// Tally fetches the current reactors of the campaign's tracked emoji and
// records each non-bot user as an opt-in. Idempotent: re-running against
// unchanged reactions inserts nothing new. The stored emoji must match what
// Discord reports byte for byte (unicode as-is, custom emoji as "name:id");
// no further normalization is applied.
func (e *Engine) Tally(campaignID int64) (*TallyResult, error) {
	c, err := e.loadCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	if err := e.Discord.MessageExists(c.ChannelID, c.MessageID); err != nil {
		return nil, errors.WithMessage(err, "fetching campaign message")
	}

	reactors, err := e.Discord.ReactionUsers(c.ChannelID, c.MessageID, c.Emoji)
	if err != nil {
		return nil, errors.WithMessage(err, "fetching reactions")
	}

	res := &TallyResult{CampaignID: campaignID}
	now := e.now().UTC()

	for _, r := range reactors {
		if r.Bot {
			continue
		}

		inserted, err := e.Store.UpsertOptIn(campaignID, r.ID, r.Username, now)
		if err != nil {
			return nil, err
		}

		if inserted {
			res.NewOptIns++
		} else {
			res.ExistingOptIns++
		}
	}

	res.Total = res.NewOptIns + res.ExistingOptIns
	e.l.Infof("tallied campaign %d: %d new, %d existing, %d total",
		campaignID, res.NewOptIns, res.ExistingOptIns, res.Total)

	return res, nil
}
