package discord

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonas747/discordgo"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/youssefotb/remindmcp/common"
)

const entityCacheTTL = 5 * time.Minute

// GuildInfo is the wire representation of a guild.
type GuildInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// ChannelInfo is the wire representation of a channel.
type ChannelInfo struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Topic    string `json:"topic,omitempty"`
	NSFW     bool   `json:"nsfw"`
	Position int    `json:"position"`
}

// AuthorInfo identifies the author of a message.
type AuthorInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// ReactionInfo summarizes one reaction emoji on a message. Custom emoji are
// rendered as "name:id", unicode emoji as themselves.
type ReactionInfo struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// MessageInfo is the wire representation of a message.
type MessageInfo struct {
	ID        string         `json:"id"`
	ChannelID string         `json:"channel_id"`
	Content   string         `json:"content"`
	Author    AuthorInfo     `json:"author"`
	Timestamp string         `json:"timestamp"`
	Reactions []ReactionInfo `json:"reactions,omitempty"`
}

// Reactor is one user who reacted to a message with a tracked emoji.
type Reactor struct {
	ID       string
	Username string
	Bot      bool
}

// Status describes the health of the gateway session.
type Status struct {
	Status          string       `json:"status"`
	BotUser         string       `json:"bot_user,omitempty"`
	BotID           string       `json:"bot_id,omitempty"`
	GuildCount      int          `json:"guild_count"`
	TotalGuildCount int          `json:"total_guild_count"`
	LatencyMS       float64      `json:"latency_ms"`
	Guilds          []*GuildInfo `json:"guilds"`
	DryRun          bool         `json:"dry_run,omitempty"`
}

// PingResult is the result of a connection health probe.
type PingResult struct {
	Status      string  `json:"status"`
	LatencyMS   float64 `json:"latency_ms"`
	BotUser     string  `json:"bot_user,omitempty"`
	GuildAccess *bool   `json:"guild_access,omitempty"`
	GuildName   string  `json:"guild_name,omitempty"`
}

// Session owns the single long-lived Discord connection. All ids are strings
// at this boundary and parsed to snowflakes at the discordgo call sites.
// Under DRY-RUN no connection is made: reads serve deterministic fixtures and
// sends return synthetic message ids.
type Session struct {
	conf *common.Config
	l    *logrus.Entry

	mu     sync.Mutex
	raw    *discordgo.Session
	open   bool
	botID  int64
	botTag string

	entities *cache.Cache
	dry      *dryRunState
}

// NewSession creates the session without connecting. Connection happens on
// the first EnsureConnected call.
func NewSession(conf *common.Config) (*Session, error) {
	s := &Session{
		conf:     conf,
		l:        common.GetLogger("discord"),
		entities: cache.New(entityCacheTTL, 2*entityCacheTTL),
	}

	if conf.DryRun {
		s.dry = newDryRunState()
		return s, nil
	}

	raw, err := discordgo.New("Bot " + conf.DiscordToken)
	if err != nil {
		return nil, errors.Wrap(err, "creating discord session")
	}

	raw.AddHandler(s.handleReady)
	s.raw = raw

	return s, nil
}

func (s *Session) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.mu.Lock()
	s.botID = r.User.ID
	s.botTag = r.User.Username
	s.mu.Unlock()

	s.l.Infof("logged in as %s (%d), %d guilds", r.User.Username, r.User.ID, len(r.Guilds))
}

// EnsureConnected opens the gateway connection if it isn't open yet.
// Idempotent; a no-op under DRY-RUN.
func (s *Session) EnsureConnected() error {
	if s.conf.DryRun {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	if s.raw == nil {
		return common.ErrNotConnected
	}

	if err := s.raw.Open(); err != nil {
		return errors.Wrapf(common.ErrNotConnected, "opening gateway: %v", err)
	}

	s.open = true
	return nil
}

// Close shuts the gateway connection down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raw == nil || !s.open {
		return nil
	}

	s.open = false
	return s.raw.Close()
}

func (s *Session) checkGuild(guildID int64) error {
	if guildID != 0 && !s.conf.GuildAllowed(guildID) {
		return errors.Wrapf(common.ErrForbidden, "guild %d is not in the allowlist", guildID)
	}
	return nil
}

// channel resolves a channel through the entity cache, enforcing the
// allowlist on the owning guild.
func (s *Session) channel(channelID int64) (*discordgo.Channel, error) {
	key := "channel:" + strconv.FormatInt(channelID, 10)
	if v, ok := s.entities.Get(key); ok {
		c := v.(*discordgo.Channel)
		return c, s.checkGuild(c.GuildID)
	}

	c, err := s.raw.Channel(channelID)
	if err != nil {
		return nil, mapRESTError(err)
	}

	s.entities.Set(key, c, cache.DefaultExpiration)
	return c, s.checkGuild(c.GuildID)
}

// GuildList returns the guilds the bot is a member of, filtered by the
// allowlist.
func (s *Session) GuildList() ([]*GuildInfo, error) {
	if s.conf.DryRun {
		return s.allowedFixtureGuilds(), nil
	}

	s.raw.State.RLock()
	guilds := make([]*discordgo.Guild, len(s.raw.State.Guilds))
	copy(guilds, s.raw.State.Guilds)
	s.raw.State.RUnlock()

	out := make([]*GuildInfo, 0, len(guilds))
	for _, g := range guilds {
		if !s.conf.GuildAllowed(g.ID) {
			continue
		}

		out = append(out, &GuildInfo{
			ID:          strconv.FormatInt(g.ID, 10),
			Name:        g.Name,
			MemberCount: g.MemberCount,
			OwnerID:     strconv.FormatInt(g.OwnerID, 10),
		})
	}

	return out, nil
}

// ChannelList returns the channels of a guild, optionally filtered by type.
func (s *Session) ChannelList(guildID string, typeFilter string) ([]*ChannelInfo, error) {
	gID, err := parseID("guild", guildID)
	if err != nil {
		return nil, err
	}

	if err := s.checkGuild(gID); err != nil {
		return nil, err
	}

	if s.conf.DryRun {
		return filterFixtureChannels(typeFilter), nil
	}

	channels, err := s.raw.GuildChannels(gID)
	if err != nil {
		return nil, mapRESTError(err)
	}

	out := make([]*ChannelInfo, 0, len(channels))
	for _, c := range channels {
		info := channelInfo(c)
		if typeFilter != "" && info.Type != typeFilter {
			continue
		}
		out = append(out, info)
	}

	return out, nil
}

// ChannelGet returns information about one channel.
func (s *Session) ChannelGet(channelID string) (*ChannelInfo, error) {
	cID, err := parseID("channel", channelID)
	if err != nil {
		return nil, err
	}

	if s.conf.DryRun {
		return fixtureChannel(channelID), nil
	}

	c, err := s.channel(cID)
	if err != nil {
		return nil, err
	}

	return channelInfo(c), nil
}

// MessageGet fetches one message, including its reaction summary.
func (s *Session) MessageGet(channelID, messageID string) (*MessageInfo, error) {
	cID, err := parseID("channel", channelID)
	if err != nil {
		return nil, err
	}
	mID, err := parseID("message", messageID)
	if err != nil {
		return nil, err
	}

	if s.conf.DryRun {
		return fixtureMessage(channelID, messageID), nil
	}

	if _, err := s.channel(cID); err != nil {
		return nil, err
	}

	m, err := s.raw.ChannelMessage(cID, mID)
	if err != nil {
		return nil, mapRESTError(err)
	}

	return messageInfo(m), nil
}

// MessageExists verifies that a message can be fetched under the current
// allowlist. Campaign creation uses this to validate its target.
func (s *Session) MessageExists(channelID, messageID string) error {
	_, err := s.MessageGet(channelID, messageID)
	return err
}

// RecentMessages returns up to limit messages from a channel, newest first.
func (s *Session) RecentMessages(channelID string, limit int) ([]*MessageInfo, error) {
	if limit < 1 {
		limit = 1
	} else if limit > 100 {
		limit = 100
	}

	cID, err := parseID("channel", channelID)
	if err != nil {
		return nil, err
	}

	if s.conf.DryRun {
		return fixtureRecentMessages(channelID, limit), nil
	}

	if _, err := s.channel(cID); err != nil {
		return nil, err
	}

	msgs, err := s.raw.ChannelMessages(cID, limit, 0, 0, 0)
	if err != nil {
		return nil, mapRESTError(err)
	}

	out := make([]*MessageInfo, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageInfo(m))
	}

	return out, nil
}

// MessageSend posts content to a channel and returns the new message id.
// The client library predates Discord inline replies, so replyTo is emulated
// by verifying the referenced message and leading with its author's mention.
// Under DRY-RUN nothing is sent and a synthetic id is returned.
func (s *Session) MessageSend(channelID, content, replyTo string) (string, error) {
	cID, err := parseID("channel", channelID)
	if err != nil {
		return "", err
	}

	if s.conf.DryRun {
		s.l.Infof("DRY_RUN: suppressing send of %d chars to channel %s", len(content), channelID)
		return s.dry.nextMessageID(), nil
	}

	if _, err := s.channel(cID); err != nil {
		return "", err
	}

	if replyTo != "" {
		rID, err := parseID("message", replyTo)
		if err != nil {
			return "", err
		}

		ref, err := s.raw.ChannelMessage(cID, rID)
		if err != nil {
			return "", mapRESTError(err)
		}
		if ref.Author != nil {
			content = "<@" + strconv.FormatInt(ref.Author.ID, 10) + "> " + content
		}
	}

	m, err := s.raw.ChannelMessageSend(cID, content)
	if err != nil {
		return "", mapRESTError(err)
	}

	return strconv.FormatInt(m.ID, 10), nil
}

// SendMessage is the plain send used by the campaign engine.
func (s *Session) SendMessage(channelID, content string) (string, error) {
	return s.MessageSend(channelID, content, "")
}

// ReactionUsers pages through all users who reacted to the message with
// emoji. The emoji string is passed exactly as stored on the campaign:
// unicode emoji as-is, custom emoji as "name:id". Bot accounts are included,
// flagged, and left for the caller to filter.
func (s *Session) ReactionUsers(channelID, messageID, emoji string) ([]Reactor, error) {
	cID, err := parseID("channel", channelID)
	if err != nil {
		return nil, err
	}
	mID, err := parseID("message", messageID)
	if err != nil {
		return nil, err
	}

	if s.conf.DryRun {
		return fixtureReactors(), nil
	}

	if _, err := s.channel(cID); err != nil {
		return nil, err
	}

	after := int64(0)
	users := make([]Reactor, 0, 100)

	for {
		page, err := s.raw.MessageReactions(cID, mID, emoji, 100, 0, after)
		if err != nil {
			return nil, mapRESTError(err)
		}

		for _, u := range page {
			users = append(users, Reactor{
				ID:       strconv.FormatInt(u.ID, 10),
				Username: u.Username,
				Bot:      u.Bot,
			})
		}

		if len(page) < 100 {
			break
		}
		after = page[len(page)-1].ID
	}

	return users, nil
}

// BotStatus reports the health of the session.
func (s *Session) BotStatus() *Status {
	if s.conf.DryRun {
		return &Status{
			Status:          "connected",
			BotUser:         fixtureBotUser,
			BotID:           fixtureBotID,
			GuildCount:      len(s.allowedFixtureGuilds()),
			TotalGuildCount: len(dryRunGuilds),
			Guilds:          s.allowedFixtureGuilds(),
			DryRun:          true,
		}
	}

	s.mu.Lock()
	open := s.open
	botID := s.botID
	botTag := s.botTag
	s.mu.Unlock()

	if !open {
		return &Status{Status: "not_connected", Guilds: []*GuildInfo{}}
	}

	guilds, _ := s.GuildList()
	if guilds == nil {
		guilds = []*GuildInfo{}
	}

	s.raw.State.RLock()
	total := len(s.raw.State.Guilds)
	s.raw.State.RUnlock()

	return &Status{
		Status:          "connected",
		BotUser:         botTag,
		BotID:           strconv.FormatInt(botID, 10),
		GuildCount:      len(guilds),
		TotalGuildCount: total,
		LatencyMS:       float64(s.raw.HeartbeatLatency()) / float64(time.Millisecond),
		Guilds:          guilds,
	}
}

// Ping probes the connection and optionally verifies access to one guild.
func (s *Session) Ping(guildID string) (*PingResult, error) {
	if s.conf.DryRun {
		res := &PingResult{Status: "connected", BotUser: fixtureBotUser}
		if guildID != "" {
			access := true
			res.GuildAccess = &access
			res.GuildName = dryRunGuilds[0].Name
		}
		return res, nil
	}

	s.mu.Lock()
	open := s.open
	botTag := s.botTag
	s.mu.Unlock()

	if !open {
		return &PingResult{Status: "disconnected"}, nil
	}

	res := &PingResult{
		Status:    "connected",
		LatencyMS: float64(s.raw.HeartbeatLatency()) / float64(time.Millisecond),
		BotUser:   botTag,
	}

	if guildID != "" {
		gID, err := parseID("guild", guildID)
		if err != nil {
			return nil, err
		}

		access := false
		if s.conf.GuildAllowed(gID) {
			g, err := s.raw.Guild(gID)
			if err == nil {
				access = true
				res.GuildName = g.Name
			}
		}
		res.GuildAccess = &access
	}

	return res, nil
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(common.ErrNotFound, "invalid %s id %q", kind, raw)
	}
	return id, nil
}

func channelInfo(c *discordgo.Channel) *ChannelInfo {
	info := &ChannelInfo{
		ID:       strconv.FormatInt(c.ID, 10),
		Name:     c.Name,
		Type:     channelTypeString(c.Type),
		Topic:    c.Topic,
		NSFW:     c.NSFW,
		Position: c.Position,
	}
	if c.GuildID != 0 {
		info.GuildID = strconv.FormatInt(c.GuildID, 10)
	}
	return info
}

func messageInfo(m *discordgo.Message) *MessageInfo {
	info := &MessageInfo{
		ID:        strconv.FormatInt(m.ID, 10),
		ChannelID: strconv.FormatInt(m.ChannelID, 10),
		Content:   m.Content,
		Timestamp: string(m.Timestamp),
	}

	if m.Author != nil {
		info.Author = AuthorInfo{
			ID:       strconv.FormatInt(m.Author.ID, 10),
			Username: m.Author.Username,
			Bot:      m.Author.Bot,
		}
	}

	for _, r := range m.Reactions {
		if r.Emoji == nil {
			continue
		}
		info.Reactions = append(info.Reactions, ReactionInfo{
			Emoji: emojiString(r.Emoji),
			Count: r.Count,
		})
	}

	return info
}

// emojiString renders an emoji the way campaigns store it: custom emoji as
// "name:id", unicode emoji byte-for-byte.
func emojiString(e *discordgo.Emoji) string {
	if e.ID != 0 {
		return e.Name + ":" + strconv.FormatInt(e.ID, 10)
	}
	return e.Name
}

func channelTypeString(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeDM:
		return "dm"
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	case discordgo.ChannelTypeGroupDM:
		return "group_dm"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildNews:
		return "news"
	case discordgo.ChannelTypeGuildStore:
		return "store"
	}
	return "unknown"
}
