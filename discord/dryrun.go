package discord

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// DRY-RUN fixtures. Reads return this deterministic data set so campaign
// flows can be exercised end to end without a bot token; sends return
// snowflake-generated synthetic message ids.

const (
	fixtureBotUser = "remindmcp-fixture"
	fixtureBotID   = "999999999999999999"
)

var dryRunGuilds = []*GuildInfo{
	{ID: "123456789012345678", Name: "Fixture Guild One", MemberCount: 150, OwnerID: "987654321098765432"},
	{ID: "234567890123456789", Name: "Fixture Guild Two", MemberCount: 75, OwnerID: "876543210987654321"},
}

var dryRunChannels = []*ChannelInfo{
	{ID: "345678901234567890", GuildID: "123456789012345678", Name: "general", Type: "text", Topic: "General discussion", Position: 0},
	{ID: "456789012345678901", GuildID: "123456789012345678", Name: "announcements", Type: "text", Topic: "Server announcements", Position: 1},
	{ID: "567890123456789012", GuildID: "234567890123456789", Name: "Voice Channel 1", Type: "voice", Position: 2},
}

type dryRunState struct {
	node *snowflake.Node
}

func newDryRunState() *dryRunState {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return &dryRunState{node: node}
}

func (d *dryRunState) nextMessageID() string {
	return d.node.Generate().String()
}

func (s *Session) allowedFixtureGuilds() []*GuildInfo {
	out := make([]*GuildInfo, 0, len(dryRunGuilds))
	for _, g := range dryRunGuilds {
		id, _ := strconv.ParseInt(g.ID, 10, 64)
		if s.conf.GuildAllowed(id) {
			out = append(out, g)
		}
	}
	return out
}

func filterFixtureChannels(typeFilter string) []*ChannelInfo {
	out := make([]*ChannelInfo, 0, len(dryRunChannels))
	for _, c := range dryRunChannels {
		if typeFilter != "" && c.Type != typeFilter {
			continue
		}
		out = append(out, c)
	}
	return out
}

func fixtureChannel(channelID string) *ChannelInfo {
	for _, c := range dryRunChannels {
		if c.ID == channelID {
			return c
		}
	}

	return &ChannelInfo{
		ID:      channelID,
		GuildID: dryRunGuilds[0].ID,
		Name:    "fixture-channel",
		Type:    "text",
	}
}

func fixtureMessage(channelID, messageID string) *MessageInfo {
	return &MessageInfo{
		ID:        messageID,
		ChannelID: channelID,
		Content:   "Fixture message content",
		Author: AuthorInfo{
			ID:       "111111111111111111",
			Username: "fixture-author",
		},
		Timestamp: "2024-01-01T12:00:00+00:00",
		Reactions: []ReactionInfo{{Emoji: "✅", Count: 4}},
	}
}

func fixtureRecentMessages(channelID string, limit int) []*MessageInfo {
	n := limit
	if n > 5 {
		n = 5
	}

	out := make([]*MessageInfo, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &MessageInfo{
			ID:        "67890123456789012" + strconv.Itoa(i),
			ChannelID: channelID,
			Content:   "Fixture message " + strconv.Itoa(i+1),
			Author: AuthorInfo{
				ID:       "11111111111111111" + strconv.Itoa(i),
				Username: "fixture-user-" + strconv.Itoa(i+1),
			},
			Timestamp: "2024-01-0" + strconv.Itoa(i+1) + "T12:00:00+00:00",
		})
	}

	return out
}

func fixtureReactors() []Reactor {
	return []Reactor{
		{ID: "100000000000000001", Username: "alice"},
		{ID: "100000000000000002", Username: "bob"},
		{ID: "100000000000000003", Username: "carol"},
		{ID: "100000000000000004", Username: "hookbot", Bot: true},
	}
}
