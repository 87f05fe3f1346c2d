package discord

import (
	"net/http"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefotb/remindmcp/common"
)

func newDryRunSession(t *testing.T, allowlist []int64) *Session {
	t.Helper()

	s, err := NewSession(&common.Config{DryRun: true, GuildAllowlist: allowlist})
	require.NoError(t, err)
	return s
}

func TestEnsureConnectedDryRun(t *testing.T) {
	s := newDryRunSession(t, nil)
	assert.NoError(t, s.EnsureConnected())
}

func TestDryRunSendReturnsSyntheticID(t *testing.T) {
	s := newDryRunSession(t, nil)

	id1, err := s.MessageSend("345678901234567890", "hello", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	id2, err := s.MessageSend("345678901234567890", "hello again", "")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestDryRunGuildListHonorsAllowlist(t *testing.T) {
	s := newDryRunSession(t, nil)

	guilds, err := s.GuildList()
	require.NoError(t, err)
	assert.Len(t, guilds, 2)

	s = newDryRunSession(t, []int64{123456789012345678})
	guilds, err = s.GuildList()
	require.NoError(t, err)
	require.Len(t, guilds, 1)
	assert.Equal(t, "123456789012345678", guilds[0].ID)
}

func TestDryRunChannelListForbiddenGuild(t *testing.T) {
	s := newDryRunSession(t, []int64{111})

	_, err := s.ChannelList("123456789012345678", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrForbidden))
}

func TestDryRunChannelListTypeFilter(t *testing.T) {
	s := newDryRunSession(t, nil)

	channels, err := s.ChannelList("123456789012345678", "voice")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "voice", channels[0].Type)
}

func TestDryRunReactionUsers(t *testing.T) {
	s := newDryRunSession(t, nil)

	reactors, err := s.ReactionUsers("345678901234567890", "200", "✅")
	require.NoError(t, err)
	require.Len(t, reactors, 4)

	bots := 0
	for _, r := range reactors {
		if r.Bot {
			bots++
		}
	}
	assert.Equal(t, 1, bots)
}

func TestDryRunBotStatus(t *testing.T) {
	s := newDryRunSession(t, nil)

	status := s.BotStatus()
	assert.Equal(t, "connected", status.Status)
	assert.True(t, status.DryRun)
	assert.Equal(t, 2, status.GuildCount)
}

func TestParseID(t *testing.T) {
	id, err := parseID("channel", " 123 ")
	require.NoError(t, err)
	assert.EqualValues(t, 123, id)

	_, err = parseID("channel", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = parseID("channel", "-5")
	require.Error(t, err)
}

func restError(status int, header http.Header) *discordgo.RESTError {
	if header == nil {
		header = http.Header{}
	}
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Header: header},
	}
}

func TestMapRESTError(t *testing.T) {
	assert.True(t, errors.Is(mapRESTError(restError(http.StatusForbidden, nil)), common.ErrForbidden))
	assert.True(t, errors.Is(mapRESTError(restError(http.StatusNotFound, nil)), common.ErrNotFound))

	header := http.Header{}
	header.Set("Retry-After", "3")
	err := mapRESTError(restError(http.StatusTooManyRequests, header))

	var rl *common.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 3*time.Second, rl.RetryAfter)

	err = mapRESTError(errors.New("connection reset"))
	var tr *common.TransientError
	assert.True(t, errors.As(err, &tr))
}

func TestEmojiString(t *testing.T) {
	assert.Equal(t, "✅", emojiString(&discordgo.Emoji{Name: "✅"}))
	assert.Equal(t, "partyblob:123456", emojiString(&discordgo.Emoji{Name: "partyblob", ID: 123456}))
}
