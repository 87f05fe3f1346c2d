package campaigns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null"

	"github.com/youssefotb/remindmcp/discord"
)

// fakeGateway is a hand-rolled Gateway double. sendErrs is consumed one
// entry per SendMessage call; a nil entry means that call succeeds.
type fakeGateway struct {
	reactors  []discord.Reactor
	reactErr  error
	existsErr error

	sent     []string
	sendErrs []error
}

func (f *fakeGateway) MessageExists(channelID, messageID string) error {
	return f.existsErr
}

func (f *fakeGateway) ReactionUsers(channelID, messageID, emoji string) ([]discord.Reactor, error) {
	if f.reactErr != nil {
		return nil, f.reactErr
	}
	return f.reactors, nil
}

func (f *fakeGateway) SendMessage(channelID, content string) (string, error) {
	var err error
	if len(f.sendErrs) > 0 {
		err = f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
	}
	if err != nil {
		return "", err
	}

	f.sent = append(f.sent, content)
	return "900000000000000001", nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// newTestEngine returns an engine whose sleeps are recorded instead of
// executed and whose clock is pinned.
func newTestEngine(t *testing.T, gw *fakeGateway) (*Engine, *[]time.Duration) {
	t.Helper()

	e := NewEngine(newTestStore(t), gw)

	slept := &[]time.Duration{}
	e.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	e.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	return e, slept
}

func mustCreateCampaign(t *testing.T, s *Store, title, channelID, messageID, emoji string, remindAt time.Time) *Campaign {
	t.Helper()

	tt := null.String{}
	if title != "" {
		tt = null.StringFrom(title)
	}

	c, err := s.CreateCampaign(tt, channelID, messageID, emoji, remindAt)
	require.NoError(t, err)
	return c
}
