package campaigns

import (
	"strconv"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefotb/remindmcp/common"
)

func seedManyOptIns(t *testing.T, e *Engine, campaignID int64, n int) {
	t.Helper()

	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		userID := strconv.FormatInt(100000000000000000+int64(i), 10)
		_, err := e.Store.UpsertOptIn(campaignID, userID, "", now)
		require.NoError(t, err)
	}
}

func TestSendReminderHappyPath(t *testing.T) {
	gw := &fakeGateway{}
	e, slept := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "Game night", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111", "222"})

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ChunksSent)
	assert.Equal(t, 2, res.RecipientCount)
	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0], "<@111> <@222>")

	// single chunk, no inter-chunk sleep
	assert.Empty(t, *slept)

	got, err := e.Store.Campaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	logs, err := e.Store.ReminderLogs(c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 1, logs[0].MessageChunks)
	assert.Equal(t, 2, logs[0].RecipientCount)
}

func TestSendReminderMultiChunkDelays(t *testing.T) {
	gw := &fakeGateway{}
	e, slept := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "Big one", "100", "200", "✅", time.Now().UTC())
	seedManyOptIns(t, e, c.ID, 210)

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.ChunksSent)
	assert.Len(t, gw.sent, 3)

	// a delay after every chunk except the last
	require.Len(t, *slept, 2)
	for _, d := range *slept {
		assert.Equal(t, DefaultInterChunkDelay, d)
	}
}

func TestSendReminderEmptyOptIns(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "Nobody", "100", "200", "✅", time.Now().UTC())

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.ChunksSent)
	assert.Empty(t, gw.sent)

	// audit row written, status untouched
	logs, err := e.Store.ReminderLogs(c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Zero(t, logs[0].MessageChunks)

	got, err := e.Store.Campaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestSendReminderDryRun(t *testing.T) {
	gw := &fakeGateway{}
	e, slept := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "Game night", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111"})

	res, err := e.SendReminder(c.ID, true)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.ChunksSent)
	assert.Empty(t, gw.sent)
	assert.Empty(t, *slept)

	// a dry run never completes the campaign
	got, err := e.Store.Campaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	// but it does leave an audit row
	logs, err := e.Store.ReminderLogs(c.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestSendReminderRateLimitRetry(t *testing.T) {
	gw := &fakeGateway{sendErrs: []error{
		nil,
		&common.RateLimitedError{RetryAfter: 3 * time.Second},
	}}
	e, slept := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "Big one", "100", "200", "✅", time.Now().UTC())
	seedManyOptIns(t, e, c.ID, 210)

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.ChunksSent)
	assert.Len(t, gw.sent, 3)

	// retry-after honored before the retry of chunk 2
	assert.Contains(t, *slept, 3*time.Second)

	logs, err := e.Store.ReminderLogs(c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 3, logs[0].MessageChunks)
}

func TestSendReminderRateLimitExhausted(t *testing.T) {
	rl := &common.RateLimitedError{RetryAfter: time.Second}
	gw := &fakeGateway{sendErrs: []error{rl, rl, rl, rl}}
	e, _ := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111"})

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Zero(t, res.ChunksSent)
	assert.NotEmpty(t, res.Error)

	got, err := e.Store.Campaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestSendReminderMidBroadcastFailure(t *testing.T) {
	gw := &fakeGateway{sendErrs: []error{
		nil,
		nil,
		&common.TransientError{Cause: errors.New("connection reset")},
	}}
	e, _ := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "Big one", "100", "200", "✅", time.Now().UTC())
	seedManyOptIns(t, e, c.ID, 400)

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.ChunksSent)
	assert.NotEmpty(t, res.Error)

	// campaign stays active, one failure row with partial progress
	got, err := e.Store.Campaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	logs, err := e.Store.ReminderLogs(c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, 2, logs[0].MessageChunks)
	assert.True(t, logs[0].ErrorMessage.Valid)

	// a later send restarts from chunk 0
	gw.sendErrs = nil
	prevSent := len(gw.sent)

	res, err = e.SendReminder(c.ID, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, res.ChunksTotal, len(gw.sent)-prevSent)
}

func TestSendReminderDeletedCampaign(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "", "100", "200", "✅", time.Now().UTC())
	require.NoError(t, e.Store.DeleteCampaign(c.ID))

	_, err := e.SendReminder(c.ID, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSendReminderCompletedCampaignKeepsStatus(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newTestEngine(t, gw)

	c := mustCreateCampaign(t, e.Store, "", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111"})
	require.NoError(t, e.Store.SetCampaignStatus(c.ID, StatusCompleted))

	res, err := e.SendReminder(c.ID, false)
	require.NoError(t, err)
	assert.True(t, res.Success)

	got, err := e.Store.Campaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}
