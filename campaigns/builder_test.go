package campaigns

import (
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOptIns(t *testing.T, e *Engine, campaignID int64, userIDs []string) {
	t.Helper()

	now := time.Now().UTC()
	for _, id := range userIDs {
		_, err := e.Store.UpsertOptIn(campaignID, id, "u"+id, now)
		require.NoError(t, err)
	}
}

// extractMentions pulls the mention tokens out of a chunk in order.
func extractMentions(chunk string) []string {
	var out []string
	for i := 0; i < len(chunk); {
		start := strings.Index(chunk[i:], "<@")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(chunk[start:], ">")
		if end < 0 {
			break
		}
		out = append(out, chunk[start:start+end+1])
		i = start + end + 1
	}
	return out
}

func TestBuildReminderSingleChunk(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "Game night", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111", "222"})

	r, err := e.BuildReminder(c.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 2, r.RecipientCount)
	require.Len(t, r.Chunks, 1)
	assert.Equal(t, "🔔 Reminder: Game night\n<@111> <@222>", r.Chunks[0])
}

func TestBuildReminderEmpty(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "Nobody", "100", "200", "✅", time.Now().UTC())

	r, err := e.BuildReminder(c.ID, "")
	require.NoError(t, err)
	assert.Zero(t, r.RecipientCount)
	assert.Empty(t, r.Chunks)
}

func TestBuildReminderUntitledFallback(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111"})

	r, err := e.BuildReminder(c.ID, "")
	require.NoError(t, err)
	require.Len(t, r.Chunks, 1)
	assert.True(t, strings.HasPrefix(r.Chunks[0], "🔔 Reminder: Campaign "+strconv.FormatInt(c.ID, 10)))
}

func TestBuildReminderChunkBoundary(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "Monthly community game night signup", "100", "200", "✅", time.Now().UTC())

	// 210 18-digit snowflakes, mention tokens of 21 code points each
	userIDs := make([]string, 210)
	for i := range userIDs {
		userIDs[i] = strconv.FormatInt(100000000000000000+int64(i), 10)
	}
	seedOptIns(t, e, c.ID, userIDs)

	r, err := e.BuildReminder(c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 210, r.RecipientCount)
	assert.Len(t, r.Chunks, 3)

	// every chunk under the ceiling
	for i, chunk := range r.Chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), MaxMessageLength, "chunk %d", i)
	}

	// continuation marker on follow-up chunks only
	assert.NotContains(t, strings.SplitN(r.Chunks[0], "\n", 2)[0], "(cont.)")
	for _, chunk := range r.Chunks[1:] {
		assert.Contains(t, strings.SplitN(chunk, "\n", 2)[0], "(cont.)")
	}

	// concatenated mentions reproduce the opt-in list in insertion order
	var got []string
	for _, chunk := range r.Chunks {
		got = append(got, extractMentions(chunk)...)
	}
	require.Len(t, got, 210)
	for i, id := range userIDs {
		assert.Equal(t, "<@"+id+">", got[i])
	}
}

func TestBuildReminderDegenerateLongUserID(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "Edge", "100", "200", "✅", time.Now().UTC())

	long := strings.Repeat("9", 1997) // mention token of exactly 2000 code points
	seedOptIns(t, e, c.ID, []string{long, "111"})

	r, err := e.BuildReminder(c.ID, "")
	require.NoError(t, err)
	require.Len(t, r.Chunks, 2)

	assert.Equal(t, "<@"+long+">", r.Chunks[0])
	for _, chunk := range r.Chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), MaxMessageLength)
	}
	assert.Contains(t, r.Chunks[1], "<@111>")
}

func TestBuildReminderTemplate(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "Raid", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111", "222", "333"})

	r, err := e.BuildReminder(c.ID, "Heads up {title} ({total_optins} signed up): {mentions} - see you there")
	require.NoError(t, err)
	require.Len(t, r.Chunks, 1)
	assert.Equal(t, "Heads up Raid (3 signed up): <@111> <@222> <@333> - see you there", r.Chunks[0])
}

func TestBuildReminderTemplateWithoutPlaceholder(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "Raid", "100", "200", "✅", time.Now().UTC())
	seedOptIns(t, e, c.ID, []string{"111"})

	r, err := e.BuildReminder(c.ID, "Don't forget: {title}")
	require.NoError(t, err)
	require.Len(t, r.Chunks, 1)
	assert.Equal(t, "Don't forget: Raid\n<@111>", r.Chunks[0])
}

func TestBuildChunksRespectsBoundary(t *testing.T) {
	header := "H"
	mentions := make([]string, 500)
	for i := range mentions {
		mentions[i] = "<@" + strconv.Itoa(1000000+i) + ">"
	}

	chunks := buildChunks(header, mentions)
	require.NotEmpty(t, chunks)

	var total int
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), MaxMessageLength)
		total += len(extractMentions(chunk))
	}
	assert.Equal(t, len(mentions), total)
}

func TestBuildReminderDeletedCampaign(t *testing.T) {
	e, _ := newTestEngine(t, &fakeGateway{})

	c := mustCreateCampaign(t, e.Store, "", "100", "200", "✅", time.Now().UTC())
	require.NoError(t, e.Store.DeleteCampaign(c.ID))

	_, err := e.BuildReminder(c.ID, "")
	require.Error(t, err)
}
