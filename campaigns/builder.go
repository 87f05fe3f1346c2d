package campaigns

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	defaultTemplate = "🔔 Reminder: {title}"
	mentionsVar     = "{mentions}"
)

// Reminder is a built broadcast: the ordered message chunks and the number
// of opt-ins they mention.
type Reminder struct {
	CampaignID     int64    `json:"campaign_id"`
	RecipientCount int      `json:"total_recipients"`
	Chunks         []string `json:"message_chunks"`
}

// BuildReminder assembles the broadcast for a campaign. Each chunk stays
// within MaxMessageLength code points and mentions appear in opt-in
// insertion order across chunks. A campaign with no opt-ins builds to zero
// chunks. Pure apart from reading the store.
func (e *Engine) BuildReminder(campaignID int64, template string) (*Reminder, error) {
	c, err := e.loadCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	optins, err := e.Store.AllOptIns(campaignID)
	if err != nil {
		return nil, err
	}

	r := &Reminder{
		CampaignID:     campaignID,
		RecipientCount: len(optins),
		Chunks:         []string{},
	}
	if len(optins) == 0 {
		return r, nil
	}

	mentions := make([]string, len(optins))
	for i, o := range optins {
		mentions[i] = "<@" + o.UserID + ">"
	}

	header := renderHeader(c, template, len(optins))
	r.Chunks = buildChunks(header, mentions)

	return r, nil
}

// renderHeader fills the template variables. {mentions} survives rendering
// and marks where each chunk's mentions are substituted.
func renderHeader(c *Campaign, template string, total int) string {
	if template == "" {
		template = defaultTemplate
	}

	out := strings.ReplaceAll(template, "{title}", c.DisplayTitle())
	out = strings.ReplaceAll(out, "{total_optins}", strconv.Itoa(total))
	return out
}

// layout is one chunk's fixed text around the mention list. A header with a
// {mentions} placeholder splits into prefix/suffix around it; otherwise the
// mentions follow the header on a new line.
type layout struct {
	prefix, suffix string
	base           int
}

func chunkLayout(header string) layout {
	if i := strings.Index(header, mentionsVar); i >= 0 {
		l := layout{prefix: header[:i], suffix: header[i+len(mentionsVar):]}
		l.base = utf8.RuneCountInString(l.prefix) + utf8.RuneCountInString(l.suffix)
		return l
	}

	l := layout{prefix: header + "\n"}
	l.base = utf8.RuneCountInString(l.prefix)
	return l
}

func (l layout) render(mentions string) string {
	return l.prefix + mentions + l.suffix
}

// addContinuationMarker tags the header's first line so follow-up chunks
// read as a continuation of the broadcast.
func addContinuationMarker(header string) string {
	if i := strings.Index(header, "\n"); i >= 0 {
		return header[:i] + " (cont.)" + header[i:]
	}
	return header + " (cont.)"
}

// buildChunks greedily packs mentions, separated by single spaces, into
// chunks of at most MaxMessageLength code points. A mention that cannot fit
// a fresh chunk's budget is emitted as a bare chunk of its own.
func buildChunks(header string, mentions []string) []string {
	first := chunkLayout(header)
	cont := chunkLayout(addContinuationMarker(header))

	var chunks []string
	active := first
	var cur []string
	curLen := 0

	for _, m := range mentions {
		mLen := utf8.RuneCountInString(m)

		if len(cur) > 0 && active.base+curLen+1+mLen > MaxMessageLength {
			chunks = append(chunks, active.render(strings.Join(cur, " ")))
			active = cont
			cur = cur[:0]
			curLen = 0
		}

		if len(cur) == 0 && active.base+mLen > MaxMessageLength {
			chunks = append(chunks, m)
			active = cont
			continue
		}

		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, m)
		curLen += mLen
	}

	if len(cur) > 0 {
		chunks = append(chunks, active.render(strings.Join(cur, " ")))
	}

	return chunks
}
