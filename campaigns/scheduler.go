package campaigns

import (
	"time"
)

// DueOutcome is the per-campaign result of one scheduler tick.
type DueOutcome struct {
	CampaignID int64        `json:"campaign_id"`
	Title      string       `json:"title"`
	Tally      *TallyResult `json:"tally,omitempty"`
	Send       *SendResult  `json:"send,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// RunDue processes every active campaign whose remind_at has passed, in
// remind_at order: tally, then a real send, with an inter-campaign delay as
// the system-wide fan-out governor. A failed tally skips the send for that
// campaign; the campaign stays active and is retried on the next tick.
// There is no internal timer: callers (cron, the run_due_reminders tool)
// provide the tick, which keeps the process stateless between invocations.
func (e *Engine) RunDue(now time.Time) ([]*DueOutcome, error) {
	due, err := e.Store.DueCampaigns(now.UTC())
	if err != nil {
		return nil, err
	}

	outcomes := make([]*DueOutcome, 0, len(due))

	for i, c := range due {
		out := &DueOutcome{CampaignID: c.ID, Title: c.DisplayTitle()}

		tally, err := e.Tally(c.ID)
		if err != nil {
			out.Error = err.Error()
			e.l.WithError(err).Errorf("tally failed for due campaign %d, skipping send", c.ID)
		} else {
			out.Tally = tally

			send, err := e.SendReminder(c.ID, false)
			if err != nil {
				out.Error = err.Error()
				e.l.WithError(err).Errorf("send failed for due campaign %d", c.ID)
			} else {
				out.Send = send
				if !send.Success {
					out.Error = send.Error
				}
			}
		}

		outcomes = append(outcomes, out)

		if i < len(due)-1 {
			e.sleep(e.InterCampaignDelay)
		}
	}

	if len(due) > 0 {
		e.l.Infof("processed %d due campaigns", len(due))
	}

	return outcomes, nil
}
