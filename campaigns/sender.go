package campaigns

import (
	"emperror.dev/errors"
	"github.com/volatiletech/null"

	"github.com/youssefotb/remindmcp/common"
)

// SendResult reports a broadcast attempt. Success=false carries the partial
// progress counters and the failure message.
type SendResult struct {
	CampaignID     int64  `json:"campaign_id"`
	RecipientCount int    `json:"total_recipients"`
	ChunksTotal    int    `json:"chunks_total"`
	ChunksSent     int    `json:"chunks_sent"`
	Success        bool   `json:"success"`
	DryRun         bool   `json:"dry_run,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SendReminder builds and dispatches the campaign's broadcast. Chunks go out
// strictly in order with an inter-chunk delay; rate limits are retried a
// bounded number of times honoring Discord's retry-after. Exactly one audit
// row is written per invocation. A failed broadcast leaves the campaign
// active and a later send restarts from chunk 0 (at-least-once delivery).
// Dry-run sends log their audit row but never touch Discord and never
// complete the campaign.
func (e *Engine) SendReminder(campaignID int64, dryRun bool) (*SendResult, error) {
	c, err := e.loadCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	reminder, err := e.BuildReminder(campaignID, "")
	if err != nil {
		return nil, err
	}

	res := &SendResult{
		CampaignID:     campaignID,
		RecipientCount: reminder.RecipientCount,
		ChunksTotal:    len(reminder.Chunks),
		DryRun:         dryRun,
	}

	if len(reminder.Chunks) == 0 {
		res.Success = true
		err := e.Store.AppendReminderLog(campaignID, e.now().UTC(), 0, 0, true, null.String{})
		if err != nil {
			return nil, err
		}
		e.l.Infof("campaign %d has no recipients, nothing sent", campaignID)
		return res, nil
	}

	for i, chunk := range reminder.Chunks {
		if !dryRun {
			if err := e.sendChunk(c.ChannelID, chunk); err != nil {
				res.Error = err.Error()
				e.l.WithError(err).Errorf("sending chunk %d/%d for campaign %d",
					i+1, len(reminder.Chunks), campaignID)

				logErr := e.Store.AppendReminderLog(campaignID, e.now().UTC(),
					reminder.RecipientCount, res.ChunksSent, false, null.StringFrom(res.Error))
				if logErr != nil {
					return nil, logErr
				}
				return res, nil
			}
		}

		res.ChunksSent++

		if !dryRun && i < len(reminder.Chunks)-1 {
			e.sleep(e.InterChunkDelay)
		}
	}

	res.Success = true
	err = e.Store.AppendReminderLog(campaignID, e.now().UTC(),
		reminder.RecipientCount, res.ChunksSent, true, null.String{})
	if err != nil {
		return nil, err
	}

	if !dryRun && c.Status == StatusActive {
		if err := e.Store.SetCampaignStatus(campaignID, StatusCompleted); err != nil {
			return nil, err
		}
	}

	e.l.Infof("sent %d chunks to %d recipients for campaign %d (dry_run=%v)",
		res.ChunksSent, res.RecipientCount, campaignID, dryRun)

	return res, nil
}

// sendChunk delivers one chunk, retrying only on rate limits.
func (e *Engine) sendChunk(channelID, chunk string) error {
	for attempt := 0; ; attempt++ {
		_, err := e.Discord.SendMessage(channelID, chunk)
		if err == nil {
			return nil
		}

		var rl *common.RateLimitedError
		if errors.As(err, &rl) && attempt < e.MaxSendRetries {
			wait := rl.RetryAfter
			if wait <= 0 {
				wait = defaultRateLimitWait
			}

			e.l.Warnf("rate limited, retrying chunk in %s (attempt %d/%d)",
				wait, attempt+1, e.MaxSendRetries)
			e.sleep(wait)
			continue
		}

		return err
	}
}
