package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/youssefotb/remindmcp/campaigns"
)

func (p *Plugin) registerCampaignTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("create_campaign",
		mcp.WithDescription("Create a reaction opt-in reminder campaign for an existing message. The (channel, message, emoji) triple must be unique."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel containing the signup message")),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("Message to track reactions on")),
		mcp.WithString("emoji", mcp.Required(), mcp.Description("Emoji to track, unicode as-is or custom as name:id")),
		mcp.WithString("remind_at", mcp.Required(), mcp.Description("When to send the reminder, RFC 3339 (e.g. 2024-01-15T10:00:00Z)")),
		mcp.WithString("title", mcp.Description("Optional campaign title")),
	), p.withSession("create_campaign", p.handleCreateCampaign))

	s.AddTool(mcp.NewTool("list_campaigns",
		mcp.WithDescription("List campaigns, optionally filtered by status (active, completed, cancelled)."),
		mcp.WithString("status", mcp.Description("Status filter")),
	), p.withSession("list_campaigns", p.handleListCampaigns))

	s.AddTool(mcp.NewTool("get_campaign",
		mcp.WithDescription("Get one campaign with its opt-in count and broadcast audit trail."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
	), p.withSession("get_campaign", p.handleGetCampaign))

	s.AddTool(mcp.NewTool("update_campaign_status",
		mcp.WithDescription("Move a campaign through its lifecycle (active, completed, cancelled, deleted). Illegal transitions are rejected."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status")),
	), p.withSession("update_campaign_status", p.handleUpdateCampaignStatus))

	s.AddTool(mcp.NewTool("delete_campaign",
		mcp.WithDescription("Delete a campaign; its opt-ins and reminder logs are removed with it."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
	), p.withSession("delete_campaign", p.handleDeleteCampaign))

	s.AddTool(mcp.NewTool("list_optins",
		mcp.WithDescription("List the recorded opt-ins of a campaign with user-id keyset pagination."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
		mcp.WithNumber("limit", mcp.DefaultNumber(100), mcp.Description("Page size")),
		mcp.WithString("after_user_id", mcp.Description("Return opt-ins with user ids after this one")),
	), p.withSession("list_optins", p.handleListOptIns))

	s.AddTool(mcp.NewTool("tally_optins",
		mcp.WithDescription("Fetch the campaign message's current reactions and record each non-bot reactor as an opt-in. Idempotent."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
	), p.withSession("tally_optins", p.handleTallyOptIns))

	s.AddTool(mcp.NewTool("build_reminder",
		mcp.WithDescription("Build the reminder broadcast without sending it: ordered chunks of at most 2000 code points mentioning every opt-in."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
		mcp.WithString("template", mcp.Description("Header template; {title}, {total_optins} and {mentions} are substituted")),
	), p.withSession("build_reminder", p.handleBuildReminder))

	s.AddTool(mcp.NewTool("send_reminder",
		mcp.WithDescription("Send the reminder broadcast for a campaign. Defaults to dry_run=true; pass false to actually send."),
		mcp.WithNumber("campaign_id", mcp.Required(), mcp.Description("Campaign id")),
		mcp.WithBoolean("dry_run", mcp.DefaultBool(true), mcp.Description("Simulate the send without posting to Discord")),
	), p.withSession("send_reminder", p.handleSendReminder))

	s.AddTool(mcp.NewTool("run_due_reminders",
		mcp.WithDescription("Process every active campaign whose remind_at has passed: tally, then a real send, sequentially. Intended to be invoked by cron."),
		mcp.WithString("now", mcp.Description("Override the current time, RFC 3339; defaults to the wall clock")),
	), p.withSession("run_due_reminders", p.handleRunDueReminders))
}

// parseTime accepts RFC 3339, falling back to a bare timestamp interpreted
// as UTC. Everything is normalized to UTC at this boundary.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid timestamp %q, use RFC 3339 like 2024-01-15T10:00:00Z", raw)
	}

	return t.UTC(), nil
}

func campaignID(req mcp.CallToolRequest) (int64, error) {
	id := req.GetInt("campaign_id", 0)
	if id <= 0 {
		return 0, errors.New("campaign_id is required and must be positive")
	}
	return int64(id), nil
}

func (p *Plugin) handleCreateCampaign(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return nil, err
	}
	messageID, err := req.RequireString("message_id")
	if err != nil {
		return nil, err
	}
	emoji, err := req.RequireString("emoji")
	if err != nil {
		return nil, err
	}
	rawRemindAt, err := req.RequireString("remind_at")
	if err != nil {
		return nil, err
	}

	remindAt, err := parseTime(rawRemindAt)
	if err != nil {
		return nil, err
	}

	c, err := p.Engine.CreateCampaign(req.GetString("title", ""), channelID, messageID, emoji, remindAt)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"campaign": c}, nil
}

func (p *Plugin) handleListCampaigns(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	filter := campaigns.Status(req.GetString("status", ""))
	if filter != "" && !filter.Valid() {
		return nil, errors.Errorf("invalid status %q", filter)
	}

	list, err := p.Store.Campaigns(filter)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"campaigns":   list,
		"total_count": len(list),
	}, nil
}

func (p *Plugin) handleGetCampaign(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	c, err := p.Store.Campaign(id)
	if err != nil {
		return nil, err
	}

	count, err := p.Store.CountOptIns(id)
	if err != nil {
		return nil, err
	}

	logs, err := p.Store.ReminderLogs(id)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"campaign":      c,
		"optin_count":   count,
		"reminder_logs": logs,
	}, nil
}

func (p *Plugin) handleUpdateCampaignStatus(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	rawStatus, err := req.RequireString("status")
	if err != nil {
		return nil, err
	}

	status := campaigns.Status(rawStatus)
	if !status.Valid() {
		return nil, errors.Errorf("invalid status %q", rawStatus)
	}

	if err := p.Store.SetCampaignStatus(id, status); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"campaign_id": id,
		"status":      status,
	}, nil
}

func (p *Plugin) handleDeleteCampaign(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	if err := p.Store.DeleteCampaign(id); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"campaign_id": id,
		"deleted":     true,
	}, nil
}

func (p *Plugin) handleListOptIns(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	limit := req.GetInt("limit", 100)
	if limit < 1 {
		limit = 100
	}
	afterUserID := req.GetString("after_user_id", "")

	// the campaign must exist even when it has no opt-ins
	if _, err := p.Store.Campaign(id); err != nil {
		return nil, err
	}

	optins, err := p.Store.OptIns(id, limit, afterUserID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"campaign_id": id,
		"optins":      optins,
		"pagination": map[string]interface{}{
			"limit":         limit,
			"after_user_id": afterUserID,
			"has_more":      len(optins) == limit,
		},
	}, nil
}

func (p *Plugin) handleTallyOptIns(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	return p.Engine.Tally(id)
}

func (p *Plugin) handleBuildReminder(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	return p.Engine.BuildReminder(id, req.GetString("template", ""))
}

func (p *Plugin) handleSendReminder(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	id, err := campaignID(req)
	if err != nil {
		return nil, err
	}

	dryRun := req.GetBool("dry_run", true)
	if p.Conf.DryRun {
		dryRun = true
	}

	res, err := p.Engine.SendReminder(id, dryRun)
	if err != nil {
		return nil, err
	}

	env := &envelope{Success: res.Success, Data: res}
	if !res.Success {
		env.Errors = []toolError{{Kind: "Transient", Message: res.Error}}
	}
	return env, nil
}

func (p *Plugin) handleRunDueReminders(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	now := time.Now().UTC()
	if raw := req.GetString("now", ""); raw != "" {
		parsed, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		now = parsed
	}

	outcomes, err := p.Engine.RunDue(now)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}

	return map[string]interface{}{
		"current_time":  now.Format(time.RFC3339),
		"due_campaigns": len(outcomes),
		"failed":        failed,
		"results":       outcomes,
	}, nil
}
