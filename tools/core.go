package tools

import (
	"context"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/youssefotb/remindmcp/campaigns"
)

func (p *Plugin) registerCoreTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_servers",
		mcp.WithDescription("List the Discord servers (guilds) the bot is a member of, filtered by the guild allowlist."),
	), p.withSession("list_servers", p.handleListServers))

	s.AddTool(mcp.NewTool("list_channels",
		mcp.WithDescription("List the channels of a Discord server, optionally filtered by type (text, voice, category, ...)."),
		mcp.WithString("guild_id", mcp.Required(), mcp.Description("Discord server (guild) id")),
		mcp.WithString("type_filter", mcp.Description("Only return channels of this type")),
	), p.withSession("list_channels", p.handleListChannels))

	s.AddTool(mcp.NewTool("get_channel_info",
		mcp.WithDescription("Get detailed information about one Discord channel."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord channel id")),
	), p.withSession("get_channel_info", p.handleGetChannelInfo))

	s.AddTool(mcp.NewTool("bot_status",
		mcp.WithDescription("Report the health of the Discord gateway session: connection state, latency and allowed guilds."),
	), p.withSession("bot_status", p.handleBotStatus))

	s.AddTool(mcp.NewTool("ping",
		mcp.WithDescription("Lightweight connection probe, optionally verifying access to one server."),
		mcp.WithString("server_id", mcp.Description("Server id to verify access to")),
	), p.withSession("ping", p.handlePing))

	s.AddTool(mcp.NewTool("get_recent_messages",
		mcp.WithDescription("Fetch recent messages from a channel, newest first."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord channel id")),
		mcp.WithNumber("limit", mcp.DefaultNumber(50), mcp.Description("Number of messages to fetch (1-100)")),
	), p.withSession("get_recent_messages", p.handleGetRecentMessages))

	s.AddTool(mcp.NewTool("get_message",
		mcp.WithDescription("Fetch one message by id, including its reaction summary."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord channel id")),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("Discord message id")),
	), p.withSession("get_message", p.handleGetMessage))

	s.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a message to a channel. Respects DRY_RUN: no message leaves the process when it is set."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord channel id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message content, 1-2000 unicode code points")),
		mcp.WithString("reply_to", mcp.Description("Message id to reply to")),
	), p.withSession("send_message", p.handleSendMessage))
}

func (p *Plugin) handleListServers(_ context.Context, _ mcp.CallToolRequest) (interface{}, error) {
	guilds, err := p.Session.GuildList()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"servers":     guilds,
		"total_count": len(guilds),
	}, nil
}

func (p *Plugin) handleListChannels(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	guildID, err := req.RequireString("guild_id")
	if err != nil {
		return nil, err
	}
	typeFilter := req.GetString("type_filter", "")

	channels, err := p.Session.ChannelList(guildID, typeFilter)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"guild_id":         guildID,
		"channels":         channels,
		"filtered_by_type": typeFilter,
		"total_count":      len(channels),
	}, nil
}

func (p *Plugin) handleGetChannelInfo(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return nil, err
	}

	return p.Session.ChannelGet(channelID)
}

func (p *Plugin) handleBotStatus(_ context.Context, _ mcp.CallToolRequest) (interface{}, error) {
	status := p.Session.BotStatus()

	return map[string]interface{}{
		"bot": status,
		"config": map[string]interface{}{
			"guild_allowlist": p.Conf.GuildAllowlist,
			"log_level":       p.Conf.LogLevel,
			"dry_run":         p.Conf.DryRun,
		},
	}, nil
}

func (p *Plugin) handlePing(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	return p.Session.Ping(req.GetString("server_id", ""))
}

func (p *Plugin) handleGetRecentMessages(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return nil, err
	}

	limit := req.GetInt("limit", 50)
	if limit < 1 || limit > 100 {
		return nil, errors.New("limit must be between 1 and 100")
	}

	msgs, err := p.Session.RecentMessages(channelID, limit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"channel_id": channelID,
		"messages":   msgs,
		"count":      len(msgs),
	}, nil
}

func (p *Plugin) handleGetMessage(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return nil, err
	}
	messageID, err := req.RequireString("message_id")
	if err != nil {
		return nil, err
	}

	return p.Session.MessageGet(channelID, messageID)
}

func (p *Plugin) handleSendMessage(_ context.Context, req mcp.CallToolRequest) (interface{}, error) {
	channelID, err := req.RequireString("channel_id")
	if err != nil {
		return nil, err
	}
	content, err := req.RequireString("content")
	if err != nil {
		return nil, err
	}

	if content == "" {
		return nil, errors.New("message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > campaigns.MaxMessageLength {
		return nil, errors.Errorf("message content cannot exceed %d code points", campaigns.MaxMessageLength)
	}

	messageID, err := p.Session.MessageSend(channelID, content, req.GetString("reply_to", ""))
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"message_id": messageID,
		"channel_id": channelID,
		"dry_run":    p.Conf.DryRun,
	}, nil
}
