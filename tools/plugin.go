package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/youssefotb/remindmcp/campaigns"
	"github.com/youssefotb/remindmcp/common"
	"github.com/youssefotb/remindmcp/discord"
)

// Plugin binds the tool surface to its dependencies. There is no global
// state: everything a handler needs travels on this struct.
type Plugin struct {
	Conf    *common.Config
	Session *discord.Session
	Store   *campaigns.Store
	Engine  *campaigns.Engine

	l *logrus.Entry
}

// NewPlugin wires the tool surface.
func NewPlugin(conf *common.Config, session *discord.Session, store *campaigns.Store, engine *campaigns.Engine) *Plugin {
	return &Plugin{
		Conf:    conf,
		Session: session,
		Store:   store,
		Engine:  engine,
		l:       common.GetLogger("tools"),
	}
}

// Register adds every tool to the MCP server.
func (p *Plugin) Register(s *server.MCPServer) {
	p.registerCoreTools(s)
	p.registerCampaignTools(s)
}

type handlerFunc func(ctx context.Context, req mcp.CallToolRequest) (interface{}, error)

// withSession ensures the gateway session is up before running the handler
// and folds the outcome into the result envelope. Errors stay in-band;
// transport-level errors are reserved for faults in the envelope itself.
func (p *Plugin) withSession(name string, h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := p.Session.EnsureConnected(); err != nil {
			return errorResult(err), nil
		}

		data, err := h(ctx, req)
		if err != nil {
			p.l.WithError(err).Warnf("tool %s failed", name)
			return errorResult(err), nil
		}

		if env, ok := data.(*envelope); ok {
			return marshalResult(env)
		}
		return marshalResult(&envelope{Success: true, Data: data})
	}
}
