package main

import (
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/youssefotb/remindmcp/campaigns"
	"github.com/youssefotb/remindmcp/common"
	"github.com/youssefotb/remindmcp/discord"
	"github.com/youssefotb/remindmcp/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	godotenv.Load()

	conf, err := common.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("loading configuration")
	}
	common.SetupLogging(conf)
	l := common.GetLogger("main")

	store, err := campaigns.Open(conf.DBPath)
	if err != nil {
		l.WithError(err).Fatal("opening campaign store")
	}
	defer store.Close()

	session, err := discord.NewSession(conf)
	if err != nil {
		l.WithError(err).Fatal("creating discord session")
	}
	defer session.Close()

	engine := campaigns.NewEngine(store, session)

	s := server.NewMCPServer("remindmcp", Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	tools.NewPlugin(conf, session, store, engine).Register(s)

	l.Infof("serving MCP over stdio (db=%s, dry_run=%v)", conf.DBPath, conf.DryRun)
	if err := server.ServeStdio(s); err != nil {
		l.WithError(err).Fatal("stdio server terminated")
	}
}
