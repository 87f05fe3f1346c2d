package common

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the process configuration snapshot, loaded once at startup and
// passed explicitly to every component that needs it.
type Config struct {
	DiscordToken string
	DBPath       string
	LogLevel     string
	LogFile      string
	DryRun       bool

	// GuildAllowlist holds the guild ids the process may operate against.
	// Empty means unrestricted.
	GuildAllowlist []int64
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("MCP_DISCORD_DB_PATH", "discord_mcp.db")
	v.SetDefault("LOG_LEVEL", "info")

	conf := &Config{
		DiscordToken: v.GetString("DISCORD_TOKEN"),
		DBPath:       v.GetString("MCP_DISCORD_DB_PATH"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogFile:      v.GetString("LOG_FILE"),
		DryRun:       v.GetBool("DRY_RUN"),
	}

	if conf.DiscordToken == "" && !conf.DryRun {
		return nil, errors.New("DISCORD_TOKEN is required (set DRY_RUN=true to run without a bot token)")
	}

	allowlist, err := ParseAllowlist(v.GetString("GUILD_ALLOWLIST"))
	if err != nil {
		return nil, err
	}
	conf.GuildAllowlist = allowlist

	return conf, nil
}

// ParseAllowlist parses a comma separated list of guild ids. An empty value
// yields a nil slice, meaning no restriction.
func ParseAllowlist(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid guild id %q in GUILD_ALLOWLIST", p)
		}

		out = append(out, id)
	}

	return out, nil
}

// GuildAllowed reports whether the given guild may be operated against.
func (c *Config) GuildAllowed(guildID int64) bool {
	if len(c.GuildAllowlist) == 0 {
		return true
	}

	for _, id := range c.GuildAllowlist {
		if id == guildID {
			return true
		}
	}

	return false
}
