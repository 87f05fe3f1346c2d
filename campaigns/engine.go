package campaigns

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null"

	"github.com/youssefotb/remindmcp/common"
	"github.com/youssefotb/remindmcp/discord"
)

const (
	// MaxMessageLength is Discord's per-message ceiling in unicode code
	// points.
	MaxMessageLength = 2000

	DefaultInterChunkDelay    = time.Second
	DefaultInterCampaignDelay = 2 * time.Second
	DefaultMaxSendRetries     = 3

	defaultRateLimitWait = 5 * time.Second
)

// Gateway is the slice of the Discord session the engine consumes.
type Gateway interface {
	MessageExists(channelID, messageID string) error
	ReactionUsers(channelID, messageID, emoji string) ([]discord.Reactor, error)
	SendMessage(channelID, content string) (string, error)
}

// Engine drives the campaign lifecycle: tallying reactions into opt-ins,
// building mention broadcasts, dispatching them and running due campaigns.
type Engine struct {
	Store   *Store
	Discord Gateway

	InterChunkDelay    time.Duration
	InterCampaignDelay time.Duration
	MaxSendRetries     int

	l     *logrus.Entry
	sleep func(time.Duration)
	now   func() time.Time
}

// NewEngine creates an engine with the default delays and retry budget.
func NewEngine(store *Store, gw Gateway) *Engine {
	return &Engine{
		Store:   store,
		Discord: gw,

		InterChunkDelay:    DefaultInterChunkDelay,
		InterCampaignDelay: DefaultInterCampaignDelay,
		MaxSendRetries:     DefaultMaxSendRetries,

		l:     common.GetLogger("campaigns"),
		sleep: time.Sleep,
		now:   time.Now,
	}
}

func (e *Engine) loadCampaign(id int64) (*Campaign, error) {
	c, err := e.Store.Campaign(id)
	if err != nil {
		return nil, err
	}

	if c.Status == StatusDeleted {
		return nil, errors.WithMessagef(common.ErrInvalidState, "campaign %d is deleted", id)
	}

	return c, nil
}

// CreateCampaign validates the target message through the gateway and
// records a new active campaign. Under DRY-RUN the gateway serves fixtures,
// so validation passes for any well-formed channel and message id there.
func (e *Engine) CreateCampaign(title, channelID, messageID, emoji string, remindAt time.Time) (*Campaign, error) {
	if err := e.Discord.MessageExists(channelID, messageID); err != nil {
		return nil, errors.WithMessage(err, "validating campaign message")
	}

	t := null.String{}
	if title != "" {
		t = null.StringFrom(title)
	}

	return e.Store.CreateCampaign(t, channelID, messageID, emoji, remindAt.UTC())
}
