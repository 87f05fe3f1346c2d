package discord

import (
	"net/http"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/discordgo"

	"github.com/youssefotb/remindmcp/common"
)

// mapRESTError translates discordgo failures into the shared error kinds.
// Anything that isn't a recognized REST status is treated as transient.
func mapRESTError(err error) error {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusForbidden:
			return errors.WithMessage(common.ErrForbidden, restMessage(rerr))
		case http.StatusNotFound:
			return errors.WithMessage(common.ErrNotFound, restMessage(rerr))
		case http.StatusTooManyRequests:
			return &common.RateLimitedError{RetryAfter: retryAfter(rerr)}
		}
	}

	return &common.TransientError{Cause: err}
}

func restMessage(rerr *discordgo.RESTError) string {
	if rerr.Message != nil && rerr.Message.Message != "" {
		return rerr.Message.Message
	}
	return http.StatusText(rerr.Response.StatusCode)
}

func retryAfter(rerr *discordgo.RESTError) time.Duration {
	raw := rerr.Response.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return 0
	}

	return time.Duration(secs * float64(time.Second))
}
