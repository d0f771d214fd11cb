package pusher

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Limits imposed by the Channels HTTP API. Requests that exceed them are
// rejected client-side before any signing or network work happens.
const (
	// MaxTriggerChannels is the maximum number of channels a single
	// trigger call may target.
	MaxTriggerChannels = 10

	// MaxEventNameLength is the maximum length of an event name.
	MaxEventNameLength = 200

	// MaxDataSize is the maximum size, in bytes, of an event's
	// serialized data.
	MaxDataSize = 10240

	// MaxChannelNameLength is the maximum length of a channel name.
	MaxChannelNameLength = 200
)

// Prefixes that mark a channel as requiring subscription auth.
const (
	PrivateChannelPrefix  = "private-"
	PresenceChannelPrefix = "presence-"
)

// Validation errors. They are returned wrapped with the offending value,
// so use errors.Cause to compare against these directly.
var (
	ErrInvalidChannel   = errors.New("invalid channel name")
	ErrInvalidSocketID  = errors.New("invalid socket id")
	ErrTooManyChannels  = errors.New("too many channels")
	ErrEventNameTooLong = errors.New("event name too long")
	ErrDataTooLarge     = errors.New("too much data")
)

var (
	channelNameRe = regexp.MustCompile(`^[-a-zA-Z0-9_=@,.;]+$`)
	socketIDRe    = regexp.MustCompile(`^\d+\.\d+$`)
)

// ValidateChannel checks that channel is a well-formed channel name: at
// most MaxChannelNameLength characters, drawn from the allowed alphabet
// (alphanumerics and _ - = @ , . ;). It returns the name unchanged on
// success.
func ValidateChannel(channel string) (string, error) {
	if len(channel) > MaxChannelNameLength || !channelNameRe.MatchString(channel) {
		return "", errors.Wrapf(ErrInvalidChannel, "%q", channel)
	}

	return channel, nil
}

// ValidateSocketID checks that socketID has the numeric-pair shape
// assigned by the service (e.g. "1234.5678"). It returns the id unchanged
// on success.
func ValidateSocketID(socketID string) (string, error) {
	if !socketIDRe.MatchString(socketID) {
		return "", errors.Wrapf(ErrInvalidSocketID, "%q", socketID)
	}

	return socketID, nil
}

func validateChannels(channels []string) error {
	if len(channels) == 0 {
		return errors.New("at least one channel is required")
	}

	if len(channels) > MaxTriggerChannels {
		return errors.Wrapf(ErrTooManyChannels, "%d channels", len(channels))
	}

	for _, ch := range channels {
		if _, err := ValidateChannel(ch); err != nil {
			return err
		}
	}

	return nil
}

func validateEventName(name string) error {
	if len(name) > MaxEventNameLength {
		return errors.Wrapf(ErrEventNameTooLong, "%d characters", len(name))
	}

	return nil
}

func validateDataSize(data string) error {
	if len(data) > MaxDataSize {
		return errors.Wrapf(ErrDataTooLarge, "%d bytes", len(data))
	}

	return nil
}

// joinAttributes collapses the requested channel attribute names (e.g.
// "user_count", "subscription_count") into the single comma-separated
// value the API's "info" query parameter expects, preserving the caller's
// order.
func joinAttributes(attributes []string) string {
	return strings.Join(attributes, ",")
}
