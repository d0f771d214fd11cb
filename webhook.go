package pusher

import (
	"crypto/hmac"
	"time"
)

// WebhookFreshness is how far a webhook's time_ms may be from the local
// clock before the delivery is rejected as a potential replay.
const WebhookFreshness = 300000 * time.Millisecond

// Names of the webhook event kinds the service sends.
const (
	WebhookChannelOccupied = "channel_occupied"
	WebhookChannelVacated  = "channel_vacated"
	WebhookMemberAdded     = "member_added"
	WebhookMemberRemoved   = "member_removed"
	WebhookClientEvent     = "client_event"
)

// Webhook is a validated webhook delivery.
type Webhook struct {
	TimeMs int64          `json:"time_ms"`
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent is a single event inside a webhook delivery. Which fields
// are populated depends on the event kind.
type WebhookEvent struct {
	Name     string `json:"name"`
	Channel  string `json:"channel"`
	Event    string `json:"event,omitempty"`
	Data     string `json:"data,omitempty"`
	SocketID string `json:"socket_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// ValidateWebhook checks a webhook delivery: key and signature come from
// the X-Pusher-Key and X-Pusher-Signature headers, body is the raw
// request body. It returns the parsed payload only when the key matches
// this client's, the signature verifies against the raw body, the body
// parses, and time_ms is present and within WebhookFreshness of now.
//
// Every failure mode returns nil, with no indication of which check
// failed. Treat nil as "untrusted, discard".
func (c *Client) ValidateWebhook(key, signature string, body []byte) *Webhook {
	return c.ValidateWebhookWithCodec(key, signature, body, JSONCodec)
}

// ValidateWebhookWithCodec behaves like ValidateWebhook using the
// supplied codec to parse the body. Decode errors are verification
// failures, not crashes: the result is nil.
func (c *Client) ValidateWebhookWithCodec(key, signature string, body []byte, codec Codec) *Webhook {
	return c.validateWebhookAt(key, signature, body, codec, time.Now())
}

func (c *Client) validateWebhookAt(key, signature string, body []byte, codec Codec, now time.Time) *Webhook {
	// Both comparisons are constant-time: the webhook endpoint is
	// reachable by anyone who can guess its URL.
	if !hmac.Equal([]byte(key), []byte(c.Key)) {
		return nil
	}

	if !Verify([]byte(c.Secret), body, signature) {
		return nil
	}

	var webhook Webhook
	if err := codec.Unmarshal(body, &webhook); err != nil {
		return nil
	}

	if webhook.TimeMs == 0 {
		return nil
	}

	age := now.UnixNano()/int64(time.Millisecond) - webhook.TimeMs
	if age < 0 {
		age = -age
	}
	if age > int64(WebhookFreshness/time.Millisecond) {
		return nil
	}

	return &webhook
}
