package pusher_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/carterjones/pusher"
)

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func webhookBody(timeMs int64) []byte {
	return []byte(fmt.Sprintf(
		`{"time_ms":%d,"events":[{"name":"channel_occupied","channel":"test-channel"}]}`,
		timeMs))
}

func TestClient_ValidateWebhook(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	sign := func(body []byte) string {
		return pusher.Sign([]byte(testSecret), body)
	}

	cases := map[string]struct {
		key       string
		body      []byte
		tamperSig bool
		trusted   bool
	}{
		"fresh and signed": {
			key:     testKey,
			body:    webhookBody(nowMs()),
			trusted: true,
		},
		"just inside the window": {
			key:     testKey,
			body:    webhookBody(nowMs() - 299000),
			trusted: true,
		},
		"wrong key": {
			key:  "some-other-apps-key",
			body: webhookBody(nowMs()),
		},
		"tampered signature": {
			key:       testKey,
			body:      webhookBody(nowMs()),
			tamperSig: true,
		},
		"body is not json": {
			key:  testKey,
			body: []byte("not json at all"),
		},
		"missing time_ms": {
			key:  testKey,
			body: []byte(`{"events":[{"name":"channel_occupied","channel":"test-channel"}]}`),
		},
		"zero time_ms": {
			key:  testKey,
			body: webhookBody(0),
		},
		"301 seconds stale": {
			key:  testKey,
			body: webhookBody(nowMs() - 301000),
		},
		"301 seconds in the future": {
			key:  testKey,
			body: webhookBody(nowMs() + 301000),
		},
	}

	for id, tc := range cases {
		signature := sign(tc.body)
		if tc.tamperSig {
			// Flip the first character.
			if signature[0] == '0' {
				signature = "1" + signature[1:]
			} else {
				signature = "0" + signature[1:]
			}
		}

		webhook := c.ValidateWebhook(tc.key, signature, tc.body)

		if !tc.trusted {
			if webhook != nil {
				t.Errorf(red("%s | expected rejection, got %#v"), id, webhook)
			}
			continue
		}

		if webhook == nil {
			t.Errorf(red("%s | expected a webhook, got nil"), id)
			continue
		}

		equals(t, id+": event count", 1, len(webhook.Events))
		equals(t, id+": event name", pusher.WebhookChannelOccupied, webhook.Events[0].Name)
		equals(t, id+": event channel", "test-channel", webhook.Events[0].Channel)
	}
}

func TestClient_ValidateWebhookWithCodec(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	body := webhookBody(nowMs())
	signature := pusher.Sign([]byte(testSecret), body)

	// A codec whose decoder fails turns into a silent rejection, not a
	// crash.
	failing := pusher.Codec{
		Marshal: pusher.JSONCodec.Marshal,
		Unmarshal: func(data []byte, v interface{}) error {
			return fmt.Errorf("decode exploded")
		},
	}

	webhook := c.ValidateWebhookWithCodec(testKey, signature, body, failing)
	if webhook != nil {
		t.Errorf(red("failing codec | expected rejection, got %#v"), webhook)
	}

	webhook = c.ValidateWebhookWithCodec(testKey, signature, body, pusher.JSONCodec)
	notNil(t, "default codec", webhook)
}

func TestClient_ValidateWebhook_ClientEvent(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	body := []byte(fmt.Sprintf(
		`{"time_ms":%d,"events":[{"name":"client_event","channel":"private-ch","event":"client-typing","data":"{}","socket_id":"1234.1234","user_id":"u-1"}]}`,
		nowMs()))
	signature := pusher.Sign([]byte(testSecret), body)

	webhook := c.ValidateWebhook(testKey, signature, body)
	if webhook == nil {
		t.Fatalf(red("client event | expected a webhook, got nil"))
	}

	ev := webhook.Events[0]
	equals(t, "client event: name", pusher.WebhookClientEvent, ev.Name)
	equals(t, "client event: channel", "private-ch", ev.Channel)
	equals(t, "client event: event", "client-typing", ev.Event)
	equals(t, "client event: socket id", "1234.1234", ev.SocketID)
	equals(t, "client event: user id", "u-1", ev.UserID)
}
