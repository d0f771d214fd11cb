package pusher

import (
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
)

// request is a fully specified but not-yet-signed description of a REST
// call: everything the transport needs except the auth parameters, which
// are computed immediately before transmission so the timestamp in the
// signature cannot go stale.
type request struct {
	method string
	path   string
	params url.Values
	body   []byte
}

// Event is a single event in a TriggerBatch call.
type Event struct {
	// The channel the event is published to.
	Channel string

	// The event name.
	Name string

	// The event payload. Serialized with the codec unless the batch is
	// flagged as already encoded, in which case it must be a string or
	// a byte slice.
	Data interface{}

	// Optional socket id to exclude from delivery.
	SocketID string
}

// Wire shapes for the events endpoints.
type eventBody struct {
	Name     string   `json:"name"`
	Channels []string `json:"channels"`
	Data     string   `json:"data"`
	SocketID string   `json:"socket_id,omitempty"`
}

type batchBody struct {
	Batch []batchEvent `json:"batch"`
}

type batchEvent struct {
	Channel  string `json:"channel"`
	Name     string `json:"name"`
	Data     string `json:"data"`
	SocketID string `json:"socket_id,omitempty"`
}

func (c *Client) triggerRequest(channels []string, name string, data interface{}, socketID string, codec Codec) (*request, error) {
	if err := validateChannels(channels); err != nil {
		return nil, err
	}

	if err := validateEventName(name); err != nil {
		return nil, err
	}

	encoded, err := dataToString(data, codec)
	if err != nil {
		return nil, errors.Wrap(err, "data serialization failed")
	}

	if err := validateDataSize(encoded); err != nil {
		return nil, err
	}

	body := eventBody{
		Name:     name,
		Channels: channels,
		Data:     encoded,
	}

	if socketID != "" {
		if _, err := ValidateSocketID(socketID); err != nil {
			return nil, err
		}
		body.SocketID = socketID
	}

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "request encoding failed")
	}

	return &request{
		method: "POST",
		path:   "/apps/" + c.AppID + "/events",
		body:   bs,
	}, nil
}

func (c *Client) batchRequest(events []Event, alreadyEncoded bool, codec Codec) (*request, error) {
	batch := make([]batchEvent, 0, len(events))
	for _, ev := range events {
		if _, err := ValidateChannel(ev.Channel); err != nil {
			return nil, err
		}

		if err := validateEventName(ev.Name); err != nil {
			return nil, err
		}

		var encoded string
		var err error
		if alreadyEncoded {
			switch d := ev.Data.(type) {
			case string:
				encoded = d
			case []byte:
				encoded = string(d)
			default:
				return nil, errors.Errorf("event %q: already-encoded data must be a string or byte slice", ev.Name)
			}
		} else {
			encoded, err = dataToString(ev.Data, codec)
			if err != nil {
				return nil, errors.Wrapf(err, "event %q: data serialization failed", ev.Name)
			}
		}

		if err := validateDataSize(encoded); err != nil {
			return nil, err
		}

		be := batchEvent{
			Channel: ev.Channel,
			Name:    ev.Name,
			Data:    encoded,
		}

		if ev.SocketID != "" {
			if _, err := ValidateSocketID(ev.SocketID); err != nil {
				return nil, err
			}
			be.SocketID = ev.SocketID
		}

		batch = append(batch, be)
	}

	bs, err := json.Marshal(batchBody{Batch: batch})
	if err != nil {
		return nil, errors.Wrap(err, "request encoding failed")
	}

	return &request{
		method: "POST",
		path:   "/apps/" + c.AppID + "/batch_events",
		body:   bs,
	}, nil
}

func (c *Client) channelsRequest(prefixFilter string, attributes []string) *request {
	params := url.Values{}
	if len(attributes) > 0 {
		params.Set("info", joinAttributes(attributes))
	}
	if prefixFilter != "" {
		params.Set("filter_by_prefix", prefixFilter)
	}

	return &request{
		method: "GET",
		path:   "/apps/" + c.AppID + "/channels",
		params: params,
	}
}

func (c *Client) channelRequest(channel string, attributes []string) (*request, error) {
	if _, err := ValidateChannel(channel); err != nil {
		return nil, err
	}

	params := url.Values{}
	if len(attributes) > 0 {
		params.Set("info", joinAttributes(attributes))
	}

	return &request{
		method: "GET",
		path:   "/apps/" + c.AppID + "/channels/" + channel,
		params: params,
	}, nil
}

func (c *Client) usersRequest(channel string) (*request, error) {
	if _, err := ValidateChannel(channel); err != nil {
		return nil, err
	}

	return &request{
		method: "GET",
		path:   "/apps/" + c.AppID + "/channels/" + channel + "/users",
	}, nil
}
