package pusher

import "github.com/pkg/errors"

// AuthResponse is the payload an application hands back to a client that
// asked to subscribe to a private or presence channel. It is ready to be
// marshalled as the auth endpoint's response body.
type AuthResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// MemberData is the conventional shape of presence channel member info.
// Arbitrary custom data can be passed to AuthenticateMember instead; this
// struct is just the common case.
type MemberData struct {
	UserID   string            `json:"user_id"`
	UserInfo map[string]string `json:"user_info,omitempty"`
}

// Authenticate generates the subscription auth token for a private
// channel: "key:" followed by the hex HMAC-SHA256 of
// "<socket_id>:<channel>" under the app secret. No network call is made.
func (c *Client) Authenticate(channel, socketID string) (*AuthResponse, error) {
	return c.authenticate(channel, socketID, "")
}

// AuthenticateMember generates the subscription auth token for a
// presence channel. member is serialized with encoding/json and becomes
// the channel_data the service distributes to other subscribers; the
// serialized form is included in the signed string, so the returned
// ChannelData must be sent back byte-for-byte.
func (c *Client) AuthenticateMember(channel, socketID string, member interface{}) (*AuthResponse, error) {
	return c.AuthenticateMemberWithCodec(channel, socketID, member, JSONCodec)
}

// AuthenticateMemberWithCodec behaves like AuthenticateMember using the
// supplied codec to serialize the member data.
func (c *Client) AuthenticateMemberWithCodec(channel, socketID string, member interface{}, codec Codec) (*AuthResponse, error) {
	data, err := codec.Marshal(member)
	if err != nil {
		return nil, errors.Wrap(err, "member data serialization failed")
	}

	return c.authenticate(channel, socketID, string(data))
}

func (c *Client) authenticate(channel, socketID, channelData string) (*AuthResponse, error) {
	channel, err := ValidateChannel(channel)
	if err != nil {
		return nil, err
	}

	socketID, err = ValidateSocketID(socketID)
	if err != nil {
		return nil, err
	}

	stringToSign := socketID + ":" + channel
	if channelData != "" {
		stringToSign += ":" + channelData
	}

	signature := Sign([]byte(c.Secret), []byte(stringToSign))

	return &AuthResponse{
		Auth:        c.Key + ":" + signature,
		ChannelData: channelData,
	}, nil
}

// Authorize implements the realtime.Authorizer interface, so a *Client
// can hand auth tokens straight to a realtime connection subscribing to
// private channels.
func (c *Client) Authorize(channel, socketID string) (auth, channelData string, err error) {
	resp, err := c.Authenticate(channel, socketID)
	if err != nil {
		return "", "", err
	}

	return resp.Auth, resp.ChannelData, nil
}
