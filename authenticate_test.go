package pusher_test

import (
	"testing"

	"github.com/carterjones/pusher"
	"github.com/pkg/errors"
)

func TestClient_Authenticate(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	cases := map[string]struct {
		channel  string
		socketID string
		exp      string
		wantErr  interface{}
	}{
		// The expected auth value is the one published in the service's
		// auth signature documentation for these credentials.
		"documented private channel vector": {
			channel:  "private-foobar",
			socketID: "1234.1234",
			exp:      testKey + ":58df8b0c36d6982b82c3ecf6b4662e34fe8c25bba48f5369f135bf843651c3a4",
		},
		"another channel and socket": {
			channel:  "private-foo",
			socketID: "123.456",
			exp:      testKey + ":68fc337abf6332c65318a2bff188a372d820e728ef0e9d5d50fae80a3cf5607e",
		},
		"invalid channel": {
			channel:  "private channel with spaces",
			socketID: "1234.1234",
			wantErr:  pusher.ErrInvalidChannel,
		},
		"invalid socket id": {
			channel:  "private-foobar",
			socketID: "1234:1234",
			wantErr:  pusher.ErrInvalidSocketID,
		},
	}

	for id, tc := range cases {
		resp, err := c.Authenticate(tc.channel, tc.socketID)

		if tc.wantErr != nil {
			errMatches(t, id, err, tc.wantErr)
			continue
		}

		ok(t, id, err)
		equals(t, id+": auth", tc.exp, resp.Auth)
		equals(t, id+": channel data", "", resp.ChannelData)
	}
}

func TestClient_AuthenticateMember(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	member := pusher.MemberData{
		UserID:   "10",
		UserInfo: map[string]string{"name": "Mr. Channels"},
	}

	resp, err := c.AuthenticateMember("presence-foobar", "1234.1234", member)
	ok(t, "presence auth", err)

	// The serialized member data is part of the signed string, so both
	// the channel_data and the signature are fully determined.
	equals(t, "presence auth: channel data",
		`{"user_id":"10","user_info":{"name":"Mr. Channels"}}`, resp.ChannelData)
	equals(t, "presence auth: auth",
		testKey+":4c6d8fc42a207ba96a0779844171b0bb819d96ffceef9609f5cce596ab17a800", resp.Auth)
}

func TestClient_AuthenticateMemberWithCodec(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	failing := pusher.Codec{
		Marshal: func(v interface{}) ([]byte, error) {
			return nil, errors.New("codec exploded")
		},
		Unmarshal: pusher.JSONCodec.Unmarshal,
	}

	_, err := c.AuthenticateMemberWithCodec("presence-foobar", "1234.1234", struct{}{}, failing)
	errMatches(t, "failing codec", err, "codec exploded")

	// A custom codec that produces the same bytes as encoding/json must
	// produce the same signature.
	resp, err := c.AuthenticateMemberWithCodec("presence-foobar", "1234.1234", pusher.MemberData{
		UserID:   "10",
		UserInfo: map[string]string{"name": "Mr. Channels"},
	}, pusher.JSONCodec)
	ok(t, "explicit default codec", err)
	equals(t, "explicit default codec: auth",
		testKey+":4c6d8fc42a207ba96a0779844171b0bb819d96ffceef9609f5cce596ab17a800", resp.Auth)
}

func TestClient_Authorize(t *testing.T) {
	c := pusher.New(testAppID, testKey, testSecret)

	auth, channelData, err := c.Authorize("private-foobar", "1234.1234")
	ok(t, "authorize", err)
	equals(t, "authorize: auth",
		testKey+":58df8b0c36d6982b82c3ecf6b4662e34fe8c25bba48f5369f135bf843651c3a4", auth)
	equals(t, "authorize: channel data", "", channelData)

	_, _, err = c.Authorize("bad channel", "1234.1234")
	errMatches(t, "authorize: invalid channel", err, pusher.ErrInvalidChannel)
}
