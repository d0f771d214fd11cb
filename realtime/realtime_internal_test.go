package realtime

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/carterjones/pusher"
)

func TestMakeURL(t *testing.T) {
	c := New("somekey", nil)
	c.Host = "ws-eu.pusher.com"
	c.Scheme = pusher.WSS

	u := makeURL(c)

	exp := "wss://ws-eu.pusher.com/app/somekey?client=pusher-go&protocol=7&version=1.0.0"
	if act := u.String(); act != exp {
		t.Errorf("url mismatch:\n\texp: %q\n\tgot: %q", exp, act)
	}
}

func TestErrCode(t *testing.T) {
	cases := map[string]struct {
		err error
		exp int
	}{
		"normal closure":   {err: errors.New("websocket: close 1000 (normal)"), exp: 1000},
		"abnormal closure": {err: errors.New("websocket: close 1006 (abnormal closure): unexpected EOF"), exp: 1006},
		"no code":          {err: errors.New("something else entirely"), exp: -1},
	}

	for id, tc := range cases {
		if act := errCode(tc.err); act != tc.exp {
			t.Errorf("%s: exp %d, got %d", id, tc.exp, act)
		}
	}
}
