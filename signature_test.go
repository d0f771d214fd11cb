package pusher_test

import (
	"testing"

	"github.com/carterjones/pusher"
)

func TestSign(t *testing.T) {
	cases := map[string]struct {
		secret  string
		message string
		exp     string
	}{
		"known vector": {
			secret:  "secret",
			message: "message",
			exp:     "8b5f48702995c1598c573db1e21866a9b825d4a794d169d7060a03605796360b",
		},
		"empty message": {
			secret:  "secret",
			message: "",
			exp:     "f9e66e179b6747ae54108f82f8ade8b3c25d76fd30afde6c395822c530196169",
		},
		"channel auth vector": {
			secret:  testSecret,
			message: "1234.1234:private-foobar",
			exp:     "58df8b0c36d6982b82c3ecf6b4662e34fe8c25bba48f5369f135bf843651c3a4",
		},
	}

	for id, tc := range cases {
		act := pusher.Sign([]byte(tc.secret), []byte(tc.message))
		equals(t, id, tc.exp, act)
	}
}

func TestVerify(t *testing.T) {
	secret := []byte("another secret")
	message := []byte("some message worth signing")
	signature := pusher.Sign(secret, message)

	equals(t, "round trip", true, pusher.Verify(secret, message, signature))

	// Repeating the round trip changes nothing.
	for i := 0; i < 3; i++ {
		equals(t, "repeated round trip", true, pusher.Verify(secret, message, pusher.Sign(secret, message)))
	}

	// Any single-character mutation of the signature must fail.
	for i := range signature {
		mutated := []byte(signature)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		equals(t, "mutated signature", false, pusher.Verify(secret, message, string(mutated)))
	}

	equals(t, "wrong secret", false, pusher.Verify([]byte("wrong"), message, signature))
	equals(t, "wrong message", false, pusher.Verify(secret, []byte("other message"), signature))
	equals(t, "truncated signature", false, pusher.Verify(secret, message, signature[:len(signature)-1]))
	equals(t, "empty signature", false, pusher.Verify(secret, message, ""))
}
