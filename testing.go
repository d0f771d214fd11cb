package pusher

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"strings"
)

// TestAuthenticatedHandler wraps fn with the same request verification
// the service performs: the auth_key must match, body_md5 must match the
// raw body, and auth_signature must verify over the canonical request
// string. Requests that fail verification get a 401. This is useful for
// asserting, in tests, that a client request would be accepted by the
// real service.
func TestAuthenticatedHandler(key, secret string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		signature := params.Get("auth_signature")
		params.Del("auth_signature")

		if params.Get("auth_key") != key {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, err := ioutil.ReadAll(r.Body)
		if err != nil {
			panic(err)
		}

		if len(body) > 0 && params.Get("body_md5") != bodyMD5(body) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if !Verify([]byte(secret), []byte(canonicalString(r.Method, r.URL.Path, params)), signature) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		// Put the body back for the wrapped handler.
		r.Body = ioutil.NopCloser(bytes.NewReader(body))

		fn(w, r)
	}
}

// TestAPIHandler combines the canned endpoint handlers in this package
// into one handler covering the whole HTTP API, wrapped with request
// verification for the given credentials.
func TestAPIHandler(key, secret string) http.HandlerFunc {
	return TestAuthenticatedHandler(key, secret, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/batch_events"):
			TestTrigger(w, r)
		case strings.HasSuffix(r.URL.Path, "/events"):
			TestTrigger(w, r)
		case strings.HasSuffix(r.URL.Path, "/users"):
			TestUsers(w, r)
		case strings.HasSuffix(r.URL.Path, "/channels"):
			TestChannels(w, r)
		default:
			TestChannel(w, r)
		}
	})
}

// TestTrigger provides a sample trigger (and batch trigger) response
// handler.
//
// If an error occurs while writing the response data, it will panic.
func TestTrigger(w http.ResponseWriter, r *http.Request) {
	_, err := w.Write([]byte(`{}`))
	if err != nil {
		panic(err)
	}
}

// TestChannels provides a sample channel-list response handler.
//
// If an error occurs while writing the response data, it will panic.
func TestChannels(w http.ResponseWriter, r *http.Request) {
	// nolint:lll
	_, err := w.Write([]byte(`{"channels":{"presence-session-d41e031":{"user_count":4},"presence-session-4539a3b":{"user_count":2}}}`))
	if err != nil {
		panic(err)
	}
}

// TestChannel provides a sample single-channel response handler.
//
// If an error occurs while writing the response data, it will panic.
func TestChannel(w http.ResponseWriter, r *http.Request) {
	_, err := w.Write([]byte(`{"occupied":true,"user_count":42,"subscription_count":42}`))
	if err != nil {
		panic(err)
	}
}

// TestUsers provides a sample presence-users response handler.
//
// If an error occurs while writing the response data, it will panic.
func TestUsers(w http.ResponseWriter, r *http.Request) {
	_, err := w.Write([]byte(`{"users":[{"id":"1"},{"id":"2"}]}`))
	if err != nil {
		panic(err)
	}
}
