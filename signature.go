package pusher

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Sign computes the HMAC-SHA256 of message under secret and returns it as
// a lowercase hex string. It is a pure function; the same implementation
// signs outgoing requests, channel auth tokens, and verifies webhooks.
func Sign(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the correct Sign output for message
// under secret. The comparison is constant-time, and verification is
// byte-exact: signatures must be lowercase hex.
func Verify(secret, message []byte, signature string) bool {
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func bodyMD5(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// canonicalString assembles the string-to-sign for a REST request:
// the method, the path, and the query parameters sorted by key in
// unescaped k=v&k=v form, joined by newlines. The server rebuilds this
// string verbatim when it verifies auth_signature, so the construction
// order here is not negotiable.
func canonicalString(method, path string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}

	return method + "\n" + path + "\n" + strings.Join(pairs, "&")
}
