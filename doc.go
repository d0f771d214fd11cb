/*
Package pusher provides a client for the Channels HTTP API: triggering
events on channels, querying channel and presence state, generating the
auth tokens that clients need to subscribe to private and presence
channels, and validating webhook callbacks sent by the service.

All requests to the HTTP API are signed with HMAC-SHA256 over a canonical
representation of the request, per
https://pusher.com/docs/channels/library_auth_reference/rest-api. The same
signing engine verifies inbound webhooks, so the two paths cannot drift
apart.

The client never performs network I/O on its own terms: every call goes
through the HTTPClient field, so timeouts, proxies, and TLS settings are
entirely up to the caller.

For the WebSocket side of the protocol (subscribing to channels and
receiving events), see the realtime subpackage.
*/
package pusher
