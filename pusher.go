package pusher

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Scheme represents a type of transport scheme. For the purposes of this
// project, we only provide constants for schemes relevant to HTTP and
// websockets.
type Scheme string

const (
	// HTTPS is the literal string, "https".
	HTTPS Scheme = "https"

	// HTTP is the literal string, "http".
	HTTP Scheme = "http"

	// WSS is the literal string, "wss".
	WSS Scheme = "wss"

	// WS is the literal string, "ws".
	WS Scheme = "ws"
)

// DefaultHost is the host used when neither Host nor Cluster is set.
const DefaultHost = "api.pusherapp.com"

var appPathRe = regexp.MustCompile(`^/apps/(\d+)$`)

// Client is a client for one app on the Channels HTTP API. The credential
// fields are read-only after construction; everything the client does is
// a pure computation over them plus the call's inputs, so a single Client
// is safe for concurrent use.
type Client struct {
	// The app's id, key, and secret, as shown on the service's
	// dashboard. The secret never leaves the process except inside an
	// HMAC signature.
	AppID  string
	Key    string
	Secret string

	// The host serving the HTTP API. Overrides Cluster when set.
	Host string

	// The cluster the app lives on. When set (and Host is not), the
	// host becomes "api-<cluster>.pusher.com".
	Cluster string

	// Either HTTPS or HTTP.
	Scheme Scheme

	// Optional non-default port.
	Port int

	// The HTTPClient used to perform requests. Swap the transport to
	// route through a proxy, change timeouts, etc.
	HTTPClient *http.Client
}

func debugEnabled() bool {
	v := os.Getenv("DEBUG")
	return v != ""
}

func debugMessage(msg string, v ...interface{}) {
	if debugEnabled() {
		log.Printf(msg, v...)
	}
}

func (c *Client) host() string {
	switch {
	case c.Host != "":
		return c.Host
	case c.Cluster != "":
		return "api-" + c.Cluster + ".pusher.com"
	default:
		return DefaultHost
	}
}

func (c *Client) hostAndPort() string {
	host := c.host()
	if c.Port != 0 {
		host += ":" + strconv.Itoa(c.Port)
	}

	return host
}

// signedURL computes the auth parameters for a request and assembles the
// final URL. The timestamp goes into the signature, so this runs
// immediately before the request is sent.
func (c *Client) signedURL(r *request, now time.Time) string {
	params := url.Values{}
	for k, vs := range r.params {
		params[k] = vs
	}

	params.Set("auth_key", c.Key)
	params.Set("auth_timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("auth_version", "1.0")
	if len(r.body) > 0 {
		params.Set("body_md5", bodyMD5(r.body))
	}

	signature := Sign([]byte(c.Secret), []byte(canonicalString(r.method, r.path, params)))
	params.Set("auth_signature", signature)

	u := url.URL{
		Scheme:   string(c.Scheme),
		Host:     c.hostAndPort(),
		Path:     r.path,
		RawQuery: params.Encode(),
	}

	return u.String()
}

func (c *Client) processResponse(body io.ReadCloser, status string, statusOK bool, v interface{}) (err error) {
	defer func() {
		derr := body.Close()
		if derr != nil {
			if err != nil {
				err = errors.Wrapf(err, "error in defer")
				err = errors.Wrapf(err, derr.Error())
			} else {
				err = errors.Wrap(derr, "error in defer")
			}
		}
	}()

	var data []byte
	data, err = ioutil.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "read failed")
	}

	if !statusOK {
		return errors.Errorf("request failed: %s: %s", status, string(data))
	}

	if v == nil {
		return nil
	}

	err = JSONCodec.Unmarshal(data, v)
	if err != nil {
		return errors.Wrap(err, "json unmarshal failed")
	}

	return nil
}

// do signs and performs a request, parsing the response body into v when
// v is non-nil.
func (c *Client) do(r *request, v interface{}) error {
	u := c.signedURL(r, time.Now())

	var bodyReader io.Reader
	if len(r.body) > 0 {
		bodyReader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequest(r.method, u, bodyReader)
	if err != nil {
		return errors.Wrap(err, "request preparation failed")
	}

	if len(r.body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	debugMessage("%s %s", r.method, r.path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}

	return c.processResponse(resp.Body, resp.Status, resp.StatusCode == 200, v)
}

// Trigger publishes an event with the given name and data on each of the
// given channels. The data is serialized with encoding/json unless it is
// already a string or byte slice.
func (c *Client) Trigger(channels []string, name string, data interface{}) error {
	return c.TriggerWithCodec(channels, name, data, "", JSONCodec)
}

// TriggerChannel is a convenience wrapper around Trigger for a single
// channel.
func (c *Client) TriggerChannel(channel, name string, data interface{}) error {
	return c.TriggerWithCodec([]string{channel}, name, data, "", JSONCodec)
}

// TriggerExclusive behaves like Trigger but excludes the connection
// identified by socketID from receiving the event. This is how a client
// that triggered an action avoids being told about it twice.
func (c *Client) TriggerExclusive(channels []string, name string, data interface{}, socketID string) error {
	return c.TriggerWithCodec(channels, name, data, socketID, JSONCodec)
}

// TriggerWithCodec is the fully explicit form of Trigger: the codec
// serializes the event data, and a non-empty socketID excludes that
// connection from delivery.
func (c *Client) TriggerWithCodec(channels []string, name string, data interface{}, socketID string, codec Codec) error {
	req, err := c.triggerRequest(channels, name, data, socketID, codec)
	if err != nil {
		return err
	}

	return c.do(req, nil)
}

// TriggerBatch publishes up to a batch of events with a single HTTP call.
// When alreadyEncoded is true, each event's data must be a pre-serialized
// string or byte slice and is sent as-is.
func (c *Client) TriggerBatch(events []Event, alreadyEncoded bool) error {
	return c.TriggerBatchWithCodec(events, alreadyEncoded, JSONCodec)
}

// TriggerBatchWithCodec behaves like TriggerBatch using the supplied
// codec to serialize event data.
func (c *Client) TriggerBatchWithCodec(events []Event, alreadyEncoded bool, codec Codec) error {
	req, err := c.batchRequest(events, alreadyEncoded, codec)
	if err != nil {
		return err
	}

	return c.do(req, nil)
}

// ChannelListItem holds the attributes returned for one channel by
// Channels.
type ChannelListItem struct {
	UserCount         int `json:"user_count"`
	SubscriptionCount int `json:"subscription_count"`
}

// ChannelList is the result of a Channels call: occupied channels keyed
// by name.
type ChannelList struct {
	Channels map[string]ChannelListItem `json:"channels"`
}

// Channels fetches the app's occupied channels, optionally restricted to
// names starting with prefixFilter. attributes names the per-channel
// attributes to include (e.g. "user_count", only valid when filtering to
// presence channels).
func (c *Client) Channels(prefixFilter string, attributes []string) (*ChannelList, error) {
	var list ChannelList
	err := c.do(c.channelsRequest(prefixFilter, attributes), &list)
	if err != nil {
		return nil, err
	}

	return &list, nil
}

// ChannelState holds the attributes returned for a single channel by
// Channel.
type ChannelState struct {
	Occupied          bool `json:"occupied"`
	UserCount         int  `json:"user_count"`
	SubscriptionCount int  `json:"subscription_count"`
}

// Channel fetches the state of one channel. attributes names the
// attributes to include (e.g. "user_count", "subscription_count").
func (c *Client) Channel(channel string, attributes []string) (*ChannelState, error) {
	req, err := c.channelRequest(channel, attributes)
	if err != nil {
		return nil, err
	}

	var state ChannelState
	if err := c.do(req, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

// User identifies one user subscribed to a presence channel.
type User struct {
	ID string `json:"id"`
}

// UserList is the result of a Users call.
type UserList struct {
	Users []User `json:"users"`
}

// Users fetches the ids of the users currently subscribed to a presence
// channel. The server rejects the call for non-presence channels; only
// the channel name's shape is validated here.
func (c *Client) Users(channel string) (*UserList, error) {
	req, err := c.usersRequest(channel)
	if err != nil {
		return nil, err
	}

	var list UserList
	if err := c.do(req, &list); err != nil {
		return nil, err
	}

	return &list, nil
}

// New creates a client for the given app credentials, talking to the
// default host over HTTPS with a 5 second timeout.
func New(appID, key, secret string) *Client {
	return &Client{
		AppID:      appID,
		Key:        key,
		Secret:     secret,
		Scheme:     HTTPS,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// NewFromURL creates a client from a credential URL of the conventional
// form "https://<key>:<secret>@<host>/apps/<app_id>".
func NewFromURL(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "url parse failed")
	}

	if u.User == nil {
		return nil, errors.Errorf("missing key and secret in url: %s", rawURL)
	}

	secret, ok := u.User.Password()
	if !ok {
		return nil, errors.Errorf("missing secret in url: %s", rawURL)
	}

	matches := appPathRe.FindStringSubmatch(u.Path)
	if matches == nil {
		return nil, errors.Errorf("missing app id in url path: %s", u.Path)
	}

	c := New(matches[1], u.User.Username(), secret)
	c.Host = u.Host
	if u.Scheme == "http" {
		c.Scheme = HTTP
	}

	return c, nil
}

// NewFromEnv creates a client from a credential URL stored in the named
// environment variable, conventionally PUSHER_URL.
func NewFromEnv(key string) (*Client, error) {
	rawURL := os.Getenv(key)
	if rawURL == "" {
		return nil, errors.Errorf("%s is not set", key)
	}

	return NewFromURL(rawURL)
}
