// Package realtime provides a WebSocket client for the Channels realtime
// protocol: connecting, subscribing to channels (including private and
// presence channels, via auth tokens from the parent package), and
// receiving events.
package realtime

import (
	"crypto/tls"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/carterjones/pusher"
)

// Protocol is the realtime protocol version this client speaks.
const Protocol = "7"

// DefaultHost is the host used when no host or cluster is given.
const DefaultHost = "ws.pusherapp.com"

// Event names used by the realtime protocol.
const (
	EventConnectionEstablished = "pusher:connection_established"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventError                 = "pusher:error"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
)

// Message represents a message exchanged with the realtime service. Data
// is left raw: depending on the event it is either a JSON object or a
// JSON-encoded string containing more JSON.
type Message struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// connectionData is the payload of a connection_established event. The
// service sends it as a JSON string, not an object.
type connectionData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}

// Authorizer supplies subscription auth tokens for private and presence
// channels. *pusher.Client implements it.
type Authorizer interface {
	Authorize(channel, socketID string) (auth, channelData string, err error)
}

// MessageReader is the interface that wraps ReadMessage.
//
// ReadMessage is defined at
// https://godoc.org/github.com/gorilla/websocket#Conn.ReadMessage
type MessageReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// JSONWriter is the interface that wraps WriteJSON.
//
// WriteJSON is defined at
// https://godoc.org/github.com/gorilla/websocket#Conn.WriteJSON
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// WebsocketConn is a combination of MessageReader and JSONWriter. It is
// used to provide an interface to objects that can read from and write to
// a websocket connection.
type WebsocketConn interface {
	MessageReader
	JSONWriter
}

// Client represents a realtime connection to the Channels service. It
// manages the connection so that the caller doesn't have to.
type Client struct {
	// The app key.
	Key string

	// The host providing the realtime service.
	Host string

	// Either WSS or WS.
	Scheme pusher.Scheme

	// Client name and version, reported to the service as the "client"
	// and "version" connection parameters.
	Name    string
	Version string

	// An optional setting to provide a non-default TLS configuration to
	// use when connecting to the websocket.
	TLSClientConfig *tls.Config

	// The maximum number of times to re-attempt a connection.
	MaxConnectRetries int

	// The maximum number of times to re-attempt a reconnection.
	MaxReconnectRetries int

	// The time to wait before retrying, in the event that an error
	// occurs when contacting the service.
	RetryWaitDuration time.Duration

	// Authorizer supplies auth tokens when subscribing to private or
	// presence channels. May be nil if only public channels are used.
	Authorizer Authorizer

	// ActivityTimeout is the idle period after which the service
	// expects traffic, as reported in the connection_established event.
	ActivityTimeout time.Duration

	// This value is not part of the protocol. If this value is set, it
	// will be used in debug messages.
	CustomID string

	// The socket id assigned by the service for the current connection.
	socketID string

	// Channels subscribed on the current connection, so a reconnect can
	// restore them.
	subscriptions map[string]bool
	subMux        sync.Mutex

	conn    WebsocketConn
	connMux sync.Mutex

	close chan struct{}
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

func prefixedID(id string) string {
	if id == "" {
		return ""
	}

	return "[" + id + "] "
}

func makeURL(c *Client) url.URL {
	var u url.URL

	u.Scheme = string(c.Scheme)
	u.Host = c.Host
	u.Path = "/app/" + c.Key

	params := url.Values{}
	params.Set("protocol", Protocol)
	params.Set("client", c.Name)
	params.Set("version", c.Version)
	u.RawQuery = params.Encode()

	return u
}

func (c *Client) dial(u string, retryCount int) (*websocket.Conn, error) {
	// Create a dialer that uses the supplied TLS client configuration.
	dialer := &websocket.Dialer{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: c.TLSClientConfig,
	}

	// Perform the connection in a retry loop.
	var conn *websocket.Conn
	var err error
	for i := 0; i < retryCount; i++ {
		var resp *http.Response
		conn, resp, err = dialer.Dial(u, nil)
		if err == nil {
			break
		}

		// Verify that a response accompanies the error.
		if resp == nil {
			err = errors.Wrapf(err, "empty response, retry %d", i)

			// If no response is set, then wait and retry.
			time.Sleep(c.RetryWaitDuration)
			continue
		}

		// According to documentation at
		// https://godoc.org/github.com/gorilla/websocket#Dialer.Dial
		// ErrBadHandshake is the only error returned. Details reside in
		// the response, so that's how we process this error.
		err = errors.Wrapf(err, "%v, retry %d", resp.Status, i)

		// Handle any specific errors.
		switch resp.StatusCode {
		case 503:
			// Wait and retry.
			time.Sleep(c.RetryWaitDuration)
			continue
		default:
			// Return in the event that no specific error was
			// encountered.
			return nil, err
		}
	}

	return conn, err
}

func (c *Client) processEstablished(conn WebsocketConn) error {
	// The first message on a fresh connection must be
	// connection_established; it carries the socket id.
	t, p, err := conn.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "message read failed")
	}

	if t != websocket.TextMessage {
		return errors.Errorf("unexpected websocket control type: %d", t)
	}

	var msg Message
	err = json.Unmarshal(p, &msg)
	if err != nil {
		return errors.Wrap(err, "json unmarshal failed")
	}

	if msg.Event != EventConnectionEstablished {
		return errors.Errorf("unexpected first event from server: %s | message: %s", msg.Event, string(p))
	}

	// The data field is a JSON-encoded string containing more JSON.
	var inner string
	err = json.Unmarshal(msg.Data, &inner)
	if err != nil {
		return errors.Wrap(err, "json unmarshal failed")
	}

	var cd connectionData
	err = json.Unmarshal([]byte(inner), &cd)
	if err != nil {
		return errors.Wrap(err, "json unmarshal failed")
	}

	c.connMux.Lock()
	c.socketID = cd.SocketID
	if cd.ActivityTimeout > 0 {
		c.ActivityTimeout = time.Duration(cd.ActivityTimeout) * time.Second
	}
	c.conn = conn
	c.connMux.Unlock()

	return nil
}

// Connect establishes the websocket connection and waits for the service
// to confirm it with a connection_established event.
func (c *Client) Connect() error {
	u := makeURL(c)

	conn, err := c.dial(u.String(), c.MaxConnectRetries)
	if err != nil {
		return errors.Wrap(err, "dial failed")
	}

	return c.processEstablished(conn)
}

// SetConn changes the underlying websocket connection to the specified
// connection. This is done using a mutex to wait until existing read
// operations have completed.
func (c *Client) SetConn(conn WebsocketConn) {
	c.connMux.Lock()
	c.conn = conn
	c.connMux.Unlock()
}

// Conn returns the underlying websocket connection.
func (c *Client) Conn() WebsocketConn {
	c.connMux.Lock()
	defer c.connMux.Unlock()
	return c.conn
}

// SocketID returns the socket id the service assigned to the current
// connection. It is empty until Connect succeeds.
func (c *Client) SocketID() string {
	c.connMux.Lock()
	defer c.connMux.Unlock()
	return c.socketID
}

func (c *Client) subscribeMessage(channel string) (Message, error) {
	data := subscribeData{Channel: channel}

	if strings.HasPrefix(channel, pusher.PrivateChannelPrefix) ||
		strings.HasPrefix(channel, pusher.PresenceChannelPrefix) {
		if c.Authorizer == nil {
			return Message{}, errors.Errorf("channel %q requires an Authorizer", channel)
		}

		auth, channelData, err := c.Authorizer.Authorize(channel, c.SocketID())
		if err != nil {
			return Message{}, errors.Wrap(err, "authorize failed")
		}

		data.Auth = auth
		data.ChannelData = channelData
	}

	bs, err := json.Marshal(data)
	if err != nil {
		return Message{}, errors.Wrap(err, "json marshal failed")
	}

	return Message{Event: EventSubscribe, Data: bs}, nil
}

// Subscribe subscribes the connection to a channel. Private and presence
// channels require the Authorizer to be set; the auth token is generated
// against the current socket id.
func (c *Client) Subscribe(channel string) error {
	msg, err := c.subscribeMessage(channel)
	if err != nil {
		return err
	}

	if err := c.Send(msg); err != nil {
		return err
	}

	c.subMux.Lock()
	c.subscriptions[channel] = true
	c.subMux.Unlock()

	return nil
}

// Unsubscribe unsubscribes the connection from a channel.
func (c *Client) Unsubscribe(channel string) error {
	bs, err := json.Marshal(subscribeData{Channel: channel})
	if err != nil {
		return errors.Wrap(err, "json marshal failed")
	}

	err = c.Send(Message{Event: EventUnsubscribe, Data: bs})
	if err != nil {
		return err
	}

	c.subMux.Lock()
	delete(c.subscriptions, channel)
	c.subMux.Unlock()

	return nil
}

// Run connects to the service and starts the message read loop. It
// returns channels that:
//  - receive messages from the websocket connection
//  - receive errors encountered while processing the websocket connection
func (c *Client) Run() (chan Message, chan error, error) {
	errCh := make(chan error)
	msgCh := make(chan Message)
	var err error

	// Make a channel that is used to indicate that the connection
	// initialization functions have completed or errored out.
	done := make(chan bool)

	go func() {
		defer func() {
			// Once this goroutine returns, indicate that it has
			// finished executing.
			done <- true
		}()

		err = c.Connect()
		if err != nil {
			err = errors.Wrap(err, "connect failed")
			return
		}

		// Start the read message loop.
		go c.ReadMessages(msgCh, errCh)
	}()

	// Wait for initialization goroutine to complete.
	<-done

	return msgCh, errCh, err
}

func (c *Client) attemptReconnect() bool {
	// Snapshot the channels to restore once a new connection exists.
	c.subMux.Lock()
	channels := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		channels = append(channels, ch)
	}
	c.subMux.Unlock()

	// Attempt to reconnect in a retry loop. A reconnect is a fresh
	// connection with a fresh socket id, so subscriptions have to be
	// re-established.
	reconnected := false
	for i := 0; i < c.MaxReconnectRetries; i++ {
		debugMessage("%sattempting to reconnect...", prefixedID(c.CustomID))

		err := c.Connect()
		if err != nil {
			// Ignore the value of the error and just continue.
			continue
		}

		debugMessage("%sreconnected successfully", prefixedID(c.CustomID))
		reconnected = true
		break
	}

	if !reconnected {
		return false
	}

	// A new connection means a new socket id, so every subscription
	// needs a fresh auth token.
	for _, ch := range channels {
		msg, err := c.subscribeMessage(ch)
		if err == nil {
			err = c.Send(msg)
		}
		if err != nil {
			debugMessage("%sresubscribe to %s failed: %v", prefixedID(c.CustomID), ch, err)
		}
	}

	return true
}

func errCode(err error) int {
	re := regexp.MustCompile("[0-9]+")
	s := re.FindString(err.Error())

	var e error
	code, e := strconv.Atoi(s)
	if e != nil {
		// -1 is not a valid error code, so we use this, rather than
		// introducing the need for another error handler on the caller
		// of this function.
		code = -1
	}

	return code
}

func (c *Client) processReadMessagesError(err error, errCh chan error) bool {
	var ok bool

	// Handle various types of errors.
	// https://tools.ietf.org/html/rfc6455#section-7.4.1
	code := errCode(err)
	switch code {
	case 1000:
		// normal closure
		fallthrough
	case 1001:
		// going away
		fallthrough
	case 1006:
		// abnormal closure
		ok = c.attemptReconnect()
	default:
		errCh <- err
	}

	return ok
}

func (c *Client) processReadMessagesMessage(p []byte, msgs chan Message, errs chan error) {
	var msg Message
	err := json.Unmarshal(p, &msg)
	if err != nil {
		errs <- errors.Wrap(err, "json unmarshal failed")
		return
	}

	// Answer pings ourselves; the caller never sees them.
	if msg.Event == EventPing {
		err = c.Send(Message{Event: EventPong})
		if err != nil {
			errs <- err
		}
		return
	}

	msgs <- msg
}

func (c *Client) readMessage(msgCh chan Message, errCh chan error) bool {
	// Snapshot the connection. The read happens without the mutex held,
	// so Send (and the pong replies it carries) can interleave with a
	// blocked read; a reconnect swaps the connection out from under us,
	// and the stale read then errors and the next loop iteration picks
	// up the fresh one.
	conn := c.Conn()

	// Set the ok flag to true to indicate that more messages can/should
	// be read. Set the flag to false later on if this is no longer the
	// case.
	ok := true

	// Prepare channels for the select statement later. They are
	// buffered so the reading goroutine can finish even when the close
	// path wins the select.
	pCh := make(chan []byte, 1)
	errs := make(chan error, 1)

	// Wait for a message.
	go func() {
		_, p, err := conn.ReadMessage()
		if err != nil {
			errs <- err
		} else {
			pCh <- p
		}
	}()

	select {
	case err := <-errs:
		ok = c.processReadMessagesError(err, errCh)
	case p := <-pCh:
		c.processReadMessagesMessage(p, msgCh, errCh)
	case <-c.close:
		ok = false
	}

	return ok
}

// ReadMessages processes WebSocket messages from the underlying websocket
// connection. When a message is processed, it is passed along the msgCh
// channel. When an error occurs, it is sent along the errCh channel.
func (c *Client) ReadMessages(msgCh chan Message, errCh chan error) {
	for {
		if !c.readMessage(msgCh, errCh) {
			return
		}
	}
}

// Send sends a message to the websocket connection.
func (c *Client) Send(m Message) error {
	c.connMux.Lock()
	defer func() {
		c.connMux.Unlock()
	}()

	// Verify a connection has been created.
	if c.conn == nil {
		return errors.New("send: connection not set")
	}

	// Write the message.
	err := c.conn.WriteJSON(m)
	if err != nil {
		return errors.Wrap(err, "json write failed")
	}

	return nil
}

// Close sends a signal to the loop reading WebSocket messages to indicate
// that the loop should terminate.
func (c *Client) Close() {
	c.close <- struct{}{}
}

// New creates and initializes a realtime client for the given app key.
// auth may be nil when only public channels are used.
func New(key string, auth Authorizer) *Client {
	return &Client{
		Key:                 key,
		Host:                DefaultHost,
		Scheme:              pusher.WSS,
		Name:                "pusher-go",
		Version:             "1.0.0",
		Authorizer:          auth,
		MaxConnectRetries:   5,
		MaxReconnectRetries: 5,
		RetryWaitDuration:   10 * time.Second,
		subscriptions:       make(map[string]bool),
		close:               make(chan struct{}),
	}
}

// NewForCluster creates a realtime client pointed at a specific cluster's
// host ("ws-<cluster>.pusher.com").
func NewForCluster(key, cluster string, auth Authorizer) *Client {
	c := New(key, auth)
	c.Host = "ws-" + cluster + ".pusher.com"
	return c
}
