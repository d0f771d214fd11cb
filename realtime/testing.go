package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// TestSocketID is the socket id handed out by TestConnectionHandler.
const TestSocketID = "1234.1234"

// TestConnectionHandler provides a sample realtime endpoint: it upgrades
// the connection, sends a connection_established event, and then answers
// subscribes with subscription_succeeded and pings with pongs.
//
// If an error occurs while upgrading or writing, it will panic.
func TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		panic(err)
	}

	// nolint:lll
	err = c.WriteMessage(websocket.TextMessage, []byte(`{"event":"pusher:connection_established","data":"{\"socket_id\":\"`+TestSocketID+`\",\"activity_timeout\":120}"}`))
	if err != nil {
		panic(err)
	}

	go func() {
		for {
			var msg Message
			rerr := c.ReadJSON(&msg)
			if rerr != nil {
				return
			}

			switch msg.Event {
			case EventSubscribe:
				var data subscribeData
				if jerr := json.Unmarshal(msg.Data, &data); jerr != nil {
					panic(jerr)
				}

				werr := c.WriteJSON(Message{
					Event:   EventSubscriptionSucceeded,
					Channel: data.Channel,
					Data:    json.RawMessage(`"{}"`),
				})
				if werr != nil {
					return
				}
			case EventPing:
				werr := c.WriteJSON(Message{Event: EventPong})
				if werr != nil {
					return
				}
			}
		}
	}()
}
