package obsweb

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/gorilla/websocket"
)

// Sender pushes estimate records into a Room over a websocket.
type Sender struct {
	u string
	c *websocket.Conn
}

// DefaultURL is where a Room served by obsweb_server listens on this host.
func DefaultURL() string {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("localhost:%d", Port), Path: "/obsweb"}
	return u.String()
}

// NewSender dials the room at u.
func NewSender(u string) (*Sender, error) {
	s := &Sender{u: u}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sender) connect() (err error) {
	s.c, _, err = websocket.DefaultDialer.Dial(s.u, nil)
	if err != nil {
		return err
	}
	// The room echoes every message back; drain them so control frames are
	// processed and the room never blocks on us.
	go func(c *websocket.Conn) {
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}(s.c)
	return nil
}

// Publish sends d. On a write failure the message is dropped and the
// connection is redialed for the next one.
func (s *Sender) Publish(d *EstimateData) error {
	msg, err := json.Marshal(d)
	if err != nil {
		log.Println("ObsWeb: Error marshalling json data:", err)
		return err
	}
	if err := s.c.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Println("ObsWeb: Error writing to websocket:", err)
		s.c.Close()
		if err2 := s.connect(); err2 != nil {
			return fmt.Errorf("ObsWeb: %v: %v", err, err2)
		}
		return fmt.Errorf("ObsWeb: %w", err)
	}
	return nil
}

// Close says goodbye to the room and closes the connection.
func (s *Sender) Close() error {
	if err := s.c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		log.Println("ObsWeb: Error closing websocket:", err)
	}
	return s.c.Close()
}
