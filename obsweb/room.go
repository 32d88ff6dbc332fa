/*
Package obsweb streams observer estimates to browsers and other consumers
over websockets and MQTT.

Client-Server pattern adapted from Mat Ryer's Go Blueprints examples,
see https://github.com/matryer/goblueprints
*/
package obsweb

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type Room struct {
	// forward is a channel that holds incoming messages
	// that should be forwarded to the other clients.
	forward chan []byte
	// join is a channel for clients wishing to join the room.
	join chan *client
	// leave is a channel for clients wishing to leave the room.
	leave chan *client
	// clients holds all current clients in this room.
	clients map[*client]bool
	// joined reports the client count after each join or leave.
	joined chan int

	quit      chan struct{}
	closeOnce sync.Once
}

// NewRoom makes a new room that is ready to go.
func NewRoom() *Room {
	return &Room{
		forward: make(chan []byte),
		join:    make(chan *client),
		leave:   make(chan *client),
		clients: make(map[*client]bool),
		joined:  make(chan int, messageBufferSize),
		quit:    make(chan struct{}),
	}
}

// Run services the room until Close is called.
func (r *Room) Run() {
	for {
		select {
		case client := <-r.join:
			r.clients[client] = true
			log.Println("ObsWeb: New client joined")
			r.notify()
		case client := <-r.leave:
			if r.clients[client] {
				delete(r.clients, client)
				close(client.send)
				log.Println("ObsWeb: Client left")
			}
			r.notify()
		case msg := <-r.forward:
			// forward message to all clients
			for client := range r.clients {
				select {
				case client.send <- msg:
				default:
					log.Println("ObsWeb: Client is not keeping up, dropping message")
				}
			}
		case <-r.quit:
			for client := range r.clients {
				delete(r.clients, client)
				close(client.send)
			}
			return
		}
	}
}

func (r *Room) notify() {
	select {
	case r.joined <- len(r.clients):
	default:
	}
}

// Publish forwards d to every client in the room.
func (r *Room) Publish(d *EstimateData) error {
	msg, err := json.Marshal(d)
	if err != nil {
		return err
	}
	select {
	case r.forward <- msg:
	case <-r.quit:
	}
	return nil
}

// Close stops Run and disconnects all clients.
// It is safe to call more than once.
func (r *Room) Close() error {
	r.closeOnce.Do(func() { close(r.quit) })
	return nil
}

const (
	socketBufferSize  = 1024
	messageBufferSize = 256
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println("ObsWeb: ServeHTTP:", err)
		return
	}
	client := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
		room:   r,
	}
	select {
	case r.join <- client:
	case <-r.quit:
		socket.Close()
		return
	}
	defer func() {
		select {
		case r.leave <- client:
		case <-r.quit:
		}
	}()
	go client.write()
	client.read()
}
