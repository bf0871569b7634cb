package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/wsprobe <token>")
		fmt.Println("Example: go run ./scripts/wsprobe $TEST_TOKEN")
		os.Exit(1)
	}

	token := os.Args[1]

	// build WebSocket URL
	u := url.URL{
		Scheme: "ws",
		Host:   "localhost:8080",
		Path:   "/api/v1/ws",
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	fmt.Printf("Connecting to %s\n", u.String())

	// connect
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	fmt.Println("✅ Connected to WebSocket!")

	// handle interrupt
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	// read frames
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			fmt.Printf("📨 Received: %s\n", message)
		}
	}()

	// join the queue after connecting
	time.Sleep(1 * time.Second)

	join := Frame{Type: "join_queue"}
	if err := c.WriteJSON(join); err != nil {
		log.Println("write:", err)
		return
	}

	fmt.Println("📤 Sent join_queue, waiting for a match...")
	fmt.Println("Run a second probe with another token to pair up. Ctrl+C to exit.")

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			fmt.Println("\nClosing connection...")

			err := c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}

			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
