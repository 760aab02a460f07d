// Command realtime_stub serves a local stand-in for a realtime websocket
// endpoint so sweeps can be exercised without credentials. It answers
// response.create with a few text deltas (and an audio delta when asked)
// followed by response.done.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func main() {
	port := flag.Int("port", 8080, "Listening port")
	delay := flag.Duration("delay", 50*time.Millisecond, "Delay between deltas")
	audio := flag.Bool("audio", false, "Include an audio delta in responses")
	failEvery := flag.Int("fail-every", 0, "Send an error event on every Nth response (0 disables)")
	flag.Parse()

	var responses int
	handler := func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		send := func(evt map[string]any) error {
			payload, _ := json.Marshal(evt)
			return ws.WriteMessage(websocket.TextMessage, payload)
		}
		if err := send(map[string]any{"type": "session.created"}); err != nil {
			return
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &msg) != nil || msg.Type != "response.create" {
				continue
			}

			responses++
			if *failEvery > 0 && responses%*failEvery == 0 {
				_ = send(map[string]any{
					"type":  "error",
					"error": map[string]any{"message": "injected failure"},
				})
				continue
			}

			for _, delta := range strings.Fields("stub response from local realtime endpoint") {
				time.Sleep(*delay)
				if err := send(map[string]any{"type": "response.text.delta", "delta": delta + " "}); err != nil {
					return
				}
			}
			if *audio {
				chunk := base64.StdEncoding.EncodeToString(make([]byte, 3200))
				if err := send(map[string]any{"type": "response.audio.delta", "delta": chunk}); err != nil {
					return
				}
			}
			if err := send(map[string]any{"type": "response.done"}); err != nil {
				return
			}
		}
	}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("realtime stub listening on ws://localhost%s/", addr)
	log.Fatal(http.ListenAndServe(addr, http.HandlerFunc(handler)))
}
