package realtime

import (
	"encoding/base64"

	"github.com/tidwall/gjson"
)

// Kind classifies the server events the driver understands. Everything else
// is KindOther and carried opaquely.
type Kind int

const (
	KindOther Kind = iota
	KindSessionCreated
	KindTextDelta
	KindAudioDelta
	KindDone
	KindError
)

// Wire type discriminators for recognized server events.
const (
	typeSessionCreated = "session.created"
	typeTextDelta      = "response.text.delta"
	typeAudioDelta     = "response.audio.delta"
	typeDone           = "response.done"
	typeError          = "error"
)

// ServerEvent is one inbound event from the realtime endpoint. Type carries
// the raw discriminator string even for unrecognized kinds; Raw always holds
// the original payload so unknown events can still be journaled.
type ServerEvent struct {
	Type         string
	Kind         Kind
	Delta        string // text chunk or base64 audio, for the delta kinds
	ErrorMessage string
	Raw          []byte
}

// ParseServerEvent classifies a raw payload by its type discriminator.
// Payloads without a recognized type still yield a usable event.
func ParseServerEvent(data []byte) ServerEvent {
	evt := ServerEvent{Raw: data}
	evt.Type = gjson.GetBytes(data, "type").String()
	switch evt.Type {
	case typeSessionCreated:
		evt.Kind = KindSessionCreated
	case typeTextDelta:
		evt.Kind = KindTextDelta
		evt.Delta = gjson.GetBytes(data, "delta").String()
	case typeAudioDelta:
		evt.Kind = KindAudioDelta
		evt.Delta = gjson.GetBytes(data, "delta").String()
	case typeDone:
		evt.Kind = KindDone
	case typeError:
		evt.Kind = KindError
		evt.ErrorMessage = gjson.GetBytes(data, "error.message").String()
		if evt.ErrorMessage == "" {
			evt.ErrorMessage = gjson.GetBytes(data, "message").String()
		}
	default:
		evt.Kind = KindOther
	}
	return evt
}

// AudioBytes decodes the base64 audio delta and reports its decoded size.
// Non-audio events report zero.
func (e ServerEvent) AudioBytes() int {
	if e.Kind != KindAudioDelta || e.Delta == "" {
		return 0
	}
	decoded, err := base64.StdEncoding.DecodeString(e.Delta)
	if err != nil {
		return 0
	}
	return len(decoded)
}

// Client event payloads, sent as JSON text frames.

type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities []string `json:"modalities"`
}

type itemCreateEvent struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseCreateEvent struct {
	Type string `json:"type"`
}
