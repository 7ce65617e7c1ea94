package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message kinds understood by the relay. The strings are the wire
// contract and must not change.
const (
	KindWaiting      = "waiting"
	KindOffer        = "offer"
	KindAnswer       = "answer"
	KindICECandidate = "iceCandidate"
	KindMessage      = "message"
	KindEndChat      = "endChat"
	KindPong         = "pong"

	KindWelcome      = "welcome"
	KindPaired       = "paired"
	KindChatEnded    = "chatEnded"
	KindDisconnected = "disconnected"
	KindPing         = "ping"
	KindError        = "error"
)

// Envelope is the single record type exchanged over the wire. Every
// inbound message is decoded into it once and dispatched on Type;
// outbound messages are built from it. Payload stays opaque: the relay
// forwards it verbatim and never interprets its contents beyond the
// text presence check for chat messages.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	PartnerID string          `json:"partnerId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// textPayload is the only structure the relay ever looks for inside a
// payload, and only to verify chat messages carry text.
type textPayload struct {
	Text string `json:"text"`
}

// decodeEnvelope parses a raw inbound frame. A frame that is not a
// JSON object or has no type field is malformed.
func decodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &env, nil
}

// hasPayload reports whether the envelope carries a non-null payload.
func (e *Envelope) hasPayload() bool {
	if len(e.Payload) == 0 {
		return false
	}
	return string(e.Payload) != "null"
}

// chatText extracts the text field from a chat payload.
func (e *Envelope) chatText() (string, error) {
	if !e.hasPayload() {
		return "", fmt.Errorf("message has no payload")
	}
	var body textPayload
	if err := json.Unmarshal(e.Payload, &body); err != nil {
		return "", fmt.Errorf("decode chat payload: %w", err)
	}
	return body.Text, nil
}

func welcomeMessage(id string) *Envelope {
	return &Envelope{Type: KindWelcome, ID: id}
}

func pairedMessage(partnerID string) *Envelope {
	return &Envelope{Type: KindPaired, PartnerID: partnerID}
}

func chatEndedMessage(from string) *Envelope {
	return &Envelope{Type: KindChatEnded, From: from}
}

func disconnectedMessage(from string) *Envelope {
	return &Envelope{Type: KindDisconnected, From: from}
}

func errorMessage(text string) *Envelope {
	return &Envelope{Type: KindError, Message: text}
}

// PingMessage returns the keepalive probe sent to idle connections.
func PingMessage() *Envelope {
	return &Envelope{Type: KindPing}
}
