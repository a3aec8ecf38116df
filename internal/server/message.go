package server

import (
	"encoding/json"
	"time"
)

// MessageType represents a WebSocket message type
type MessageType string

const (
	// Client to server messages
	MessageTypeSubscribe   MessageType = "subscribeToGame"
	MessageTypeUnsubscribe MessageType = "unsubscribeFromGame"

	// Server to client messages
	MessageTypeGameUpdate MessageType = "gameUpdate"
	MessageTypeGameClosed MessageType = "gameClosed"
	MessageTypeSubscribed MessageType = "subscribed"
	MessageTypeError      MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// SubscriptionData names the game a client follows or stops following.
type SubscriptionData struct {
	GameID string `json:"gameId"`
}

// GameClosedData tells subscribers the game no longer exists.
type GameClosedData struct {
	GameID string `json:"gameId"`
}

// ErrorData is sent to a client whose message could not be handled.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Room returns the broadcast room of a game.
func Room(gameID string) string {
	return "game/" + gameID
}
