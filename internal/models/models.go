// Package models defines the core data structures for Aura.
//
// It includes the flow graph, execution state, domain records and the API
// envelope types shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel is a messaging channel end users talk through.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelTest is used by the chat simulation endpoint; nothing is delivered.
	ChannelTest Channel = "test"
)

// ErrInvalidUserID is returned when a user id is not channel-qualified.
var ErrInvalidUserID = errors.New("user id must have the form <channel>:<recipient>")

// QualifyUserID builds the channel-qualified user id used throughout the engine.
func QualifyUserID(ch Channel, recipient string) string {
	return string(ch) + ":" + recipient
}

// SplitUserID splits a channel-qualified user id.
func SplitUserID(userID string) (Channel, string, error) {
	ch, recipient, ok := strings.Cut(userID, ":")
	if !ok || ch == "" || recipient == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return Channel(ch), recipient, nil
}

// InboundMessage is a normalized end-user message received from a channel webhook.
type InboundMessage struct {
	Channel Channel `json:"channel"`
	// From is the channel-native sender (Telegram chat id, WhatsApp phone digits).
	From string `json:"from"`
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
	// MessageID is the channel-native id used for redelivery dedup.
	MessageID  string    `json:"message_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// UserID returns the channel-qualified sender id.
func (m InboundMessage) UserID() string {
	return QualifyUserID(m.Channel, m.From)
}

// APIStatus is the status field of every JSON response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the envelope of every JSON response served by the API.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Success wraps result in an ok envelope.
func Success(result any) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage is Success with a short human-readable note.
func SuccessWithMessage(message string, result any) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error wraps message in an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// MessageStatus is the outcome of one channel send.
type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "sent"
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt is a delivery event emitted by a channel service after a send.
type Receipt struct {
	To      string        `json:"to"`
	Channel Channel       `json:"channel"`
	Status  MessageStatus `json:"status"`
	Time    int64         `json:"time"`
}
