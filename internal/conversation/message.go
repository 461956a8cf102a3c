// Package conversation resolves threads over the message tree and keeps the
// active selection of one chat session.
package conversation

import (
	"time"

	"github.com/kittclouds/mammal/pkg/mptree"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleData      Role = "data"
)

// TimeFormat is the fixed-width UTC layout of CreatedAt. Two timestamps in
// this layout compare lexically in chronological order.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// UnknownTitle is shown for threads without a stored title.
const UnknownTitle = "Unknown Title"

// Metadata records how an assistant message was produced.
type Metadata struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// MessageData is the payload stored at every path of the message tree.
type MessageData struct {
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	CreatedAt string    `json:"createdAt"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Message is a stored message node.
type Message = mptree.Node[MessageData]

// NewMessage builds a payload; CreatedAt is filled in when it is stored.
func NewMessage(role Role, text string) MessageData {
	return MessageData{Name: string(role), Role: role, Message: text}
}

// Timestamp formats t in TimeFormat.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// RootSummary describes one thread in the conversation list.
type RootSummary struct {
	ThreadID int64       `json:"threadId"`
	Title    string      `json:"title"`
	Path     string      `json:"path"`
	Latest   MessageData `json:"latest"`
}
