package domain

import "time"

// ============================================================
// Conversations & Messages (read-only, produced by the backend)
// ============================================================

const (
	ConversationActive = "active"

	SenderClient = "client"
	SenderUser   = "user"
)

// Conversation is a WhatsApp thread with a client.
type Conversation struct {
	ID         string              `json:"id"`
	ClientID   string              `json:"client_id"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	AssignedTo string              `json:"assigned_to"`
	Client     *ConversationClient `json:"clients,omitempty"` // embedded via select=*,clients(name,phone)
}

// ConversationClient is the embedded client row of a conversation.
type ConversationClient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Message is one message inside a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
	Read           bool      `json:"read"`
}

// ConversationSummary is one entry of the inbox list.
type ConversationSummary struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	ClientName  string     `json:"clientName"`
	ClientPhone string     `json:"clientPhone,omitempty"`
	LastMessage string     `json:"lastMessage"`
	Time        *time.Time `json:"time,omitempty"`
	Unread      int        `json:"unread"`
	Status      string     `json:"status"`
}

// MessageChange is a realtime notification about the messages table.
type MessageChange struct {
	Type string  `json:"type"` // INSERT | UPDATE
	New  Message `json:"new"`
}

// ConversationActivity is what the inbox needs to know about one conversation's messages.
type ConversationActivity struct {
	ConversationID string
	LastMessage    *Message
	Unread         int
}
