// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"
)

// MessageKind classifies an inbound message by payload type.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindAudio    MessageKind = "audio"
	KindImage    MessageKind = "image"
	KindDocument MessageKind = "document"
	KindOther    MessageKind = "other"
)

// MediaRef points at a provider-hosted attachment.
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

// InboundMessage is one message as delivered by the provider. Immutable
// once received.
type InboundMessage struct {
	ID          string      `json:"id"`
	From        string      `json:"from"`
	ProfileName string      `json:"profile_name,omitempty"`
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text,omitempty"`
	Media       *MediaRef   `json:"media,omitempty"`
}

// QueuedUnit is one InboundMessage plus delivery metadata. The ingress
// handler creates one per message found in a webhook payload so a failing
// message never blocks its siblings.
type QueuedUnit struct {
	Message       InboundMessage `json:"message"`
	PhoneNumberID string         `json:"phone_number_id"`
	ReceivedAt    time.Time      `json:"received_at"`
}

// ProcessedMessage is the durable idempotency record for one provider
// message ID.
type ProcessedMessage struct {
	MessageID   string         `db:"message_id" json:"message_id"`
	Sender      string         `db:"sender" json:"sender"`
	FirstSeenAt time.Time      `db:"first_seen_at" json:"first_seen_at"`
	ClaimedAt   time.Time      `db:"claimed_at" json:"claimed_at"`
	Attempts    int            `db:"attempts" json:"attempts"`
	Completed   bool           `db:"completed" json:"completed"`
	LastError   sql.NullString `db:"last_error" json:"last_error,omitempty"`
	Payload     []byte         `db:"payload" json:"payload,omitempty"`
}

// ParsedExpense is the structured result of extraction. AmountCents is
// always positive; a non-positive amount means the input did not parse.
type ParsedExpense struct {
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// MediaContent is a downloaded attachment.
type MediaContent struct {
	Data     []byte
	MimeType string
}

// User is a sender known to the ledger.
type User struct {
	ID          int64          `db:"id" json:"id"`
	Phone       string         `db:"phone" json:"phone"`
	DisplayName sql.NullString `db:"display_name" json:"display_name,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Category is an expense category.
type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Transaction is one persisted expense. MessageID carries a unique
// constraint so a replayed delivery cannot insert a second row.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	MessageID   string    `db:"message_id" json:"message_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CategoryID  int64     `db:"category_id" json:"category_id"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
