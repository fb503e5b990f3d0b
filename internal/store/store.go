// Package store provides MongoDB-backed persistence for users and messages.
// It is the system of record: messages are immutable once created, and the
// rest of the server only ever creates and reads them. Core components depend
// on the MessageStore and UserStore interfaces so tests can substitute fakes.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: not found")

// Message kinds, matching the protocol-level messageType values.
const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

// Message is a persisted direct message. Timestamps are store-assigned at
// creation time; clients never supply them.
type Message struct {
	ID          string
	Sender      string
	Recipient   string
	MessageType string
	Content     string
	FileURL     string
	Timestamp   time.Time
}

// User is an account document. Password holds the bcrypt hash, never the
// plaintext.
type User struct {
	ID           string
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Color        int
	Image        string
	ProfileSetup bool
}

// Profile returns the public projection of the user: the fields attached to
// delivered messages and contact lists.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Color:     u.Color,
		Image:     u.Image,
	}
}

// Profile is the public projection of a user.
type Profile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Color     int
	Image     string
}

// ContactActivity is one row of the latest-contact aggregation: a
// conversation partner and the timestamp of the most recent message
// exchanged with them.
type ContactActivity struct {
	PartnerID       string
	LastMessageTime time.Time
}

// MessageStore is the message persistence boundary consumed by the delivery
// engine and the contact aggregator.
type MessageStore interface {
	// Create persists the message, assigns its ID and timestamp, and returns
	// the stored copy.
	Create(ctx context.Context, m *Message) (*Message, error)
	// FindByID returns the message with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Message, error)
	// FindConversation returns every message between the two users, ascending
	// by timestamp.
	FindConversation(ctx context.Context, userA, userB string) ([]Message, error)
	// LatestPerContact returns, for each distinct conversation partner of
	// viewer, the timestamp of the most recent message exchanged.
	LatestPerContact(ctx context.Context, viewer string) ([]ContactActivity, error)
}

// UserStore is the account persistence boundary.
type UserStore interface {
	Create(ctx context.Context, u *User) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName string, color int) (*User, error)
	SetImage(ctx context.Context, id, image string) (*User, error)
	// Search returns users whose email or name matches the term,
	// excluding the viewer.
	Search(ctx context.Context, viewer, term string) ([]User, error)
}

// ValidID reports whether s is a well-formed user or message identifier
// (a hex ObjectID).
func ValidID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
