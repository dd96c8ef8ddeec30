// Package websocket provides the real-time review notification hub. It tracks
// live client connections and their topic subscriptions, resolves validation
// transition events to the connections that must see them, and delivers
// without ever blocking on a slow client.
package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topic kinds. A topic addresses either a reviewed subject or the owner who
// submitted it.
const (
	TopicKindSubject = "subject"
	TopicKindOwner   = "owner"
)

// Topic is an addressable notification channel.
type Topic struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Key returns the canonical index key for the topic.
func (t Topic) Key() string {
	return t.Kind + "/" + t.ID
}

// Valid reports whether the topic has a known kind and a non-empty id.
func (t Topic) Valid() bool {
	return (t.Kind == TopicKindSubject || t.Kind == TopicKindOwner) && t.ID != ""
}

// OwnerTopic builds the owner-scoped topic for the given owner id.
func OwnerTopic(ownerID string) Topic {
	return Topic{Kind: TopicKindOwner, ID: ownerID}
}

// SubjectTopic builds the subject-scoped topic for the given subject id.
func SubjectTopic(subjectID string) Topic {
	return Topic{Kind: TopicKindSubject, ID: subjectID}
}

// Event types pushed to clients.
const (
	EventNewForReview = "new_for_review"
	EventValidated    = "validated"
)

// Event is a validation transition observed by the hub.
type Event struct {
	Type         string          `json:"type"`
	SubjectID    string          `json:"subjectId"`
	OwnerID      string          `json:"ownerId"`
	Decision     string          `json:"decision,omitempty"`
	ExpertResult json.RawMessage `json:"expertResult,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// ClientMessage is an inbound message from a connected client.
type ClientMessage struct {
	Type  string `json:"type"`
	Topic Topic  `json:"topic"`
}

// Inbound message types.
const (
	MessageSubscribe = "subscribe"
	MessagePing      = "ping"
)

// serverMessage is the envelope for every server-to-client frame.
type serverMessage struct {
	Type         string          `json:"type"`
	UserID       string          `json:"userId,omitempty"`
	Role         string          `json:"role,omitempty"`
	Topic        *Topic          `json:"topic,omitempty"`
	SubjectID    string          `json:"subjectId,omitempty"`
	OwnerID      string          `json:"ownerId,omitempty"`
	Decision     string          `json:"decision,omitempty"`
	ExpertResult json.RawMessage `json:"expertResult,omitempty"`
	Timestamp    *time.Time      `json:"timestamp,omitempty"`
}

// Outbound message types for non-event frames.
const (
	messageConnectionConfirmed   = "connection_confirmed"
	messageSubscriptionConfirmed = "subscription_confirmed"
	messagePong                  = "pong"
)

func marshalEvent(ev Event) ([]byte, error) {
	ts := ev.Timestamp
	msg := serverMessage{
		Type:         ev.Type,
		SubjectID:    ev.SubjectID,
		OwnerID:      ev.OwnerID,
		Decision:     ev.Decision,
		ExpertResult: ev.ExpertResult,
		Timestamp:    &ts,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	return data, nil
}
