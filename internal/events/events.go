// Package events publishes domain events about posts, comments and follows.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const (
	SubjectPostCreated    = "post.created"
	SubjectPostUpdated    = "post.updated"
	SubjectCommentCreated = "comment.created"
	SubjectFollowCreated  = "follow.created"
	SubjectFollowDeleted  = "follow.deleted"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

type PostEvent struct {
	PostID    uint      `json:"post_id"`
	Author    string    `json:"author"`
	GroupID   *uint     `json:"group_id,omitempty"`
	HasImage  bool      `json:"has_image"`
	Timestamp time.Time `json:"timestamp"`
}

type CommentEvent struct {
	CommentID uint      `json:"comment_id"`
	PostID    uint      `json:"post_id"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

type FollowEvent struct {
	User   string `json:"user"`
	Author string `json:"author"`
}

// NATSPublisher sends JSON-encoded events over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

func ConnectNATS(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("yatube"))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to NATS at %s", url)
	}
	return &NATSPublisher{conn: conn}, nil
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "encoding %s event", subject)
	}
	return p.conn.Publish(subject, data)
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
