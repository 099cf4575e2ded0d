package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"account-service/internal/model"
)

const (
	StorageSubjectPrefix = "storage."
	SubjectUserUpdated   = "user.updated"
)

type EventPublisher interface {
	PublishStorageEvent(event *model.StorageEvent) error
	PublishUserUpdated(userID uuid.UUID, fields ...string) error
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(conn *nats.Conn) *NatsPublisher {
	return &NatsPublisher{conn: conn}
}

type UserUpdatedEvent struct {
	EventType string    `json:"event_type"`
	UserID    uuid.UUID `json:"user_id"`
	Fields    []string  `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublishStorageEvent sends the event on storage.<operation>.
func (p *NatsPublisher) PublishStorageEvent(event *model.StorageEvent) error {
	return p.publish(StorageSubjectPrefix+event.Operation, event)
}

func (p *NatsPublisher) PublishUserUpdated(userID uuid.UUID, fields ...string) error {
	return p.publish(SubjectUserUpdated, UserUpdatedEvent{
		EventType: SubjectUserUpdated,
		UserID:    userID,
		Fields:    fields,
		UpdatedAt: time.Now(),
	})
}

func (p *NatsPublisher) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Error marshalling event JSON", "subject", subject, "error", err)
		return err
	}

	if err := p.conn.Publish(subject, data); err != nil {
		slog.Error("Error publishing to NATS", "subject", subject, "error", err)
		return err
	}

	slog.Debug("Published event to NATS", "subject", subject)
	return nil
}
