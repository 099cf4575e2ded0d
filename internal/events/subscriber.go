package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"account-service/internal/model"
	"account-service/internal/repository"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
	DLQSubject = "storage.event.failed"
)

// StorageEventSubscriber persists every storage.* event into the audit
// table. Events that still fail after maxRetries go to DLQSubject.
type StorageEventSubscriber struct {
	natsConn   *nats.Conn
	sub        *nats.Subscription
	repo       repository.StorageEventRepository
	retryDelay time.Duration
	publishDLQ func(data []byte) error
}

func NewStorageEventSubscriber(conn *nats.Conn, repo repository.StorageEventRepository) (*StorageEventSubscriber, error) {
	s := &StorageEventSubscriber{
		natsConn:   conn,
		repo:       repo,
		retryDelay: retryDelay,
	}
	s.publishDLQ = func(data []byte) error {
		return s.natsConn.Publish(DLQSubject, data)
	}

	sub, err := conn.Subscribe(StorageSubjectPrefix+"*", func(msg *nats.Msg) {
		s.handle(context.Background(), msg.Data)
	})
	if err != nil {
		return nil, err
	}
	s.sub = sub

	slog.Info("Storage event subscriber listening", "subject", StorageSubjectPrefix+"*")
	return s, nil
}

func (s *StorageEventSubscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *StorageEventSubscriber) handle(ctx context.Context, data []byte) {
	var event model.StorageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal storage event", "error", err)
		return
	}

	var saveErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		saveErr = s.repo.Save(ctx, &event)
		if saveErr == nil {
			return
		}

		slog.Warn("Failed saving storage event, retrying",
			"attempt", attempt, "operation", event.Operation, "path", event.Path, "error", saveErr)
		if attempt < maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	slog.Error("Giving up on storage event",
		"attempts", maxRetries, "operation", event.Operation, "path", event.Path, "error", saveErr)

	if err := s.publishDLQ(data); err != nil {
		slog.Error("Failed to publish to DLQ", "subject", DLQSubject, "error", err)
	}
}
