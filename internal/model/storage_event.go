package model

import (
	"time"

	"github.com/google/uuid"
)

type StorageEvent struct {
	ID         uuid.UUID  `db:"id" json:"-"`
	Operation  string     `db:"operation" json:"operation"`
	Path       string     `db:"path" json:"path"`
	FileName   string     `db:"file_name" json:"file_name"`
	UserID     *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Success    bool       `db:"success" json:"success"`
	ErrorCode  *string    `db:"error_code" json:"error_code,omitempty"`
	OccurredAt time.Time  `db:"occurred_at" json:"timestamp"`
}
