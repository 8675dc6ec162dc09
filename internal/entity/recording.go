package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RecordingStatusDraft     = "draft"
	RecordingStatusPublished = "published"
	RecordingStatusArchived  = "archived"

	// CollectionRecordings is the comments.collection value for recording comments.
	CollectionRecordings = "sexy_recordings"
)

type Recording struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `json:"title"`
	UserCreated uuid.UUID `gorm:"type:uuid" json:"user_created"`
	Status      string    `json:"status"`
	Featured    bool      `json:"featured"`
	DateCreated time.Time `json:"date_created"`
}

func (Recording) TableName() string { return "sexy_recordings" }

type RecordingPlay struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid" json:"user_id"`
	RecordingID uuid.UUID `gorm:"type:uuid" json:"recording_id"`
	Completed   bool      `json:"completed"`
	DateCreated time.Time `json:"date_created"`
}

func (RecordingPlay) TableName() string { return "sexy_recording_plays" }

type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Collection  string    `json:"collection"`
	Item        string    `json:"item"`
	UserCreated uuid.UUID `gorm:"type:uuid" json:"user_created"`
}

func (Comment) TableName() string { return "comments" }
