package entity

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the columns of the CMS users table that the engine reads.
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	ArtistName  string     `json:"artist_name"`
	Slug        string     `json:"slug"`
	Avatar      *uuid.UUID `gorm:"type:uuid" json:"avatar,omitempty"`
	DateCreated time.Time  `json:"date_created"`
}

func (User) TableName() string { return "directus_users" }

// DisplayName is the public name shown on boards and summaries: the artist
// name, else the first name. Last names are never exposed.
func (u User) DisplayName() string {
	if u.ArtistName != "" {
		return u.ArtistName
	}
	return u.FirstName
}
