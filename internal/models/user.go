package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a researcher account. PasswordHash may be empty when the account
// authenticates exclusively through a linked external identity, but at least
// one authentication method must be present.
type User struct {
	ID           string `gorm:"type:char(36);primaryKey"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"type:text"`
	IsAdmin      bool   `gorm:"not null;default:false"`

	// Prolific account linkage. The API token is stored encrypted at rest,
	// see internal/secrets.
	ProlificAPIToken    string `gorm:"column:prolific_api_token;type:text"`
	ProlificWorkspaceID string `gorm:"column:prolific_workspace_id;size:255"`

	CreatedAt time.Time

	Experiments []Experiment `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns a UUID primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// IsProlificLinked reports whether a Prolific token is stored for the user
func (u *User) IsProlificLinked() bool {
	return u.ProlificAPIToken != ""
}
