package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// EpisodeRecord is a committed candidate unit as stored in the episodes table.
type EpisodeRecord struct {
	ID                string    `gorm:"type:text;primaryKey" json:"id"`
	IdentityKey       string    `gorm:"type:text;not null;uniqueIndex:idx_episodes_identity" json:"identity_key"`
	Title             string    `gorm:"type:text;not null;index:idx_episodes_title" json:"title"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	ContentHash       string    `gorm:"type:text;not null" json:"content_hash"`
	SourceID          string    `gorm:"type:text;index:idx_episodes_source" json:"source_id"`
	SourceDescription string    `gorm:"type:text" json:"source_description"`
	VectorPointID     string    `gorm:"type:text" json:"vector_point_id,omitempty"`
	EmbeddingModel    string    `gorm:"type:text" json:"embedding_model,omitempty"`
	ReferenceTime     time.Time `json:"reference_time"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for EpisodeRecord.
func (EpisodeRecord) TableName() string {
	return "episodes"
}
