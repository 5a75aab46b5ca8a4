package domain

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// CandidateUnit is one titled text block destined for the knowledge store.
// Construct it with NewCandidateUnit; the zero value has no identity.
type CandidateUnit struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
}

// NewCandidateUnit builds a unit and derives its content hash.
func NewCandidateUnit(title, content string) CandidateUnit {
	return CandidateUnit{
		Title:       title,
		Content:     content,
		ContentHash: ContentHash(title, content),
	}
}

// ContentHash returns the first 8 hex characters of md5(title:content).
func ContentHash(title, content string) string {
	sum := md5.Sum([]byte(title + ":" + content))
	return hex.EncodeToString(sum[:])[:8]
}

// IdentityKey is the deduplication key of the unit. A content edit under the
// same title yields a different key.
func (u CandidateUnit) IdentityKey() string {
	return u.Title + "_" + u.ContentHash
}

// WithContent returns a copy of the unit carrying new content.
func (u CandidateUnit) WithContent(content string) CandidateUnit {
	return NewCandidateUnit(u.Title, content)
}

// EpisodeInput is what the orchestrator hands to the knowledge store.
type EpisodeInput struct {
	Unit              CandidateUnit
	SourceID          string
	SourceDescription string
	ReferenceTime     time.Time
}

// Fact is one search hit returned by the knowledge store.
type Fact struct {
	IdentityKey string  `json:"identity_key"`
	Title       string  `json:"title"`
	Fact        string  `json:"fact"`
	SourceID    string  `json:"source_id"`
	Score       float32 `json:"score"`
}
