// Package preview is the read-only checkpoint before units are committed.
package preview

import (
	"context"
	"unicode/utf8"

	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
)

const DefaultPreviewLength = 200

// Item is the preview of one unit.
type Item struct {
	Title       string `json:"title"`
	IdentityKey string `json:"identity_key"`
	Length      int    `json:"length"`
	Preview     string `json:"preview"`
}

// Summary describes what a commit would write.
type Summary struct {
	SourceID   string `json:"source_id"`
	Count      int    `json:"count"`
	TotalChars int    `json:"total_chars"`
	Items      []Item `json:"items"`
}

// Approver decides on a summary.
type Approver interface {
	Approve(ctx context.Context, summary Summary) (bool, error)
}

// Summarize is pure. Lengths are in characters; previews longer than
// previewLength are cut and suffixed with "...".
func Summarize(sourceID string, units []domain.CandidateUnit, previewLength int) Summary {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	s := Summary{SourceID: sourceID, Count: len(units), Items: make([]Item, 0, len(units))}
	for _, u := range units {
		n := utf8.RuneCountInString(u.Content)
		s.TotalChars += n
		s.Items = append(s.Items, Item{
			Title:       u.Title,
			IdentityKey: u.IdentityKey(),
			Length:      n,
			Preview:     truncate(u.Content, previewLength),
		})
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Gate runs the approver once per identifier.
type Gate struct {
	enabled       bool
	previewLength int
	approver      Approver
}

// NewGate builds a gate from cfg. With a nil approver, auto-approve mode logs
// summaries and anything else prompts on the terminal.
func NewGate(cfg *config.PreviewConfig, approver Approver) *Gate {
	g := &Gate{enabled: true, previewLength: DefaultPreviewLength}
	if cfg != nil {
		g.enabled = cfg.Enabled
		if cfg.PreviewLength > 0 {
			g.previewLength = cfg.PreviewLength
		}
	}
	if approver == nil {
		if cfg == nil || cfg.AutoApprove {
			approver = AutoApprover{}
		} else {
			approver = NewTerminalApprover()
		}
	}
	g.approver = approver
	return g
}

// Review decides whether units may be committed. It never changes them.
func (g *Gate) Review(ctx context.Context, sourceID string, units []domain.CandidateUnit) (bool, error) {
	if !g.enabled || len(units) == 0 {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return g.approver.Approve(ctx, Summarize(sourceID, units, g.previewLength))
}

// AutoApprover logs the summary and approves it.
type AutoApprover struct{}

func (AutoApprover) Approve(ctx context.Context, s Summary) (bool, error) {
	logger.With(logger.Fields{
		logger.FieldCount: s.Count,
		"total_chars":     s.TotalChars,
	}).Info(ctx, "Preview auto-approved")
	for _, item := range s.Items {
		logger.With(logger.Fields{
			"title":        item.Title,
			"identity_key": item.IdentityKey,
			"length":       item.Length,
		}).Debug(ctx, "Preview: %s", item.Preview)
	}
	return true, nil
}
