// Package extractor turns tender detail pages into TenderFields.
//
// Pages are read as label/value table rows plus heading/paragraph sections.
// Every field has a primary locator and some have a fallback; a field found
// by neither is left nil. Structural drift on the portal should lower the
// yield of a run, never abort it.
package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Table labels used on the portal's detail page.
const (
	LabelCaseNumber   = "標案案號"
	LabelOrganization = "機關名稱"
	LabelBudget       = "預算金額"
	LabelAwardAmount  = "決標金額"
	LabelOpeningDate  = "開標日期"
	LabelOpeningTime  = "開標時間"
	LabelDeadline     = "截止投標"
	LabelCategory     = "標的分類"
	LabelContact      = "聯絡人"

	caseNameID = "tenderNameText"
)

// Extractor is stateless and safe for concurrent use.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract reads the tender fields out of body.
func (e *Extractor) Extract(ctx context.Context, body []byte) (*domain.TenderFields, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}

	labels := indexLabels(root)
	fields := &domain.TenderFields{
		CaseName:     caseName(root),
		CaseNumber:   labels.lookup(LabelCaseNumber),
		Organization: labels.lookup(LabelOrganization),
		Budget:       labels.lookup(LabelBudget),
		AwardAmount:  labels.lookup(LabelAwardAmount),
		OpeningDate:  labels.lookup(LabelOpeningDate, LabelOpeningTime),
		Deadline:     labels.lookup(LabelDeadline),
		Category:     labels.lookup(LabelCategory),
		Contact:      labels.lookup(LabelContact),
	}

	if fields.AllAbsent() {
		logger.CtxWarn(ctx, "No tender fields located in document (%d bytes)", len(body))
	} else {
		logger.With(logger.Fields{
			logger.FieldCount: fields.Present(),
			"missing":         fields.MissingRequired(),
		}).Debug(ctx, "Extracted tender fields")
	}
	return fields, nil
}

// Sections returns every h2/h3 heading paired with the text of the p
// elements that follow it up to the next heading. Headings without body
// text are dropped.
func (e *Extractor) Sections(body []byte) ([]domain.Section, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}

	var sections []domain.Section
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || (n.DataAtom != atom.H2 && n.DataAtom != atom.H3) {
			return true
		}
		heading := textContent(n)
		var parts []string
		for s := nextElementSibling(n); s != nil && !isHeading(s); s = nextElementSibling(s) {
			if s.DataAtom != atom.P {
				continue
			}
			if text := textContent(s); text != "" {
				parts = append(parts, text)
			}
		}
		if heading != "" && len(parts) > 0 {
			sections = append(sections, domain.Section{Heading: heading, Body: strings.Join(parts, "\n")})
		}
		return true
	})
	return sections, nil
}

func parse(body []byte) (*html.Node, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ExtractionError{Kind: KindEmptyInput}
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{Kind: KindUnparsableMarkup, Err: err}
	}
	if !hasText(root) {
		return nil, &ExtractionError{Kind: KindUnparsableMarkup}
	}
	return root, nil
}

func caseName(root *html.Node) *string {
	if n := findByID(root, caseNameID); n != nil {
		if v := textContent(n); v != "" {
			return &v
		}
	}
	if n := findElement(root, func(n *html.Node) bool { return n.DataAtom == atom.H1 }); n != nil {
		return domain.StringPtr(textContent(n))
	}
	return nil
}

// labelIndex maps a normalized label cell text to the value of its first
// non-empty following cell.
type labelIndex map[string]string

func indexLabels(root *html.Node) labelIndex {
	idx := make(labelIndex)
	walk(root, func(n *html.Node) bool {
		if !isCell(n) {
			return true
		}
		label := trimLabel(textContent(n))
		if label == "" {
			return true
		}
		if _, seen := idx[label]; seen {
			return true
		}
		next := nextElementSibling(n)
		if next == nil || !isCell(next) {
			return true
		}
		if value := textContent(next); value != "" {
			idx[label] = value
		}
		return true
	})
	return idx
}

// lookup returns the value of the first label present, in order.
func (idx labelIndex) lookup(labels ...string) *string {
	for _, l := range labels {
		if v, ok := idx[l]; ok {
			return &v
		}
	}
	return nil
}

func trimLabel(s string) string {
	s = strings.TrimSuffix(s, ":")
	s = strings.TrimSuffix(s, "：")
	return strings.TrimSpace(s)
}
