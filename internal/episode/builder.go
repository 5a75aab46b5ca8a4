// Package episode turns extracted tender fields into candidate units.
package episode

import (
	"fmt"
	"strings"

	"github.com/timmy/tenderkg/internal/domain"
)

// SourceDescription is the provenance string attached to every unit of a tender.
func SourceDescription(id string) string {
	return "政府採購網_招標案_" + id
}

// Options selects which optional units are produced.
type Options struct {
	IncludeSections      bool
	IncludeEntitySummary bool
}

// Builder assembles the units of one tender. It is stateless.
type Builder struct {
	opts Options
}

func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build returns the units for a tender, main unit first. A tender without a
// case name yields no units.
func (b *Builder) Build(id string, fields *domain.TenderFields, sections []domain.Section) []domain.CandidateUnit {
	if fields == nil || fields.CaseName == nil {
		return nil
	}
	name := *fields.CaseName

	units := []domain.CandidateUnit{domain.NewCandidateUnit(name, mainContent(name, fields))}

	if b.opts.IncludeSections {
		for _, s := range sections {
			units = append(units, domain.NewCandidateUnit(s.Heading, s.Body))
		}
	}

	if b.opts.IncludeEntitySummary {
		if content := entitySummary(Entities(id, fields)); content != "" {
			units = append(units, domain.NewCandidateUnit("招標實體關聯_"+name, content))
		}
	}
	return units
}

// mainContent never includes the contact person.
func mainContent(name string, f *domain.TenderFields) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "這是關於「%s」的政府採購案件。", name)

	lines := []struct {
		label string
		value *string
	}{
		{"案號", f.CaseNumber},
		{"招標機關", f.Organization},
		{"預算金額", f.Budget},
		{"決標金額", f.AwardAmount},
		{"開標時間", f.OpeningDate},
		{"截止投標", f.Deadline},
		{"標的分類", f.Category},
	}
	for _, l := range lines {
		if l.value != nil {
			fmt.Fprintf(&sb, "\n%s：%s", l.label, *l.value)
		}
	}
	return sb.String()
}

// entitySummary lists the related entities of a tender, one labelled line
// each. The tender case itself is the subject and is not listed.
func entitySummary(entities []domain.Entity) string {
	var lines []string
	for _, e := range entities {
		var label string
		switch e.Type {
		case domain.EntityOrganization:
			label = "招標機關"
		case domain.EntityAmount:
			label, _ = e.Properties["amount_type"].(string)
		case domain.EntityDate:
			label, _ = e.Properties["date_type"].(string)
		}
		if label == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s：%s", label, e.Name))
	}
	if len(lines) == 0 {
		return ""
	}
	return "此招標案涉及以下相關實體：\n" + strings.Join(lines, "\n")
}
