package episode

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/timmy/tenderkg/internal/domain"
)

// Entities lists the typed entities a tender mentions.
func Entities(id string, f *domain.TenderFields) []domain.Entity {
	if f == nil {
		return nil
	}
	var out []domain.Entity

	if f.CaseName != nil {
		out = append(out, domain.Entity{
			Type: domain.EntityTenderCase,
			Name: *f.CaseName,
			Properties: map[string]interface{}{
				"tender_id":   id,
				"tender_name": *f.CaseName,
				"case_number": domain.Value(f.CaseNumber),
			},
		})
	}
	if f.Organization != nil {
		out = append(out, domain.Entity{
			Type:       domain.EntityOrganization,
			Name:       *f.Organization,
			Properties: map[string]interface{}{"org_name": *f.Organization},
		})
	}
	out = appendAmount(out, "預算金額", f.Budget)
	out = appendAmount(out, "決標金額", f.AwardAmount)
	out = appendDate(out, "開標日期", f.OpeningDate)
	out = appendDate(out, "截止投標", f.Deadline)
	return out
}

func appendAmount(out []domain.Entity, kind string, text *string) []domain.Entity {
	if text == nil {
		return out
	}
	props := map[string]interface{}{
		"amount_text": *text,
		"amount_type": kind,
		"currency":    "TWD",
	}
	if v, ok := ParseAmount(*text); ok {
		props["amount_value"] = v
	}
	return append(out, domain.Entity{Type: domain.EntityAmount, Name: *text, Properties: props})
}

func appendDate(out []domain.Entity, kind string, text *string) []domain.Entity {
	if text == nil {
		return out
	}
	return append(out, domain.Entity{
		Type: domain.EntityDate,
		Name: *text,
		Properties: map[string]interface{}{
			"date_value":  *text,
			"date_type":   kind,
			"date_format": "ROC",
		},
	})
}

// ParseAmount reads the numeric value of an amount text such as
// "NT$1,200,000" or "1,150,000元".
func ParseAmount(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '.' || (r < unicode.MaxASCII && unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, text)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
