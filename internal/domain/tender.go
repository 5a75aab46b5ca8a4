package domain

import "time"

// RawDocument is the unparsed body of one tender detail page.
type RawDocument struct {
	ID         string
	URL        string
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// TenderFields holds the fields extracted from a tender detail page.
// A nil field means the page did not carry it; that is a valid state.
type TenderFields struct {
	CaseName     *string `json:"case_name,omitempty"`
	CaseNumber   *string `json:"case_number,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Budget       *string `json:"budget,omitempty"`
	AwardAmount  *string `json:"award_amount,omitempty"`
	OpeningDate  *string `json:"opening_date,omitempty"`
	Deadline     *string `json:"deadline,omitempty"`
	Category     *string `json:"category,omitempty"`
	Contact      *string `json:"contact,omitempty"`
}

// MissingRequired names the fields every tender page is expected to carry
// that f lacks, in page order.
func (f *TenderFields) MissingRequired() []string {
	var missing []string
	for _, r := range []struct {
		name  string
		value *string
	}{
		{"case_name", f.CaseName},
		{"organization", f.Organization},
		{"budget", f.Budget},
		{"award_amount", f.AwardAmount},
		{"opening_date", f.OpeningDate},
	} {
		if r.value == nil {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// AllAbsent reports whether no field at all could be located.
func (f *TenderFields) AllAbsent() bool {
	for _, v := range []*string{
		f.CaseName, f.CaseNumber, f.Organization, f.Budget, f.AwardAmount,
		f.OpeningDate, f.Deadline, f.Category, f.Contact,
	} {
		if v != nil {
			return false
		}
	}
	return true
}

// Present returns the number of located fields.
func (f *TenderFields) Present() int {
	n := 0
	for _, v := range []*string{
		f.CaseName, f.CaseNumber, f.Organization, f.Budget, f.AwardAmount,
		f.OpeningDate, f.Deadline, f.Category, f.Contact,
	} {
		if v != nil {
			n++
		}
	}
	return n
}

// Value dereferences an optional field, returning "" when absent.
func Value(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Section is a heading with the paragraph text that follows it.
type Section struct {
	Heading string
	Body    string
}
