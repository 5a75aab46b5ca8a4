// Package filter decides whether a candidate unit may leave the pipeline.
package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/domain"
)

// Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	enabled       bool
	minLength     int
	maxLength     int
	blacklist     []string // lower-cased, same order as configured
	organizations map[string]struct{}
	disallowed    *regexp.Regexp
}

// New builds a Filter from cfg. Zero length bounds fall back to 10 and 10000;
// an empty AllowedChars uses config.DefaultAllowedChars.
func New(cfg *config.FilterConfig) (*Filter, error) {
	if cfg == nil {
		cfg = &config.FilterConfig{Enabled: true, BlacklistKeywords: config.DefaultBlacklist}
	}

	class := cfg.AllowedChars
	if class == "" {
		class = config.DefaultAllowedChars
	}
	disallowed, err := regexp.Compile("[^" + class + "]")
	if err != nil {
		return nil, errors.Wrapf(err, "compile allowed character class %q", class)
	}

	f := &Filter{
		enabled:       cfg.Enabled,
		minLength:     cfg.MinLength,
		maxLength:     cfg.MaxLength,
		organizations: make(map[string]struct{}, len(cfg.AllowedOrganizations)),
		disallowed:    disallowed,
	}
	if f.minLength <= 0 {
		f.minLength = 10
	}
	if f.maxLength <= 0 {
		f.maxLength = 10000
	}
	for _, kw := range cfg.BlacklistKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			f.blacklist = append(f.blacklist, strings.ToLower(kw))
		}
	}
	for _, org := range cfg.AllowedOrganizations {
		if org = normalizeSpace(org); org != "" {
			f.organizations[org] = struct{}{}
		}
	}
	return f, nil
}

// Evaluate checks length, then the blacklist, then sanitizes. The first
// failing check decides the verdict.
func (f *Filter) Evaluate(unit domain.CandidateUnit) domain.FilterVerdict {
	if !f.enabled {
		return domain.Accept(unit.Content)
	}

	n := utf8.RuneCountInString(unit.Content)
	if n < f.minLength {
		return domain.Reject(domain.RejectTooShort, "")
	}
	if n > f.maxLength {
		return domain.Reject(domain.RejectTooLong, "")
	}

	if term, ok := f.blacklisted(unit.Content); ok {
		return domain.Reject(domain.RejectBlacklistedTerm, term)
	}

	return domain.Accept(f.Sanitize(unit.Content))
}

// Sanitize strips characters outside the allow-set, then collapses
// whitespace runs to single spaces and trims.
func (f *Filter) Sanitize(content string) string {
	return normalizeSpace(f.disallowed.ReplaceAllString(content, ""))
}

// IsOrganizationAllowed reports whether units of org may be ingested. An empty
// allow-list admits everyone; a non-empty one rejects an absent organization.
func (f *Filter) IsOrganizationAllowed(org *string) bool {
	if !f.enabled || len(f.organizations) == 0 {
		return true
	}
	if org == nil {
		return false
	}
	_, ok := f.organizations[normalizeSpace(*org)]
	return ok
}

func (f *Filter) blacklisted(content string) (string, bool) {
	lower := strings.ToLower(content)
	for _, kw := range f.blacklist {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
