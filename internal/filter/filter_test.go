package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/domain"
)

func defaultConfig() *config.FilterConfig {
	return &config.FilterConfig{
		Enabled:           true,
		BlacklistKeywords: config.DefaultBlacklist,
		MinLength:         10,
		MaxLength:         10000,
		AllowedChars:      config.DefaultAllowedChars,
	}
}

func newFilter(t *testing.T, cfg *config.FilterConfig) *Filter {
	t.Helper()
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func unit(content string) domain.CandidateUnit {
	return domain.NewCandidateUnit("標題", content)
}

func TestEvaluateLengthBoundaries(t *testing.T) {
	f := newFilter(t, defaultConfig())

	tests := []struct {
		name    string
		content string
		reason  domain.RejectReason
	}{
		{"min-1", "一二三四五六七八九", domain.RejectTooShort},
		{"min", "一二三四五六七八九十", ""},
		{"max", strings.Repeat("標", 10000), ""},
		{"max+1", strings.Repeat("標", 10001), domain.RejectTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Evaluate(unit(tt.content))
			if tt.reason == "" {
				assert.True(t, v.Accepted)
				return
			}
			assert.False(t, v.Accepted)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestEvaluateBlacklistIsCaseInsensitiveSubstring(t *testing.T) {
	f := newFilter(t, defaultConfig())

	v := f.Evaluate(unit("login with Password123 now"))
	assert.False(t, v.Accepted)
	assert.Equal(t, domain.RejectBlacklistedTerm, v.Reason)
	assert.Equal(t, "password", v.Term)

	v = f.Evaluate(unit("請洽承辦人員電話詢問細節"))
	assert.Equal(t, domain.RejectBlacklistedTerm, v.Reason)
	assert.Equal(t, "電話", v.Term)
}

func TestEvaluateLengthBeforeBlacklist(t *testing.T) {
	f := newFilter(t, defaultConfig())

	v := f.Evaluate(unit("token"))
	assert.Equal(t, domain.RejectTooShort, v.Reason)
}

func TestEvaluateSanitizes(t *testing.T) {
	f := newFilter(t, defaultConfig())

	v := f.Evaluate(unit("  辦公設備  採購案\t★ 預算：NT$1,200,000 \n"))
	require.True(t, v.Accepted)
	assert.Equal(t, "辦公設備 採購案 預算：NT$1,200,000", v.Content)
}

func TestEvaluateDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enabled = false
	f := newFilter(t, cfg)

	v := f.Evaluate(unit(" key ★ "))
	assert.True(t, v.Accepted)
	assert.Equal(t, " key ★ ", v.Content)
}

func TestCustomAllowedChars(t *testing.T) {
	cfg := defaultConfig()
	cfg.AllowedChars = `a-z\s`
	f := newFilter(t, cfg)

	assert.Equal(t, "abc def", f.Sanitize("abc 123 DEF def"))
}

func TestInvalidAllowedChars(t *testing.T) {
	cfg := defaultConfig()
	cfg.AllowedChars = `\p{Nope}`

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestIsOrganizationAllowed(t *testing.T) {
	open := newFilter(t, defaultConfig())
	assert.True(t, open.IsOrganizationAllowed(nil))
	assert.True(t, open.IsOrganizationAllowed(domain.StringPtr("任何機關")))

	cfg := defaultConfig()
	cfg.AllowedOrganizations = []string{"某機關", " 交通部  公路局 "}
	restricted := newFilter(t, cfg)

	assert.True(t, restricted.IsOrganizationAllowed(domain.StringPtr("某機關")))
	assert.True(t, restricted.IsOrganizationAllowed(domain.StringPtr("交通部 公路局")))
	assert.False(t, restricted.IsOrganizationAllowed(domain.StringPtr("其他機關")))
	assert.False(t, restricted.IsOrganizationAllowed(nil))
}
