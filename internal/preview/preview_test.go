package preview

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/domain"
)

type recordingApprover struct {
	answer bool
	calls  int
	last   Summary
}

func (r *recordingApprover) Approve(_ context.Context, s Summary) (bool, error) {
	r.calls++
	r.last = s
	return r.answer, nil
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("標", 250)
	units := []domain.CandidateUnit{
		domain.NewCandidateUnit("短", "十個字的內容剛好十個"),
		domain.NewCandidateUnit("長", long),
	}

	s := Summarize("T-001", units, 200)

	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 260, s.TotalChars)
	require.Len(t, s.Items, 2)
	assert.Equal(t, units[0].IdentityKey(), s.Items[0].IdentityKey)
	assert.Equal(t, "十個字的內容剛好十個", s.Items[0].Preview)
	assert.Equal(t, strings.Repeat("標", 200)+"...", s.Items[1].Preview)
	assert.Equal(t, 250, s.Items[1].Length)
	assert.Equal(t, long, units[1].Content, "units are left untouched")
}

func TestReviewModes(t *testing.T) {
	units := []domain.CandidateUnit{domain.NewCandidateUnit("標題", "內容內容內容內容內容")}
	ctx := context.Background()

	t.Run("disabled skips the approver", func(t *testing.T) {
		a := &recordingApprover{}
		ok, err := NewGate(&config.PreviewConfig{Enabled: false}, a).Review(ctx, "T-001", units)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, a.calls)
	})

	t.Run("empty batch approves", func(t *testing.T) {
		a := &recordingApprover{}
		ok, err := NewGate(&config.PreviewConfig{Enabled: true}, a).Review(ctx, "T-001", nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, a.calls)
	})

	t.Run("approver decides", func(t *testing.T) {
		a := &recordingApprover{answer: false}
		ok, err := NewGate(&config.PreviewConfig{Enabled: true, PreviewLength: 5}, a).Review(ctx, "T-001", units)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, a.calls)
		assert.Equal(t, "內容內容內...", a.last.Items[0].Preview)
	})

	t.Run("auto approve", func(t *testing.T) {
		ok, err := NewGate(&config.PreviewConfig{Enabled: true, AutoApprove: true}, nil).Review(ctx, "T-001", units)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestPromptApprover(t *testing.T) {
	s := Summarize("T-001", []domain.CandidateUnit{domain.NewCandidateUnit("辦公設備採購案", "這是關於辦公設備的採購")}, 200)

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPromptApprover(strings.NewReader(tt.input), &out)

		ok, err := p.Approve(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "input %q", tt.input)
		assert.Contains(t, out.String(), "辦公設備採購案")
		assert.Contains(t, out.String(), "[y/N]")
	}
}

func TestPromptApproverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := NewPromptApprover(strings.NewReader("y\n"), &bytes.Buffer{}).Approve(ctx, Summary{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
