package preview

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
)

// PromptApprover shows the summary to an operator and reads a y/N answer.
// Prompts from concurrent workers are serialized.
type PromptApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: bufio.NewReader(in), out: out}
}

// NewTerminalApprover prompts on stdin/stdout.
func NewTerminalApprover() *PromptApprover {
	return NewPromptApprover(os.Stdin, os.Stdout)
}

// Approve accepts only "y" or "yes", case-insensitively. End of input rejects.
func (p *PromptApprover) Approve(ctx context.Context, s Summary) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	table, err := Render(s)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(p.out, table)
	fmt.Fprintf(p.out, "Commit %d units for %s? [y/N]: ", s.Count, s.SourceID)

	answer, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "read preview answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Render formats the summary as a table.
func Render(s Summary) (string, error) {
	data := pterm.TableData{{"#", "Title", "Identity key", "Chars", "Preview"}}
	for i, item := range s.Items {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			item.Title,
			item.IdentityKey,
			strconv.Itoa(item.Length),
			strings.ReplaceAll(item.Preview, "\n", " "),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", errors.Wrap(err, "render preview table")
	}
	header := fmt.Sprintf("Preview for %s: %d units, %d characters", s.SourceID, s.Count, s.TotalChars)
	return header + "\n" + table, nil
}
