package flow

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/toolgate/toolgate/pkg/types"
)

// TTYPrompter asks the user directly on the controlling terminal. One
// prompt at a time; concurrent exchanges queue on the mutex.
type TTYPrompter struct {
	mu  sync.Mutex
	dev string
}

// NewTTYPrompter builds a prompter over /dev/tty.
func NewTTYPrompter() *TTYPrompter {
	return &TTYPrompter{dev: "/dev/tty"}
}

func (t *TTYPrompter) Prompt(ctx context.Context, req PromptRequest) (PromptResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.dev, os.O_RDWR, 0)
	if err != nil {
		return PromptResponse{}, fmt.Errorf("%w: open %s: %v", ErrPromptUnavailable, t.dev, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "\n=== CONFIRMATION REQUIRED ===\n")
	fmt.Fprintf(f, "Call: %s\nTool: %s\n", req.Call.ID, req.Call.ToolName)
	if req.Call.Input != "" {
		fmt.Fprintf(f, "Input: %s\n", req.Call.Input)
	} else if req.Call.Title != "" {
		fmt.Fprintf(f, "Action: %s\n", req.Call.Title)
	}
	for i, opt := range req.Options {
		fmt.Fprintf(f, "  [%d] %s\n", i+1, optionLabel(opt.Kind))
	}
	fmt.Fprintf(f, "Choose [1-%d] (anything else rejects): ", len(req.Options))

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		return PromptResponse{}, fmt.Errorf("%w: read choice: %v", ErrPromptUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return PromptResponse{Cancelled: true}, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(req.Options) {
		if reject := findByKind(req.Options, types.OptionRejectOnce); reject != nil {
			return PromptResponse{OptionID: reject.ID}, nil
		}
		return PromptResponse{Cancelled: true}, nil
	}
	return PromptResponse{OptionID: req.Options[n-1].ID}, nil
}

func optionLabel(k types.OptionKind) string {
	switch k {
	case types.OptionAllowOnce:
		return "Allow once"
	case types.OptionAllowAlways:
		return "Always allow"
	case types.OptionRejectOnce:
		return "Reject once"
	case types.OptionRejectAlways:
		return "Always reject"
	default:
		return string(k)
	}
}
