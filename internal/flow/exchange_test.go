package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

func promptReq(callID string) PromptRequest {
	return PromptRequest{
		Call:    types.ToolCall{ID: callID, ToolName: "terminal", Input: "make"},
		Options: DefaultOptions(),
	}
}

func TestExchangeResolve(t *testing.T) {
	p := NewExchangePrompter(time.Minute)
	req := promptReq("c1")

	done := make(chan PromptResponse, 1)
	go func() {
		resp, err := p.Prompt(context.Background(), req)
		require.NoError(t, err)
		done <- resp
	}()

	require.Eventually(t, func() bool { return len(p.ListPending()) == 1 }, time.Second, 5*time.Millisecond)

	got, ok := p.Get("c1")
	require.True(t, ok)
	require.Equal(t, "c1", got.Call.ID)
	require.False(t, got.ExpiresAt.IsZero())

	require.True(t, p.Resolve("c1", req.Options[0].ID))
	resp := <-done
	require.Equal(t, req.Options[0].ID, resp.OptionID)

	// Resolved exchanges are gone.
	require.Empty(t, p.ListPending())
	require.False(t, p.Resolve("c1", req.Options[0].ID))
}

func TestExchangeCancel(t *testing.T) {
	p := NewExchangePrompter(time.Minute)

	done := make(chan PromptResponse, 1)
	go func() {
		resp, err := p.Prompt(context.Background(), promptReq("c2"))
		require.NoError(t, err)
		done <- resp
	}()

	require.Eventually(t, func() bool { return len(p.ListPending()) == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, p.Cancel("c2"))
	resp := <-done
	require.True(t, resp.Cancelled)
}

func TestExchangeContextCancellationDiscardsLateResponse(t *testing.T) {
	p := NewExchangePrompter(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Prompt(ctx, promptReq("c3"))
		errCh <- err
	}()

	require.Eventually(t, func() bool { return len(p.ListPending()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	// The exchange is gone; a late answer has nowhere to land.
	require.Eventually(t, func() bool { return !p.Resolve("c3", "whatever") }, time.Second, 5*time.Millisecond)
}

func TestExchangeTimeout(t *testing.T) {
	p := NewExchangePrompter(20 * time.Millisecond)
	_, err := p.Prompt(context.Background(), promptReq("c4"))
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	require.Empty(t, p.ListPending())
}

func TestResolveUnknownExchange(t *testing.T) {
	p := NewExchangePrompter(time.Minute)
	require.False(t, p.Resolve("ghost", "opt"))
	require.False(t, p.Cancel("ghost"))
}
