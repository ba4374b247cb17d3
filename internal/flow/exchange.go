package flow

import (
	"context"
	"sync"
	"time"
)

// ExchangePrompter suspends each prompt as a pending exchange that an
// out-of-band actor (HTTP API, CLI) resolves by option ID. Many
// exchanges may be suspended concurrently; each holds one buffered
// channel so a late resolution after cancellation is discarded instead
// of being applied to a call that no longer exists.
type ExchangePrompter struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingExchange
}

type pendingExchange struct {
	req PromptRequest
	ch  chan PromptResponse
}

// NewExchangePrompter builds the prompter. timeout <= 0 means 5 minutes.
func NewExchangePrompter(timeout time.Duration) *ExchangePrompter {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ExchangePrompter{timeout: timeout, pending: make(map[string]*pendingExchange)}
}

// Prompt registers the exchange and blocks until it is resolved, the
// context is cancelled, or the exchange times out.
func (p *ExchangePrompter) Prompt(ctx context.Context, req PromptRequest) (PromptResponse, error) {
	req.ExpiresAt = time.Now().UTC().Add(p.timeout)
	pe := &pendingExchange{req: req, ch: make(chan PromptResponse, 1)}

	p.mu.Lock()
	p.pending[req.Call.ID] = pe
	p.mu.Unlock()
	defer p.remove(req.Call.ID)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case resp := <-pe.ch:
		return resp, nil
	case <-ctx.Done():
		return PromptResponse{Cancelled: true}, ctx.Err()
	case <-timer.C:
		return PromptResponse{}, ErrConfirmationTimeout
	}
}

// ListPending returns the exchanges still awaiting a response.
func (p *ExchangePrompter) ListPending() []PromptRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PromptRequest, 0, len(p.pending))
	now := time.Now().UTC()
	for _, pe := range p.pending {
		if pe.req.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, pe.req)
	}
	return out
}

// Get returns a pending exchange by call ID.
func (p *ExchangePrompter) Get(callID string) (PromptRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pe, ok := p.pending[callID]
	if !ok {
		return PromptRequest{}, false
	}
	return pe.req, true
}

// Resolve feeds a suspended exchange the selected option ID. It reports
// whether a pending exchange with that call ID existed.
func (p *ExchangePrompter) Resolve(callID, optionID string) bool {
	return p.deliver(callID, PromptResponse{OptionID: optionID})
}

// Cancel resolves a suspended exchange with a cancellation signal.
func (p *ExchangePrompter) Cancel(callID string) bool {
	return p.deliver(callID, PromptResponse{Cancelled: true})
}

func (p *ExchangePrompter) deliver(callID string, resp PromptResponse) bool {
	p.mu.Lock()
	pe, ok := p.pending[callID]
	if ok {
		delete(p.pending, callID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case pe.ch <- resp:
	default:
	}
	return true
}

func (p *ExchangePrompter) remove(callID string) {
	p.mu.Lock()
	delete(p.pending, callID)
	p.mu.Unlock()
}
