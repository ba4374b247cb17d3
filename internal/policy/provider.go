package policy

import (
	"sync/atomic"

	"github.com/toolgate/toolgate/internal/safety"
)

// Provider hands out the current engine snapshot. A reload swaps the
// pointer atomically; in-flight decisions keep the snapshot they
// started with, so two concurrent decisions never observe a torn
// configuration.
type Provider struct {
	checker *safety.Checker
	engine  atomic.Pointer[Engine]
}

// NewProvider builds a provider with an initial configuration. The
// checker is shared across reloads; pass nil for the builtin rules.
func NewProvider(cfg PermissionConfig, checker *safety.Checker) *Provider {
	if checker == nil {
		checker = safety.DefaultChecker()
	}
	p := &Provider{checker: checker}
	p.engine.Store(NewEngine(cfg, checker))
	return p
}

// Snapshot returns the current immutable engine.
func (p *Provider) Snapshot() *Engine {
	return p.engine.Load()
}

// Reload compiles cfg into a fresh snapshot and swaps it in.
func (p *Provider) Reload(cfg PermissionConfig) {
	p.engine.Store(NewEngine(cfg, p.checker))
}
