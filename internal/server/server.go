// Package server assembles the decision engine, confirmation exchange,
// guard, audit store, hot reload, and HTTP API into one runnable unit.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/toolgate/toolgate/internal/api"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/events"
	"github.com/toolgate/toolgate/internal/flow"
	"github.com/toolgate/toolgate/internal/guard"
	"github.com/toolgate/toolgate/internal/hotreload"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/store/sqlite"
	"github.com/toolgate/toolgate/pkg/types"
)

type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	provider *policy.Provider
	broker   *events.Broker
	store    *sqlite.Store
	exchange *flow.ExchangePrompter
	watcher  *hotreload.Watcher

	httpServer *http.Server
	httpLn     net.Listener
}

func New(cfg config.Config) (*Server, error) {
	logger := cfg.Logging.Logger(os.Stderr)

	permissions, err := cfg.LoadPermissions()
	if err != nil {
		return nil, err
	}
	provider := policy.NewProvider(permissions, nil)

	globalDir := cfg.Guard.GlobalConfigDir
	if globalDir == "" {
		globalDir = guard.DefaultGlobalConfigDir()
	}
	workDir := cfg.Guard.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve workdir: %w", err)
		}
	}
	g, err := guard.New(guard.Config{
		WorkDir:          workDir,
		LocalSettingsDir: cfg.Guard.LocalSettingsDir,
		GlobalConfigDir:  globalDir,
		ProtectedPaths:   cfg.Guard.ProtectedPaths,
	})
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()

	var st *sqlite.Store
	if cfg.Audit.Enabled {
		st, err = sqlite.Open(cfg.Audit.DBPath)
		if err != nil {
			return nil, err
		}
	}

	var prompter flow.Prompter
	var exchange *flow.ExchangePrompter
	if cfg.Approvals.Mode == "local_tty" {
		prompter = flow.NewTTYPrompter()
	} else {
		exchange = flow.NewExchangePrompter(cfg.Approvals.Timeout.Duration)
		prompter = exchange
	}

	controller := flow.New(provider, g, prompter, storeEmitter{store: st, broker: broker}, logger)

	var totpSecret string
	if cfg.Approvals.TOTP.Enabled {
		totpSecret, err = flow.LoadTOTPSecret(cfg.Approvals.TOTP.SecretFile)
		if err != nil {
			return nil, err
		}
	}

	apiKeys := cfg.Server.Auth.Keys
	if cfg.Server.Auth.KeysFile != "" {
		fileKeys, err := loadKeysFile(cfg.Server.Auth.KeysFile)
		if err != nil {
			return nil, err
		}
		apiKeys = append(apiKeys, fileKeys...)
	}

	app := api.NewApp(api.AppConfig{
		Config:     cfg,
		Provider:   provider,
		Guard:      g,
		Controller: controller,
		Exchange:   exchange,
		Broker:     broker,
		Store:      st,
		TOTPSecret: totpSecret,
		Logger:     logger,
		APIKeys:    apiKeys,
	})

	var watcher *hotreload.Watcher
	if cfg.PermissionsFile != "" {
		watcher, err = hotreload.New(hotreload.Config{
			Path:    cfg.PermissionsFile,
			Applier: ruleApplier{provider: provider},
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	httpServer := &http.Server{
		Handler:      app.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		provider:   provider,
		broker:     broker,
		store:      st,
		exchange:   exchange,
		watcher:    watcher,
		httpServer: httpServer,
		httpLn:     ln,
	}, nil
}

// Addr returns the bound listen address, useful when the configured
// port is 0.
func (s *Server) Addr() string {
	return s.httpLn.Addr().String()
}

func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return err
		}
	}

	if s.store != nil && s.cfg.Audit.RetentionDays > 0 {
		go s.pruneLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("server listening", "addr", s.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	retention := time.Duration(s.cfg.Audit.RetentionDays) * 24 * time.Hour
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.PruneBefore(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				s.logger.Warn("audit prune failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("audit pruned", "rows", n)
			}
		}
	}
}

func (s *Server) Close() error {
	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// storeEmitter fans controller events into the audit store and the
// broker. The store may be nil when auditing is disabled.
type storeEmitter struct {
	store  *sqlite.Store
	broker *events.Broker
}

func (e storeEmitter) AppendEvent(ctx context.Context, ev types.Event) error {
	if e.store == nil {
		return nil
	}
	return e.store.AppendEvent(ctx, ev)
}

func (e storeEmitter) Publish(ev types.Event) { e.broker.Publish(ev) }

// ruleApplier feeds reloaded rule files into the provider.
type ruleApplier struct {
	provider *policy.Provider
}

func (a ruleApplier) ApplyRules(path string) error {
	pc, err := config.LoadPermissionsFile(path)
	if err != nil {
		return err
	}
	a.provider.Reload(pc)
	return nil
}

// loadKeysFile reads one API key per line, skipping blanks and
// #-comments.
func loadKeysFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keys file: %w", err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}
	return keys, nil
}
