package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"interact/internal/config"
	"interact/internal/logging"
	"interact/internal/queue"
)

// ErrAlreadyRunning is returned by Run when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another interact daemon instance is already running")

const shutdownTimeout = 5 * time.Second

// Daemon serves the web front end and reconciles the queue.
type Daemon struct {
	cfg     *config.Config
	store   queue.Store
	handler http.Handler
	logger  *slog.Logger

	lockPath string
	lock     *flock.Flock
	interval time.Duration

	mu   sync.Mutex
	addr string
}

// New constructs a daemon. handler serves every HTTP request.
func New(cfg *config.Config, store queue.Store, handler http.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || handler == nil {
		return nil, errors.New("daemon requires config, store, and handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Queue.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = time.Duration(config.Default().Queue.ReconcileInterval) * time.Second
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "interact.lock")
	return &Daemon{
		cfg:      cfg,
		store:    store,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		interval: interval,
	}, nil
}

// LockPath returns the instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Addr returns the address the HTTP server is listening on, or "" before
// Run has bound it.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run acquires the instance lock and serves until ctx is cancelled or either
// the server or the reconciler fails.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	bind := strings.TrimSpace(d.cfg.Server.Bind)
	if bind == "" {
		bind = config.Default().Server.Bind
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	d.mu.Lock()
	d.addr = listener.Addr().String()
	d.mu.Unlock()

	server := &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	d.logger.Info("interact daemon started",
		logging.Event("daemon_started"),
		logging.String("address", listener.Addr().String()),
		logging.String("lock", d.lockPath),
		logging.String("queue", d.store.Path()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return d.reconcileLoop(gctx)
	})

	err = g.Wait()
	d.mu.Lock()
	d.addr = ""
	d.mu.Unlock()
	d.logger.Info("interact daemon stopped", logging.Event("daemon_stopped"))
	return err
}

func (d *Daemon) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if _, err := d.Reconcile(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "queue reconcile failed", "reconcile_failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
