// Package workspace manages per-job scratch directories. Every export job
// owns exactly one Session: an isolated directory under a shared root that
// is created on acceptance and removed on completion, failure, reaping, or
// process shutdown.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Static errors for workspace operations.
var (
	// ErrRootUnavailable is returned when the shared root directory cannot be created.
	ErrRootUnavailable = errors.New("workspace: root directory unavailable")
	// ErrSessionCreate is returned when a session directory cannot be allocated.
	ErrSessionCreate = errors.New("workspace: cannot create session directory")
)

// State describes where a session is in its lifecycle.
type State string

const (
	// StateCreated indicates the session directory exists but no pipeline has run.
	StateCreated State = "CREATED"
	// StateActive indicates a pipeline is materializing or encoding frames.
	StateActive State = "ACTIVE"
	// StateCompleted indicates the pipeline finished and the result is being served.
	StateCompleted State = "COMPLETED"
	// StateFailed indicates the pipeline aborted.
	StateFailed State = "FAILED"
)

// Session is one job's isolated scratch area. It is never shared across
// requests and its ID is never reused, even after destruction.
type Session struct {
	// ID is the opaque process-unique session token.
	ID string
	// Dir is the absolute path of the session directory.
	Dir string
	// CreatedAt records when the session was allocated.
	CreatedAt time.Time

	root *Root

	mu    sync.Mutex
	state State
	gone  bool
}

// Path returns the absolute path for a named resource inside the session.
func (s *Session) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState records a lifecycle transition.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Destroy removes the session directory recursively and deregisters the
// session. It is idempotent: a second call, or a call racing the reaper,
// is a no-op.
func (s *Session) Destroy() error {
	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return nil
	}
	s.gone = true
	s.mu.Unlock()

	s.root.forget(s.ID)

	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("workspace: remove session %s: %w", s.ID, err)
	}
	return nil
}

// Root owns the shared scratch root directory and the registry of live
// sessions. It is injected where needed, never a package-level singleton.
type Root struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRoot ensures the root directory exists and returns a Root managing it.
// If dir is empty, a subdirectory of os.TempDir() is used.
func NewRoot(dir string, logger *slog.Logger) (*Root, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "frame-export")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootUnavailable, err)
	}

	return &Root{
		dir:      dir,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Dir returns the shared root directory path.
func (r *Root) Dir() string {
	return r.dir
}

// Create allocates a new session with a fresh UUID and its own directory.
func (r *Root) Create(ctx context.Context) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("workspace: context cancelled: %w", ctx.Err())
	default:
	}

	id := uuid.NewString()
	dir := filepath.Join(r.dir, id)
	if err := os.Mkdir(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	sess := &Session{
		ID:        id,
		Dir:       dir,
		CreatedAt: time.Now(),
		root:      r,
		state:     StateCreated,
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	return sess, nil
}

// Live returns the number of registered sessions.
func (r *Root) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap destroys every session older than maxAge. It is the safety net for
// pipelines that hang or clients that disconnect mid-response; cleanup
// continues past individual failures and the first error is returned.
func (r *Root) Reap(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	r.mu.Unlock()

	var firstErr error
	for _, s := range stale {
		r.logger.Warn("reaping stale session",
			slog.String("session_id", s.ID),
			slog.Time("created_at", s.CreatedAt),
		)
		if err := s.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RunReaper sweeps stale sessions every interval until ctx is cancelled.
func (r *Root) RunReaper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reap(maxAge); err != nil {
				r.logger.Error("session reap failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Shutdown destroys all outstanding sessions. Called on process shutdown so
// no workspace survives a restart. Best-effort: errors are logged by the
// caller, removal continues past failures.
func (r *Root) Shutdown() error {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	var firstErr error
	for _, s := range live {
		if err := s.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// forget removes a session from the registry.
func (r *Root) forget(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
