// Package account keeps the per-account state of linked accounts.
//
// Each linked account gets a UserState: a reference-counted handle on the
// account's datastore and the recording controller that uses it. The
// Manager is an explicit registry passed to whoever needs it.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/store"
)

var (
	// ErrNoAccount is returned by Main when no account is linked.
	ErrNoAccount = errors.New("account: no linked account")

	// ErrMultipleAccounts is returned by Main when more than one account is linked.
	ErrMultipleAccounts = errors.New("account: more than one linked account")

	// ErrNotLinked is returned by Unlink for an unknown account.
	ErrNotLinked = errors.New("account: not linked")

	// ErrInvalidID is returned for account ids that cannot name a database file.
	ErrInvalidID = errors.New("account: invalid account id")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("account: manager closed")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// UserState is the state of one linked account.
type UserState struct {
	AccountID  string
	Handle     *refcount.Handle[*store.Locked]
	Controller *recording.Controller
}

// Manager is the registry of linked accounts.
type Manager struct {
	dir  string
	opts options

	mu     sync.Mutex
	users  map[string]*UserState
	closed bool
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	ids      store.IDGenerator
	clock    recording.Clock
	ctx      context.Context
	autoSync time.Duration
	onFatal  func(error)
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDGenerator overrides record id generation for every account store.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithClock sets the recording clock.
func WithClock(c recording.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithContext sets the parent context of recording workers.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithAutoSync polls each open store for changes made by other processes.
// Zero disables polling.
func WithAutoSync(interval time.Duration) Option {
	return func(o *options) { o.autoSync = interval }
}

// WithFatalHandler sets the handler for fatal recording errors.
func WithFatalHandler(fn func(error)) Option {
	return func(o *options) { o.onFatal = fn }
}

// NewManager creates a registry that keeps account databases in dir.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	o := options{
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("account dir: %w", err)
	}
	return &Manager{dir: dir, opts: o, users: make(map[string]*UserState)}, nil
}

// DatabasePath returns the database file of accountID.
func (m *Manager) DatabasePath(accountID string) string {
	return filepath.Join(m.dir, accountID+".db")
}

// Link registers accountID and returns its state. Linking an account that
// is already linked returns the existing state.
func (m *Manager) Link(accountID string) (*UserState, error) {
	if !validID.MatchString(accountID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, accountID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if u, ok := m.users[accountID]; ok {
		return u, nil
	}

	logger := m.opts.logger.With("account", accountID)
	path := m.DatabasePath(accountID)
	handle := refcount.New(
		func() (*store.Locked, error) {
			var sopts []store.Option
			if m.opts.ids != nil {
				sopts = append(sopts, store.WithIDGenerator(m.opts.ids))
			}
			s, err := store.Open(path, sopts...)
			if err != nil {
				return nil, err
			}
			ds := store.NewLocked(s, logger)
			if m.opts.autoSync > 0 {
				ds.StartAutoSync(m.opts.autoSync)
			}
			logger.Debug("datastore opened", "path", path)
			return ds, nil
		},
		func(ds *store.Locked) {
			if err := ds.Close(); err != nil {
				logger.Error("datastore close failed", "error", err)
				return
			}
			logger.Debug("datastore closed")
		},
		refcount.WithLogger(logger),
	)

	copts := []recording.Option{
		recording.WithLogger(logger),
		recording.WithContext(m.opts.ctx),
	}
	if m.opts.clock != nil {
		copts = append(copts, recording.WithClock(m.opts.clock))
	}
	if m.opts.onFatal != nil {
		copts = append(copts, recording.WithFatalHandler(m.opts.onFatal))
	}

	u := &UserState{
		AccountID:  accountID,
		Handle:     handle,
		Controller: recording.NewController(handle, copts...),
	}
	m.users[accountID] = u
	logger.Info("account linked")
	return u, nil
}

// Unlink stops any recording of accountID, shuts its handle down, and
// forgets it. The database file is kept.
func (m *Manager) Unlink(accountID string) error {
	m.mu.Lock()
	u, ok := m.users[accountID]
	delete(m.users, accountID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLinked, accountID)
	}
	m.teardown(u)
	m.opts.logger.Info("account unlinked", "account", accountID)
	return nil
}

func (m *Manager) teardown(u *UserState) {
	if u.Controller.Recording() {
		_ = u.Controller.StopRecording()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.Controller.Wait(ctx); err != nil {
		m.opts.logger.Warn("recording ended with error", "account", u.AccountID, "error", err)
	}
	u.Handle.Shutdown()
}

// Main returns the only linked account.
func (m *Manager) Main() (*UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch len(m.users) {
	case 0:
		return nil, ErrNoAccount
	case 1:
		for _, u := range m.users {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %d linked", ErrMultipleAccounts, len(m.users))
}

// Get returns the state of a linked account.
func (m *Manager) Get(accountID string) (*UserState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[accountID]
	return u, ok
}

// Accounts returns the linked account ids in sorted order.
func (m *Manager) Accounts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close unlinks every account. Later calls to Link fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	users := m.users
	m.users = make(map[string]*UserState)
	m.mu.Unlock()

	for _, u := range users {
		m.teardown(u)
	}
	return nil
}
