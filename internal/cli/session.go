package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/embarcadero/internal/account"
	"github.com/roach88/embarcadero/internal/store"
)

// session is the account a command works on.
type session struct {
	manager *account.Manager
	user    *account.UserState
	logger  *slog.Logger
}

// openSession links the configured account. Callers must Close the session.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, extra ...account.Option) (*session, error) {
	if opts.DBDir == "" {
		return nil, NewExitError(ExitCommandError, "no database directory: set --db-dir or db_dir")
	}
	accountID := opts.Account
	if accountID == "" {
		accountID = "default"
	}

	logger := opts.newLogger(cmd.ErrOrStderr())
	mopts := []account.Option{
		account.WithLogger(logger),
		account.WithContext(ctx),
		account.WithAutoSync(opts.AutoSync),
	}
	if opts.IDGenerator != nil {
		mopts = append(mopts, account.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Clock != nil {
		mopts = append(mopts, account.WithClock(opts.Clock))
	}
	mopts = append(mopts, extra...)

	m, err := account.NewManager(opts.DBDir, mopts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database directory", err)
	}
	u, err := m.Link(accountID)
	if err != nil {
		m.Close()
		return nil, WrapExitError(ExitCommandError, "failed to link account", err)
	}
	logger.Debug("session opened", "dir", opts.DBDir, "account", accountID)
	return &session{manager: m, user: u, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.manager.Close(); err != nil {
		s.logger.Error("error closing session", "error", err)
	}
}

// pathError maps a path operation failure to an exit error.
func pathError(message string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitFailure, "path not found", err)
	}
	return WrapExitError(ExitCommandError, message, err)
}
