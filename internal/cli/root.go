package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/embarcadero/internal/config"
	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/store"
)

// RootOptions holds global flags for all commands.
//
// The root command overlays the optional config file onto these values
// before any subcommand runs; flags given on the command line win.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DBDir      string
	Account    string

	LogLevel       slog.Level
	AutoSync       time.Duration
	ReplayInterval time.Duration

	// IDGenerator and Clock override record ids and timestamps (for testing).
	IDGenerator store.IDGenerator
	Clock       recording.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the embarcadero CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "embarcadero",
		Short: "Embarcadero - record where you have been",
		Long:  "Record location tracks into a local path database and browse them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, opts); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	defaults := config.Default()

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", defaults.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBDir, "db-dir", defaults.DBDir, "directory holding account databases")
	cmd.PersistentFlags().StringVar(&opts.Account, "account", defaults.Account, "account to use")

	// Add subcommands
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewRenameCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// applyConfig loads the config file, when one is given, into every option
// whose flag was not set explicitly.
func applyConfig(cmd *cobra.Command, opts *RootOptions) error {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if !flags.Changed("format") {
		opts.Format = cfg.Format
	}
	if !flags.Changed("db-dir") {
		opts.DBDir = cfg.DBDir
	}
	if !flags.Changed("account") {
		opts.Account = cfg.Account
	}
	opts.LogLevel = cfg.SlogLevel()
	opts.AutoSync = cfg.AutoSync
	opts.ReplayInterval = cfg.ReplayInterval
	return nil
}

// newLogger builds the command logger. Logs always go to w (stderr) so they
// never corrupt JSON output.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := o.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	format := o.Format
	if format == "" {
		format = "text"
	}
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
