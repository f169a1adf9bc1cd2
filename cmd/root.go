package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/chroma/internal/config"
	"github.com/andresmejia3/chroma/internal/store"
	"github.com/spf13/cobra"
)

// Options holds the configuration of the scan command
type Options struct {
	Device      string
	InputFormat string
	Width       int
	Height      int
	FPS         int
	Timeout     string
	GuardDelay  string
	BoxSize     int
	LookupPath  string
	PreviewPath string
	Speak       bool
	SpeakCmd    string
	Parallel    bool
	Repeat      bool
}

var (
	// DB is the database connection shared by subcommands. It is nil when no
	// database is configured.
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// cfg carries environment defaults for flags
	cfg = config.Load()
)

// Version is the application version.
const Version = "0.1.0"

var errNoDatabase = errors.New("no database configured (use --db or POSTGRES_HOST)")

var rootCmd = &cobra.Command{
	Use:     "chroma",
	Short:   "Tri-channel color QR scanner",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dbURL == "" {
			dbURL = cfg.DSN()
		}
		if dbURL == "" {
			return nil
		}

		var err error
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// The main context may already be cancelled by Ctrl+C.
			DB.Close(context.Background())
		}
	},
}

// requireDB fails commands that only make sense with a database.
func requireDB() error {
	if DB == nil {
		return errNoDatabase
	}
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: built from POSTGRES_* when POSTGRES_HOST is set)")
}
