package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/sysmlsql/internal/cli/output"
	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the model database",
		Long: `Query the model database directly.

Execute SQL against the elements, relations and extended_properties tables.
The database is opened read-only. Supports multiple output formats for
scripting and integration.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  sysmlsql query 'SELECT "@id", name FROM elements LIMIT 10'

  # List available tables
  sysmlsql query tables

  # Show schema for a table
  sysmlsql query schema relations

  # Show one element with its relations
  sysmlsql query element 5e3a...

  # Output as JSON
  sysmlsql query 'SELECT count(*) FROM relations' --format json

  # Interactive mode
  sysmlsql query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	// Flags
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default: derived from --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	// Subcommands
	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))
	cmd.AddCommand(newQueryElementCommand(opts))

	return cmd
}

// resolveFormat picks the result format: the --format flag when given,
// otherwise the one matching the output mode.
func resolveFormat(cmdCtx *CommandContext, format string) string {
	if format != "" {
		return format
	}
	switch cmdCtx.Renderer.EffectiveMode() {
	case output.ModeJSON:
		return "json"
	case output.ModeMarkdown:
		return "md"
	default:
		return "table"
	}
}

// openReadOnly opens the configured database without write access.
func openReadOnly(ctx context.Context, cmdCtx *CommandContext) (*sqlite.Store, error) {
	path := cmdCtx.Cfg.Database
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found at %s (run 'sysmlsql init-db' first)", path)
	}
	store := sqlite.NewStore(cmdCtx.Logger)
	if err := store.OpenReadOnly(ctx, path); err != nil {
		return nil, err
	}
	return store, nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	format := resolveFormat(cmdCtx, opts.Format)

	// Determine SQL source
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		store, err := openReadOnly(ctx, cmdCtx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return runQueryREPL(cmd, store, format)
	}

	store, err := openReadOnly(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return executeAndRenderQuery(ctx, cmd.OutOrStdout(), store.DB(), sqlQuery, format)
}

// executeAndRenderQuery reads the whole result of query before rendering it.
func executeAndRenderQuery(ctx context.Context, w io.Writer, db *sql.DB, query, format string) error {
	rs, err := queryResultSet(ctx, db, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return writeResults(w, rs, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List all tables and views in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := openReadOnly(cmd.Context(), cmdCtx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return listTablesFromDB(cmd.Context(), cmd.OutOrStdout(), store.DB(), resolveFormat(cmdCtx, opts.Format))
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show schema for a table or view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := openReadOnly(cmd.Context(), cmdCtx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return showSchemaFromDB(cmd.Context(), cmd.OutOrStdout(), store.DB(), args[0], resolveFormat(cmdCtx, opts.Format))
		},
	}
}

// newQueryElementCommand creates the element subcommand.
func newQueryElementCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "element <id>",
		Short: "Show an element with its relations and extended properties",
		Example: `  sysmlsql query element 5e3a6c1e-0d7b-4c89-9b5c-2f0b4b1e7a10
  sysmlsql query element 5e3a6c1e-0d7b-4c89-9b5c-2f0b4b1e7a10 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := openReadOnly(cmd.Context(), cmdCtx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return showElementFromDB(cmd.Context(), cmd.OutOrStdout(), store.DB(), args[0], resolveFormat(cmdCtx, opts.Format))
		},
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
