package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "sysmlsql> "
	replContinuePrompt = "    ...> "
)

var queryFormats = []string{"table", "json", "csv", "md"}

// errQuitREPL is returned by .quit and .exit.
var errQuitREPL = errors.New("quit")

// replSession holds the state of one interactive query session. SQL
// accumulates across lines until a line ends with a semicolon.
type replSession struct {
	db     *sql.DB
	out    io.Writer
	errOut io.Writer
	format string
	stmt   strings.Builder
}

// dotCommand is a REPL command that starts with a dot.
type dotCommand struct {
	name  string
	usage string
	help  string
	nargs int
	run   func(ctx context.Context, s *replSession, args []string) error
}

func idCommand(name, help string, show func(context.Context, io.Writer, *sql.DB, string, string) error) dotCommand {
	return dotCommand{
		name:  name,
		usage: name + " <id>",
		help:  help,
		nargs: 1,
		run: func(ctx context.Context, s *replSession, args []string) error {
			return show(ctx, s.out, s.db, args[0], s.format)
		},
	}
}

func replCommands() []dotCommand {
	return []dotCommand{
		{name: ".help", help: "Show this help message", run: func(_ context.Context, s *replSession, _ []string) error {
			printREPLHelp(s.out)
			return nil
		}},
		{name: ".tables", help: "List all tables and views", run: func(ctx context.Context, s *replSession, _ []string) error {
			return listTablesFromDB(ctx, s.out, s.db, s.format)
		}},
		{name: ".schema", usage: ".schema <name>", help: "Show schema for a table or view", nargs: 1,
			run: func(ctx context.Context, s *replSession, args []string) error {
				return showSchemaFromDB(ctx, s.out, s.db, args[0], s.format)
			}},
		idCommand(".element", "Show an element with its relations", showElementFromDB),
		idCommand(".relations", "Show the relations on both ends of an element", showRelationsFromDB),
		idCommand(".ext", "Show the extended properties of an element", showExtendedFromDB),
		{name: ".format", usage: ".format [fmt]", help: "Show or set the output format (table, json, csv, md)",
			run: func(_ context.Context, s *replSession, args []string) error {
				if len(args) == 0 {
					_, _ = fmt.Fprintln(s.out, s.format)
					return nil
				}
				if !slices.Contains(queryFormats, args[0]) {
					return fmt.Errorf("unknown format %q", args[0])
				}
				s.format = args[0]
				return nil
			}},
		{name: ".clear", help: "Clear the screen", run: func(_ context.Context, s *replSession, _ []string) error {
			_, _ = fmt.Fprint(s.out, "\033[H\033[2J")
			return nil
		}},
		{name: ".quit", usage: ".quit / .exit", help: "Exit the REPL", run: quitREPL},
		{name: ".exit", run: quitREPL},
	}
}

func quitREPL(context.Context, *replSession, []string) error { return errQuitREPL }

func (s *replSession) dot(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	name := strings.ToLower(parts[0])

	i := slices.IndexFunc(replCommands(), func(c dotCommand) bool { return c.name == name })
	if i < 0 {
		return fmt.Errorf("unknown command: %s (type .help for commands)", name)
	}
	c := replCommands()[i]
	if len(parts)-1 < c.nargs {
		return fmt.Errorf("usage: %s", c.usage)
	}
	return c.run(ctx, s, parts[1:])
}

// feed handles one input line and returns the prompt for the next one.
func (s *replSession) feed(ctx context.Context, line string) (prompt string, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		if s.stmt.Len() > 0 {
			return replContinuePrompt, false
		}
		return replPrompt, false
	}

	if s.stmt.Len() == 0 && strings.HasPrefix(line, ".") {
		err := s.dot(ctx, line)
		if errors.Is(err, errQuitREPL) {
			return replPrompt, true
		}
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
		return replPrompt, false
	}

	s.stmt.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.stmt.WriteString(" ")
		return replContinuePrompt, false
	}

	query := strings.TrimSuffix(s.stmt.String(), ";")
	s.stmt.Reset()
	if err := executeAndRenderQuery(ctx, s.out, s.db, query, s.format); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(s.out)
	return replPrompt, false
}

func runQueryREPL(cmd *cobra.Command, store *sqlite.Store, format string) error {
	ctx := cmd.Context()
	database := getConfig().Database

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(database), ".sysmlsql_history"),
		AutoComplete:    newREPLCompleter(ctx, store.DB()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := &replSession{db: store.DB(), out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), format: format}

	_, _ = fmt.Fprintf(s.out, "sysmlsql query REPL (database: %s)\n", database)
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.stmt.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		prompt, quit := s.feed(ctx, line)
		if quit {
			return nil
		}
		rl.SetPrompt(prompt)
	}
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nCommands:")
	for _, c := range replCommands() {
		if c.help == "" {
			continue
		}
		usage := c.usage
		if usage == "" {
			usage = c.name
		}
		_, _ = fmt.Fprintf(w, "  %-18s %s\n", usage, c.help)
	}
	_, _ = fmt.Fprintln(w, `
Tips:
  - SQL statements must end with a semicolon (;)
  - Element ids are the "@id" values of the elements table
  - Tab completion works for table names and formats`)
}

// newREPLCompleter completes dot commands, table names and the arguments of
// .schema and .format.
func newREPLCompleter(ctx context.Context, db *sql.DB) *readline.PrefixCompleter {
	var tables []readline.PrefixCompleterInterface
	if rs, err := queryResultSet(ctx, db, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view')
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`); err == nil {
		for _, row := range rs.rows {
			tables = append(tables, readline.PcItem(formatValue(row[0])))
		}
	}

	formats := make([]readline.PrefixCompleterInterface, len(queryFormats))
	for i, f := range queryFormats {
		formats[i] = readline.PcItem(f)
	}

	items := slices.Clone(tables)
	for _, c := range replCommands() {
		switch c.name {
		case ".schema":
			items = append(items, readline.PcItem(c.name, tables...))
		case ".format":
			items = append(items, readline.PcItem(c.name, formats...))
		default:
			items = append(items, readline.PcItem(c.name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}
