package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/sysmlsql/internal/cli/output"
	"github.com/leapstack-labs/sysmlsql/internal/schema"
	"github.com/spf13/cobra"
)

// SchemaOptions holds options for the json-schema-to-sql-schema command.
type SchemaOptions struct {
	DumpSQL string
	NoInit  bool
}

// NewSchemaCommand creates the json-schema-to-sql-schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:     "json-schema-to-sql-schema <file>",
		Aliases: []string{"schema"},
		Short:   "Derive a SQL schema from a JSON schema",
		Long: `Parse a JSON schema and generate a suitable SQL schema from it.

This does not work with arbitrary JSON schemata; it is meant for the schema
published by the OMG SysML v2 effort, for example:

  https://raw.githubusercontent.com/Systems-Modeling/SysML-v2-API-Services/refs/heads/master/conf/json/schema/api/schemas.json

Properties without a relational representation are listed and left out.`,
		Example: `  # Derive the schema and initialize the database with it
  sysmlsql json-schema-to-sql-schema schemas.json

  # Only write the DDL to a file
  sysmlsql schema schemas.json --dump-sql schema.sql --no-init

  # Print the DDL
  sysmlsql schema schemas.json --dump-sql - --no-init`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.DumpSQL, "dump-sql", "", "Write the derived SQL schema to this file (- for stdout)")
	cmd.Flags().BoolVar(&opts.NoInit, "no-init", false, "Do not run the derived SQL schema against the database")

	return cmd
}

func runSchema(cmd *cobra.Command, path string, opts *SchemaOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	res, err := cmdCtx.inferSchema(path)
	if err != nil {
		return err
	}

	switch opts.DumpSQL {
	case "":
	case "-":
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatCodeBlock("sql", res.DDL))
		} else {
			r.Println(strings.TrimRight(res.DDL, "\n"))
		}
	default:
		if err := os.WriteFile(opts.DumpSQL, []byte(res.DDL), 0o644); err != nil { //nolint:gosec // the schema is not secret
			return fmt.Errorf("failed to write SQL schema: %w", err)
		}
		cmdCtx.Logger.Info("wrote SQL schema", "path", opts.DumpSQL)
	}

	if !opts.NoInit {
		store, err := cmdCtx.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.InitSchema(ctx, res.DDL); err != nil {
			return err
		}
	}

	if opts.DumpSQL != "-" {
		if err := renderProblems(r, res.Problems); err != nil {
			return err
		}
	}
	return cmdCtx.Finish("json-schema-to-sql-schema")
}

func renderProblems(r *output.Renderer, problems []schema.Problem) error {
	if r.EffectiveMode() == output.ModeJSON {
		names := make([]string, len(problems))
		for i, p := range problems {
			names[i] = p.String()
		}
		return r.JSON(map[string]any{"problems": names})
	}
	if len(problems) == 0 {
		r.Success("every property has a relational representation")
		return nil
	}
	r.Header(2, fmt.Sprintf("Properties without representation (%d)", len(problems)))
	for _, p := range problems {
		r.Println("- " + p.String())
	}
	return nil
}
