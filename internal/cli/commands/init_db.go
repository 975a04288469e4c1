package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitDBOptions holds options for the init-db command.
type InitDBOptions struct {
	Schema string
}

// NewInitDBCommand creates the init-db command.
func NewInitDBCommand() *cobra.Command {
	opts := &InitDBOptions{}

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Initialize a database with the SQL schema derived from a JSON schema",
		Long: `Initialize a database, creating all tables and indexes.

The SQL schema is derived from the SysML v2 JSON schema given with --schema.
Initialization fails on a database that already contains the tables; schema
migrations are not supported.`,
		Example: `  # Initialize sysml.db from the SysML v2 API schema
  sysmlsql init-db --schema schemas.json

  # Initialize another database
  sysmlsql --database model.db init-db --schema schemas.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitDB(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "JSON schema file to derive the SQL schema from")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagFilename("schema", "json")

	return cmd
}

func runInitDB(cmd *cobra.Command, opts *InitDBOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	res, err := cmdCtx.inferSchema(opts.Schema)
	if err != nil {
		return err
	}

	store, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.InitSchema(ctx, res.DDL); err != nil {
		return err
	}

	cmdCtx.Renderer.Success(fmt.Sprintf("initialized %s", cmdCtx.Cfg.Database))
	return cmdCtx.Finish("init-db")
}
