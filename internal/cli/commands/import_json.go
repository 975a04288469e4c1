package commands

import (
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/spf13/cobra"
)

// addImportFlags registers the flags shared by import-json and fetch. Their
// values reach the importer through the configuration.
func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("disable-foreign-key-checks", false, "Do not check foreign keys during import (imports incomplete dumps, use at your own risk)")
	cmd.Flags().Bool("vacuum", false, "Run VACUUM after the import")
}

// NewImportCommand creates the import-json command.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-json <file>",
		Short: "Import elements from a JSON file into the database",
		Long: `Import elements from a JSON array of SysML v2 elements.

The import is idempotent: importing the same file twice is equivalent to
importing it once. It is atomic: on any error the database remains unchanged.

Elements already in the database remain. An element present both in the
database and in the file is replaced by the file's version, including its
relations and extended properties.`,
		Example: `  sysmlsql import-json model.json
  sysmlsql --database model.db import-json model.json --vacuum`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0])
		},
	}
	addImportFlags(cmd)
	return cmd
}

func runImport(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	store, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := cmdCtx.importSource(ctx, store, stream.File(path))
	if err != nil {
		return err
	}
	if err := cmdCtx.renderReport(report); err != nil {
		return err
	}
	return cmdCtx.Finish("import-json")
}
