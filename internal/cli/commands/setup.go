package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sysmlsql/internal/cli/config"
	"github.com/leapstack-labs/sysmlsql/internal/cli/output"
	"github.com/leapstack-labs/sysmlsql/internal/importer"
	"github.com/leapstack-labs/sysmlsql/internal/metrics"
	"github.com/leapstack-labs/sysmlsql/internal/schema"
	"github.com/leapstack-labs/sysmlsql/internal/sqlite"
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/pkg/jsonschema"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Metrics  *metrics.Metrics

	start time.Time
}

// NewCommandContext creates a CommandContext from the loaded configuration
// and the logger stored in the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	mode := output.Mode(cfg.Output)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
		Metrics:  metrics.New(),
		start:    time.Now(),
	}
}

// getConfig returns the current configuration, or the defaults when the
// command runs outside of the root command.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// OpenStore opens the configured database, creating the file on demand.
func (c *CommandContext) OpenStore(ctx context.Context) (*sqlite.Store, error) {
	store := sqlite.NewStore(c.Logger)
	if err := store.Open(ctx, c.Cfg.Database); err != nil {
		return nil, err
	}
	return store, nil
}

// Tuning returns the bulk import parameters from the configuration.
func (c *CommandContext) Tuning() sqlite.Tuning {
	return sqlite.Tuning{
		PageSize:     c.Cfg.Tuning.PageSize,
		CacheSizeKiB: c.Cfg.Tuning.CacheSizeKiB,
		Synchronous:  c.Cfg.Tuning.Synchronous,
		Vacuum:       c.Cfg.Import.Vacuum,
		Logger:       c.Logger,
	}
}

// Finish records the run duration and writes the metrics textfile when one
// is configured.
func (c *CommandContext) Finish(command string) error {
	c.Metrics.ObserveRun(command, time.Since(c.start))
	if c.Cfg.MetricsFile == "" {
		return nil
	}
	c.Logger.Debug("writing metrics", "path", c.Cfg.MetricsFile)
	return c.Metrics.WriteTextfile(c.Cfg.MetricsFile)
}

// inferSchema parses a JSON-Schema file and derives the SQL schema from it.
func (c *CommandContext) inferSchema(path string) (*schema.Result, error) {
	root, err := jsonschema.ParseFile(path)
	if err != nil {
		return nil, err
	}
	res, err := schema.NewEngine(c.Logger).Infer(root)
	if err != nil {
		return nil, fmt.Errorf("failed to derive SQL schema from %s: %w", path, err)
	}
	if len(res.Problems) > 0 {
		c.Logger.Warn("some properties have no relational representation", "count", len(res.Problems))
	}
	return res, nil
}

// importSource runs an import against store, bracketed by the tuning hook.
func (c *CommandContext) importSource(ctx context.Context, store *sqlite.Store, src stream.Source) (*importer.Report, error) {
	tuning := c.Tuning()
	if err := sqlite.BeforeBulkImport(ctx, store.DB(), tuning); err != nil {
		return nil, err
	}

	im := importer.New(importer.Options{
		DisableForeignKeyChecks: c.Cfg.Import.DisableForeignKeyChecks,
		Logger:                  c.Logger,
	})
	report, err := im.Import(ctx, store.DB(), src)
	if err != nil {
		return nil, err
	}

	if err := sqlite.AfterBulkImport(ctx, store.DB(), tuning); err != nil {
		return nil, err
	}
	c.Metrics.ObserveImport(report.Elements, report.Relations, report.ExtendedProperties)
	return report, nil
}

// renderReport prints an import report in the configured output mode.
func (c *CommandContext) renderReport(report *importer.Report) error {
	r := c.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(report)
	case output.ModeMarkdown:
		r.Header(2, "Import summary")
	}
	report.WriteSummary(r.Writer())
	if !report.Clean() {
		r.Warning("the import produced diagnostics, see the summary above")
	}
	return nil
}
