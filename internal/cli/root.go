// Package cli provides the command-line interface for sysmlsql.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sysmlsql/internal/cli/commands"
	"github.com/leapstack-labs/sysmlsql/internal/cli/config"
	"github.com/leapstack-labs/sysmlsql/internal/cli/output"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// LevelTrace is the level enabled by -vv.
const LevelTrace = slog.LevelDebug - 4

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sysmlsql",
		Short: "sysmlsql - SysML v2 models in SQLite",
		Long: `sysmlsql stores SysML v2 models in a SQLite database.

It derives a relational schema from the SysML v2 JSON schema, imports JSON
element dumps into it and fetches models from a SysML v2 API server.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFormat)
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sysmlsql.yaml)")
	rootCmd.PersistentFlags().String("database", "", "SQLite database to operate on, created on demand (default: "+config.DefaultDatabase+")")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase verbosity (repeat for trace logging)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write run metrics in Prometheus textfile format to this path")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewInitDBCommand())
	rootCmd.AddCommand(commands.NewSchemaCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewFetchCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewLogger builds the process logger. verbose counts -v flags: none logs
// at info, one at debug, two or more at trace.
func NewLogger(w io.Writer, verbose int, format string) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose >= 2:
		level = LevelTrace
	case verbose == 1:
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	// Return default config if none in context
	return config.Default()
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sysmlsql.

To load completions:

Bash:
  $ source <(sysmlsql completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ sysmlsql completion bash > /etc/bash_completion.d/sysmlsql
  # macOS:
  $ sysmlsql completion bash > $(brew --prefix)/etc/bash_completion.d/sysmlsql

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sysmlsql completion zsh > "${fpath[1]}/_sysmlsql"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ sysmlsql completion fish | source

  # To load completions for each session, execute once:
  $ sysmlsql completion fish > ~/.config/fish/completions/sysmlsql.fish

PowerShell:
  PS> sysmlsql completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
