package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/sysmlsql/internal/cli/output"
	"github.com/leapstack-labs/sysmlsql/internal/fetch"
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/spf13/cobra"
)

// FetchOptions holds options for the fetch command.
type FetchOptions struct {
	Project  fetch.ProjectSelector
	Commit   fetch.CommitSelector
	DumpJSON string
	Pretty   bool
	NoImport bool
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch [base-url]",
		Short: "Fetch a model from a SysML v2 API server",
		Long: `Fetch all elements of a commit from a SysML v2 API server.

The base URL must not end in a slash; it falls back to api.base_url from the
configuration. The project is selected by id or by a prefix of its name. The
commit is selected by id, by the head of a branch given by id or name prefix,
or defaults to the head of the project's default branch.

HTTP basic auth is supported through the SYSML_USERNAME and SYSML_PASSWORD
environment variables (or api.username and api.password).

The fetched elements are imported into the database unless --no-import is
given. With --dump-json they are also written to a JSON file; an existing file
is merged with the fetched elements.`,
		Example: `  # Import the default branch of a project
  sysmlsql fetch https://sysml.example.com --project-name "Drone"

  # Dump a specific branch without importing it
  sysmlsql fetch https://sysml.example.com --project-id 4f1c... --branch-name main \
    --dump-json drone.json --pretty --no-import`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Project.ID, "project-id", "", "Select the project with this id")
	cmd.Flags().StringVar(&opts.Project.Name, "project-name", "", "Select the project whose name starts with this")
	cmd.Flags().StringVar(&opts.Commit.CommitID, "commit-id", "", "Select the commit with this id")
	cmd.Flags().StringVar(&opts.Commit.BranchID, "branch-id", "", "Select the latest commit of the branch with this id")
	cmd.Flags().StringVar(&opts.Commit.BranchName, "branch-name", "", "Select the latest commit of the branch whose name starts with this")
	cmd.MarkFlagsMutuallyExclusive("project-id", "project-name")
	cmd.MarkFlagsOneRequired("project-id", "project-name")
	cmd.MarkFlagsMutuallyExclusive("commit-id", "branch-id", "branch-name")

	cmd.Flags().StringVar(&opts.DumpJSON, "dump-json", "", "Write the fetched elements to this JSON file")
	cmd.Flags().BoolVarP(&opts.Pretty, "pretty", "y", false, "Prettify the JSON dump")
	cmd.Flags().BoolVar(&opts.NoImport, "no-import", false, "Do not import the fetched elements into the database")
	cmd.Flags().IntP("page-size", "p", 0, "Page size to request from the server")
	cmd.Flags().Bool("allow-invalid-certs", false, "Allow HTTPS servers without a valid certificate")
	cmd.Flags().Int("channel-capacity", 0, "Number of pages fetched ahead of decoding")
	addImportFlags(cmd)

	return cmd
}

func runFetch(cmd *cobra.Command, args []string, opts *FetchOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	baseURL := cfg.API.BaseURL
	if len(args) > 0 {
		baseURL = args[0]
	}
	if baseURL == "" {
		return errors.New("no base URL given (pass it as argument or set api.base_url)")
	}
	if opts.NoImport && opts.DumpJSON == "" {
		return errors.New("--no-import without --dump-json would discard the fetched elements")
	}
	if opts.Pretty && opts.DumpJSON == "" {
		cmdCtx.Logger.Warn("the --pretty flag has no effect without --dump-json")
	}

	client, err := fetch.NewClient(fetch.ClientOptions{
		BaseURL:           baseURL,
		Username:          cfg.API.Username,
		Password:          cfg.API.Password,
		AllowInvalidCerts: cfg.API.AllowInvalidCerts,
		Logger:            cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	projectID, commitID, err := client.Resolve(ctx, opts.Project, opts.Commit)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Info("resolved commit", "project", projectID, "commit", commitID)

	res, err := client.FetchAll(ctx, fetch.ElementsPath(projectID, commitID, cfg.API.PageSize), fetch.PipelineOptions{
		ChannelCapacity: cfg.Fetch.ChannelCapacity,
		PollInterval:    cfg.Fetch.PollInterval,
		ReportInterval:  cfg.Fetch.ReportInterval,
	})
	if err != nil {
		return err
	}
	cmdCtx.Metrics.ObserveFetch(res.Pages, len(res.Elements))

	if opts.DumpJSON != "" {
		merged, err := fetch.MergeWithDump(opts.DumpJSON, res.Elements)
		if err != nil {
			return err
		}
		cmdCtx.Logger.Info("writing the fetched data", "path", opts.DumpJSON, "elements", len(merged))
		if err := fetch.WriteDump(opts.DumpJSON, merged, opts.Pretty); err != nil {
			return err
		}
	}

	if opts.NoImport {
		if r.EffectiveMode() == output.ModeJSON {
			if err := r.JSON(map[string]any{
				"project":  projectID,
				"commit":   commitID,
				"elements": len(res.Elements),
				"pages":    res.Pages,
			}); err != nil {
				return err
			}
		} else {
			r.Success(fmt.Sprintf("fetched %d elements in %d pages", len(res.Elements), res.Pages))
		}
		return cmdCtx.Finish("fetch")
	}

	store, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := cmdCtx.importSource(ctx, store, stream.Slice(res.Elements))
	if err != nil {
		return err
	}
	if err := cmdCtx.renderReport(report); err != nil {
		return err
	}
	return cmdCtx.Finish("fetch")
}
