package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/install"
	"github.com/matzehuels/nodevfs/pkg/manifest"
)

type installOpts struct {
	deps   []string
	output string
	outDir string
	tui    bool
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var opts installOpts

	cmd := &cobra.Command{
		Use:   "install [package.json]",
		Short: "Install dependencies into a virtual node_modules tree",
		Long: `Resolve the dependencies of a package.json (or --dep flags), download
their archives, and hoist them into a flattened node_modules mapping.

The mapping is printed as JSON to stdout unless -o or --out-dir is given.`,
		Example: `  nodevfs install
  nodevfs install app/package.json -o vfs.json
  nodevfs install --dep react@^18 --dep react-dom@^18 --out-dir ./out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := collectDeps(args, opts.deps)
			if err != nil {
				return err
			}
			return c.runInstall(cmd.Context(), deps, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.deps, "dep", nil, "dependency as name@specifier (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the JSON mapping to this file")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "materialize the mapping under this directory")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show an interactive progress view")

	return cmd
}

// collectDeps merges the manifest's dependencies with --dep flags; flags
// win on conflict. Without either, ./package.json is read.
func collectDeps(args, flags []string) (map[string]string, error) {
	deps := map[string]string{}

	path := ""
	if len(args) > 0 {
		path = args[0]
	} else if len(flags) == 0 {
		path = manifest.FileName
	}
	if path != "" {
		m, err := manifest.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for name, spec := range m.Dependencies {
			deps[name] = spec
		}
	}

	for _, arg := range flags {
		name, spec, err := manifest.ParseSpec(arg)
		if err != nil {
			return nil, err
		}
		deps[name] = spec
	}

	if len(deps) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no dependencies to install")
	}
	return deps, nil
}

func (c *CLI) runInstall(ctx context.Context, deps map[string]string, opts installOpts) error {
	eng, err := c.newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	prog := newProgress(loggerFromContext(ctx))
	res, err := c.installWithFeedback(ctx, eng.installer, deps, opts.tui)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Installed %d packages", res.Stats.Packages))

	switch {
	case opts.outDir != "":
		n, err := writeTree(opts.outDir, res.Files)
		if err != nil {
			return err
		}
		printSuccess("Wrote %d files", n)
		printFile(opts.outDir)
	case opts.output != "":
		if err := writeJSONFile(opts.output, res.Files); err != nil {
			return err
		}
		printSuccess("Wrote mapping")
		printFile(opts.output)
		printNextStep("Render the tree", "nodevfs graph -o deps.svg")
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Files)
	}

	printStats(res.Stats, eng.hooks.hits.Load(), eng.hooks.misses.Load())
	return nil
}

// installWithFeedback runs the installer behind a spinner or the TUI.
func (c *CLI) installWithFeedback(ctx context.Context, inst *install.Installer, deps map[string]string, tui bool) (*install.Result, error) {
	if tui {
		return runInstallTUI(ctx, inst, deps)
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Installing %d dependencies...", len(deps)))
	stop := inst.Progress().Subscribe(func(p install.Progress) {
		spinner.SetMessage(progressLine(p))
	})
	defer stop()

	spinner.Start()
	res, err := inst.Install(ctx, deps)
	if err != nil {
		spinner.StopWithError(errors.UserMessage(err))
		return nil, err
	}
	spinner.Stop()
	return res, nil
}

// progressLine renders a snapshot as one status line.
func progressLine(p install.Progress) string {
	switch p.Status {
	case install.StatusResolving:
		return fmt.Sprintf("Resolving %d dependencies...", p.TotalPackages)
	case install.StatusDownloading:
		return fmt.Sprintf("Downloading %s (%d/%d)", p.CurrentPackage, p.DownloadedPackages, p.TotalPackages)
	case install.StatusInstalling:
		return fmt.Sprintf("Hoisting %d packages...", p.DownloadedPackages)
	case install.StatusError:
		return "Failed: " + p.Error
	default:
		return string(p.Status)
	}
}
