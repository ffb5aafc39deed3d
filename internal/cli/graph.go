package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/render"
)

type graphOpts struct {
	deps      []string
	format    string
	output    string
	detailed  bool
	hideLinks bool
}

// graphCommand creates the graph command, which installs dependencies and
// draws the resolved tree.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph [package.json]",
		Short: "Draw the resolved dependency tree",
		Long: `Resolve and download dependencies like install, then render the
resulting tree as Graphviz DOT or SVG. Dashed edges point at packages that
were fetched elsewhere in the tree.`,
		Example: `  nodevfs graph -o deps.svg
  nodevfs graph --dep express@^4 --format dot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := graphFormat(opts.format, opts.output)
			if err != nil {
				return err
			}
			deps, err := collectDeps(args, opts.deps)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, err := c.newEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := c.installWithFeedback(ctx, eng.installer, deps, false)
			if err != nil {
				return err
			}

			dot := render.ToDOT(res.Roots, render.Options{Detailed: opts.detailed, HideLinks: opts.hideLinks})
			data := []byte(dot)
			if format == "svg" {
				if data, err = render.RenderSVG(ctx, dot); err != nil {
					return err
				}
			}

			if opts.output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			printSuccess("Rendered %d packages", res.Stats.Packages)
			printFile(opts.output)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.deps, "dep", nil, "dependency as name@specifier (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: dot or svg (default from -o extension, else dot)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include file and dependency counts in labels")
	cmd.Flags().BoolVar(&opts.hideLinks, "hide-links", false, "omit edges to packages fetched elsewhere")

	return cmd
}

// graphFormat picks the output format from the flag or the file extension.
func graphFormat(format, output string) (string, error) {
	if format == "" {
		if strings.HasSuffix(strings.ToLower(output), ".svg") {
			return "svg", nil
		}
		return "dot", nil
	}
	switch format {
	case "dot", "svg":
		return format, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot or svg)", format)
}
