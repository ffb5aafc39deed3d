package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/manifest"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <package> [specifier]",
		Short: "Resolve a version specifier to a concrete version",
		Example: `  nodevfs resolve react
  nodevfs resolve react ^17
  nodevfs resolve @types/node@20`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, spec, err := resolveArgs(args)
			if err != nil {
				return err
			}

			eng, err := c.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			version, err := eng.resolver.Resolve(cmd.Context(), name, spec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// resolveArgs accepts either "name specifier" or a single "name@specifier".
func resolveArgs(args []string) (name, spec string, err error) {
	if len(args) == 2 {
		if err := errors.ValidatePackageName(args[0]); err != nil {
			return "", "", err
		}
		if err := errors.ValidateSpecifier(args[1]); err != nil {
			return "", "", err
		}
		return args[0], args[1], nil
	}
	return manifest.ParseSpec(args[0])
}
