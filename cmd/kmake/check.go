// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(a *app) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "check [project]",
		Short: "Run configuration checks only",
		Long: `Run the configuration checks declared by a workspace and print
the define each one contributes.

No hooks run, nothing is downloaded and the output directory is not
cleaned. Results are cached in .check.cache next to the workspace
unless --no-check-cache is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := a.buildContext(cmd, &flags, projectArg(args))
			if err != nil {
				return a.fail(err)
			}

			res, err := a.newPipeline().Checks(cmd.Context(), bc)
			if err != nil {
				return a.fail(err)
			}

			a.printWarnings(res.Warnings)
			if len(res.Checks) == 0 {
				fmt.Fprintln(a.stdout, SubtitleStyle.Render("No checks declared."))
				return nil
			}
			for _, o := range res.Checks {
				mark := SuccessStyle.Render("✓")
				if !o.Passed {
					mark = ErrorStyle.Render("✗")
				}
				line := fmt.Sprintf("%s %s=%t", mark, CmdStyle.Render(o.Name), o.Passed)
				if o.Cached {
					line += VerboseStyle.Render(" (cached)")
				}
				fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
