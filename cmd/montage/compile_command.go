package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/compiler"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir   string
		hardware bool
		asTable  bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "compile <design.json>",
		Short: "Print the engine command for a design without running it",
		Long: "Compile a design (or a submit envelope) into the ffmpeg argument list.\n" +
			"Sources and font URLs are used as-is, so point them at local files.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, err := readEnvelope(args[0])
			if err != nil {
				return err
			}
			if env.Design == nil {
				return fmt.Errorf("compile needs an inline design, not a template reference")
			}

			design := env.Options.Apply(*env.Design)
			sources, fonts := localInputs(design)
			built, err := compiler.Compile(compiler.Input{
				Design:        design,
				Sources:       sources,
				Fonts:         fonts,
				HardwareAccel: hardware,
				WorkDir:       outDir,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, built)
			}

			out := cmd.OutOrStdout()
			if asTable {
				rows := make([][]string, 0, len(built.Inputs))
				for _, in := range built.Inputs {
					rows = append(rows, []string{strconv.Itoa(in.Index), in.ItemID, string(in.Kind), in.Path})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Item", "Kind", "Path"}, rows, 0))
				fmt.Fprintf(out, "duration: %d ms\n\n", built.DurationMs)
			}
			fmt.Fprintln(out, shellJoin(append([]string{"ffmpeg"}, built.Args...)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory the output file is written to")
	cmd.Flags().BoolVar(&hardware, "hw", false, "Compile for the hardware encoder")
	cmd.Flags().BoolVar(&asTable, "table", false, "Also print the inputs as a table")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the compiled command as JSON")
	return cmd
}

// shellJoin quotes args for copy-pasting into a POSIX shell.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a != "" && !strings.ContainsAny(a, " \t\n'\"\\$`;&|<>()[]*?!#~=,:") {
			quoted[i] = a
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
