package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"montage/internal/capability"
	"montage/internal/pkg/logger"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report which encoder the renderer would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := capability.Detect(cmd.Context(), cfg.Render.FFmpegBinary, capability.Mode(cfg.Render.HWAccel), logger.Discard())
			if asJSON {
				return writeJSON(cmd, report)
			}

			encoder := "libx264"
			if report.HardwareEncode {
				encoder = "h264_nvenc"
			}
			rows := [][]string{
				{"binary", report.Binary},
				{"mode", string(report.Mode)},
				{"probed", strconv.FormatBool(report.Probed)},
				{"encoder", encoder},
			}
			if report.Error != "" {
				rows = append(rows, []string{"error", report.Error})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
