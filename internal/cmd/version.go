package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/config"
)

var (
	versionExtended bool
	versionJSON     bool
)

type versionReport struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Go and library versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		report := buildVersionReport(versionExtended)
		out := cmd.OutOrStdout()

		if versionJSON {
			payload, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(payload))
			return err
		}

		_, _ = fmt.Fprintf(out, "%s %s\n", report.Name, report.Version)
		if !versionExtended {
			return nil
		}
		_, _ = fmt.Fprintf(out, "Commit: %s\n", report.Commit)
		_, _ = fmt.Fprintf(out, "Built: %s\n", report.BuildDate)
		_, _ = fmt.Fprintf(out, "Go: %s\n\n", report.Go)
		_, _ = fmt.Fprintf(out, "Gofulmen: %s\n", report.Gofulmen)
		_, _ = fmt.Fprintf(out, "Crucible: %s\n", report.Crucible)
		return nil
	},
}

func buildVersionReport(extended bool) versionReport {
	report := versionReport{Name: config.AppName, Version: versionInfo.Version}
	if report.Version == "" {
		report.Version = "dev"
	}
	if !extended {
		return report
	}

	report.Commit = versionInfo.Commit
	report.BuildDate = versionInfo.BuildDate
	report.Go = runtime.Version()
	libs := crucible.GetVersion()
	report.Gofulmen = libs.Gofulmen
	report.Crucible = libs.Crucible
	return report
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionExtended, "extended", "e", false, "show extended version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version information as JSON")
}
