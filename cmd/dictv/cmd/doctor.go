package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmtftr/dictv/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements for running dictv",
		Long: `Doctor runs a handful of host checks before a rebuild or serve: disk
space under the data root, available memory, write permissions, and the
open-file-descriptor limit bleve's index segments need. A passed check
writes a timestamp file under the data root, and a later doctor run
reports how long ago that was. The checks run on every doctor invocation;
import and rebuild neither run them nor read the timestamp file.`,
		Example: `  dictv doctor
  dictv doctor --verbose
  dictv doctor --json`,
		RunE: func(c *cobra.Command, _ []string) error {
			mgr, err := openManager(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(c.OutOrStdout()),
			)
			results := checker.RunAll(c.Context(), mgr.DataRoot())

			if jsonOutput {
				return outputDoctorJSON(c, checker, results)
			}
			checker.PrintResults(results)

			if !preflight.NeedsCheck(mgr.DataRoot()) {
				if age := preflight.MarkerAge(mgr.DataRoot()); age > 0 {
					fmt.Fprintf(c.OutOrStdout(), "\nLast successful check: %s ago\n", age.Round(1e9))
				}
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("system check failed")
			}
			return preflight.MarkPassed(mgr.DataRoot())
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type doctorJSONCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

type doctorJSONOutput struct {
	Status   string            `json:"status"`
	Checks   []doctorJSONCheck `json:"checks"`
	Warnings []string          `json:"warnings,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

func outputDoctorJSON(c *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	out := doctorJSONOutput{
		Status: checker.SummaryStatus(results),
		Checks: make([]doctorJSONCheck, len(results)),
	}
	for i, r := range results {
		out.Checks[i] = doctorJSONCheck{
			Name:     r.Name,
			Status:   r.Status.String(),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}
		if r.IsCritical() {
			out.Errors = append(out.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn {
			out.Warnings = append(out.Warnings, r.Name+": "+r.Message)
		}
	}

	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
