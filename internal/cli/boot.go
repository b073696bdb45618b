package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aqasim81/crm-updater/internal/updater"
)

var bootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "boot",
	Short: "Apply pending update files once and exit",
	Long: `Run the boot-time update routine: execute every new .sql file in the
updates directory, delete processed files, publish pending administrator
actions and clear the caches when anything was processed.`,
	RunE: runBoot,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(bootCmd)
}

func runBoot(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	if !cfg.SetupCompleted() {
		fmt.Fprintln(out, "Setup has not completed, skipping updates.")
		return nil
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.runner.Run(ctx)
	if report != nil {
		printReport(out, report)
	}

	return err
}

// printReport writes a human summary of a run.
func printReport(out io.Writer, report *updater.Report) {
	if report.SetupPending {
		fmt.Fprintln(out, "Setup has not completed, skipping updates.")
		return
	}

	if report.LockSkipped {
		fmt.Fprintln(out, "Another process is applying updates, skipped the updates directory.")
	}

	counts := make(map[string]int, 4)

	for _, f := range report.Files {
		counts[f.Outcome]++

		line := fmt.Sprintf("  %-10s %s", f.Outcome, f.File.Name)
		if f.Hook != "" {
			line += " (hook " + f.Hook + ")"
		}

		if f.Err != nil {
			line += ": " + firstLine(f.Err.Error())
		}

		fmt.Fprintln(out, line)
	}

	if len(report.Files) == 0 && !report.LockSkipped {
		fmt.Fprintln(out, "No update files found.")
	}

	fmt.Fprintf(out, "\nBoot complete: %d applied, %d failed, %d duplicate, %d discarded.\n",
		counts[updater.OutcomeApplied], counts[updater.OutcomeFailed],
		counts[updater.OutcomeDuplicate], counts[updater.OutcomeDiscarded])

	fmt.Fprintf(out, "Pending actions: %d\n", report.PendingActions)

	if report.CachesCleared {
		fmt.Fprintln(out, "Caches cleared.")
	}

	if report.DebugRef != "" {
		fmt.Fprintf(out, "Debug ref: %s\n", report.DebugRef)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}
