package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/crm-updater/internal/tracker"
	"github.com/aqasim81/crm-updater/internal/updating"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show applied updates and pending actions",
	Long: `Display the update files recorded as applied and the updating tasks
still waiting for an administrator.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", formatText, "output format (text, json)")
	rootCmd.AddCommand(statusCmd)
}

// statusView is the status output.
type statusView struct {
	Applied []tracker.Update    `json:"applied"`
	Pending []updating.Updating `json:"pending"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != formatText && format != formatJSON {
		return fmt.Errorf("unknown format %q (want %s or %s)", format, formatText, formatJSON)
	}

	cfg := AppConfig

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.tracker.EnsureTable(ctx); err != nil {
		return err
	}

	applied, err := a.tracker.List(ctx)
	if err != nil {
		return err
	}

	all, err := a.tasks.List(ctx)
	if err != nil {
		return err
	}

	view := statusView{Applied: applied, Pending: pendingOnly(all)}

	if format == formatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(view)
	}

	printStatus(cmd.OutOrStdout(), view)

	return nil
}

func pendingOnly(all []updating.Updating) []updating.Updating {
	pending := make([]updating.Updating, 0, len(all))

	for _, u := range all {
		if u.Status == updating.StatusNew {
			pending = append(pending, u)
		}
	}

	return pending
}

func printStatus(out io.Writer, view statusView) {
	fmt.Fprintf(out, "Applied updates (%d)\n", len(view.Applied))

	if len(view.Applied) > 0 {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  FILENAME\tAPPLIED AT\tCHECKSUM")

		for _, u := range view.Applied {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", u.Filename, u.CreatedAt.Format(time.RFC3339), shortChecksum(u.Checksum))
		}

		_ = tw.Flush()
	}

	fmt.Fprintf(out, "\nPending actions (%d)\n", len(view.Pending))

	for _, u := range view.Pending {
		fmt.Fprintf(out, "  #%d %s %s -> %s\n", u.ID, u.Type, u.RequestPath, u.UpdatePath)
	}
}

func shortChecksum(sum string) string {
	const n = 12
	if len(sum) <= n {
		return sum
	}

	return sum[:n]
}
