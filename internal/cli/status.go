package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/legal-insight/docintake/internal/client"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show the status of a batch (the latest one when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	var jobID string
	if len(args) == 1 {
		jobID = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	report, err := client.New(serverURL, nil).Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	out := cmd.OutOrStdout()
	if report.JobID != "" {
		fmt.Fprintf(out, "Job: %s\n", report.JobID)
		fmt.Fprintf(out, "Files: %d\n", report.Files)
	}
	fmt.Fprintf(out, "Status: %s\n", report.Status)
	if report.UpdatedAt != nil {
		fmt.Fprintf(out, "Updated: %s\n", humanize.Time(*report.UpdatedAt))
	}

	return nil
}
