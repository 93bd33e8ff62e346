package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/legal-insight/docintake/internal/client"
	"github.com/legal-insight/docintake/internal/models"
	"github.com/legal-insight/docintake/internal/upload"
	"github.com/spf13/cobra"
)

type uploadFlags struct {
	interval    time.Duration
	timeout     time.Duration
	maxPolls    int
	stagger     time.Duration
	concurrency int
	maxSize     string
}

func newUploadCmd() *cobra.Command {
	flags := &uploadFlags{}

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload a batch of files and wait for parsing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.interval, "interval", client.DefaultPollInterval, "Status poll interval")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", client.DefaultPollTimeout, "Give up polling after this long")
	cmd.Flags().IntVar(&flags.maxPolls, "max-polls", 0, "Give up after this many polls (0 = no limit)")
	cmd.Flags().DurationVar(&flags.stagger, "stagger", 0, "Minimum delay between upload starts")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "c", 1, "Concurrent uploads")
	cmd.Flags().StringVar(&flags.maxSize, "max-size", "50MiB", "Per-file size limit checked before sending")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string, flags *uploadFlags) error {
	maxSize, err := humanize.ParseBytes(flags.maxSize)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	policy := upload.DefaultPolicy()
	policy.MaxSize = int64(maxSize)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	coord := client.NewCoordinator(client.New(serverURL, nil), client.Options{
		PollInterval: flags.interval,
		PollTimeout:  flags.timeout,
		MaxPolls:     flags.maxPolls,
		Stagger:      flags.stagger,
		Concurrency:  flags.concurrency,
		Policy:       policy,
	}, newTerminalReporter(out))

	summary, err := coord.Run(ctx, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d uploaded, %d failed\n", summary.Uploaded, summary.Failed)
	if summary.JobID != "" {
		fmt.Fprintf(out, "Job: %s\n", summary.JobID)
	}
	fmt.Fprintf(out, "Status: %s\n", summary.Status)
	if len(summary.Result) > 0 {
		fmt.Fprintf(out, "Result: %s\n", summary.Result)
	}

	switch summary.Status.Phase {
	case models.PhaseError, models.PhaseTimeout:
		return fmt.Errorf("batch did not complete: %s", summary.Status)
	}
	if summary.Uploaded == 0 {
		return fmt.Errorf("no files were uploaded")
	}
	return nil
}

// terminalReporter prints one line per state change.
type terminalReporter struct {
	out      io.Writer
	lastTick map[string]int64
}

func newTerminalReporter(out io.Writer) *terminalReporter {
	return &terminalReporter{out: out, lastTick: make(map[string]int64)}
}

func (r *terminalReporter) FileChanged(f client.FileResult, uploaded int) {
	switch f.State {
	case client.StateUploaded:
		fmt.Fprintf(r.out, "  %-30s uploaded as %s (%s) [%d done]\n", f.Name, f.StoredName, humanize.IBytes(uint64(f.Size)), uploaded)
	case client.StateFailed:
		fmt.Fprintf(r.out, "  %-30s failed: %v\n", f.Name, f.Err)
	case client.StateUploading:
		fmt.Fprintf(r.out, "  %-30s uploading %s\n", f.Name, humanize.IBytes(uint64(f.Size)))
	}
}

// Progress prints at most one line per 10% step.
func (r *terminalReporter) Progress(name string, sent, total int64) {
	if total <= 0 {
		return
	}
	step := sent * 10 / total
	if step == r.lastTick[name] || step >= 10 {
		return
	}
	r.lastTick[name] = step
	fmt.Fprintf(r.out, "  %-30s %s / %s\n", name, humanize.IBytes(uint64(sent)), humanize.IBytes(uint64(total)))
}

func (r *terminalReporter) StatusChanged(st models.LifecycleStatus) {
	fmt.Fprintf(r.out, "Status: %s\n", st)
}
