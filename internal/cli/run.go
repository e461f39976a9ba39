package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"strideos/internal/config"
	"strideos/internal/console"
	"strideos/internal/kernel"
	"strideos/internal/logging"
	"strideos/internal/trace"
)

func newRunCmd() *cobra.Command {
	var (
		csvPath    string
		ttyPath    string
		clock      string
		maxSuspend int
		noSummary  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel and run the configured apps to completion",
		Long:  "Boot the kernel and run the configured apps to completion. Without a config file a built-in demo manifest runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("csv") {
				cfg.Trace.CSV = csvPath
			}
			if cmd.Flags().Changed("tty") {
				cfg.TTY = ttyPath
			}
			if cmd.Flags().Changed("clock") {
				cfg.Clock = strings.ToLower(clock)
			}
			if cmd.Flags().Changed("max-suspend") {
				cfg.Sched.MaxSuspend = maxSuspend
			}
			cfg.Sched = cfg.Sched.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := runLogger(cmd, cfg)
			opts := []kernel.Option{kernel.WithLogger(log)}

			if cfg.TTY != "" {
				tty, err := console.OpenTTY(cfg.TTY)
				if err != nil {
					return err
				}
				defer tty.Close()
				opts = append(opts, kernel.WithConsole(tty))
			} else {
				opts = append(opts, kernel.WithConsole(console.NewWriter(cmd.OutOrStdout())))
			}

			k, err := kernel.New(cfg, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			runErr := k.Run(ctx)

			if !noSummary {
				printSummary(cmd.ErrOrStderr(), k.ID().String(), k.Summary())
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Write scheduler events to this CSV file")
	cmd.Flags().StringVar(&ttyPath, "tty", "", "Send console output to this terminal device instead of stdout")
	cmd.Flags().StringVar(&clock, "clock", config.ClockMonotonic, "Time source (monotonic, tick)")
	cmd.Flags().IntVar(&maxSuspend, "max-suspend", 1000, "Suspensions after which a task is killed")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "Do not print the per-task summary")

	return cmd
}

// runLogger honours the config unless a flag overrode it.
func runLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, format := cfg.Log.Level, cfg.Log.Format
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	return logging.NewLoggerWithWriter(logging.ParseLevel(level), format, cmd.ErrOrStderr())
}

func printSummary(w io.Writer, bootID string, stats []trace.TaskStats) {
	fmt.Fprintf(w, "boot %s\n", bootID)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tNAME\tSTATUS\tPRIORITY\tSTRIDE\tDISPATCHES\tSUSPENDS\tKILLED")
	for _, st := range stats {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%v\n",
			st.Task, st.Name, st.Status, st.Priority, st.Stride, st.Dispatches, st.Suspends, st.Killed)
	}
	tw.Flush()
}
