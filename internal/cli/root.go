package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"strideos/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the strideos CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "strideos",
		Short: "Batch kernel with a stride scheduler",
		Long:  "strideos loads a fixed set of user programs and runs them to completion under stride scheduling.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to strideos.yml (defaults only when empty)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json); overrides the config")

	root.AddCommand(
		newRunCmd(),
		newProgramsCmd(),
	)

	return root
}
