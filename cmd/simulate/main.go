// Command simulate drives a running Big Game scoreboard with random
// placement toggles and verifies the final scores.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/okian/biggame/internal/simulate"
	"github.com/okian/biggame/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlacements = 500
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 10 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(newCmd(&simulate.Config{}).ExecuteContext(ctx))
}

func newCmd(cfg *simulate.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SIMULATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var (
		runTimeout time.Duration
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Send random placement toggles to a Big Game server and verify the scores.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(logFormat)); err != nil {
				return err
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			stats, err := simulate.Run(ctx, cfg)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "submitted %d placements in %s (failed: %d, duplicates: %d)\n",
					stats.Submitted, stats.Duration.Round(time.Millisecond), stats.Failed, stats.Duplicates)
			}
			return err
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.BaseURL, "url", "u", "http://localhost:9080", "base URL of the service (env: SIMULATE_URL)")
	fs.IntVarP(&cfg.Placements, "placements", "n", defaultPlacements, "number of placement toggles to send (env: SIMULATE_PLACEMENTS)")
	fs.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*defaultWorkers, "number of concurrent workers (env: SIMULATE_WORKERS)")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout (env: SIMULATE_TIMEOUT)")
	fs.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "timeout for the whole run (env: SIMULATE_RUN_TIMEOUT)")
	fs.Int64Var(&cfg.Seed, "seed", 0, "random seed, 0 for a clock-based seed (env: SIMULATE_SEED)")
	fs.Float64Var(&cfg.DuplicateRate, "duplicate-rate", 0.05, "share of requests retried with the same request id (env: SIMULATE_DUPLICATE_RATE)")
	fs.BoolVar(&cfg.Reset, "reset", false, "reset the scoreboard before sending (env: SIMULATE_RESET)")
	fs.StringVarP(&cfg.OutputFile, "output", "o", "", "file receiving the generated placements as JSON (env: SIMULATE_OUTPUT)")
	fs.StringVar(&logFormat, "log-format", "text", "log output format: text or json (env: SIMULATE_LOG_FORMAT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every request (env: SIMULATE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
