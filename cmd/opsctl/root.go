package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opsctl/opsctl/pkg/ctlerrors"
	"github.com/opsctl/opsctl/pkg/logger"
	"github.com/opsctl/opsctl/pkg/workflow/document"
	"github.com/opsctl/opsctl/pkg/workflow/engine"
	"github.com/opsctl/opsctl/pkg/workflow/metrics"
	"github.com/opsctl/opsctl/pkg/workflow/result"
)

var (
	verbose     bool
	noProgress  bool
	vars        []string
	dryRun      bool
	runTimeout  time.Duration
	metricsAddr string
	enableTrace bool

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "opsctl",
	Short: "Run operational workflows: build, deploy, and notify, declaratively",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = logger.New(level)
		loadEnvFile()
	},
}

// loadEnvFile loads a .env file sitting next to the binary's source tree,
// matching the teacher's cmd.loadEnvFile.
func loadEnvFile() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	envFile := filepath.Join(filepath.Dir(file), "..", "..", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Msg("failed to load .env file")
		}
	}
}

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Execute a workflow document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading workflow file: %w", err)
		}

		varMap, err := parseVars(vars)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var deadline time.Time
		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
			deadline = time.Now().Add(runTimeout)
		}

		eng := engine.New(log)
		observers := engine.MultiObserver{}
		if !noProgress {
			observers = append(observers, newCLIObserver())
		}
		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			observers = append(observers, metrics.New(reg))
			serveMetrics(metricsAddr, reg)
		}
		eng.Observer = observers
		if enableTrace {
			tp := sdktrace.NewTracerProvider()
			defer tp.Shutdown(context.Background())
			eng.Tracer = tp.Tracer("opsctl")
		}

		wr, err := eng.Run(ctx, data, engine.RunOptions{Vars: varMap, DryRun: dryRun, Deadline: deadline})
		if err != nil {
			return err
		}

		printSummary(wr)
		if wr.Status != result.StatusSucceeded {
			return fmt.Errorf("workflow %s finished with status %s", wr.Name, wr.Status)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow document without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading workflow file: %w", err)
		}
		wf, err := document.LoadYAML(data)
		if err != nil {
			if verrs, ok := err.(*ctlerrors.ValidationError); ok {
				fmt.Fprintln(os.Stderr, verrs.Error())
				return fmt.Errorf("%d validation error(s)", len(verrs.Errors))
			}
			return err
		}
		mode := "sequential"
		if wf.DAGMode {
			mode = "dag"
		}
		fmt.Printf("%s is valid: %d top-level entries, %s mode\n", wf.Name, len(wf.Steps), mode)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd, validateCmd)

	runCmd.Flags().StringArrayVar(&vars, "var", nil, "override a workflow variable as key=value (repeatable)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what each step would dispatch without executing it")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall workflow deadline, e.g. 5m (0 = no deadline)")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the interactive progress renderer")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	runCmd.Flags().BoolVar(&enableTrace, "trace", false, "wrap each step dispatch in an OpenTelemetry span")
}

func parseVars(assignments []string) (map[string]any, error) {
	out := make(map[string]any, len(assignments))
	for _, a := range assignments {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", a)
		}
		out[k] = v
	}
	return out, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server exited")
		}
	}()
}

func printSummary(wr result.WorkflowResult) {
	fmt.Println()
	fmt.Printf("%s: %s\n", wr.Name, wr.Status)
	for _, e := range wr.Entries {
		if e.Step != nil {
			fmt.Printf("  %-28s %-10s exit=%d attempts=%d\n", e.Step.Name, e.Step.Status, e.Step.ExitCode, e.Step.Attempts)
		} else if e.Block != nil {
			fmt.Printf("  %-28s %-10s succeeded=%d failed=%d skipped=%d\n",
				e.Block.Name, e.Block.Status, e.Block.SucceededCount, e.Block.FailedCount, e.Block.SkippedCount)
		}
	}
}

// Execute runs the CLI and returns the process exit code: 0 iff the
// workflow (or validation) succeeded.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
