package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/japaniel/twicsync/pkg/config"
	"github.com/japaniel/twicsync/pkg/db"
	"github.com/japaniel/twicsync/pkg/fetch"
	"github.com/japaniel/twicsync/pkg/ingest"
	"github.com/japaniel/twicsync/pkg/timecontrol"
)

const version = "0.1.0"

var errArchivesFailed = errors.New("one or more archives failed")

// app carries the state shared by subcommands.
type app struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "twicsync",
		Version: version,
		Short:   "Import weekly chess archives with event and time-control data",
		Long: `twicsync downloads weekly game archives together with their index pages,
assigns every game to the event and section it was played in, and stores the
games with a normalized time control.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.DBPath = a.dbPath
			}
			a.cfg = cfg

			zcfg := zap.NewProductionConfig()
			if a.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to SQLite database (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.runCmd(), a.inspectCmd(), a.statsCmd())
	return root
}

func (a *app) runCmd() *cobra.Command {
	var from, to int
	var force bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import a range of archives into the database",
		Example: `  twicsync run --from 1280 --to 1290
  twicsync run --from 1288 --to 1288 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from <= 0 || to < from {
				return fmt.Errorf("invalid archive range %d..%d", from, to)
			}
			archives := make([]int, 0, to-from+1)
			for n := from; n <= to; n++ {
				archives = append(archives, n)
			}

			conn, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer conn.Close()

			o, err := a.orchestrator(ingest.NewStoreSink(conn, a.cfg.BatchSize, a.logger))
			if err != nil {
				return err
			}
			o.Force = force

			reports, err := o.Run(cmd.Context(), archives)
			printReports(cmd.OutOrStdout(), reports)
			if err != nil {
				return err
			}
			for _, r := range reports {
				if r.Status == db.StatusFailed {
					return errArchivesFailed
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "First archive number")
	cmd.Flags().IntVar(&to, "to", 0, "Last archive number")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess archives that are already stored")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Process one archive without storing it and print the alignment summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n <= 0 {
				return fmt.Errorf("invalid archive number %q", args[0])
			}

			sink := ingest.NewMemorySink()
			o, err := a.orchestrator(sink)
			if err != nil {
				return err
			}
			report := o.ProcessArchive(cmd.Context(), n)
			out := cmd.OutOrStdout()
			printReports(out, []*ingest.ArchiveReport{report})

			events := make([]string, 0, len(report.PerEvent))
			for name := range report.PerEvent {
				events = append(events, name)
			}
			sort.Strings(events)
			for _, name := range events {
				fmt.Fprintf(out, "  %-50s %d\n", name, report.PerEvent[name])
			}
			for _, name := range report.EmptyEvents {
				fmt.Fprintf(out, "  no sections: %s\n", name)
			}

			classes := make(map[timecontrol.Class]int)
			for _, g := range sink.Games(n) {
				classes[g.TimeControl.Class]++
			}
			for _, c := range []timecontrol.Class{timecontrol.Standard, timecontrol.Rapid, timecontrol.Blitz, timecontrol.Unknown} {
				if classes[c] > 0 {
					fmt.Fprintf(out, "  %-10s %d\n", c, classes[c])
				}
			}
			return report.Err
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print stored game counts per time class",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer conn.Close()

			counts, err := db.CountGames(conn)
			if err != nil {
				return err
			}
			classes := make([]string, 0, len(counts))
			for c := range counts {
				classes = append(classes, c)
			}
			sort.Strings(classes)
			total := 0
			for _, c := range classes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", c, counts[c])
				total += counts[c]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", "total", total)
			return nil
		},
	}
}

// orchestrator wires the configured fetcher, table and overrides to sink.
func (a *app) orchestrator(sink ingest.Sink) (*ingest.Orchestrator, error) {
	table, err := timecontrol.LoadFile(a.cfg.TimeControls)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("time control table loaded", zap.Int("entries", table.Len()))

	client := fetch.NewClient(a.cfg.BaseURL, a.cfg.HTTPTimeout, a.logger)
	client.UserAgent = a.cfg.UserAgent
	client.MaxBytes = a.cfg.MaxArchiveBytes
	client.Retries = a.cfg.Retries

	o := ingest.NewOrchestrator(client, sink, table, a.logger)
	o.Overrides = a.cfg.Overrides()
	o.Workers = a.cfg.Workers
	o.EmptyEventThreshold = a.cfg.EmptyEventThreshold
	o.SalvagePartial = a.cfg.SalvagePartial
	return o, nil
}

func printReports(w io.Writer, reports []*ingest.ArchiveReport) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		fmt.Fprintf(w, "archive %d: %s games=%d stored=%d matched=%d fallback=%d unmatched=%d decode_warnings=%d parse_failures=%d resolution_failures=%d reviews=%d",
			r.Archive, r.Status, r.Games, r.Stored, r.Matched, r.Fallback, r.Unmatched,
			r.DecodeWarnings, r.ParseFailures, r.ResolutionFailures, r.Reviews)
		if r.Expected > 0 {
			fmt.Fprintf(w, " expected=%d", r.Expected)
		}
		if r.Err != nil {
			fmt.Fprintf(w, " error=%q", r.Err.Error())
		}
		fmt.Fprintln(w)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return newRootCmd().ExecuteContext(ctx)
}
