package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/shift"
	"github.com/warp/attendance-engine/store/sqlite"
)

type storeOptions struct {
	dbPath  string
	workers int
}

func (o *storeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.dbPath, "db", "attendance.db", "SQLite database path")
	cmd.Flags().IntVar(&o.workers, "workers", 1, "Employees reconciled concurrently")
}

// open builds the same store, engine and handler stack the server uses.
func (o *storeOptions) open() (*sqlite.Store, *api.Handler, error) {
	if o.workers < 1 {
		return nil, nil, fmt.Errorf("--workers must be at least 1, got %d", o.workers)
	}
	store, err := sqlite.New(o.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	engine := reconcile.NewEngine(store)
	engine.Workers = o.workers
	return store, api.NewHandler(store, engine, nil), nil
}

type importOptions struct {
	storeOptions
	mappingJSON string
	profile     string
	reconcile   bool
	pretty      bool
}

type importOutput struct {
	Import         attendance.ImportSummary `json:"import"`
	Reconciliation *reconcile.Summary       `json:"reconciliation,omitempty"`
}

func newImportCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Parse a clock export and store its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := parseFile(root, opts.mappingJSON, opts.profile, args[0])
			if err != nil {
				return err
			}

			store, handler, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			summary, err := handler.Importer.Import(ctx, result, args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			out := importOutput{Import: summary}
			if opts.reconcile && len(summary.Dates) > 0 {
				total := handler.ReconcileDates(ctx, sqlite.TriggerImport, summary.Dates)
				out.Reconciliation = &total
			}
			return writeOutput(cmd, "", opts.pretty, out)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.mappingJSON, "mapping", "", "Inline column mapping JSON")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Named mapping from the --profiles file")
	cmd.Flags().BoolVar(&opts.reconcile, "reconcile", false, "Reconcile every date the file touched")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

type reconcileOptions struct {
	storeOptions
	date      string
	from      string
	to        string
	employees []string
	pretty    bool
}

func newReconcileCmd(_ *rootOptions) *cobra.Command {
	opts := &reconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile schedules against stored attendance",
		Long: `Reconcile recomputes the status of every schedule in the requested
days, confirmed ones included, and writes back the ones that changed.
Reconciliation never sets confirmed itself. The run is recorded in the
reconciliation history like a manual run from the API.

Give either --date, or --from and --to (inclusive).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := opts.days()
			if err != nil {
				return err
			}

			store, handler, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := handler.ReconcileAndRecord(cmd.Context(), sqlite.TriggerManual, from, to, opts.employees)
			if err != nil {
				return err
			}
			log.Printf("[Reconcile] %s..%s: %d processed, %d changed, %d errors",
				from, to, summary.TotalProcessed, summary.StatusChanges, len(summary.Errors))
			return writeOutput(cmd, "", opts.pretty, summary)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.date, "date", "", "Single day to reconcile (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.from, "from", "", "First day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Last day of the range (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.employees, "employee", nil, "Limit to these employee IDs (repeatable)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	cmd.MarkFlagsMutuallyExclusive("date", "from")
	cmd.MarkFlagsMutuallyExclusive("date", "to")
	cmd.MarkFlagsRequiredTogether("from", "to")
	cmd.MarkFlagsOneRequired("date", "from")
	return cmd
}

func (o *reconcileOptions) days() (shift.Day, shift.Day, error) {
	if o.date != "" {
		day, err := shift.ParseDay(o.date)
		if err != nil {
			return shift.Day{}, shift.Day{}, fmt.Errorf("invalid --date: %w", err)
		}
		return day, day, nil
	}
	from, err := shift.ParseDay(o.from)
	if err != nil {
		return shift.Day{}, shift.Day{}, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := shift.ParseDay(o.to)
	if err != nil {
		return shift.Day{}, shift.Day{}, fmt.Errorf("invalid --to: %w", err)
	}
	if to.Before(from) {
		return shift.Day{}, shift.Day{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return from, to, nil
}
