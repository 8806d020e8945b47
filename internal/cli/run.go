package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkops/internal/checkpoint"
	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/query"
)

// Run command errors.
var (
	ErrRunMismatch  = errors.New("checkpoint does not belong to this run file")
	ErrRunCompleted = errors.New("run already completed")
)

type runFlags struct {
	maxSteps  int
	resume    string
	batchSize int
	verbose   bool
}

// NewRunCmd creates the run command, which applies an operation to the
// records of a run file step by step and checkpoints after every step.
func NewRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <run.yaml>",
		Short: "Run an operation over records in batches",
		Long: `Runs the operation declared in a run file over its source, one batch per step.

The source is either a list of [langcode, id] or [langcode, id, revision] items
or a view. Progress is checkpointed after every step, so an interrupted or
--max-steps limited run can be continued with --resume.`,
		Example: `  # Run to completion
  bulkops run publish.yaml

  # Process at most 3 batches of 50
  bulkops run publish.yaml --batch-size 50 --max-steps 3

  # Continue a paused run
  bulkops run publish.yaml --resume 01JB8Y7Q2N5W3V4X6Z8A9B0C1D`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.maxSteps, "max-steps", 0, "stop after this many steps (0 = run to completion)")
	cmd.Flags().StringVar(&flags.resume, "resume", "", "resume the run with this ID")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "items per step (overrides run file and config)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "print every outcome")

	return cmd
}

//nolint:funlen // Sequential run lifecycle reads best in one place.
func executeRun(cmd *cobra.Command, path string, flags runFlags) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)
	cfg := config.GetGlobalConfig()

	if flags.maxSteps < 0 {
		return fmt.Errorf("max-steps must be >= 0, got %d", flags.maxSteps)
	}

	rf, err := config.LoadRunFile(path)
	if err != nil {
		return err
	}
	src, err := rf.BatchSource()
	if err != nil {
		return err
	}

	store, err := checkpoint.NewFileStore(cfg.Checkpoint.Dir)
	if err != nil {
		return err
	}

	state, err := loadOrCreateRun(store, rf, cfg, flags)
	if err != nil {
		return err
	}

	env, err := openEnvironment(ctx, cfg, rf.RecordType)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	processor := batch.NewProcessor(env.catalog, env.db, env.executor).
		WithProgressCallback(func(p batch.Progress) {
			log.Debug().Ctx(ctx).
				Str("run_id", state.RunID).
				Int("offset", p.Offset).
				Float64("percent", p.PercentComplete()).
				Msg("step populated")
		})

	if err = processor.Initialize(ctx, rf.SessionConfig(cfg, &state.Progress)); err != nil {
		return failRun(store, state, err)
	}
	if session, sessionErr := processor.Session(); sessionErr == nil {
		warnOnShiftingFilter(ctx, cmd.ErrOrStderr(), env.views, src, session.Definition)
	}

	out := cmd.OutOrStdout()
	steps := 0
	for flags.maxSteps == 0 || steps < flags.maxSteps {
		// A failed step is retried on resume, so its cursor move is undone.
		before := state.Progress.Clone()
		result, stepErr := processor.Step(ctx, src, &state.Progress)
		if stepErr != nil {
			state.Progress = before
			return failRun(store, state, stepErr)
		}
		steps++

		state.Outcomes.Add(result.Outcomes)
		state.Touch()
		if result.Done {
			state.Status = checkpoint.StatusCompleted
		}
		if err = store.Save(state); err != nil {
			return err
		}

		printStep(out, steps, result, flags.verbose)
		if result.Done {
			break
		}
	}

	log.Info().Ctx(ctx).
		Str("run_id", state.RunID).
		Str("status", state.Status).
		Int("steps", steps).
		Msg("run stopped")

	renderRunSummary(out, state, steps)

	if state.Outcomes.Failed > 0 {
		return &ExitError{
			Code: ExitCodeFailedOutcomes,
			Err:  fmt.Errorf("run %s: %d record(s) failed", state.RunID, state.Outcomes.Failed),
		}
	}
	return nil
}

// loadOrCreateRun returns the checkpoint to continue, or a new one.
func loadOrCreateRun(
	store *checkpoint.FileStore,
	rf *config.RunFile,
	cfg *config.Config,
	flags runFlags,
) (*checkpoint.RunState, error) {
	if flags.resume == "" {
		size := rf.EffectiveBatchSize(cfg)
		if flags.batchSize != 0 {
			size = flags.batchSize
		}
		if err := config.ValidateBatchSize(size); err != nil {
			return nil, err
		}
		state := checkpoint.NewRunState(rf.Path(), rf.Operation, rf.RecordType, size)
		if err := store.Save(state); err != nil {
			return nil, err
		}
		return state, nil
	}

	state, err := store.Get(flags.resume)
	if err != nil {
		return nil, err
	}
	if state.OperationID != rf.Operation || state.RecordType != rf.RecordType {
		return nil, fmt.Errorf("%w: run %s is %s on %s",
			ErrRunMismatch, state.RunID, state.OperationID, state.RecordType)
	}
	if state.Status == checkpoint.StatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrRunCompleted, state.RunID)
	}
	if flags.batchSize != 0 {
		if err = config.ValidateBatchSize(flags.batchSize); err != nil {
			return nil, err
		}
		state.Progress.BatchSize = flags.batchSize
	}
	state.Status = checkpoint.StatusRunning
	state.LastError = ""
	return state, nil
}

// warnOnShiftingFilter warns when a view-backed run filters on a field the
// operation writes. Rows that stop matching move the later rows back past
// the cursor, so offset paging skips them.
func warnOnShiftingFilter(
	ctx context.Context,
	w io.Writer,
	views *query.Views,
	src batch.Source,
	def operation.Definition,
) {
	if len(src.List) > 0 || len(def.Writes) == 0 {
		return
	}
	view, err := views.Lookup(src.Query.View)
	if err != nil {
		return
	}
	conds, err := view.Conditions(query.New(src.Query))
	if err != nil {
		return
	}

	var fields []string
	for _, c := range conds {
		if slices.Contains(def.Writes, c.Field) && !slices.Contains(fields, c.Field) {
			fields = append(fields, c.Field)
		}
	}
	if len(fields) == 0 {
		return
	}

	logging.FromContext(ctx).Warn().Ctx(ctx).
		Str("operation", def.ID).
		Str("view", view.ID).
		Strs("fields", fields).
		Msg("operation writes filtered fields, paging may skip rows")
	_, _ = fmt.Fprintf(w,
		"Warning: %s writes %s, which view %s filters on; some rows may be skipped. "+
			"Use an item list or run again until nothing matches.\n",
		def.ID, strings.Join(fields, ", "), view.ID)
}

// failRun records err on the checkpoint and returns it.
func failRun(store *checkpoint.FileStore, state *checkpoint.RunState, err error) error {
	state.Status = checkpoint.StatusFailed
	state.LastError = err.Error()
	state.Touch()
	if saveErr := store.Save(state); saveErr != nil {
		return errors.Join(err, saveErr)
	}
	return fmt.Errorf("run %s failed: %w", state.RunID, err)
}

func printStep(w io.Writer, step int, result *batch.StepResult, verbose bool) {
	_, _ = fmt.Fprintf(w, "step %d: %s queued, %s unresolved\n",
		step, formatCount(result.Count), formatCount(len(result.Misses)))

	for _, miss := range result.Misses {
		_, _ = fmt.Fprintf(w, "  [miss] %s\n", miss.Error())
	}
	for _, o := range result.Outcomes {
		if !verbose && o.Status == operation.StatusDone {
			continue
		}
		_, _ = fmt.Fprintf(w, "  [%s] %s\n", o.Status, o.Message)
	}
}
