package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/graphrecon/internal/batch"
	"github.com/roach88/graphrecon/internal/config"
	"github.com/roach88/graphrecon/internal/graphstore"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Database       string
	ActorID        string
	OwnedByID      string
	Draft          bool
	MaxConcurrency int
	MetricsFile    string
}

// OutcomeLine is one proposal's result in command output.
type OutcomeLine struct {
	TemporaryID  int    `json:"temporaryId"`
	Outcome      string `json:"outcome"`
	EntityTypeID string `json:"entityTypeId,omitempty"`
	EntityID     string `json:"entityId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ReconcileResult is the output of the reconcile command.
type ReconcileResult struct {
	Summary  reconcile.StatusSummary `json:"summary"`
	Outcomes []OutcomeLine           `json:"outcomes"`
	Status   *reconcile.StatusMap    `json:"status,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <batch.yaml>",
		Short: "Reconcile and persist a batch of proposed entities",
		Long: `Reconcile a batch of proposed entities against the store and persist
everything that is not already there.

Each proposal ends in exactly one outcome: created, creation_failed,
update_candidate (a differing duplicate exists) or unchanged (an identical
entity exists). Entity types named by the batch must be registered first
with "graphrecon types register".

Exit codes:
  0 - No creation failures
  1 - One or more proposals failed to persist
  2 - Command error (invalid batch, store errors, rejected request)

Example:
  graphrecon reconcile --db ./graph.db --owner web-1 ./batch.yaml
  graphrecon reconcile --db ./graph.db ./batch.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "", "actor performing storage calls")
	cmd.Flags().StringVar(&opts.OwnedByID, "owner", "", "web that owns created entities")
	cmd.Flags().BoolVar(&opts.Draft, "draft", false, "create entities as drafts")
	cmd.Flags().IntVar(&opts.MaxConcurrency, "max-concurrency", 0, "proposals processed at once per phase (0 = unbounded)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")

	return cmd
}

func runReconcile(opts *ReconcileOptions, batchPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	cfg, err := opts.loadConfig(cmd, map[string]string{
		"db":              config.KeyDB,
		"actor":           config.KeyActorID,
		"owner":           config.KeyOwnedByID,
		"draft":           config.KeyDraft,
		"max-concurrency": config.KeyMaxConcurrency,
	})
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "loading configuration", err)
	}
	logger, err := newLogger(cfg, formatter.GetErrWriter())
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "configuring logger", err)
	}

	file, err := batch.Load(batchPath)
	if err != nil {
		return commandError(formatter, ErrCodeBatch, "loading batch", err)
	}
	formatter.VerboseLog("Loaded %d proposal(s) from %s", len(file.Proposals), batchPath)

	st, err := graphstore.Open(cfg.DB)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "opening store", err)
	}
	defer st.Close()

	req, err := file.Request(ctx, st, batch.Defaults{
		ActorID:   cfg.ActorID,
		OwnedByID: cfg.OwnedByID,
		Draft:     cfg.Draft,
	})
	if err != nil {
		return commandError(formatter, ErrCodeBatch, "building request", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := reconcile.NewMetrics(registry)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "creating metrics", err)
	}

	eng := reconcile.New(st,
		reconcile.WithLogger(logger),
		reconcile.WithMaxConcurrency(cfg.MaxConcurrency),
		reconcile.WithMetrics(metrics),
	)

	status, err := eng.ReconcileAndPersist(ctx, req)
	if err != nil {
		var reqErr *reconcile.RequestError
		if errors.As(err, &reqErr) {
			return commandError(formatter, ErrCodeRequest, string(reqErr.Code), err)
		}
		return commandError(formatter, ErrCodeRequest, "reconciling batch", err)
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			return commandError(formatter, ErrCodeWriteFailed, "writing metrics file", err)
		}
		formatter.VerboseLog("Wrote metrics to %s", opts.MetricsFile)
	}

	return outputReconcile(formatter, newReconcileResult(status, opts.Verbose))
}

// newReconcileResult flattens a status map into per-proposal lines ordered
// by temporary id. The full map is kept in verbose mode.
func newReconcileResult(status *reconcile.StatusMap, full bool) ReconcileResult {
	result := ReconcileResult{Summary: status.Summary()}
	for id, s := range status.CreationSuccesses {
		result.Outcomes = append(result.Outcomes, OutcomeLine{
			TemporaryID:  id,
			Outcome:      string(reconcile.OutcomeCreated),
			EntityTypeID: string(s.EntityTypeID),
			EntityID:     string(s.Entity.EntityID()),
		})
	}
	for id, f := range status.CreationFailures {
		result.Outcomes = append(result.Outcomes, OutcomeLine{
			TemporaryID:  id,
			Outcome:      string(reconcile.OutcomeCreationFailed),
			EntityTypeID: string(f.EntityTypeID),
			Reason:       f.FailureReason,
		})
	}
	for id, c := range status.UpdateCandidates {
		result.Outcomes = append(result.Outcomes, OutcomeLine{
			TemporaryID:  id,
			Outcome:      string(reconcile.OutcomeUpdateCandidate),
			EntityTypeID: string(c.Entity.Metadata.EntityTypeID),
			EntityID:     string(c.Entity.EntityID()),
		})
	}
	for id, u := range status.UnchangedEntities {
		result.Outcomes = append(result.Outcomes, OutcomeLine{
			TemporaryID:  id,
			Outcome:      string(reconcile.OutcomeUnchanged),
			EntityTypeID: string(u.Entity.Metadata.EntityTypeID),
			EntityID:     string(u.Entity.EntityID()),
		})
	}
	slices.SortFunc(result.Outcomes, func(a, b OutcomeLine) int { return a.TemporaryID - b.TemporaryID })
	if result.Outcomes == nil {
		result.Outcomes = []OutcomeLine{}
	}
	if full {
		result.Status = status
	}
	return result
}

func outputReconcile(formatter *OutputFormatter, result ReconcileResult) error {
	failed := result.Summary.CreationFailed
	message := fmt.Sprintf("%d proposal(s) failed to persist", failed)

	if formatter.IsJSON() {
		if failed > 0 {
			if err := formatter.Failure(ErrCodeCreateFailed, message, result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, message)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, line := range result.Outcomes {
		switch line.Outcome {
		case string(reconcile.OutcomeCreationFailed):
			fmt.Fprintf(w, "✗ %d %s: %s\n", line.TemporaryID, line.Outcome, line.Reason)
		default:
			fmt.Fprintf(w, "✓ %d %s: %s\n", line.TemporaryID, line.Outcome, line.EntityID)
		}
	}
	s := result.Summary
	fmt.Fprintf(w, "\nSummary: %d created, %d failed, %d update candidate(s), %d unchanged\n",
		s.Created, s.CreationFailed, s.UpdateCandidates, s.Unchanged)

	if failed > 0 {
		return NewExitError(ExitFailure, message)
	}
	return nil
}
