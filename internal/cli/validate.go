package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/graphrecon/internal/batch"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	TypesDir string // overrides the batch's types_dir
}

// ValidateResult is the output of the validate command.
type ValidateResult struct {
	Proposals int               `json:"proposals"`
	Types     int               `json:"types"`
	Issues    []reconcile.Issue `json:"issues"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <batch.yaml>",
		Short: "Check a batch for proposals that cannot reconcile cleanly",
		Long: `Statically analyze a batch without touching any store.

Reports reused temporary ids, links without both endpoints, links that
reference themselves, other links or ids absent from the batch and its
prior results, identical proposals, and proposals for types that are not
requested. When the batch names a types directory (or --types is given)
link types are taken from the compiled definitions; otherwise a proposal
that names an endpoint is treated as a link.

Exit codes:
  0 - No issues
  1 - One or more issues found
  2 - Command error (unreadable batch or types)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TypesDir, "types", "", "CUE entity type directory (overrides types_dir)")
	return cmd
}

func runValidate(opts *ValidateOptions, batchPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	file, err := batch.Load(batchPath)
	if err != nil {
		return commandError(formatter, ErrCodeBatch, "loading batch", err)
	}
	if opts.TypesDir != "" {
		file.TypesDir = opts.TypesDir
	}

	byType, err := file.ProposalsByType()
	if err != nil {
		return commandError(formatter, ErrCodeBatch, "reading proposals", err)
	}

	types, err := requestedTypes(formatter, file)
	if err != nil {
		return err
	}

	result := ValidateResult{
		Proposals: len(file.Proposals),
		Types:     len(types),
		Issues:    reconcile.AnalyzeBatch(byType, types, file.StaticState()),
	}
	if result.Issues == nil {
		result.Issues = []reconcile.Issue{}
	}
	return outputValidate(formatter, batchPath, result)
}

// requestedTypes compiles the batch's types directory and picks out the
// requested types. Without a directory it returns nil.
func requestedTypes(formatter *OutputFormatter, file *batch.File) (map[ir.VersionedURL]ir.EntityTypeSchema, error) {
	if file.TypesDir == "" {
		return nil, nil
	}

	loaded, err := compileTypes(formatter, file.TypesDir)
	if err != nil {
		return nil, err
	}
	compiled := make(map[ir.VersionedURL]ir.EntityTypeSchema, len(loaded.Types))
	for _, schema := range loaded.Types {
		compiled[schema.ID] = schema
	}

	types := make(map[ir.VersionedURL]ir.EntityTypeSchema)
	for _, id := range file.TypeIDs() {
		schema, ok := compiled[id]
		if !ok {
			return nil, commandError(formatter, ErrCodeBatch,
				fmt.Sprintf("requested entity type %s is not defined in %s", id, file.TypesDir), nil)
		}
		types[id] = schema
	}
	return types, nil
}

func outputValidate(formatter *OutputFormatter, batchPath string, result ValidateResult) error {
	count := len(result.Issues)
	message := fmt.Sprintf("%d issue(s) found", count)

	if formatter.IsJSON() {
		if count > 0 {
			if err := formatter.Failure(ErrCodeBatchIssues, message, result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, message)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if count == 0 {
		fmt.Fprintf(w, "✓ %s: %d proposal(s), no issues\n", batchPath, result.Proposals)
		return nil
	}

	fmt.Fprintf(w, "✗ %s: %s\n\n", batchPath, message)
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "  %s\n", issue)
	}
	return NewExitError(ExitFailure, message)
}
