package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/graphrecon/internal/compiler"
	"github.com/roach88/graphrecon/internal/config"
	"github.com/roach88/graphrecon/internal/graphstore"
	"github.com/roach88/graphrecon/internal/ir"
)

// TypesOptions holds flags for the types subcommands.
type TypesOptions struct {
	*RootOptions
	Output   string // compile: write schemas as JSON to this file
	Database string // register: store path
}

// TypeSummary describes one compiled entity type.
type TypeSummary struct {
	ID         ir.VersionedURL `json:"id"`
	Title      string          `json:"title"`
	Link       bool            `json:"link"`
	Properties int             `json:"properties"`
	Required   int             `json:"required"`
}

// TypesResult is the output of "types compile" and "types register".
type TypesResult struct {
	Dir        string        `json:"dir"`
	FileCount  int           `json:"fileCount"`
	Types      []TypeSummary `json:"types"`
	Registered bool          `json:"registered"`
	StoreTypes int           `json:"storeTypes,omitempty"`
	Output     string        `json:"output,omitempty"`
}

// NewTypesCommand creates the types command group.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Compile and register CUE entity types",
	}
	cmd.AddCommand(newTypesCompileCommand(rootOpts))
	cmd.AddCommand(newTypesRegisterCommand(rootOpts))
	return cmd
}

func newTypesCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TypesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <types-dir>",
		Short: "Compile and validate CUE entity types",
		Long: `Compile every entityType definition in a CUE package and validate it.

Each field of the top-level "entityType" struct is one entity type:

  entityType: person: {
    id:    "https://example.com/@acme/types/entity-type/person/v/1"
    title: "Person"
    properties: "https://example.com/@acme/types/property-type/name/": {type: string}
    required: ["https://example.com/@acme/types/property-type/name/"]
  }

All errors are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypesCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write compiled schemas as JSON to this file")
	return cmd
}

func newTypesRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TypesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <types-dir>",
		Short: "Compile CUE entity types and register them in the store",
		Long: `Compile a CUE type directory and register every type in the store.

Registering a type that already exists with an identical definition is a
no-op; a changed definition under the same versioned URL is an error.

Example:
  graphrecon types register --db ./graph.db ./types`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypesRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	return cmd
}

func runTypesCompile(opts *TypesOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := compileTypes(formatter, dir)
	if err != nil {
		return err
	}

	result := newTypesResult(dir, loaded)
	if opts.Output != "" {
		if err := writeSchemas(loaded.Types, opts.Output); err != nil {
			return commandError(formatter, ErrCodeWriteFailed, "writing output file", err)
		}
		result.Output = opts.Output
	}
	return outputTypes(formatter, result)
}

func runTypesRegister(opts *TypesOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.loadConfig(cmd, map[string]string{"db": config.KeyDB})
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "loading configuration", err)
	}

	loaded, err := compileTypes(formatter, dir)
	if err != nil {
		return err
	}

	st, err := graphstore.Open(cfg.DB)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "opening store", err)
	}
	defer st.Close()

	for _, schema := range loaded.Types {
		formatter.VerboseLog("Registering %s", schema.ID)
		if err := st.RegisterEntityType(cmd.Context(), schema); err != nil {
			return commandError(formatter, ErrCodeStore, fmt.Sprintf("registering %s", schema.ID), err)
		}
	}

	all, err := st.EntityTypes(cmd.Context())
	if err != nil {
		return commandError(formatter, ErrCodeStore, "listing entity types", err)
	}

	result := newTypesResult(dir, loaded)
	result.Registered = true
	result.StoreTypes = len(all)
	return outputTypes(formatter, result)
}

// compileTypes loads dir, reporting every compile error on failure.
func compileTypes(formatter *OutputFormatter, dir string) (*compiler.LoadResult, error) {
	loaded, errs := compiler.LoadDir(dir, compiler.LoadModeCollectAll)
	if loaded == nil && len(errs) > 0 {
		code, message := parseCompileError(errs[0])
		_ = formatter.Error(code, message, nil)
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
	}
	if len(errs) > 0 {
		return nil, outputCompileErrors(formatter, errs)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)
	return loaded, nil
}

func newTypesResult(dir string, loaded *compiler.LoadResult) TypesResult {
	result := TypesResult{
		Dir:       dir,
		FileCount: loaded.FileCount,
		Types:     make([]TypeSummary, 0, len(loaded.Types)),
	}
	for _, schema := range loaded.Types {
		result.Types = append(result.Types, TypeSummary{
			ID:         schema.ID,
			Title:      schema.Title,
			Link:       schema.IsLink,
			Properties: len(schema.Properties),
			Required:   len(schema.Required),
		})
	}
	return result
}

func outputTypes(formatter *OutputFormatter, result TypesResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	verb := "Compiled"
	if result.Registered {
		verb = "Registered"
	}
	fmt.Fprintf(w, "✓ %s %d entity type(s)\n\n", verb, len(result.Types))
	for _, t := range result.Types {
		kind := "entity"
		if t.Link {
			kind = "link"
		}
		fmt.Fprintf(w, "  %s (%s): %s, %d propert%s, %d required\n",
			t.Title, kind, t.ID, t.Properties, plural(t.Properties, "y", "ies"), t.Required)
	}
	if result.Registered {
		fmt.Fprintf(w, "\nStore now holds %d entity type(s)\n", result.StoreTypes)
	}
	if result.Output != "" {
		fmt.Fprintf(w, "\nWrote compiled types to %s\n", result.Output)
	}
	return nil
}

// outputCompileErrors reports every compile and validation error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Compilation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(w, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(w, "  %s: %s\n\n", code, message)
	}
	return exitErr
}

// parseCompileError extracts the error code and message.
func parseCompileError(err error) (string, string) {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	return compiler.ErrCodeGeneric, err.Error()
}

// writeSchemas writes compiled types as indented JSON.
func writeSchemas(types []ir.EntityTypeSchema, filename string) error {
	data, err := json.MarshalIndent(types, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling types: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
