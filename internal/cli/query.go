package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/graphrecon/internal/config"
	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/graphstore"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database        string
	ActorID         string
	TypeID          string
	AnyVersion      bool
	OwnedByID       string
	Props           []string // key=value
	IncludeDrafts   bool
	IncludeArchived bool
	AsOf            string // RFC 3339
}

// QueryResult is the output of the query command.
type QueryResult struct {
	Filter   string      `json:"filter"`
	Entities []ir.Entity `json:"entities"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored entities",
		Long: `Query entities in the store with the same filters reconciliation uses.

Property values are parsed as JSON when possible (30, true, {"a":1}) and
taken as text otherwise. Archived entities are excluded unless
--include-archived is set.

Example:
  graphrecon query --db ./graph.db \
    --type https://example.com/@acme/types/entity-type/person/v/1 \
    --prop https://example.com/@acme/types/property-type/name/=Alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "", "actor performing the query")
	cmd.Flags().StringVar(&opts.TypeID, "type", "", "entity type versioned URL")
	cmd.Flags().BoolVar(&opts.AnyVersion, "any-version", false, "match every version of --type")
	cmd.Flags().StringVar(&opts.OwnedByID, "owner", "", "only entities owned by this web")
	cmd.Flags().StringArrayVar(&opts.Props, "prop", nil, "property filter key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.IncludeDrafts, "include-drafts", false, "include draft entities")
	cmd.Flags().BoolVar(&opts.IncludeArchived, "include-archived", false, "include archived entities")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "query the graph as of this RFC 3339 time")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.loadConfig(cmd, map[string]string{
		"db":    config.KeyDB,
		"actor": config.KeyActorID,
	})
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "loading configuration", err)
	}

	req, err := buildQuery(opts)
	if err != nil {
		return commandError(formatter, ErrCodeQuery, "invalid query", err)
	}

	st, err := graphstore.Open(cfg.DB)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "opening store", err)
	}
	defer st.Close()

	entities, err := st.QueryEntities(cmd.Context(), ir.AccountID(cfg.ActorID), req)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "querying entities", err)
	}

	return outputQuery(formatter, QueryResult{
		Filter:   filter.Describe(req.Filter),
		Entities: entities,
	})
}

// buildQuery turns the command flags into a query request.
func buildQuery(opts *QueryOptions) (reconcile.QueryEntitiesRequest, error) {
	var conds filter.All

	if !opts.IncludeArchived {
		conds = append(conds, filter.Equal{Path: filter.Field(filter.FieldArchived), Value: ir.Bool(false)})
	}
	if opts.TypeID != "" {
		typeID := ir.VersionedURL(opts.TypeID)
		if !typeID.Valid() {
			return reconcile.QueryEntitiesRequest{}, fmt.Errorf("--type %q is not a versioned url", opts.TypeID)
		}
		mode := filter.MatchExact
		if opts.AnyVersion {
			mode = filter.MatchAnyVersion
		}
		conds = append(conds, filter.VersionedURLMatch(typeID, mode))
	} else if opts.AnyVersion {
		return reconcile.QueryEntitiesRequest{}, fmt.Errorf("--any-version requires --type")
	}
	if opts.OwnedByID != "" {
		conds = append(conds, filter.Equal{Path: filter.Field(filter.FieldOwnedByID), Value: ir.String(opts.OwnedByID)})
	}
	for _, prop := range opts.Props {
		cond, err := parsePropFilter(prop)
		if err != nil {
			return reconcile.QueryEntitiesRequest{}, err
		}
		conds = append(conds, cond)
	}

	req := reconcile.QueryEntitiesRequest{
		Filter:        conds,
		IncludeDrafts: opts.IncludeDrafts,
	}
	if opts.AsOf != "" {
		asOf, err := time.Parse(time.RFC3339, opts.AsOf)
		if err != nil {
			return reconcile.QueryEntitiesRequest{}, fmt.Errorf("--as-of: %w", err)
		}
		req.TemporalAxes.AsOf = &asOf
	}

	if err := filter.Validate(req.Filter); err != nil {
		return reconcile.QueryEntitiesRequest{}, err
	}
	return req, nil
}

// parsePropFilter parses "key=value". The key gets a trailing slash like
// proposal keys do.
func parsePropFilter(s string) (filter.Filter, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return nil, fmt.Errorf("--prop %q: expected key=value", s)
	}

	value, err := ir.ParseValue([]byte(raw))
	if err != nil {
		value = ir.String(raw)
	}
	if _, isNull := value.(ir.Null); isNull {
		return nil, fmt.Errorf("--prop %q: null cannot be matched", s)
	}

	return filter.Equal{
		Path:  filter.Property(ir.BaseURL(reconcile.EnsureTrailingSlash(key))),
		Value: value,
	}, nil
}

func outputQuery(formatter *OutputFormatter, result QueryResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%d entit%s matching %s\n", len(result.Entities), plural(len(result.Entities), "y", "ies"), result.Filter)
	for _, e := range result.Entities {
		props, err := ir.MarshalCanonical(e.Properties)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n  %s\n    type: %s\n", e.EntityID(), e.Metadata.EntityTypeID)
		if e.LinkData != nil {
			fmt.Fprintf(w, "    link: %s -> %s\n", e.LinkData.LeftEntityID, e.LinkData.RightEntityID)
		}
		if e.Metadata.Draft {
			fmt.Fprintln(w, "    draft: true")
		}
		if e.Metadata.Archived {
			fmt.Fprintln(w, "    archived: true")
		}
		fmt.Fprintf(w, "    properties: %s\n", props)
	}
	return nil
}
