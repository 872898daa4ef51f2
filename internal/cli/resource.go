package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kiosk/internal/entity"
	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
	"github.com/roach88/kiosk/internal/store"
)

// queryOptions holds the list and count filters.
type queryOptions struct {
	SortBy      []string
	Order       string
	Limit       int
	LimitToLast int
	StartAt     string
	StartAfter  string
	EndAt       string
	EndBefore   string
	VQL         string
	Expand      []string
}

func (q *queryOptions) register(flags *pflag.FlagSet) {
	flags.StringSliceVar(&q.SortBy, "sort", nil, "sort keys, id is always the final tiebreaker")
	flags.StringVar(&q.Order, "order", string(query.Asc), "sort order (asc|desc)")
	flags.IntVar(&q.Limit, "limit", 0, "maximum number of documents")
	flags.IntVar(&q.LimitToLast, "limit-to-last", 0, "return the last n documents of the ordering")
	flags.StringVar(&q.StartAt, "start-at", "", "inclusive lower cursor, e.g. updated_at:2024-01-01,id:prod_1")
	flags.StringVar(&q.StartAfter, "start-after", "", "exclusive lower cursor")
	flags.StringVar(&q.EndAt, "end-at", "", "inclusive upper cursor")
	flags.StringVar(&q.EndBefore, "end-before", "", "exclusive upper cursor")
	flags.StringVar(&q.VQL, "vql", "", "search expression, e.g. \"tag:red & !discount:dis_1\"")
	flags.StringSliceVar(&q.Expand, "expand", nil, "connections to expand")
}

func (q *queryOptions) apiQuery() (*query.ApiQuery, error) {
	out := &query.ApiQuery{
		SortBy:      q.SortBy,
		Order:       query.Order(q.Order),
		Limit:       q.Limit,
		LimitToLast: q.LimitToLast,
		VQL:         q.VQL,
		Expand:      q.Expand,
	}
	cursors := []struct {
		flag string
		src  string
		dst  *query.Cursor
	}{
		{"start-at", q.StartAt, &out.StartAt},
		{"start-after", q.StartAfter, &out.StartAfter},
		{"end-at", q.EndAt, &out.EndAt},
		{"end-before", q.EndBefore, &out.EndBefore},
	}
	for _, c := range cursors {
		cur, err := query.ParseCursor(c.src)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", c.flag, err)
		}
		*c.dst = cur
	}
	return out, nil
}

// parseKind resolves the kind argument.
func parseKind(arg string) (ir.Kind, error) {
	kind, ok := ir.ParseKind(arg)
	if !ok {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("unknown resource kind %q", arg))
	}
	return kind, nil
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	var expand []string

	cmd := &cobra.Command{
		Use:   "get <kind> <id|handle>",
		Short: "Fetch one document",
		Long: `Fetch one document by id or handle.

Example:
  kiosk get product summer-shirt --expand collections,discounts`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return opts.fail(cmd, err)
			}
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				doc, err := st.Resource(kind).Get(ctx, args[1], expand...)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(doc, func(w io.Writer) error {
					return writeDocument(w, doc)
				})
			})
		},
	}

	cmd.Flags().StringSliceVar(&expand, "expand", nil, "connections to expand (or \"*\")")
	return cmd
}

// NewValuesCommand creates the values command.
func NewValuesCommand(opts *RootOptions) *cobra.Command {
	var relContext string

	cmd := &cobra.Command{
		Use:   "values <kind> <id|handle> <table>",
		Short: "Read the junction values a document owns",
		Long: `Read the values one document owns in a junction table, in insertion order.

storefronts_to_other needs --context; no other table accepts it.

Examples:
  kiosk values product summer-shirt entity_to_tags_projections
  kiosk values storefront main storefronts_to_other --context collections`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return opts.fail(cmd, err)
			}
			table := entity.Table(args[2])
			if !table.Valid() {
				return opts.fail(cmd, NewExitError(ExitCommandError, fmt.Sprintf("unknown junction table %q", args[2])))
			}
			var rc ir.RelationContext
			if relContext != "" {
				if rc, err = ir.ParseRelationContext(relContext); err != nil {
					return opts.fail(cmd, WrapExitError(ExitCommandError, "", err))
				}
			}
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				values, err := st.Resource(kind).Values(ctx, table, args[1], rc)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(values, func(w io.Writer) error {
					for _, v := range values {
						if _, err := fmt.Fprintln(w, v); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&relContext, "context", "", "relation context of storefronts_to_other (products, collections, ...)")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List documents",
		Long: `List documents in keyset-paginated order.

Examples:
  kiosk list product --sort updated_at --order desc --limit 10
  kiosk list product --vql "tag:summer & !tag:sale"
  kiosk list product --sort updated_at --start-after updated_at:2024-01-01T00:00:00.000Z,id:prod_1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return opts.fail(cmd, err)
			}
			aq, err := q.apiQuery()
			if err != nil {
				return opts.fail(cmd, err)
			}
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				docs, err := st.Resource(kind).List(ctx, aq)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(docs, func(w io.Writer) error {
					return writeRows(w, docs)
				})
			})
		},
	}

	q.register(cmd.Flags())
	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "count <kind>",
		Short: "Count documents",
		Long: `Count the documents matching the same filters list accepts.

Example:
  kiosk count product --vql "tag:summer"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return opts.fail(cmd, err)
			}
			aq, err := q.apiQuery()
			if err != nil {
				return opts.fail(cmd, err)
			}
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				n, err := st.Resource(kind).Count(ctx, aq)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(map[string]int{"count": n}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, n)
					return err
				})
			})
		},
	}

	q.register(cmd.Flags())
	return cmd
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(opts *RootOptions) *cobra.Command {
	var (
		file  string
		terms []string
	)

	cmd := &cobra.Command{
		Use:   "upsert <kind> -f <file>",
		Short: "Create or replace a document",
		Long: `Create or replace a document read from a JSON or YAML file.

Missing ids, created_at and updated_at are filled in. The document is
indexed for search by its id, handle, email, title, name and tags; --term
adds more terms. Use "-f -" to read JSON from stdin.

Example:
  kiosk upsert product -f shirt.yaml --term cotton --term summer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return opts.fail(cmd, err)
			}
			doc, err := readDocument(cmd.InOrStdin(), file)
			if err != nil {
				return opts.fail(cmd, WrapExitError(ExitCommandError, "failed to read document", err))
			}
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				stored, err := st.Resource(kind).UpsertIndexed(ctx, doc, terms...)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(stored, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "upserted %s %s\n", kind, stored.ID())
					return err
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "document file (.json, .yaml or .yml; - for stdin)")
	cmd.Flags().StringArrayVar(&terms, "term", nil, "extra search term (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readDocument decodes a document by file extension. Anything that is
// not .yaml or .yml is read as JSON.
func readDocument(stdin io.Reader, path string) (ir.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s holds no document", path)
	}
	return ir.Document(doc), nil
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <kind> <id|handle>",
		Short: "Delete a document and its connections",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return opts.fail(cmd, err)
			}
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if err := st.Resource(kind).Remove(ctx, args[1]); err != nil {
					return opts.fail(cmd, err)
				}
				data := map[string]string{"kind": string(kind), "id": args[1]}
				return opts.formatter(cmd).Success(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "removed %s %s\n", kind, args[1])
					return err
				})
			})
		},
	}
	return cmd
}
