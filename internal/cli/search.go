package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
	"github.com/roach88/kiosk/internal/store"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	var (
		kinds []string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <vql>",
		Short: "Quick-search every resource kind",
		Long: `Search id, handle and title across resource kinds in one transaction.

Examples:
  kiosk search "summer shirt"
  kiosk search "tag:sale" --kind product --kind collection --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var selected []ir.Kind
			for _, k := range kinds {
				kind, err := parseKind(k)
				if err != nil {
					return opts.fail(cmd, err)
				}
				selected = append(selected, kind)
			}
			q := &query.ApiQuery{VQL: args[0], Limit: limit}

			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				found, err := st.Search(ctx, q, selected...)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(found, func(w io.Writer) error {
					for _, kind := range ir.AllKinds {
						for _, doc := range found[kind] {
							if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", kind, doc.ID(), doc.Handle()); err != nil {
								return err
							}
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringArrayVar(&kinds, "kind", nil, "resource kind to search (repeatable, default all)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results per kind")
	return cmd
}

// KindCount is one row of the stats output.
type KindCount struct {
	Kind  ir.Kind `json:"kind"`
	Count int     `json:"count"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count every resource kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				counts, err := countAll(ctx, st)
				if err != nil {
					return opts.fail(cmd, err)
				}
				return opts.formatter(cmd).Success(counts, func(w io.Writer) error {
					for _, c := range counts {
						if _, err := fmt.Fprintf(w, "%-16s %d\n", c.Kind, c.Count); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	return cmd
}

// countAll counts each kind in its own transaction, concurrently.
func countAll(ctx context.Context, st *store.Store) ([]KindCount, error) {
	counts := make([]KindCount, len(ir.AllKinds))
	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range ir.AllKinds {
		g.Go(func() error {
			n, err := st.Resource(kind).Count(ctx, &query.ApiQuery{})
			if err != nil {
				return err
			}
			counts[i] = KindCount{Kind: kind, Count: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema",
		Long: `Create every table and index of the configured dialect. Running it
again on an initialized database changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				data := map[string]string{"dialect": st.Dialect().Name()}
				return opts.formatter(cmd).Success(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "schema ready (%s)\n", st.Dialect().Name())
					return err
				})
			})
		},
	}
	return cmd
}
