// Tarantula content repository resolution CLI
// Resolves paths, aggregates node details, renders projections and
// runs attribute queries against the backing store
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonnycoombes/tarantula/internal/config"
	"github.com/jonnycoombes/tarantula/internal/logger"
	"github.com/jonnycoombes/tarantula/internal/metrics"
	"github.com/jonnycoombes/tarantula/internal/worker"
	"github.com/jonnycoombes/tarantula/pkg/cache"
	"github.com/jonnycoombes/tarantula/pkg/details"
	"github.com/jonnycoombes/tarantula/pkg/node"
	"github.com/jonnycoombes/tarantula/pkg/query"
	"github.com/jonnycoombes/tarantula/pkg/render"
	"github.com/jonnycoombes/tarantula/pkg/resolve"
	"github.com/jonnycoombes/tarantula/pkg/store"
)

var (
	flagConfig  string
	flagDB      string
	flagDepth   int
	flagLenient bool
	flagDetails bool
)

// app wires configuration, instrumentation, the store and the three
// resolution components together for one command invocation.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	store    *store.Store
	resolver *resolve.Resolver
	agg      *details.Aggregator
	renderer *render.Renderer
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	log := logger.GetGlobalLogger()
	m := metrics.NewMetrics()
	pool := worker.NewPool(cfg.Worker.PoolSize)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	st.SetLogger(log.Component("store"))
	st.SetPool(pool)
	st.SetMetrics(m)

	pathCache := cache.New[string, node.NodeCoreDetails](cfg.Cache.PathTTL())
	detailCache := cache.New[int64, node.NodeDetails](cfg.Cache.DetailTTL())
	projCache := cache.New[int64, render.Projection](cfg.Cache.ProjectionTTL())

	resolver := resolve.NewResolver(st, pathCache, cfg.Resolve.RootParentID, cfg.Resolve.Expansions)
	resolver.SetLogger(log.Component("resolve"))
	resolver.SetMetrics(m)

	agg := details.NewAggregator(st, detailCache)
	agg.SetLogger(log.Component("details"))
	agg.SetMetrics(m)

	renderer := render.NewRenderer(agg, projCache, cfg.Render.MaxDepth, cfg.Render.HiddenPrefix)
	renderer.SetLogger(log.Component("render"))
	renderer.SetMetrics(m)

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		store:    st,
		resolver: resolver,
		agg:      agg,
		renderer: renderer,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// resolveTarget accepts either a numeric node id or a /-separated path.
func (a *app) resolveTarget(ctx context.Context, target string) (int64, error) {
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		return id, nil
	}
	segments := strings.Split(strings.Trim(target, "/"), "/")
	core, err := a.resolver.Resolve(ctx, segments)
	if err != nil {
		return 0, err
	}
	return core.DataID, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Resolve a path to its node core details",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			segments := strings.Split(strings.Trim(args[0], "/"), "/")
			core, err := a.resolver.Resolve(c.Context(), segments)
			if err != nil {
				return err
			}
			return printJSON(core)
		},
	}
}

func newDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <path|id>",
		Short: "Load the full detail aggregate for a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.resolveTarget(c.Context(), args[0])
			if err != nil {
				return err
			}
			d, err := a.agg.LoadByID(c.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <path|id>",
		Short: "Render a depth-bounded nested projection",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.resolveTarget(c.Context(), args[0])
			if err != nil {
				return err
			}
			proj, err := a.renderer.RenderByID(c.Context(), id, flagDepth)
			if err != nil {
				return err
			}
			return printJSON(proj)
		},
	}
	cmd.Flags().IntVar(&flagDepth, "depth", 0, "Levels of children to render")
	return cmd
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <expression>",
		Short: "Run a boolean attribute query",
		Long: `Run a boolean attribute query against the repository.

  tarantula query "node.name == 'Invoice'"
  tarantula query "node.subType == 144 && Finance.Status == 'Approved'"

Operators && and || share one precedence level and bind strictly left
to right; parenthesize to override.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			clause, err := query.Parse(args[0])
			a.metrics.RecordQueryParse(err)
			if err != nil {
				return err
			}

			var compiled *query.Compiled
			if flagLenient {
				var diags []*query.UnsupportedColumnError
				compiled, diags, err = query.CompileLenient(clause)
				for _, d := range diags {
					a.log.Warn("Predicate dropped from query").
						Str("field", d.Field).
						Msg("unsupported core column")
				}
			} else {
				compiled, err = query.Compile(clause)
			}
			a.metrics.RecordQueryCompile(err)
			if err != nil {
				return err
			}

			ids, err := query.Run(c.Context(), a.store, compiled)
			if err != nil {
				return err
			}

			if !flagDetails {
				return printJSON(ids)
			}
			results := make([]node.NodeDetails, 0, len(ids))
			for _, id := range ids {
				d, err := a.agg.LoadByID(c.Context(), id)
				if err != nil {
					return err
				}
				results = append(results, d)
			}
			return printJSON(results)
		},
	}
	cmd.Flags().BoolVar(&flagLenient, "lenient", false, "Drop unsupported core-column predicates instead of failing")
	cmd.Flags().BoolVar(&flagDetails, "details", false, "Load full details for each matching node")
	return cmd
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the backing schema for an embedded deployment",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Bootstrap(); err != nil {
				return err
			}
			a.log.Info("Schema ready").Str("database", a.cfg.Database.Path).Msg("bootstrap complete")
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "tarantula",
		Short:         "Hierarchical content repository resolution and query tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML configuration")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Backing database path (overrides config)")

	root.AddCommand(
		newResolveCmd(),
		newDetailsCmd(),
		newRenderCmd(),
		newQueryCmd(),
		newBootstrapCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tarantula: %v\n", err)
		os.Exit(1)
	}
}
