package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/spatialgo"
	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/observability"
	"github.com/hupe1980/spatialgo/testutil"
)

var _ = reflect.TypeOf(config{})

type config struct {
	Mode        string `cli:""        env:"SPATIALBENCH_MODE"         help:"Benchmark mode (run|compare)."`
	Index       string `cli:""        env:"SPATIALBENCH_INDEX"        help:"Index type for run mode (tree|bvh|grid)."`
	Config      string `cli:""        env:"SPATIALBENCH_CONFIG"       help:"Optional JSON manager config file."`
	Items       int    `cli:""        env:"SPATIALBENCH_ITEMS"        help:"Number of items to insert."`
	Moves       int    `cli:""        env:"SPATIALBENCH_MOVES"        help:"Number of item updates."`
	Queries     int    `cli:""        env:"SPATIALBENCH_QUERIES"      help:"Number of box, nearest and ray queries each."`
	World       int    `cli:""        env:"SPATIALBENCH_WORLD"        help:"Edge length of the cubic world."`
	CellSize    int    `cli:""        env:"SPATIALBENCH_CELL_SIZE"    help:"Grid cell edge length."`
	Seed        int    `cli:",hidden" env:"SPATIALBENCH_SEED"         help:"Workload random seed."`
	MetricsAddr string `cli:""        env:"SPATIALBENCH_METRICS_ADDR" help:"Serve Prometheus metrics on this address while running."`
	LogLevel    string `cli:""        env:"SPATIALBENCH_LOG_LEVEL"    help:"Log level (debug|info|warn|error)."`
	Help        bool   `cli:""        env:"-"                         help:"Show help."`
}

type workload struct {
	items   []index.Item
	moves   []geom.AABB
	boxes   []geom.AABB
	points  []geom.Vector3
	world   geom.AABB
	rayDirs []geom.Vector3
}

type phase struct {
	Ops       int     `json:"ops"`
	TotalMS   float64 `json:"total_ms"`
	AvgMicros float64 `json:"avg_us"`
	Results   int     `json:"results,omitempty"`
}

type report struct {
	Index   string           `json:"index"`
	Items   int              `json:"items"`
	Phases  map[string]phase `json:"phases"`
	Debug   index.DebugInfo  `json:"debug"`
	Elapsed string           `json:"elapsed"`
}

func main() {
	conf := config{
		Mode:     "run",
		Index:    "tree",
		Items:    10000,
		Moves:    10000,
		Queries:  1000,
		World:    1000,
		CellSize: 25,
		Seed:     42,
		LogLevel: "info",
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Benchmarks the spatial indexes on a random workload.").
		Options(&conf)
	cli.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(conf.LogLevel)); err != nil {
		fmt.Fprintln(os.Stderr, "invalid log level:", err)
		os.Exit(2)
	}
	logger := spatialgo.NewJSONLogger(level)

	if err := run(ctx, conf, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf config, logger *spatialgo.Logger) error {
	if conf.Items <= 0 || conf.World <= 0 || conf.CellSize <= 0 {
		return fmt.Errorf("items, world and cell-size must be positive")
	}

	base, err := baseOptions(conf, logger)
	if err != nil {
		return err
	}

	if conf.MetricsAddr != "" {
		collector, err := observability.NewPrometheusCollector()
		if err != nil {
			return err
		}
		base = append(base, spatialgo.WithMetricsCollector(collector))

		srv := &http.Server{Addr: conf.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", "addr", conf.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	w := newWorkload(conf)

	var types []index.Type
	switch conf.Mode {
	case "run":
		t, ok := index.ParseType(conf.Index)
		if !ok {
			return fmt.Errorf("unknown index type %q", conf.Index)
		}
		types = []index.Type{t}
	case "compare":
		types = []index.Type{index.TypeDynamicTree, index.TypeBVH, index.TypeGridHash}
	default:
		return fmt.Errorf("unknown mode %q", conf.Mode)
	}

	reports := make([]report, len(types))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			r, err := bench(ctx, t, w, base, logger.WithIndexType(t))
			if err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func baseOptions(conf config, logger *spatialgo.Logger) ([]spatialgo.Option, error) {
	size := float64(conf.World)
	opts := []spatialgo.Option{
		spatialgo.WithLogger(logger),
		spatialgo.WithAutoOptimize(false),
		spatialgo.WithGrid(float64(conf.CellSize), geom.Box(0, 0, 0, size, size, size)),
	}

	if conf.Config != "" {
		c, err := spatialgo.LoadConfig(conf.Config)
		if err != nil {
			return nil, err
		}
		extra, err := c.Options()
		if err != nil {
			return nil, err
		}
		opts = append(opts, extra...)
	}
	return opts, nil
}

func newWorkload(conf config) workload {
	rng := testutil.NewRNG(int64(conf.Seed))
	size := float64(conf.World)
	world := geom.Box(0, 0, 0, size, size, size)
	maxSize := size / 100

	boxes := rng.UniformBoxes(conf.Items, world, maxSize/10, maxSize)
	items := make([]index.Item, len(boxes))
	for i, b := range boxes {
		items[i] = index.Item{ID: uuid.NewString(), Bounds: b}
	}

	w := workload{
		items: items,
		moves: make([]geom.AABB, conf.Moves),
		boxes: rng.UniformBoxes(conf.Queries, world, maxSize, maxSize*5),
		world: world,
	}
	for i := range w.moves {
		// Small jitter around the original position, mostly inside the fat box.
		b := boxes[i%len(boxes)]
		d := geom.Vec(rng.Range(-0.5, 0.5), rng.Range(-0.5, 0.5), rng.Range(-0.5, 0.5))
		w.moves[i] = geom.NewAABB(r3.Add(b.Min, d), r3.Add(b.Max, d))
	}
	for range conf.Queries {
		w.points = append(w.points, rng.Point(world))
		w.rayDirs = append(w.rayDirs, geom.Vec(rng.Range(-1, 1), rng.Range(-1, 1), rng.Range(-1, 1)))
	}
	return w
}

func bench(ctx context.Context, t index.Type, w workload, base []spatialgo.Option, logger *spatialgo.Logger) (report, error) {
	opts := append(append([]spatialgo.Option{}, base...), spatialgo.WithIndexType(t))
	m, err := spatialgo.New(opts...)
	if err != nil {
		return report{}, err
	}

	start := time.Now()
	r := report{Index: t.String(), Items: len(w.items), Phases: map[string]phase{}}

	measure := func(name string, n int, fn func(i int) int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		began := time.Now()
		results := 0
		for i := range n {
			results += fn(i)
		}
		took := time.Since(began)

		p := phase{Ops: n, TotalMS: float64(took) / float64(time.Millisecond), Results: results}
		if n > 0 {
			p.AvgMicros = float64(took) / float64(time.Microsecond) / float64(n)
		}
		r.Phases[name] = p
		logger.Debug("phase completed", "phase", name, "ops", n, "duration", took)
		return nil
	}

	var insertErr error
	steps := []struct {
		name string
		n    int
		fn   func(i int) int
	}{
		{"insert", len(w.items), func(i int) int {
			if err := m.Insert(w.items[i]); err != nil && insertErr == nil {
				insertErr = err
			}
			return 0
		}},
		{"update", len(w.moves), func(i int) int {
			m.Update(w.items[i%len(w.items)].ID, w.moves[i])
			return 0
		}},
		{"query", len(w.boxes), func(i int) int {
			return len(m.Query(index.Query{Bounds: w.boxes[i]}))
		}},
		{"nearest", len(w.points), func(i int) int {
			if _, ok := m.Nearest(w.points[i], 0); ok {
				return 1
			}
			return 0
		}},
		{"raycast", len(w.points), func(i int) int {
			return len(m.Raycast(w.points[i], w.rayDirs[i], w.world.Size().X/10))
		}},
	}

	for _, s := range steps {
		if err := measure(s.name, s.n, s.fn); err != nil {
			return report{}, err
		}
		if insertErr != nil {
			return report{}, insertErr
		}
	}

	r.Debug = m.Debug()
	r.Elapsed = time.Since(start).String()
	logger.Info("benchmark completed", "items", len(w.items), "elapsed", r.Elapsed)
	return r, nil
}
