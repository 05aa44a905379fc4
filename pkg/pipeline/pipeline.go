// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/config"
	"github.com/pranithapadala/covid-data-pipeline/pkg/connector"
	"github.com/pranithapadala/covid-data-pipeline/pkg/dag"
	"github.com/pranithapadala/covid-data-pipeline/pkg/model"
	"github.com/pranithapadala/covid-data-pipeline/pkg/objectstore"
)

// Node ids of the task graph
const (
	NodeInitSchema = "init_schema"
	NodeExtract    = "extract"
	NodeStageRaw   = "stage_raw"
	NodeTransform  = "transform"
	NodeStageClean = "stage_clean"
	NodeLoad       = "load"
)

// Options carries the external collaborators and knobs a Pipeline needs.
// Everything that touches the network is injected so runs are testable.
type Options struct {
	SourceEndpoint string
	RawKey         string
	ProcessedKey   string
	TableName      string

	Store      objectstore.ObjectStore
	Warehouse  connector.WarehouseConnector
	HTTPClient *http.Client

	// Retry policy for transient node failures
	RetryAttempts int
	RetryDelay    time.Duration
}

// OptionsFromConfig builds Options from the application configuration plus
// the two constructed stores
func OptionsFromConfig(cfg *config.Config, store objectstore.ObjectStore, warehouse connector.WarehouseConnector) Options {
	return Options{
		SourceEndpoint: cfg.SourceEndpoint,
		RawKey:         cfg.RawKey,
		ProcessedKey:   cfg.ProcessedKey,
		TableName:      cfg.TableName,
		Store:          store,
		Warehouse:      warehouse,
		RetryAttempts:  cfg.RetryAttempts,
		RetryDelay:     cfg.RetryDelay,
	}
}

// Pipeline owns the five ETL nodes and the task graph that orders them
type Pipeline struct {
	opts   Options
	logger *zap.Logger

	schemaInit  *SchemaInitializer
	extractor   *Extractor
	rawStager   *Stager
	transformer *Transformer
	cleanStager *Stager
	loader      *Loader
}

// New builds a pipeline from the given options
func New(opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		opts:        opts,
		logger:      logger,
		schemaInit:  NewSchemaInitializer(opts.Warehouse, opts.TableName, logger),
		extractor:   NewExtractor(opts.SourceEndpoint, opts.HTTPClient, logger),
		rawStager:   NewRawStager(opts.Store, opts.RawKey, logger),
		transformer: NewTransformer(logger),
		cleanStager: NewCleanStager(opts.Store, opts.ProcessedKey, logger),
		loader:      NewLoader(opts.Warehouse, opts.TableName, logger),
	}
}

// buildGraph wires the task dependency graph:
//
//	extract ─┬─> stage_raw
//	         └─> transform ─┬─> stage_clean
//	init_schema ────────────┴─> load
//
// Snapshots flow through the run struct; each field is written by exactly
// one node and read only by nodes downstream of it.
func (p *Pipeline) buildGraph(run *runData) (*dag.Graph, error) {
	g := dag.New()

	transientRetry := dag.RetryPolicy{
		MaxAttempts: p.opts.RetryAttempts,
		Backoff:     p.opts.RetryDelay,
		Retryable:   IsRetryable,
	}
	noRetry := dag.RetryPolicy{}

	if err := g.AddNode(NodeInitSchema, func(ctx context.Context) error {
		return p.schemaInit.Run(ctx)
	}, noRetry); err != nil {
		return nil, err
	}

	if err := g.AddNode(NodeExtract, func(ctx context.Context) error {
		raw, err := p.extractor.Run(ctx)
		if err != nil {
			return err
		}
		run.raw = raw
		return nil
	}, transientRetry); err != nil {
		return nil, err
	}

	if err := g.AddNode(NodeStageRaw, func(ctx context.Context) error {
		return p.rawStager.Run(ctx, run.raw)
	}, transientRetry); err != nil {
		return nil, err
	}

	if err := g.AddNode(NodeTransform, func(ctx context.Context) error {
		clean, err := p.transformer.Run(run.raw)
		if err != nil {
			return err
		}
		run.clean = clean
		return nil
	}, noRetry); err != nil {
		return nil, err
	}

	if err := g.AddNode(NodeStageClean, func(ctx context.Context) error {
		return p.cleanStager.Run(ctx, run.clean)
	}, transientRetry); err != nil {
		return nil, err
	}

	if err := g.AddNode(NodeLoad, func(ctx context.Context) error {
		loaded, err := p.loader.Run(ctx, run.clean)
		if err != nil {
			return err
		}
		run.rowsLoaded = loaded
		return nil
	}, noRetry); err != nil {
		return nil, err
	}

	edges := [][2]string{
		{NodeExtract, NodeStageRaw},
		{NodeExtract, NodeTransform},
		{NodeTransform, NodeStageClean},
		{NodeTransform, NodeLoad},
		{NodeInitSchema, NodeLoad},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// runData holds the snapshots produced during one run. Discarded at end of
// run; nothing persists across runs except the staging and loading side
// effects.
type runData struct {
	raw        *model.RawSnapshot
	clean      *model.CleanSnapshot
	rowsLoaded int64
}

// Execute performs one full pipeline run and returns its report. The
// returned error is the first root-cause node failure, if any; per-node
// outcomes are always available in the report.
func (p *Pipeline) Execute(ctx context.Context) (*RunReport, error) {
	report := NewRunReport()
	logger := p.logger.With(zap.String("run_id", report.RunID))
	logger.Info("Starting pipeline run")

	run := &runData{}
	graph, err := p.buildGraph(run)
	if err != nil {
		return report, err
	}

	executor := dag.NewExecutor(graph, logger, 3)
	results, runErr := executor.Run(ctx)

	report.Complete(results)
	if run.raw != nil {
		report.RowsExtracted = run.raw.Len()
	}
	report.RowsLoaded = run.rowsLoaded
	report.Log(logger)

	return report, runErr
}
