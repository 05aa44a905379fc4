// pkg/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/dag"
	"github.com/pranithapadala/covid-data-pipeline/pkg/objectstore"
)

func newTestPipeline(t *testing.T, csv string, store *objectstore.MemoryStore, warehouse *fakeWarehouse) (*Pipeline, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	t.Cleanup(srv.Close)

	opts := Options{
		SourceEndpoint: srv.URL,
		RawKey:         "raw/covid_us_states_raw.csv",
		ProcessedKey:   "processed/covid_us_states_processed.csv",
		TableName:      "covid_state_metrics",
		Store:          store,
		Warehouse:      warehouse,
		HTTPClient:     srv.Client(),
	}
	return New(opts, zap.NewNop()), srv
}

func TestPipeline_FullRun(t *testing.T) {
	csv := "date,state,fips,cases,deaths\n" +
		"2021-01-01,NY,36,100,5\n" +
		"2021-01-02,NY,36,150,5\n" +
		"2021-01-03,NY,36,140,7\n"

	store := objectstore.NewMemoryStore()
	warehouse := newFakeWarehouse()
	p, _ := newTestPipeline(t, csv, store, warehouse)

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: unexpected error: %v", err)
	}
	if !report.Succeeded() {
		t.Fatalf("report: expected success, results: %+v", report.NodeResults)
	}

	if report.RowsExtracted != 3 {
		t.Errorf("RowsExtracted: got %d, want 3", report.RowsExtracted)
	}
	if report.RowsLoaded != 3 {
		t.Errorf("RowsLoaded: got %d, want 3", report.RowsLoaded)
	}

	if _, ok := store.Get("raw/covid_us_states_raw.csv"); !ok {
		t.Error("raw snapshot was not staged")
	}
	if _, ok := store.Get("processed/covid_us_states_processed.csv"); !ok {
		t.Error("processed snapshot was not staged")
	}
	if warehouse.rowCount() != 3 {
		t.Errorf("warehouse rows: got %d, want 3", warehouse.rowCount())
	}
	if warehouse.ensureCalls != 1 {
		t.Errorf("ensureCalls: got %d, want 1", warehouse.ensureCalls)
	}
}

func TestPipeline_MalformedValueFailsBeforeStagingClean(t *testing.T) {
	// Non-numeric cases: transform fails, so neither the processed snapshot
	// nor the table may be touched
	csv := "date,state,fips,cases,deaths\n" +
		"2021-01-01,NY,36,100,5\n" +
		"2021-01-02,NY,36,not-a-number,5\n"

	store := objectstore.NewMemoryStore()
	warehouse := newFakeWarehouse()
	p, _ := newTestPipeline(t, csv, store, warehouse)

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute: expected error for malformed source value")
	}
	if KindOf(err) != MalformedSource {
		t.Errorf("failure kind: got %s, want MalformedSource", KindOf(err))
	}

	results := report.NodeResults
	if results[NodeTransform].Status != dag.StatusFailed {
		t.Errorf("transform: got %s, want failed", results[NodeTransform].Status)
	}
	if results[NodeStageClean].Status != dag.StatusSkipped {
		t.Errorf("stage_clean: got %s, want skipped", results[NodeStageClean].Status)
	}
	if results[NodeLoad].Status != dag.StatusSkipped {
		t.Errorf("load: got %s, want skipped", results[NodeLoad].Status)
	}

	if _, ok := store.Get("processed/covid_us_states_processed.csv"); ok {
		t.Error("processed snapshot staged despite transform failure")
	}
	if warehouse.rowCount() != 0 {
		t.Error("warehouse written despite transform failure")
	}
}

// keyFailingStore rejects writes to one key and passes everything else
// through to the in-memory store
type keyFailingStore struct {
	*objectstore.MemoryStore
	failKey string
}

func (s *keyFailingStore) Put(ctx context.Context, key string, body []byte) error {
	if key == s.failKey {
		return errors.New("bucket unreachable")
	}
	return s.MemoryStore.Put(ctx, key, body)
}

func TestPipeline_RawStagingFailureDoesNotBlockLoad(t *testing.T) {
	// Raw staging sits on its own branch of the graph; losing it must not
	// stop the transform/load path
	csv := "date,state,fips,cases,deaths\n" +
		"2021-01-01,NY,36,100,5\n" +
		"2021-01-02,NY,36,150,5\n"

	store := &keyFailingStore{
		MemoryStore: objectstore.NewMemoryStore(),
		failKey:     "raw/covid_us_states_raw.csv",
	}
	warehouse := newFakeWarehouse()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	p := New(Options{
		SourceEndpoint: srv.URL,
		RawKey:         "raw/covid_us_states_raw.csv",
		ProcessedKey:   "processed/covid_us_states_processed.csv",
		TableName:      "covid_state_metrics",
		Store:          store,
		Warehouse:      warehouse,
		HTTPClient:     srv.Client(),
	}, zap.NewNop())

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute: expected error when raw staging fails")
	}
	if KindOf(err) != StagingUnavailable {
		t.Errorf("failure kind: got %s, want StagingUnavailable", KindOf(err))
	}

	results := report.NodeResults
	if results[NodeStageRaw].Status != dag.StatusFailed {
		t.Errorf("stage_raw: got %s, want failed", results[NodeStageRaw].Status)
	}
	for _, nodeID := range []string{NodeTransform, NodeStageClean, NodeLoad} {
		if results[nodeID].Status != dag.StatusSucceeded {
			t.Errorf("%s: got %s, want succeeded", nodeID, results[nodeID].Status)
		}
	}

	if _, ok := store.Get("processed/covid_us_states_processed.csv"); !ok {
		t.Error("processed snapshot was not staged")
	}
	if warehouse.rowCount() != 2 {
		t.Errorf("warehouse rows: got %d, want 2", warehouse.rowCount())
	}
	if report.RowsLoaded != 2 {
		t.Errorf("RowsLoaded: got %d, want 2", report.RowsLoaded)
	}
}

func TestPipeline_ExtractFailureSkipsEverythingDownstream(t *testing.T) {
	store := objectstore.NewMemoryStore()
	warehouse := newFakeWarehouse()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(Options{
		SourceEndpoint: srv.URL,
		RawKey:         "raw/covid_us_states_raw.csv",
		ProcessedKey:   "processed/covid_us_states_processed.csv",
		TableName:      "covid_state_metrics",
		Store:          store,
		Warehouse:      warehouse,
		HTTPClient:     srv.Client(),
	}, zap.NewNop())

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute: expected error when source is down")
	}
	if KindOf(err) != SourceUnavailable {
		t.Errorf("failure kind: got %s, want SourceUnavailable", KindOf(err))
	}

	results := report.NodeResults
	for _, nodeID := range []string{NodeStageRaw, NodeTransform, NodeStageClean, NodeLoad} {
		if results[nodeID].Status != dag.StatusSkipped {
			t.Errorf("%s: got %s, want skipped", nodeID, results[nodeID].Status)
		}
	}

	// Schema init does not depend on extraction and still runs
	if results[NodeInitSchema].Status != dag.StatusSucceeded {
		t.Errorf("init_schema: got %s, want succeeded", results[NodeInitSchema].Status)
	}

	// Prior staged snapshots stay untouched on a pre-load failure
	if _, ok := store.Get("raw/covid_us_states_raw.csv"); ok {
		t.Error("raw key written despite extraction failure")
	}
}

func TestPipeline_ExtractRetriesTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte("date,state,fips,cases,deaths\n2021-01-01,NY,36,100,5\n"))
	}))
	defer srv.Close()

	store := objectstore.NewMemoryStore()
	warehouse := newFakeWarehouse()

	p := New(Options{
		SourceEndpoint: srv.URL,
		RawKey:         "raw/covid_us_states_raw.csv",
		ProcessedKey:   "processed/covid_us_states_processed.csv",
		TableName:      "covid_state_metrics",
		Store:          store,
		Warehouse:      warehouse,
		HTTPClient:     srv.Client(),
		RetryAttempts:  3,
	}, zap.NewNop())

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: unexpected error: %v", err)
	}
	if got := report.NodeResults[NodeExtract].Attempts; got != 3 {
		t.Errorf("extract attempts: got %d, want 3", got)
	}
	if !report.Succeeded() {
		t.Error("report: expected success after retries")
	}
}
