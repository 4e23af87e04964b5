package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selivandex/signal-engine/internal/engine"
	"github.com/selivandex/signal-engine/internal/store"
	"github.com/selivandex/signal-engine/pkg/logger"
	"github.com/selivandex/signal-engine/pkg/models"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", ""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeMarket struct {
	features map[string]models.FeatureSnapshot
	returns  map[string]float64
	fetches  int
}

func (f *fakeMarket) FetchFeatures(ctx context.Context) (map[string]models.FeatureSnapshot, error) {
	f.fetches++
	return f.features, nil
}

func (f *fakeMarket) FetchDailyReturns(ctx context.Context) (map[string]float64, error) {
	return f.returns, nil
}

type fakeStrategies struct{}

func (f *fakeStrategies) ActiveStrategy(ctx context.Context) (*models.ModelVersion, error) {
	return nil, store.ErrNoActiveStrategy
}

// memStore implements the predictor and recorder store surfaces in memory.
type memStore struct {
	records map[string]*models.TradeRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.TradeRecord)}
}

func (m *memStore) UpsertPrediction(ctx context.Context, date, asset string, score float64, version int) error {
	rec, ok := m.records[date]
	if !ok {
		rec = &models.TradeRecord{Date: date}
		m.records[date] = rec
	}
	rec.ChosenAsset = asset
	rec.ChosenScore = score
	rec.ModelVersion = version
	return nil
}

func (m *memStore) GetRecord(ctx context.Context, date string) (*models.TradeRecord, error) {
	rec, ok := m.records[date]
	if !ok {
		return nil, fmt.Errorf("record for %s: %w", date, store.ErrRecordNotFound)
	}
	return rec, nil
}

func (m *memStore) UpsertOutcome(ctx context.Context, date string, actualReturn float64, rank int, features map[string]models.FeatureSnapshot, headlines, summary string) error {
	rec, ok := m.records[date]
	if !ok {
		return fmt.Errorf("record for %s: %w", date, store.ErrRecordNotFound)
	}
	rec.ActualReturn = &actualReturn
	rec.RankOfChosen = &rank
	rec.Features = features
	rec.NewsHeadlines = headlines
	rec.StrategySummary = summary
	return nil
}

type fakeBroker struct {
	bought string
	sold   bool
}

func (f *fakeBroker) BuyAllCash(ctx context.Context, symbol string) error {
	f.bought = symbol
	return nil
}

func (f *fakeBroker) SellAll(ctx context.Context) error {
	f.sold = true
	return nil
}

func (f *fakeBroker) Equity(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func testFeatures() map[string]models.FeatureSnapshot {
	features := make(map[string]models.FeatureSnapshot, models.UniverseSize())
	for i, symbol := range models.Universe {
		snap := models.DefaultSnapshot()
		snap.Return24h = float64(i)
		features[symbol] = snap
	}
	return features
}

func newTestScheduler(mkt *fakeMarket, st *memStore, brk *fakeBroker) *Scheduler {
	return New(Deps{
		Market:     mkt,
		Strategies: &fakeStrategies{},
		Predictor:  engine.NewPredictor(st),
		Recorder:   engine.NewRecorder(st),
		Broker:     brk,
	})
}

func TestScheduler_PredictStage(t *testing.T) {
	ctx := context.Background()
	mkt := &fakeMarket{features: testFeatures()}
	st := newMemStore()
	brk := &fakeBroker{}
	s := newTestScheduler(mkt, st, brk)

	now := time.Now().UTC()
	if err := s.runFetch(ctx, now); err != nil {
		t.Fatalf("fetch stage failed: %v", err)
	}
	if err := s.runPredict(ctx, now); err != nil {
		t.Fatalf("predict stage failed: %v", err)
	}

	// Baseline weights are all positive, so the highest return_24h
	// (the last universe symbol) wins.
	wantAsset := models.Universe[models.UniverseSize()-1]
	date := models.DateKey(now)
	rec, err := st.GetRecord(ctx, date)
	if err != nil {
		t.Fatalf("no prediction persisted: %v", err)
	}
	if rec.ChosenAsset != wantAsset {
		t.Errorf("chosen asset = %s, want %s", rec.ChosenAsset, wantAsset)
	}
	if brk.bought != wantAsset {
		t.Errorf("broker bought %s, want %s", brk.bought, wantAsset)
	}
	if mkt.fetches != 1 {
		t.Errorf("fetch count = %d, want 1 (predict must reuse the cache)", mkt.fetches)
	}
}

func TestScheduler_PredictWithoutCacheFetchesFresh(t *testing.T) {
	ctx := context.Background()
	mkt := &fakeMarket{features: testFeatures()}
	st := newMemStore()
	s := newTestScheduler(mkt, st, &fakeBroker{})

	if err := s.runPredict(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("predict stage failed: %v", err)
	}
	if mkt.fetches != 1 {
		t.Errorf("fetch count = %d, want 1 on cold start", mkt.fetches)
	}
}

func TestScheduler_RecordStage(t *testing.T) {
	ctx := context.Background()
	returns := make(map[string]float64, models.UniverseSize())
	for i, symbol := range models.Universe {
		returns[symbol] = -float64(i)
	}
	mkt := &fakeMarket{features: testFeatures(), returns: returns}
	st := newMemStore()
	brk := &fakeBroker{}
	s := newTestScheduler(mkt, st, brk)

	// Evening of day D
	evening := time.Date(2026, 8, 29, 23, 55, 0, 0, time.UTC)
	if err := s.runFetch(ctx, evening); err != nil {
		t.Fatalf("fetch stage failed: %v", err)
	}
	if err := s.runPredict(ctx, evening); err != nil {
		t.Fatalf("predict stage failed: %v", err)
	}
	if err := s.runSell(ctx); err != nil {
		t.Fatalf("sell stage failed: %v", err)
	}
	if !brk.sold {
		t.Error("sell stage did not reach the broker")
	}

	// After midnight the record stage resolves day D
	morning := time.Date(2026, 8, 30, 0, 15, 0, 0, time.UTC)
	if err := s.runRecord(ctx, morning); err != nil {
		t.Fatalf("record stage failed: %v", err)
	}

	rec, err := st.GetRecord(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("missing resolved record: %v", err)
	}
	if !rec.Resolved() {
		t.Fatal("record should be resolved after the record stage")
	}
	if *rec.RankOfChosen < 1 || *rec.RankOfChosen > models.UniverseSize() {
		t.Errorf("rank = %d, want within [1, %d]", *rec.RankOfChosen, models.UniverseSize())
	}
}

func TestScheduler_UnknownStage(t *testing.T) {
	s := newTestScheduler(&fakeMarket{features: testFeatures()}, newMemStore(), &fakeBroker{})

	err := s.RunStage(context.Background(), Stage("bogus"))
	if !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}
