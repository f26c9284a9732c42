package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
)

func TestTransform(t *testing.T) {
	u := model.PriceUpdate{
		Symbol:    "AAPL",
		Price:     189.45,
		Change:    1.23,
		ChangePct: 0.65,
		Volume:    52000000,
		Timestamp: "2023-11-14T22:13:20Z",
	}

	row := transform(u)

	if row.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, want AAPL", row.Symbol)
	}
	if row.Price != 189.45 {
		t.Errorf("Price = %v, want 189.45", row.Price)
	}
	if row.ChangePct != 0.65 {
		t.Errorf("ChangePct = %v, want 0.65", row.ChangePct)
	}
	if row.Volume != 52000000 {
		t.Errorf("Volume = %d, want 52000000", row.Volume)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if !row.Ts.Equal(want) {
		t.Errorf("Ts = %v, want %v", row.Ts, want)
	}
	if row.ReceivedAt == 0 {
		t.Error("ReceivedAt = 0, want current time in micros")
	}
}

func TestTransform_BadTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)

	row := transform(model.PriceUpdate{Symbol: "AAPL", Timestamp: "not-a-time"})

	if row.Ts.IsZero() {
		t.Fatal("Ts is zero, want wall clock fallback")
	}
	if row.Ts.Before(before) {
		t.Errorf("Ts = %v, want recent wall clock time", row.Ts)
	}
}

func TestRecorder_AppendAddsToBatch(t *testing.T) {
	r := New(Config{BatchSize: 100, FlushInterval: time.Hour}, nil)

	r.append(context.Background(), model.PriceUpdate{Symbol: "AAPL", Price: 1, Timestamp: "2023-11-14T22:13:20Z"})

	r.batchMu.Lock()
	batchLen := len(r.batch)
	r.batchMu.Unlock()

	if batchLen != 1 {
		t.Errorf("batch length = %d, want 1", batchLen)
	}
}

func TestRecorder_RecordDropsWhenFull(t *testing.T) {
	r := New(Config{BufferSize: 2}, nil)

	for i := 0; i < 3; i++ {
		r.Record(model.PriceUpdate{Symbol: "AAPL"})
	}

	if got := r.Stats().Drops; got != 1 {
		t.Errorf("Drops = %d, want 1", got)
	}
	if got := len(r.input); got != 2 {
		t.Errorf("buffered updates = %d, want 2", got)
	}
}

func TestRecorder_Lifecycle(t *testing.T) {
	r := New(Config{BatchSize: 10, FlushInterval: 50 * time.Millisecond}, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestRecorder_Stats(t *testing.T) {
	r := New(DefaultConfig(), nil)

	stats := r.Stats()

	if stats.Inserts != 0 {
		t.Errorf("initial Inserts = %d, want 0", stats.Inserts)
	}
	if stats.Errors != 0 {
		t.Errorf("initial Errors = %d, want 0", stats.Errors)
	}
	if stats.Flushes != 0 {
		t.Errorf("initial Flushes = %d, want 0", stats.Flushes)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.BatchSize)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.FlushInterval)
	}
	if cfg.BufferSize != 4096 {
		t.Errorf("BufferSize = %d, want 4096", cfg.BufferSize)
	}
}
