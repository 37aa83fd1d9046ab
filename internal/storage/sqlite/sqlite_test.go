package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/observerip/internal/types"
	"go.uber.org/zap/zaptest"
)

func openArchive(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "archive.db"), zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndLatest(t *testing.T) {
	s := openArchive(t)
	ctx := context.Background()

	if r, err := s.Latest(ctx, "backyard"); err != nil || r != nil {
		t.Fatalf("Latest() on an empty archive = %v, %v", r, err)
	}

	base := time.Unix(1700000000, 0)
	readings := []types.Reading{
		{Timestamp: base, StationName: "backyard", OutTemp: 50.5, RainIncremental: 0.01},
		{Timestamp: base.Add(16 * time.Second), StationName: "backyard", OutTemp: 51, RainIncremental: 0.02, TxBatteryStatus: 1, SessionID: "abc"},
		{Timestamp: base.Add(32 * time.Second), StationName: "garage", OutTemp: 70},
	}
	for _, r := range readings {
		if err := s.StoreReading(r); err != nil {
			t.Fatalf("StoreReading() error: %v", err)
		}
	}
	// Same station and second replaces.
	if err := s.StoreReading(readings[1]); err != nil {
		t.Fatalf("StoreReading() duplicate error: %v", err)
	}

	r, err := s.Latest(ctx, "backyard")
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if !r.Timestamp.Equal(readings[1].Timestamp) || r.OutTemp != 51 || r.TxBatteryStatus != 1 || r.SessionID != "abc" {
		t.Errorf("Latest() = %+v", r)
	}

	rain, err := s.RainSince(ctx, "backyard", base)
	if err != nil {
		t.Fatalf("RainSince() error: %v", err)
	}
	if rain < 0.0299 || rain > 0.0301 {
		t.Errorf("RainSince() = %g, want 0.03", rain)
	}
}

func TestStorageEngine(t *testing.T) {
	s := openArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	c := s.StartStorageEngine(ctx, &wg)
	c <- types.Reading{Timestamp: time.Unix(1700000000, 0), StationName: "backyard", OutTemp: 40}

	deadline := time.Now().Add(5 * time.Second)
	for {
		r, _ := s.Latest(context.Background(), "backyard")
		if r != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reading never reached the archive")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	wg.Wait()
}
