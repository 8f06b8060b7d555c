package position

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSaveAndLoadSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	pos := Position{
		NetQty:      decimal.NewFromFloat(10.5),
		AvgPrice:    decimal.NewFromFloat(0.55),
		RealizedPnL: decimal.NewFromFloat(1.23),
	}

	if err := s.SaveSnapshot("BTC-USD", pos); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, ok, err := s.LoadSnapshot("BTC-USD")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !ok {
		t.Fatal("LoadSnapshot: expected ok=true")
	}
	if !loaded.NetQty.Equal(pos.NetQty) {
		t.Errorf("NetQty = %v, want %v", loaded.NetQty, pos.NetQty)
	}
	if !loaded.RealizedPnL.Equal(pos.RealizedPnL) {
		t.Errorf("RealizedPnL = %v, want %v", loaded.RealizedPnL, pos.RealizedPnL)
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	_, ok, err := s.LoadSnapshot("nonexistent")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing snapshot")
	}
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	_ = s.SaveSnapshot("BTC-USD", Position{NetQty: decimal.NewFromFloat(10)})
	_ = s.SaveSnapshot("BTC-USD", Position{NetQty: decimal.NewFromFloat(20)})

	loaded, ok, err := s.LoadSnapshot("BTC-USD")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !loaded.NetQty.Equal(decimal.NewFromFloat(20)) {
		t.Errorf("NetQty = %v, want 20 (latest save)", loaded.NetQty)
	}
}

func TestRestoreInstallsPosition(t *testing.T) {
	t.Parallel()
	b := New()
	pos := Position{NetQty: decimal.NewFromFloat(5), AvgPrice: decimal.NewFromFloat(100)}

	b.Restore("BTC-USD", pos)

	got := b.Snapshot("BTC-USD")
	if !got.NetQty.Equal(pos.NetQty) {
		t.Errorf("NetQty = %v, want %v", got.NetQty, pos.NetQty)
	}
}
