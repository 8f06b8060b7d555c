package causal

import (
	"path/filepath"
	"testing"
)

func TestRecorderReplayRoundTrip(t *testing.T) {
	t.Parallel()
	base := filepath.Join(t.TempDir(), "session")

	rec, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tick := TickRecord{Header: Header{ID: 1, ParentID: 0, Type: TypeTick, TSNanos: 1000, SymbolHash: 42}, Bid: 100.1, Ask: 100.3, BidSz: 5, AskSz: 7}
	decision := DecisionRecord{Header: Header{ID: 2, ParentID: 1, Type: TypeDecision, TSNanos: 1050, SymbolHash: 42}, EngineID: 3, EdgeScore: 0.125}
	risk := RiskRecord{Header: Header{ID: 3, ParentID: 2, Type: TypeRisk, TSNanos: 1060, SymbolHash: 42}, Allowed: true, MaxPos: 10, CurPos: 2}
	fill := FillRecord{Header: Header{ID: 4, ParentID: 3, Type: TypeFill, TSNanos: 1090, SymbolHash: 42}, FillPrice: 100.2, FillQty: 1}

	if err := rec.RecordTick(tick); err != nil {
		t.Fatalf("RecordTick: %v", err)
	}
	if err := rec.RecordDecision(decision); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if err := rec.RecordRisk(risk); err != nil {
		t.Fatalf("RecordRisk: %v", err)
	}
	if err := rec.RecordFill(fill); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := OpenReader(base)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()

	got, err := reader.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}

	gotTick, ok := got[0].(TickRecord)
	if !ok || gotTick != tick {
		t.Fatalf("tick round-trip mismatch: got %+v, want %+v", got[0], tick)
	}
	gotDecision, ok := got[1].(DecisionRecord)
	if !ok || gotDecision != decision {
		t.Fatalf("decision round-trip mismatch: got %+v, want %+v", got[1], decision)
	}
	gotRisk, ok := got[2].(RiskRecord)
	if !ok || gotRisk != risk {
		t.Fatalf("risk round-trip mismatch: got %+v, want %+v", got[2], risk)
	}
	gotFill, ok := got[3].(FillRecord)
	if !ok || gotFill != fill {
		t.Fatalf("fill round-trip mismatch: got %+v, want %+v", got[3], fill)
	}
}

func TestReplayEmptyLogIsEOF(t *testing.T) {
	t.Parallel()
	base := filepath.Join(t.TempDir(), "empty")
	rec, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := OpenReader(base)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()

	got, err := reader.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records, want 0", len(got))
	}
}
