package causal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// Recorder is the process-wide causal log singleton (the second of the two
// sanctioned global-mutable-state pieces, alongside the mode guard). It is
// passed by reference into every component that needs to record — there is
// no package-level instance and no hidden access, per the design notes.
//
// Writes are serialised behind a single mutex; back-pressure from a full
// downstream (disk, in practice) is visible to callers as a returned error,
// per §7's back-pressure handling — callers on the hot path are expected to
// treat a Record error as "drop this record" rather than block, except for
// the final shutdown record.
type Recorder struct {
	mu   sync.Mutex
	bin  *os.File
	binW *bufio.Writer
	text *os.File
	textW *bufio.Writer
}

// Open creates (or truncates) the sibling <basePath>.bin and <basePath>.jsonl
// files described in §6. basePath has no extension.
func Open(basePath string) (*Recorder, error) {
	bin, err := os.OpenFile(basePath+".bin", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open binary causal log: %w", err)
	}
	text, err := os.OpenFile(basePath+".jsonl", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		bin.Close()
		return nil, fmt.Errorf("open jsonl causal log: %w", err)
	}
	return &Recorder{
		bin:   bin,
		binW:  bufio.NewWriter(bin),
		text:  text,
		textW: bufio.NewWriter(text),
	}, nil
}

// Close flushes and closes both sibling files.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err1 := r.flushLocked()
	err2 := r.bin.Close()
	err3 := r.text.Close()
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}

// Flush forces both sibling files to durable storage. Call before process
// exit and after any fatal invariant violation, per §7.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if err := r.binW.Flush(); err != nil {
		return fmt.Errorf("flush binary causal log: %w", err)
	}
	if err := r.textW.Flush(); err != nil {
		return fmt.Errorf("flush jsonl causal log: %w", err)
	}
	if err := r.bin.Sync(); err != nil {
		return fmt.Errorf("sync binary causal log: %w", err)
	}
	if err := r.text.Sync(); err == nil {
		// best effort; binary sync above is the authoritative durability point
	}
	return nil
}

// RecordTick appends a TickRecord.
func (r *Recorder) RecordTick(rec TickRecord) error { return r.write(rec) }

// RecordDecision appends a DecisionRecord.
func (r *Recorder) RecordDecision(rec DecisionRecord) error { return r.write(rec) }

// RecordRisk appends a RiskRecord.
func (r *Recorder) RecordRisk(rec RiskRecord) error { return r.write(rec) }

// RecordOrderIntent appends an OrderIntentRecord.
func (r *Recorder) RecordOrderIntent(rec OrderIntentRecord) error { return r.write(rec) }

// RecordVenueAck appends a VenueAckRecord.
func (r *Recorder) RecordVenueAck(rec VenueAckRecord) error { return r.write(rec) }

// RecordFill appends a FillRecord.
func (r *Recorder) RecordFill(rec FillRecord) error { return r.write(rec) }

// RecordPnLAttribution appends a PnLAttributionRecord.
func (r *Recorder) RecordPnLAttribution(rec PnLAttributionRecord) error { return r.write(rec) }

func (r *Recorder) write(rec any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := binary.Write(r.binW, binary.LittleEndian, rec); err != nil {
		return fmt.Errorf("write binary causal record: %w", err)
	}

	line, err := jsonLine(rec)
	if err != nil {
		return fmt.Errorf("encode jsonl causal record: %w", err)
	}
	if _, err := r.textW.WriteString(line); err != nil {
		return fmt.Errorf("write jsonl causal record: %w", err)
	}
	return nil
}

// jsonLine renders rec as one compact JSON-like text line, mirroring the
// original recorder's hand-rolled field emission rather than a generic
// encoding/json pass, since the header's Type is an enum code we want
// rendered the same way on both sides of the sibling-file pair.
func jsonLine(rec any) (string, error) {
	switch v := rec.(type) {
	case TickRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"bid":%.8f,"ask":%.8f,"bid_sz":%.8f,"ask_sz":%.8f}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.Bid, v.Ask, v.BidSz, v.AskSz), nil
	case DecisionRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"engine_id":%d,"edge_score":%.6f}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.EngineID, v.EdgeScore), nil
	case RiskRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"allowed":%t,"max_pos":%.8f,"cur_pos":%.8f}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.Allowed, v.MaxPos, v.CurPos), nil
	case OrderIntentRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"is_buy":%t,"price":%.8f,"qty":%.8f}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.IsBuy, v.Price, v.Qty), nil
	case VenueAckRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"accepted":%t,"venue_code":%d}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.Accepted, v.VenueCode), nil
	case FillRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"fill_price":%.8f,"fill_qty":%.8f}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.FillPrice, v.FillQty), nil
	case PnLAttributionRecord:
		return fmt.Sprintf(`{"id":%d,"parent":%d,"type":%d,"ts_ns":%d,"symbol":%d,"pnl":%.8f,"fee":%.8f,"engine_id":%d}`+"\n",
			v.ID, v.ParentID, v.Type, v.TSNanos, v.SymbolHash, v.PnL, v.Fee, v.EngineID), nil
	default:
		return "", fmt.Errorf("causal: unknown record type %T", rec)
	}
}
