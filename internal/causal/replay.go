package causal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnknownRecordType is returned by Reader.Next when the binary log
// contains a header whose Type code is not one of the seven known kinds —
// a corrupt or foreign log, never a value the recorder itself would write.
var ErrUnknownRecordType = errors.New("causal: unknown record type in binary log")

// Reader replays a <base>.bin file in order, reconstructing each record
// exactly as it was written. Used both for the replay run-mode (feeding
// recorded events back into the core) and for the round-trip test required
// by §8 ("write, replay, re-emit must produce a byte-identical log").
type Reader struct {
	f *os.File
}

// OpenReader opens basePath+".bin" for sequential replay.
func OpenReader(basePath string) (*Reader, error) {
	f, err := os.Open(basePath + ".bin")
	if err != nil {
		return nil, fmt.Errorf("open binary causal log for replay: %w", err)
	}
	return &Reader{f: f}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Next reads and returns the next record in the log as one of the seven
// concrete record types (via the `any` return). io.EOF signals a clean end
// of log.
func (r *Reader) Next() (any, error) {
	var h Header
	if err := binary.Read(r.f, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read causal record header: %w", err)
	}

	switch h.Type {
	case TypeTick:
		var body struct{ Bid, Ask, BidSz, AskSz float64 }
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read tick record body: %w", err)
		}
		return TickRecord{Header: h, Bid: body.Bid, Ask: body.Ask, BidSz: body.BidSz, AskSz: body.AskSz}, nil

	case TypeDecision:
		var body struct {
			EngineID     uint32
			EdgeScore    float64
			SignalVector [8]float64
		}
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read decision record body: %w", err)
		}
		return DecisionRecord{Header: h, EngineID: body.EngineID, EdgeScore: body.EdgeScore, SignalVector: body.SignalVector}, nil

	case TypeRisk:
		var body struct {
			Allowed        bool
			MaxPos, CurPos float64
		}
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read risk record body: %w", err)
		}
		return RiskRecord{Header: h, Allowed: body.Allowed, MaxPos: body.MaxPos, CurPos: body.CurPos}, nil

	case TypeOrderIntent:
		var body struct {
			IsBuy      bool
			Price, Qty float64
		}
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read order intent record body: %w", err)
		}
		return OrderIntentRecord{Header: h, IsBuy: body.IsBuy, Price: body.Price, Qty: body.Qty}, nil

	case TypeVenueAck:
		var body struct {
			Accepted  bool
			VenueCode uint32
		}
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read venue ack record body: %w", err)
		}
		return VenueAckRecord{Header: h, Accepted: body.Accepted, VenueCode: body.VenueCode}, nil

	case TypeFill:
		var body struct{ FillPrice, FillQty float64 }
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read fill record body: %w", err)
		}
		return FillRecord{Header: h, FillPrice: body.FillPrice, FillQty: body.FillQty}, nil

	case TypePnLAttribution:
		var body struct {
			PnL, Fee float64
			EngineID uint32
		}
		if err := binary.Read(r.f, binary.LittleEndian, &body); err != nil {
			return nil, fmt.Errorf("read pnl attribution record body: %w", err)
		}
		return PnLAttributionRecord{Header: h, PnL: body.PnL, Fee: body.Fee, EngineID: body.EngineID}, nil

	default:
		return nil, ErrUnknownRecordType
	}
}

// All drains the reader into a slice, for tests and small replay files.
func (r *Reader) All() ([]any, error) {
	var out []any
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
