package blockstore

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqledger/seqledger/types"
)

var ErrRequestIsNil = errors.New("request is nil")

type (
	/*
		BlockStore is the system of record for released blocks: regardless of
		the order insert calls arrive in, a reader always observes a single
		gap-free, duplicate-free ascending sequence of timestamped blocks.

		All methods are safe for concurrent use. Each call completes (or
		fails) as one atomic step - there is no mid-flight cancellation, the
		context is used for trace propagation.
	*/
	BlockStore interface {
		// InsertRequest appends a single request at the next implicit
		// position. This is the trusted single-producer fast path which
		// does not need explicit height reassembly.
		InsertRequest(ctx context.Context, req *types.OrderedRequest) error
		// InsertRequestWithHeight buffers the request under the given
		// height and appends every newly contiguous entry, in order, to
		// the log. One call may append zero, one or many blocks: a single
		// late arrival can unblock an arbitrarily long buffered run.
		InsertRequestWithHeight(ctx context.Context, height types.BlockCounter, req *types.OrderedRequest) error
		// CountBlocks returns the number of rows in the log. A batch row
		// counts as one row, unbatching happens only at query time.
		CountBlocks(ctx context.Context) (uint64, error)
		// QueryBlocks returns all rows with height >= max(initialHeight, 0)
		// in ascending height order, each expanded per its tag. The result
		// never has a gap: a row is only included when all lower in-range
		// heights are included too.
		QueryBlocks(ctx context.Context, initialHeight int64) ([]*types.TimestampedBlock, error)
		// Close releases the store and the underlying database resources.
		Close() error
	}

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Tracer(name string, options ...trace.TracerOption) trace.Tracer
		Logger() *slog.Logger
	}
)

// clampInitialHeight maps an out-of-range query height to the lowest valid
// one - a negative initial height never fails the query.
func clampInitialHeight(initialHeight int64) types.BlockCounter {
	if initialHeight < 0 {
		return 0
	}
	return types.BlockCounter(initialHeight)
}
