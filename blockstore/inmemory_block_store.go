package blockstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqledger/seqledger/logger"
	"github.com/seqledger/seqledger/observability"
	"github.com/seqledger/seqledger/reassembly"
	"github.com/seqledger/seqledger/types"
)

/*
InMemoryBlockStore is the ephemeral BlockStore implementation, built
directly on the reassembly queue.

The queue and the log are one shared resource: a single mutex covers the
whole "buffer + drain + append" insert step as well as the query snapshot,
so the log never holds a partially drained run and a reader never observes
a height without all lower heights. Because only fully contiguous runs are
ever appended, the row index equals the height. No I/O happens under the
lock.
*/
type InMemoryBlockStore struct {
	mu    sync.RWMutex
	queue *reassembly.Queue
	rows  []*types.BlockRow

	log        *slog.Logger
	tracer     trace.Tracer
	mReleased  metric.Int64Counter
	mInsertDur metric.Float64Histogram
}

func NewInMemoryBlockStore(obs Observability) (*InMemoryBlockStore, error) {
	bs := &InMemoryBlockStore{
		queue:  reassembly.NewQueue(),
		log:    obs.Logger(),
		tracer: obs.Tracer("blockstore.memory"),
	}
	if err := bs.initMetrics(obs); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return bs, nil
}

func (bs *InMemoryBlockStore) InsertRequest(ctx context.Context, req *types.OrderedRequest) (rerr error) {
	ctx, span := bs.tracer.Start(ctx, "InMemoryBlockStore.InsertRequest")
	defer span.End()
	defer func(start time.Time) {
		bs.mInsertDur.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(observability.ErrStatus(rerr)))
	}(time.Now())
	if req == nil {
		return ErrRequestIsNil
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.insert(ctx, bs.queue.Frontier(), req)
}

func (bs *InMemoryBlockStore) InsertRequestWithHeight(ctx context.Context, height types.BlockCounter, req *types.OrderedRequest) (rerr error) {
	ctx, span := bs.tracer.Start(ctx, "InMemoryBlockStore.InsertRequestWithHeight")
	defer span.End()
	defer func(start time.Time) {
		bs.mInsertDur.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(observability.ErrStatus(rerr)))
	}(time.Now())
	if req == nil {
		return ErrRequestIsNil
	}
	span.SetAttributes(observability.Height(uint64(height)), observability.TagKey.String(req.Tag.String()))

	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.insert(ctx, height, req)
}

// insert runs the buffer + drain + append step. Callers must hold bs.mu.
func (bs *InMemoryBlockStore) insert(ctx context.Context, height types.BlockCounter, req *types.OrderedRequest) error {
	if !bs.queue.Insert(height, req) {
		bs.log.DebugContext(ctx, "dropping duplicate insert, height already released or buffered", logger.Height(uint64(height)))
		return nil
	}
	run := bs.queue.Drain()
	for _, e := range run {
		row, err := types.NewBlockRow(e.Height, e.Request)
		if err != nil {
			return fmt.Errorf("building block row %d: %w", e.Height, err)
		}
		bs.rows = append(bs.rows, row)
	}
	if len(run) > 0 {
		bs.mReleased.Add(ctx, int64(len(run)))
		bs.log.DebugContext(ctx, fmt.Sprintf("released %d block(s)", len(run)), logger.Height(uint64(run[len(run)-1].Height)))
	}
	return nil
}

func (bs *InMemoryBlockStore) CountBlocks(ctx context.Context) (uint64, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return uint64(len(bs.rows)), nil
}

func (bs *InMemoryBlockStore) QueryBlocks(ctx context.Context, initialHeight int64) ([]*types.TimestampedBlock, error) {
	_, span := bs.tracer.Start(ctx, "InMemoryBlockStore.QueryBlocks")
	defer span.End()
	span.SetAttributes(observability.BackendKey.String("memory"))
	from := clampInitialHeight(initialHeight)

	bs.mu.RLock()
	var snapshot []*types.BlockRow
	if int(from) < len(bs.rows) {
		snapshot = make([]*types.BlockRow, len(bs.rows)-int(from))
		copy(snapshot, bs.rows[from:])
	}
	bs.mu.RUnlock()

	// rows are immutable once appended so unbatching the snapshot does not
	// need the lock
	blocks := make([]*types.TimestampedBlock, 0, len(snapshot))
	for _, row := range snapshot {
		tb, err := row.Unbatch()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, tb)
	}
	return blocks, nil
}

func (bs *InMemoryBlockStore) Close() error {
	return nil
}

func (bs *InMemoryBlockStore) initMetrics(obs Observability) (err error) {
	m := obs.Meter("blockstore")

	if _, err = m.Int64ObservableUpDownCounter(
		"pending",
		metric.WithDescription("Number of buffered requests waiting for a lower height to arrive."),
		metric.WithUnit("{request}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			bs.mu.RLock()
			defer bs.mu.RUnlock()
			io.Observe(int64(bs.queue.PendingCount()))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating pending counter: %w", err)
	}

	if _, err = m.Int64ObservableCounter(
		"count",
		metric.WithDescription("Number of rows in the log."),
		metric.WithUnit("{row}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			bs.mu.RLock()
			defer bs.mu.RUnlock()
			io.Observe(int64(len(bs.rows)))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating row counter: %w", err)
	}

	if bs.mReleased, err = m.Int64Counter(
		"released",
		metric.WithDescription("Number of blocks released to the log."),
		metric.WithUnit("{block}"),
	); err != nil {
		return fmt.Errorf("creating released counter: %w", err)
	}

	if bs.mInsertDur, err = m.Float64Histogram(
		"insert.duration",
		metric.WithDescription("How long it took to process an insert call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(100e-6, 200e-6, 400e-6, 800e-6, 0.0016, 0.01, 0.05),
	); err != nil {
		return fmt.Errorf("creating insert duration histogram: %w", err)
	}

	return nil
}
