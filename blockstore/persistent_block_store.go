package blockstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqledger/seqledger/keyvaluedb"
	"github.com/seqledger/seqledger/logger"
	"github.com/seqledger/seqledger/observability"
	"github.com/seqledger/seqledger/reassembly"
	"github.com/seqledger/seqledger/types"
	"github.com/seqledger/seqledger/util"
)

/*
PersistentBlockStore is the durable BlockStore implementation. It delegates
storage to a transactional key-value collaborator which must provide atomic
all-or-nothing commit and ordered range scan - rows are keyed by big-endian
height so scan order is height order.

A drained run is committed in one transaction and the reassembly frontier
advances only after the commit succeeded, so an I/O failure leaves the
queue state consistent with the log. The reassembly state itself lives in
memory only; on construction the frontier is recovered from the last stored
key (the log is contiguous, so last height + 1 is also the row count).
Buffered entries above an unfilled gap do not survive a restart.
*/
type PersistentBlockStore struct {
	mu    sync.Mutex
	db    keyvaluedb.KeyValueDB
	queue *reassembly.Queue

	log        *slog.Logger
	tracer     trace.Tracer
	mReleased  metric.Int64Counter
	mInsertDur metric.Float64Histogram
}

func NewPersistentBlockStore(db keyvaluedb.KeyValueDB, obs Observability) (*PersistentBlockStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	frontier, err := lastStoredHeight(db)
	if err != nil {
		return nil, fmt.Errorf("recovering frontier: %w", err)
	}
	bs := &PersistentBlockStore{
		db:     db,
		queue:  reassembly.NewQueueAt(frontier),
		log:    obs.Logger(),
		tracer: obs.Tracer("blockstore.persistent"),
	}
	if err := bs.initMetrics(obs); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return bs, nil
}

// lastStoredHeight returns the next expected height, ie zero for an empty
// log and last stored height + 1 otherwise.
func lastStoredHeight(db keyvaluedb.KeyValueDB) (types.BlockCounter, error) {
	it := db.Last()
	defer func() { _ = it.Close() }()
	if !it.Valid() {
		return 0, nil
	}
	return types.BlockCounter(util.BytesToUint64(it.Key())) + 1, nil
}

func (bs *PersistentBlockStore) InsertRequest(ctx context.Context, req *types.OrderedRequest) (rerr error) {
	ctx, span := bs.tracer.Start(ctx, "PersistentBlockStore.InsertRequest")
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

func (bs *PersistentBlockStore) InsertRequestWithHeight(ctx context.Context, height types.BlockCounter, req *types.OrderedRequest) (rerr error) {
	ctx, span := bs.tracer.Start(ctx, "PersistentBlockStore.InsertRequestWithHeight")
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

// insert runs the buffer + commit + release step. Callers must hold bs.mu.
func (bs *PersistentBlockStore) insert(ctx context.Context, height types.BlockCounter, req *types.OrderedRequest) error {
	if !bs.queue.Insert(height, req) {
		bs.log.DebugContext(ctx, "dropping duplicate insert, height already released or buffered", logger.Height(uint64(height)))
	}
	// peek even after a duplicate drop: a run whose commit failed earlier
	// is still buffered and gets another commit attempt here
	run := bs.queue.Peek()
	if len(run) == 0 {
		return nil
	}
	if err := bs.commitRun(run); err != nil {
		return err
	}
	bs.queue.Release(len(run))
	bs.mReleased.Add(ctx, int64(len(run)))
	bs.log.DebugContext(ctx, fmt.Sprintf("released %d block(s)", len(run)), logger.Height(uint64(run[len(run)-1].Height)))
	return nil
}

// commitRun writes the whole contiguous run in one transaction.
func (bs *PersistentBlockStore) commitRun(run []reassembly.Entry) error {
	tx, err := bs.db.StartTx()
	if err != nil {
		return fmt.Errorf("starting db tx: %w", err)
	}
	for _, e := range run {
		row, err := types.NewBlockRow(e.Height, e.Request)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("building block row %d: %w", e.Height, err)
		}
		if err := tx.Write(util.Uint64ToBytes(uint64(e.Height)), row); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("persisting block %d: %w", e.Height, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing block run: %w", err)
	}
	return nil
}

func (bs *PersistentBlockStore) CountBlocks(ctx context.Context) (uint64, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	// the log is contiguous so the next expected height is the row count
	return uint64(bs.queue.Frontier()), nil
}

func (bs *PersistentBlockStore) QueryBlocks(ctx context.Context, initialHeight int64) (blocks []*types.TimestampedBlock, err error) {
	_, span := bs.tracer.Start(ctx, "PersistentBlockStore.QueryBlocks")
	defer span.End()
	span.SetAttributes(observability.BackendKey.String("bolt"))
	from := clampInitialHeight(initialHeight)

	// the scan runs in the collaborator's own read transaction, its
	// isolation guarantees a prefix consistent snapshot
	it := bs.db.Find(util.Uint64ToBytes(uint64(from)))
	defer func() {
		if cerr := it.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for ; it.Valid(); it.Next() {
		row := &types.BlockRow{}
		if err := it.Value(row); err != nil {
			return nil, fmt.Errorf("reading block %d: %w", util.BytesToUint64(it.Key()), err)
		}
		tb, err := row.Unbatch()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, tb)
	}
	return blocks, nil
}

func (bs *PersistentBlockStore) Close() error {
	return bs.db.Close()
}

func (bs *PersistentBlockStore) initMetrics(obs Observability) (err error) {
	m := obs.Meter("blockstore")

	if _, err = m.Int64ObservableUpDownCounter(
		"pending",
		metric.WithDescription("Number of buffered requests waiting for a lower height to arrive."),
		metric.WithUnit("{request}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			bs.mu.Lock()
			defer bs.mu.Unlock()
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
			bs.mu.Lock()
			defer bs.mu.Unlock()
			io.Observe(int64(bs.queue.Frontier()))
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
