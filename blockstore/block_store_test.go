package blockstore

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	test "github.com/seqledger/seqledger/internal/testutils"
	testobserve "github.com/seqledger/seqledger/internal/testutils/observability"
	"github.com/seqledger/seqledger/keyvaluedb/boltdb"
	"github.com/seqledger/seqledger/types"
)

// forEachBackend runs the test against a fresh store of every backend.
func forEachBackend(t *testing.T, test func(t *testing.T, bs BlockStore)) {
	t.Run("memory", func(t *testing.T) {
		bs, err := NewInMemoryBlockStore(testobserve.Default(t))
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, bs.Close()) })
		test(t, bs)
	})
	t.Run("bolt", func(t *testing.T) {
		db, err := boltdb.New(filepath.Join(t.TempDir(), "blocks.db"))
		require.NoError(t, err)
		bs, err := NewPersistentBlockStore(db, testobserve.Default(t))
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, bs.Close()) })
		test(t, bs)
	})
}

func request(h int) *types.OrderedRequest {
	return types.NewSingleRequest([]byte(fmt.Sprintf("request %d", h)), nil)
}

// requireHeights checks the result is exactly the given heights, ascending,
// with timestamps assigned.
func requireHeights(t *testing.T, blocks []*types.TimestampedBlock, heights ...uint64) {
	t.Helper()
	require.Len(t, blocks, len(heights))
	for i, tb := range blocks {
		require.EqualValues(t, heights[i], tb.Block.Height)
		require.NotZero(t, tb.Timestamp)
		require.Equal(t, tb.Timestamp, tb.Block.Timestamp)
		require.NotEmpty(t, tb.Block.Requests)
	}
}

func TestBlockStore_InsertOutOfOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()

		require.NoError(t, bs.InsertRequestWithHeight(ctx, 2, request(2)))
		blocks, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, blocks)

		require.NoError(t, bs.InsertRequestWithHeight(ctx, 1, request(1)))
		blocks, err = bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, blocks)

		// the last missing height releases the whole run
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 0, request(0)))
		blocks, err = bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		requireHeights(t, blocks, 0, 1, 2)

		count, err := bs.CountBlocks(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 3, count)
	})
}

func TestBlockStore_FastPathInsert(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			require.NoError(t, bs.InsertRequest(ctx, request(i)))
		}
		blocks, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		requireHeights(t, blocks, 0, 1, 2, 3, 4)
		for i, tb := range blocks {
			require.Equal(t, request(i).Payload, tb.Block.Requests[0].Payload, "blocks must be in call order")
		}
		count, err := bs.CountBlocks(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 5, count)
	})
}

func TestBlockStore_NilRequest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()
		require.ErrorIs(t, bs.InsertRequest(ctx, nil), ErrRequestIsNil)
		require.ErrorIs(t, bs.InsertRequestWithHeight(ctx, 0, nil), ErrRequestIsNil)
	})
}

func TestBlockStore_DuplicateFirstArrivalWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()

		require.NoError(t, bs.InsertRequestWithHeight(ctx, 1, types.NewSingleRequest([]byte("first"), nil)))
		// still buffered - duplicate insert with different payload is a no-op
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 1, types.NewSingleRequest([]byte("second"), nil)))
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 0, request(0)))
		// already released - still a no-op
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 1, types.NewSingleRequest([]byte("third"), nil)))

		blocks, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		requireHeights(t, blocks, 0, 1)
		require.Equal(t, []byte("first"), blocks[1].Block.Requests[0].Payload)

		count, err := bs.CountBlocks(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, count, "count follows appended rows, not insert calls")
	})
}

func TestBlockStore_QueryIsSuffix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()
		for i := 0; i < 6; i++ {
			require.NoError(t, bs.InsertRequestWithHeight(ctx, types.BlockCounter(i), request(i)))
		}
		all, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		requireHeights(t, all, 0, 1, 2, 3, 4, 5)

		for _, from := range []int64{-5, 0, 3, 5, 6, 100} {
			blocks, err := bs.QueryBlocks(ctx, from)
			require.NoError(t, err)
			start := from
			if start < 0 {
				start = 0
			}
			if start > int64(len(all)) {
				start = int64(len(all))
			}
			suffix := all[start:]
			require.Len(t, blocks, len(suffix), "queryBlocks(%d) must be a suffix of queryBlocks(0)", from)
			for i := range suffix {
				require.Equal(t, suffix[i], blocks[i])
			}
		}
	})
}

func TestBlockStore_GapBlocksQueries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 0, request(0)))
		// height 1 never arrives
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 2, request(2)))

		blocks, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		requireHeights(t, blocks, 0)

		// nothing visible past the gap, and that is not an error
		blocks, err = bs.QueryBlocks(ctx, 2)
		require.NoError(t, err)
		require.Empty(t, blocks)

		count, err := bs.CountBlocks(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})
}

func TestBlockStore_BatchRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		ctx := context.Background()
		payloads := [][]byte{test.RandomBytes(8), test.RandomBytes(16), test.RandomBytes(32)}
		batch, err := types.NewBatchRequest(payloads, nil)
		require.NoError(t, err)
		require.NoError(t, bs.InsertRequestWithHeight(ctx, 0, batch))

		count, err := bs.CountBlocks(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count, "a batch row counts as one row")

		blocks, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		require.Len(t, blocks[0].Block.Requests, len(payloads))
		for i, req := range blocks[0].Block.Requests {
			require.Equal(t, payloads[i], req.Payload)
		}
	})
}

func TestBlockStore_ConcurrentPermutation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		const n = 100
		ctx := context.Background()

		g, gctx := errgroup.WithContext(ctx)
		for _, h := range rand.Perm(n) {
			h := h
			g.Go(func() error {
				return bs.InsertRequestWithHeight(gctx, types.BlockCounter(h), request(h))
			})
		}
		require.NoError(t, g.Wait())

		count, err := bs.CountBlocks(ctx)
		require.NoError(t, err)
		require.EqualValues(t, n, count)

		blocks, err := bs.QueryBlocks(ctx, 0)
		require.NoError(t, err)
		require.Len(t, blocks, n)
		for i, tb := range blocks {
			require.EqualValues(t, i, tb.Block.Height, "release order must be ascending and gap-free")
		}
	})
}

func TestBlockStore_QueryNeverObservesPartialRun(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bs BlockStore) {
		const n = 50
		ctx := context.Background()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			// reverse order keeps everything buffered until height 0 lands,
			// releasing one long run
			for h := n - 1; h >= 0; h-- {
				if err := bs.InsertRequestWithHeight(gctx, types.BlockCounter(h), request(h)); err != nil {
					return err
				}
			}
			return nil
		})
		g.Go(func() error {
			for {
				blocks, err := bs.QueryBlocks(gctx, 0)
				if err != nil {
					return err
				}
				for i, tb := range blocks {
					if uint64(tb.Block.Height) != uint64(i) {
						return fmt.Errorf("observed height %d at position %d", tb.Block.Height, i)
					}
				}
				if len(blocks) == n {
					return nil
				}
			}
		})
		require.NoError(t, g.Wait())
	})
}
