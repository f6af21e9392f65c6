package types

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestNewBlockCounter(t *testing.T) {
	c, err := NewBlockCounter(0)
	require.NoError(t, err)
	require.EqualValues(t, 0, c)
	require.EqualValues(t, 1, c.Next())

	c, err = NewBlockCounter(42)
	require.NoError(t, err)
	require.EqualValues(t, 42, c)

	_, err = NewBlockCounter(-1)
	require.ErrorIs(t, err, errNegativeBlockCounter)
}

func TestRequestTag_String(t *testing.T) {
	require.Equal(t, "single", SingleRequest.String())
	require.Equal(t, "batch", BatchRequest.String())
	require.Equal(t, "tag(7)", RequestTag(7).String())
}

func TestBatchPayload_RoundTrip(t *testing.T) {
	payloads := [][]byte{[]byte("first"), []byte("second"), {0x00, 0xFF, 0x00}}
	buf, err := EncodeBatchPayload(payloads)
	require.NoError(t, err)

	decoded, err := DecodeBatchPayload(buf)
	require.NoError(t, err)
	require.Equal(t, payloads, decoded)
}

func TestBatchPayload_Empty(t *testing.T) {
	_, err := EncodeBatchPayload(nil)
	require.ErrorIs(t, err, errEmptyBatch)
}

func TestBatchPayload_Corrupted(t *testing.T) {
	_, err := DecodeBatchPayload([]byte("not cbor at all"))
	require.ErrorContains(t, err, "cbor unmarshal of batch payload failed")
}

func TestBlockRow_UnbatchSingle(t *testing.T) {
	row, err := NewBlockRow(3, NewSingleRequest([]byte("payload"), nil))
	require.NoError(t, err)
	require.NotZero(t, row.Timestamp)

	tb, err := row.Unbatch()
	require.NoError(t, err)
	require.EqualValues(t, 3, tb.Block.Height)
	require.Equal(t, row.Timestamp, tb.Timestamp)
	require.Equal(t, row.Timestamp, tb.Block.Timestamp)
	require.Len(t, tb.Block.Requests, 1)
	require.Equal(t, []byte("payload"), tb.Block.Requests[0].Payload)
}

func TestBlockRow_UnbatchBatch(t *testing.T) {
	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	req, err := NewBatchRequest(payloads, nil)
	require.NoError(t, err)
	row, err := NewBlockRow(0, req)
	require.NoError(t, err)

	tb, err := row.Unbatch()
	require.NoError(t, err)
	require.Len(t, tb.Block.Requests, len(payloads))
	for i, r := range tb.Block.Requests {
		require.Equal(t, payloads[i], r.Payload)
		require.Equal(t, SingleRequest, r.Tag)
	}
}

func TestBlockRow_UnbatchCorrupted(t *testing.T) {
	row := &BlockRow{Height: 1, Timestamp: 1, Tag: BatchRequest, Payload: []byte{0xFF, 0xFE}}
	_, err := row.Unbatch()
	require.ErrorContains(t, err, "unbatching block 1")
}

func TestBlockRow_UnbatchUnknownTag(t *testing.T) {
	row := &BlockRow{Height: 2, Tag: RequestTag(9), Payload: []byte("x")}
	_, err := row.Unbatch()
	require.ErrorContains(t, err, "unknown request tag")
}

func TestBlockRow_CBORRoundTrip(t *testing.T) {
	row, err := NewBlockRow(7, NewSingleRequest([]byte("payload"), nil))
	require.NoError(t, err)

	buf, err := cbor.Marshal(row)
	require.NoError(t, err)
	decoded := &BlockRow{}
	require.NoError(t, cbor.Unmarshal(buf, decoded))
	require.Equal(t, row, decoded)
}
