package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	errRowIsNil     = errors.New("block row is nil")
	errRequestIsNil = errors.New("request is nil")
)

type (
	/*
		BlockRow is the persisted shape of one log entry: a monotonic height,
		the insertion timestamp (microseconds since Unix epoch, UTC), a tag
		telling whether the payload is one request or an encoded batch, and
		the raw payload bytes. A batch row counts as one row in the log,
		unbatching happens only at query time.
	*/
	BlockRow struct {
		_         struct{} `cbor:",toarray"`
		Height    BlockCounter
		Timestamp uint64
		Tag       RequestTag
		Payload   []byte
	}

	// Block is the query-time view of a row: the requests it holds, in
	// order, with the height and timestamp they share.
	Block struct {
		Height    BlockCounter
		Requests  []*OrderedRequest
		Timestamp uint64
	}

	// TimestampedBlock pairs a block with its assigned timestamp for
	// callers that keep the two separate at the query boundary.
	TimestampedBlock struct {
		Block     *Block
		Timestamp uint64
	}
)

// NewBlockRow stamps the given request with a height and the current UTC
// time. This is the moment the block's timestamp is assigned.
func NewBlockRow(height BlockCounter, req *OrderedRequest) (*BlockRow, error) {
	if req == nil {
		return nil, errRequestIsNil
	}
	return &BlockRow{
		Height:    height,
		Timestamp: uint64(time.Now().UTC().UnixMicro()),
		Tag:       req.Tag,
		Payload:   req.Payload,
	}, nil
}

/*
Unbatch expands the row into its query-time view. A single row yields one
request; a batch row is decoded into its sub-requests, all sharing the row's
height and timestamp. A batch payload that fails to decode makes the whole
call fail - partial expansion is never returned.
*/
func (r *BlockRow) Unbatch() (*TimestampedBlock, error) {
	if r == nil {
		return nil, errRowIsNil
	}
	var requests []*OrderedRequest
	switch r.Tag {
	case SingleRequest:
		requests = []*OrderedRequest{NewSingleRequest(r.Payload, nil)}
	case BatchRequest:
		payloads, err := DecodeBatchPayload(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("unbatching block %d: %w", r.Height, err)
		}
		requests = make([]*OrderedRequest, 0, len(payloads))
		for _, payload := range payloads {
			requests = append(requests, NewSingleRequest(payload, nil))
		}
	default:
		return nil, fmt.Errorf("unbatching block %d: unknown request tag %s", r.Height, r.Tag)
	}
	return &TimestampedBlock{
		Block: &Block{
			Height:    r.Height,
			Requests:  requests,
			Timestamp: r.Timestamp,
		},
		Timestamp: r.Timestamp,
	}, nil
}
