package types

import (
	"fmt"
)

type RequestTag uint8

const (
	// SingleRequest marks a row whose payload is one logical request.
	SingleRequest RequestTag = 1
	// BatchRequest marks a row whose payload is an encoded list of logical
	// request payloads, expanded at read time.
	BatchRequest RequestTag = 2
)

func (t RequestTag) String() string {
	switch t {
	case SingleRequest:
		return "single"
	case BatchRequest:
		return "batch"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

/*
OrderedRequest is one unit of work handed over by the ordering mechanism.
It is immutable once created - the store never rewrites payload bytes.

TraceContext carries opaque correlation metadata (ie serialized W3C trace
context) of the producer. It is not part of the persisted row shape.
*/
type OrderedRequest struct {
	_            struct{} `cbor:",toarray"`
	Payload      []byte
	Tag          RequestTag
	TraceContext []byte
}

// NewSingleRequest wraps one logical request payload.
func NewSingleRequest(payload []byte, traceContext []byte) *OrderedRequest {
	return &OrderedRequest{
		Payload:      payload,
		Tag:          SingleRequest,
		TraceContext: traceContext,
	}
}

/*
NewBatchRequest encodes the given logical request payloads into a single
composite request. Querying the stored row back expands it into len(payloads)
requests sharing one height and timestamp.
*/
func NewBatchRequest(payloads [][]byte, traceContext []byte) (*OrderedRequest, error) {
	buf, err := EncodeBatchPayload(payloads)
	if err != nil {
		return nil, fmt.Errorf("encoding batch payload: %w", err)
	}
	return &OrderedRequest{
		Payload:      buf,
		Tag:          BatchRequest,
		TraceContext: traceContext,
	}, nil
}
