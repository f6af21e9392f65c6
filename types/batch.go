package types

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var errEmptyBatch = errors.New("batch must contain at least one payload")

/*
Batch rows store their sub-request payloads as a CBOR array of byte strings,
in original submission order. Encoding k payloads and decoding the result
reproduces the same k payloads byte for byte.
*/
func EncodeBatchPayload(payloads [][]byte) ([]byte, error) {
	if len(payloads) == 0 {
		return nil, errEmptyBatch
	}
	return cbor.Marshal(payloads)
}

// DecodeBatchPayload is the inverse of EncodeBatchPayload. A payload that
// does not decode is a hard error - callers must not fall back to treating
// the row as a single request.
func DecodeBatchPayload(data []byte) ([][]byte, error) {
	var payloads [][]byte
	if err := cbor.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("cbor unmarshal of batch payload failed: %w", err)
	}
	if len(payloads) == 0 {
		return nil, errEmptyBatch
	}
	return payloads, nil
}
