package types

import (
	"errors"
)

var errNegativeBlockCounter = errors.New("block counter cannot be negative")

/*
BlockCounter is the position of a block in the ordered log. It is a counter
space of its own - values must never be built from or compared against round
numbers, epochs or any other counter used elsewhere in the system.
*/
type BlockCounter uint64

// NewBlockCounter converts an externally provided (possibly signed) height
// into a BlockCounter, rejecting negative input.
func NewBlockCounter(v int64) (BlockCounter, error) {
	if v < 0 {
		return 0, errNegativeBlockCounter
	}
	return BlockCounter(v), nil
}

func (c BlockCounter) Next() BlockCounter {
	return c + 1
}
