package memorydb

import (
	"bytes"
	"fmt"
	"sort"
)

// Itr iterates over a sorted snapshot of the map taken at creation time.
type Itr struct {
	keys    [][]byte
	values  [][]byte
	decoder DecodeFn
	reverse bool
	index   int
}

func NewIterator(db map[string][]byte, d DecodeFn, reverse bool) *Itr {
	keys := make([][]byte, 0, len(db))
	for key := range db {
		keys = append(keys, []byte(key))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		values = append(values, db[string(key)])
	}
	return &Itr{
		index:   -1,
		decoder: d,
		reverse: reverse,
		keys:    keys,
		values:  values,
	}
}

func (it *Itr) Next() {
	if !it.Valid() {
		return
	}
	if it.reverse {
		it.index--
	} else {
		it.index++
		if it.index >= len(it.keys) {
			it.index = -1
		}
	}
}

func (it *Itr) Valid() bool {
	return it.index >= 0 && it.index < len(it.keys)
}

func (it *Itr) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.keys[it.index]
}

func (it *Itr) Value(v any) error {
	if !it.Valid() {
		return fmt.Errorf("iterator invalid")
	}
	return it.decoder(it.values[it.index], v)
}

func (it *Itr) Close() error {
	return nil
}

func (it *Itr) first() {
	it.index = -1
	if len(it.keys) > 0 {
		it.index = 0
	}
}

func (it *Itr) last() {
	it.index = len(it.keys) - 1
}

func (it *Itr) seek(key []byte) {
	it.index = -1
	for i, k := range it.keys {
		if bytes.Compare(k, key) >= 0 {
			it.index = i
			return
		}
	}
}
