package boltdb

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

/*
Itr iterates over a bucket inside its own read transaction. The transaction
is held until Close() is called - a pending read transaction blocks the next
write, so iterators must not be kept open across other DB operations.
*/
type Itr struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	decoder DecodeFn
	reverse bool
	key     []byte
	value   []byte
}

func NewIterator(db *bolt.DB, bucket []byte, d DecodeFn, reverse bool) *Itr {
	tx, err := db.Begin(false)
	if err != nil {
		return &Itr{decoder: d, reverse: reverse}
	}
	return &Itr{
		tx:      tx,
		cursor:  tx.Bucket(bucket).Cursor(),
		decoder: d,
		reverse: reverse,
	}
}

func (it *Itr) Next() {
	if !it.Valid() {
		return
	}
	if it.reverse {
		it.key, it.value = it.cursor.Prev()
	} else {
		it.key, it.value = it.cursor.Next()
	}
}

func (it *Itr) Valid() bool {
	return it.key != nil
}

func (it *Itr) Key() []byte {
	return it.key
}

func (it *Itr) Value(v any) error {
	if !it.Valid() {
		return fmt.Errorf("iterator invalid")
	}
	return it.decoder(it.value, v)
}

func (it *Itr) Close() error {
	if it.tx == nil {
		return nil
	}
	err := it.tx.Rollback()
	it.tx, it.cursor = nil, nil
	it.key, it.value = nil, nil
	return err
}

func (it *Itr) first() {
	if it.cursor == nil {
		return
	}
	it.key, it.value = it.cursor.First()
}

func (it *Itr) last() {
	if it.cursor == nil {
		return
	}
	it.key, it.value = it.cursor.Last()
}

func (it *Itr) seek(key []byte) {
	if it.cursor == nil {
		return
	}
	it.key, it.value = it.cursor.Seek(key)
}
