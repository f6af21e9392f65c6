package boltdb

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/seqledger/seqledger/keyvaluedb"
)

type Tx struct {
	tx  *bolt.Tx
	b   *bolt.Bucket
	enc EncodeFn
	dec DecodeFn
}

func NewBoltTx(db *bolt.DB, bucket []byte, e EncodeFn, d DecodeFn) (*Tx, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	tx, err := db.Begin(true)
	if err != nil {
		return nil, err
	}

	return &Tx{
		tx:  tx,
		b:   tx.Bucket(bucket),
		enc: e,
		dec: d,
	}, nil
}

func (t *Tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if t.b == nil {
		return false, fmt.Errorf("bolt tx read failed, tx closed")
	}
	data := t.b.Get(key)
	if data == nil {
		return false, nil
	}
	return true, t.dec(data, v)
}

func (t *Tx) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if t.b == nil {
		return fmt.Errorf("bolt tx write failed, tx closed")
	}
	b, err := t.enc(value)
	if err != nil {
		return err
	}
	return t.b.Put(key, b)
}

func (t *Tx) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if t.b == nil {
		return fmt.Errorf("bolt tx delete failed, tx closed")
	}
	return t.b.Delete(key)
}

func (t *Tx) Rollback() error {
	defer func() { t.b = nil }()
	return t.tx.Rollback()
}

func (t *Tx) Commit() error {
	defer func() { t.b = nil }()
	return t.tx.Commit()
}
