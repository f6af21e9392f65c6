package boltdb

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/seqledger/seqledger/keyvaluedb"
)

// all rows live in one fixed bucket; buckets are a bolt only feature and
// hiding them behind a single name keeps the interface portable across
// backends
var rowBucket = []byte("rows")

const openTimeout = 3 * time.Second

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error

	/*
		BoltDB implements KeyValueDB over a single bbolt file. Values are
		CBOR encoded, keys are stored as given - callers that need ordered
		scans must use an order preserving key encoding themselves.
	*/
	BoltDB struct {
		db      *bolt.DB
		bucket  []byte
		encoder EncodeFn
		decoder DecodeFn
	}
)

/*
New opens (creating when missing) the bbolt database file. Bolt takes an
exclusive file lock, so opening the same file twice blocks; the open call
gives up after a few seconds instead of hanging forever.
*/
func New(dbFile string) (*BoltDB, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db file %s: %w", dbFile, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rowBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating row bucket: %w", err)
	}
	return &BoltDB{
		db:      db,
		bucket:  rowBucket,
		encoder: cbor.Marshal,
		decoder: cbor.Unmarshal,
	}, nil
}

// Path returns the path of the underlying database file.
func (db *BoltDB) Path() string {
	return db.db.Path()
}

func (db *BoltDB) Read(key []byte, v any) (found bool, err error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	err = db.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(db.bucket).Get(key)
		if data == nil {
			return nil
		}
		found = true
		if err := db.decoder(data, v); err != nil {
			return fmt.Errorf("bolt db read failed, %w", err)
		}
		return nil
	})
	return found, err
}

func (db *BoltDB) Write(key []byte, v any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return err
	}
	// encode outside the update tx, it holds the global write lock
	data, err := db.encoder(v)
	if err != nil {
		return err
	}
	if err := db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).Put(key, data)
	}); err != nil {
		return fmt.Errorf("bolt db write failed, %w", err)
	}
	return nil
}

func (db *BoltDB) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if err := db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).Delete(key)
	}); err != nil {
		return fmt.Errorf("bolt db delete failed, %w", err)
	}
	return nil
}

func (db *BoltDB) First() keyvaluedb.Iterator {
	it := NewIterator(db.db, db.bucket, db.decoder, false)
	it.first()
	return it
}

func (db *BoltDB) Last() keyvaluedb.Iterator {
	it := NewIterator(db.db, db.bucket, db.decoder, true)
	it.last()
	return it
}

func (db *BoltDB) Find(key []byte) keyvaluedb.Iterator {
	it := NewIterator(db.db, db.bucket, db.decoder, false)
	it.seek(key)
	return it
}

func (db *BoltDB) StartTx() (keyvaluedb.DBTransaction, error) {
	tx, err := NewBoltTx(db.db, db.bucket, db.encoder, db.decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to start bolt tx, %w", err)
	}
	return tx, nil
}

func (db *BoltDB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}
