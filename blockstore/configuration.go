package blockstore

import (
	"fmt"

	"github.com/seqledger/seqledger/keyvaluedb/boltdb"
)

// StorageType selects the block store backend.
type StorageType string

const (
	// MemoryStorageType keeps the log in process memory only.
	MemoryStorageType StorageType = "memory"
	// BoltStorageType persists the log into a bbolt database file.
	BoltStorageType StorageType = "bolt"
)

// StorageConfig is the storage configuration descriptor. The backend is
// resolved once at construction, there is no runtime fallback or mixing
// between implementations.
type StorageConfig struct {
	Type StorageType `json:"type" yaml:"type"`
	// Path is the database file for the bolt backend; parent directories
	// must exist beforehand. Unused by the memory backend.
	Path string `json:"path" yaml:"path"`
}

func (sc *StorageConfig) Validate() error {
	switch sc.Type {
	case MemoryStorageType:
		return nil
	case BoltStorageType:
		if sc.Path == "" {
			return fmt.Errorf("path cannot be empty for %s storage", sc.Type)
		}
		return nil
	case "":
		return fmt.Errorf("storage type cannot be empty")
	default:
		return fmt.Errorf("unsupported storage type %q", sc.Type)
	}
}

/*
New creates a block store described by the configuration. An unrecognized
backend is a construction-time error, the store is not created. For a
bolt store the database file is opened (and then owned) by the store; to
use an externally owned collaborator call NewPersistentBlockStore instead.
*/
func New(cfg *StorageConfig, obs Observability) (BlockStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}
	switch cfg.Type {
	case MemoryStorageType:
		return NewInMemoryBlockStore(obs)
	case BoltStorageType:
		db, err := boltdb.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening bolt db %s: %w", cfg.Path, err)
		}
		bs, err := NewPersistentBlockStore(db, obs)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return bs, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
