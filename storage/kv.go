package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/janelia-flyem/omerotools/ome"

	"github.com/dgraph-io/badger/v3"
)

// KV is a key-value store backed by Badger.
type KV struct {
	directory  string
	db         *badger.DB
	logger     ome.Logger
	stopSyncCh chan struct{}
}

// OpenKV opens a Badger store at path, creating the directory if needed.  An empty path
// opens an in-memory store.
func OpenKV(path string, logger ome.Logger) (*KV, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Infof("Database not already at path (%s). Creating directory...\n", path)
			if err := os.MkdirAll(path, 0744); err != nil {
				return nil, fmt.Errorf("can't make directory at %s: %v", path, err)
			}
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1).WithSyncWrites(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	kv := &KV{directory: path, db: db, logger: logger, stopSyncCh: make(chan struct{})}
	if path != "" {
		go kv.syncPeriodically()
	}
	return kv, nil
}

func (kv *KV) String() string {
	if kv.directory == "" {
		return "badger @ memory"
	}
	return fmt.Sprintf("badger @ %s", kv.directory)
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func (kv *KV) syncPeriodically() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-kv.stopSyncCh:
			kv.logger.Debugf("Stopping sync goroutine for %s\n", kv)
			return
		case <-ticker.C:
			if err := kv.db.Sync(); err != nil {
				kv.logger.Errorf("sync of %s failed: %v\n", kv, err)
			}
		}
	}
}

func (kv *KV) Close() error {
	if kv.directory != "" {
		close(kv.stopSyncCh)
	}
	return kv.db.Close()
}

// Get returns the value of a key or nil if the key is not present.
func (kv *KV) Get(key []byte) ([]byte, error) {
	var v []byte
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	return v, err
}

func (kv *KV) Put(key, v []byte) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, v)
	})
}

func (kv *KV) Delete(key []byte) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan calls f for every key with the given prefix in key order.  Scanning stops at the
// first error returned by f.
func (kv *KV) Scan(prefix []byte, f func(key, v []byte) error) error {
	return kv.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := f(item.KeyCopy(nil), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// NextID returns the next value of the named sequence, starting at 1.
func (kv *KV) NextID(name string) (int64, error) {
	key := []byte("seq/" + name)
	for {
		var id int64
		err := kv.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			switch err {
			case nil:
				v, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				id = int64(binary.BigEndian.Uint64(v))
			case badger.ErrKeyNotFound:
			default:
				return err
			}
			id++
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(id))
			return txn.Set(key, buf)
		})
		if err == badger.ErrConflict {
			continue
		}
		return id, err
	}
}

// Ensure raises the named sequence to at least id.
func (kv *KV) Ensure(name string, id int64) error {
	key := []byte("seq/" + name)
	return kv.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if int64(binary.BigEndian.Uint64(v)) >= id {
				return nil
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(id))
		return txn.Set(key, buf)
	})
}

// GetObject decodes the gob-encoded value of a key into obj, returning false if the key
// is not present.
func (kv *KV) GetObject(key []byte, obj interface{}) (bool, error) {
	v, err := kv.Get(key)
	if err != nil || v == nil {
		return false, err
	}
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(obj); err != nil {
		return false, fmt.Errorf("can't decode value of key %q: %v", key, err)
	}
	return true, nil
}

// PutObject stores the gob encoding of obj.
func (kv *KV) PutObject(key []byte, obj interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return fmt.Errorf("can't encode value of key %q: %v", key, err)
	}
	return kv.Put(key, buf.Bytes())
}

// Key returns the key of an entity with the given prefix and id.  Ids are zero-padded
// hex so that scans return entities in id order.
func Key(prefix string, id int64) []byte {
	return []byte(fmt.Sprintf("%s/%016x", prefix, id))
}
