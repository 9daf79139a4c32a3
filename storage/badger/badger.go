// Package badger registers a BadgerDB storage engine.
package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/storage"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"
	"github.com/twinj/uuid"
)

const (
	// DefaultValueThreshold is the size of values in bytes that if exceeded get
	// stored in the value log instead of the LSM tree.  Encoded blocks are
	// usually larger.
	DefaultValueThreshold = 1 * lsms.Kilo

	// DefaultSyncWrites is true if all writes are synced to disk, thereby making
	// db resilient at cost of speed.
	DefaultSyncWrites = false

	syncInterval = 30 * time.Second
)

func init() {
	ver, err := semver.Make("0.2.0")
	if err != nil {
		lsms.Errorf("Unable to make semver in badger: %v\n", err)
	}
	storage.RegisterEngine(Engine{"badger", "BadgerDB", ver})
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore returns a badger store.  The config must have a Path unless InMemory is set.
func (e Engine) NewStore(config storage.Config) (storage.Store, bool, error) {
	return e.newDB(config)
}

// TestConfig returns a config for a fresh store under the system temp
// directory, or in memory.
func TestConfig(inMemory bool) storage.Config {
	return storage.Config{
		Engine:   "badger",
		Path:     filepath.Join(os.TempDir(), fmt.Sprintf("lsms-test-badger-%x", uuid.NewV4().Bytes())),
		InMemory: inMemory,
	}
}

// Delete removes the store directory if it exists.
func (e Engine) Delete(config storage.Config) error {
	if config.InMemory {
		return nil
	}
	if config.Path == "" {
		return fmt.Errorf("no path given for badger store deletion")
	}
	if _, err := os.Stat(config.Path); !os.IsNotExist(err) {
		if err := os.RemoveAll(config.Path); err != nil {
			return fmt.Errorf("can't delete badger store %q: %v", config.Path, err)
		}
	}
	return nil
}

func getOptions(config storage.Config) badger.Options {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	threshold := config.ValueThreshold
	if threshold == 0 {
		threshold = DefaultValueThreshold
	}
	return opts.
		WithReadOnly(config.ReadOnly).
		WithValueThreshold(threshold).
		WithNumVersionsToKeep(1).
		WithSyncWrites(DefaultSyncWrites).
		WithLogger(badgerLogger{})
}

// newDB returns a Badger backend, creating one at path if it doesn't exist.
func (e Engine) newDB(config storage.Config) (*BadgerDB, bool, error) {
	var created bool
	if !config.InMemory {
		if config.Path == "" {
			return nil, false, fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
		}
		if _, err := os.Stat(config.Path); os.IsNotExist(err) {
			lsms.Infof("Database not already at path (%s). Creating directory...\n", config.Path)
			created = true
			if err := os.MkdirAll(config.Path, 0744); err != nil {
				return nil, true, fmt.Errorf("can't make directory at %s: %v", config.Path, err)
			}
		}
	} else {
		created = true
	}

	timedLog := lsms.NewTimeLog()
	bdp, err := badger.Open(getOptions(config))
	if err != nil {
		return nil, false, err
	}
	db := &BadgerDB{
		directory:  config.Path,
		config:     config,
		bdp:        bdp,
		stopSyncCh: make(chan struct{}),
	}
	if config.InMemory {
		db.directory = "memory"
	} else if !config.ReadOnly {
		go db.syncPeriodically()
	}
	timedLog.Infof("Opened %s", db)
	return db, created, nil
}

// Periodically sync to prevent too many writes from being buffered
// if the process crashes.
func (db *BadgerDB) syncPeriodically() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			lsms.Debugf("Stopping sync goroutine for %s\n", db)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				lsms.Errorf("Sync of %s failed: %v\n", db, err)
			}
		}
	}
}

// badgerLogger routes badger's own messages through the lsms log levels.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { lsms.Errorf("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { lsms.Warningf("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { lsms.Debugf("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   {}

// --- The BadgerDB Implementation must satisfy a storage.Store interface ----

type BadgerDB struct {
	// Directory of datastore
	directory string

	// Config at time of Open()
	config storage.Config

	bdp *badger.DB

	stopSyncCh chan struct{}
}

func (db *BadgerDB) String() string {
	return fmt.Sprintf("badger @ %s", db.directory)
}

// Close stops background syncing and closes the database.
func (db *BadgerDB) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	close(db.stopSyncCh)
	err := db.bdp.Close()
	db.bdp = nil
	lsms.Infof("Closed %s\n", db)
	return err
}

// Get returns a value given a key, or nil if the key isn't stored.
func (db *BadgerDB) Get(key []byte) ([]byte, error) {
	if db == nil || db.bdp == nil {
		return nil, fmt.Errorf("can't call Get on closed BadgerDB")
	}
	var v []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
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
	storage.Gets.Inc()
	storage.StoreBytesRead.Add(float64(len(key) + len(v)))
	return v, err
}

// Put writes a value with given key.
func (db *BadgerDB) Put(key, value []byte) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("can't call Put on closed BadgerDB")
	}
	err := db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	storage.Puts.Inc()
	storage.StoreBytesWritten.Add(float64(len(key) + len(value)))
	return err
}

// Delete removes a value with given key.
func (db *BadgerDB) Delete(key []byte) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("can't call Delete on closed BadgerDB")
	}
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// KeysWithPrefix returns all keys with the given prefix without reading values.
func (db *BadgerDB) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	if db == nil || db.bdp == nil {
		return nil, fmt.Errorf("can't call KeysWithPrefix on closed BadgerDB")
	}
	var keys [][]byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			storage.StoreBytesRead.Add(float64(len(k)))
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}

// --- Batch interface ---

type goBatch struct {
	*badger.WriteBatch
	err error
}

// NewBatch returns an implementation that allows batch writes.
func (db *BadgerDB) NewBatch() storage.Batch {
	return &goBatch{WriteBatch: db.bdp.NewWriteBatch()}
}

func (batch *goBatch) Put(key, value []byte) {
	if batch.err != nil {
		return
	}
	storage.Puts.Inc()
	storage.StoreBytesWritten.Add(float64(len(key) + len(value)))
	if err := batch.WriteBatch.Set(key, value); err != nil {
		batch.err = fmt.Errorf("unable to write key %x, value %d bytes: %v", key, len(value), err)
	}
}

func (batch *goBatch) Delete(key []byte) {
	if batch.err != nil {
		return
	}
	if err := batch.WriteBatch.Delete(key); err != nil {
		batch.err = fmt.Errorf("unable to delete key %x: %v", key, err)
	}
}

// Commit flushes the batch, or discards it if an earlier write failed.
func (batch *goBatch) Commit() error {
	defer batch.WriteBatch.Cancel()
	if batch.err != nil {
		return batch.err
	}
	return batch.WriteBatch.Flush()
}
