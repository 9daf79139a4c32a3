/*
Package storage provides a minimal key-value interface over the storage
engines used to hold out-of-core rasters and label tables.

Engines register themselves at init time and are opened by name with a Config.
Values are simply []byte at this level.  Serialization and compression happen
above the storage level.
*/
package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blang/semver"
)

// Store is an open key-value store.
type Store interface {
	// Get returns the value for key, or nil if the key isn't present.
	Get(key []byte) ([]byte, error)

	// Put writes a value with the given key.
	Put(key, value []byte) error

	// Delete removes the key if present.
	Delete(key []byte) error

	// KeysWithPrefix returns every key starting with prefix in ascending order.
	KeysWithPrefix(prefix []byte) ([][]byte, error)

	// NewBatch returns a write batch that is applied on Commit.
	NewBatch() Batch

	Close() error
	String() string
}

// Batch groups writes that are flushed together.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Commit() error
}

// Config describes a store to open.
type Config struct {
	Engine string `toml:"engine"`
	Path   string `toml:"path"`

	// InMemory keeps everything in RAM and ignores Path.
	InMemory bool `toml:"inmemory"`
	ReadOnly bool `toml:"readonly"`

	// ValueThreshold is the value size in bytes above which an engine may
	// store values apart from keys.  0 uses the engine default.
	ValueThreshold int64 `toml:"value_threshold"`
}

// Engine opens stores of one kind.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version

	// NewStore opens or creates a store.  The returned bool is true if the
	// store was newly created.
	NewStore(Config) (Store, bool, error)

	// Delete removes the store described by the config from disk.
	Delete(Config) error
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// RegisterEngine makes an engine available by name.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	engines[e.GetName()] = e
	enginesMu.Unlock()
}

// GetEngine returns a registered engine or nil.
func GetEngine(name string) Engine {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	return engines[name]
}

// EnginesAvailable returns the names of registered engines.
func EnginesAvailable() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStore opens a store with the engine named in the config.
func NewStore(c Config) (Store, bool, error) {
	e := GetEngine(c.Engine)
	if e == nil {
		return nil, false, fmt.Errorf("storage engine %q is not available, choices: %v", c.Engine, EnginesAvailable())
	}
	return e.NewStore(c)
}
