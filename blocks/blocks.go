/*
Package blocks stores label and spectral rasters as fixed-size 2D blocks in a
key-value store so merging can run over images that don't fit in memory.

Each block is encoded little-endian, compressed, and checksummed with
lsms.SerializeData.  Decoded blocks are kept in an optional freecache cache,
and concurrent reads of the same block share a single store read.
*/
package blocks

import (
	"fmt"
	"image"
	"sync"

	"github.com/coocood/freecache"
	"github.com/golang/groupcache/singleflight"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/storage"
)

// DefaultBlockSize is the block extent used when none is given.
var DefaultBlockSize = image.Pt(256, 256)

// Store reads and writes block rasters in a storage.Store.
type Store struct {
	kv          storage.Store
	compression lsms.Compression

	cache *freecache.Cache
	group singleflight.Group

	// writeMu serializes read-modify-write of partially covered blocks.
	writeMu sync.Mutex
}

// New returns a block store over kv.  If cacheBytes is positive, decoded
// blocks are cached up to roughly that size.
func New(kv storage.Store, compression lsms.Compression, cacheBytes int) *Store {
	s := &Store{kv: kv, compression: compression}
	if cacheBytes > 0 {
		s.cache = freecache.NewCache(cacheBytes)
		lsms.Infof("Created freecache of ~ %d MB for blocks in %s.\n", cacheBytes>>20, kv)
	}
	return s
}

// CacheStats returns the block cache hit and miss counts.
func (s *Store) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.HitCount(), s.cache.MissCount()
}

func (s *Store) putMetadata(name string, meta Metadata) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := meta.check(); err != nil {
		return err
	}
	meta.Version = FormatVersion
	buf, err := meta.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return s.kv.Put(nameKey(keyMetadata, name), buf)
}

// Metadata returns the stored description of the named raster.
func (s *Store) Metadata(name string) (Metadata, error) {
	var meta Metadata
	if err := checkName(name); err != nil {
		return meta, err
	}
	buf, err := s.kv.Get(nameKey(keyMetadata, name))
	if err != nil {
		return meta, err
	}
	if buf == nil {
		return meta, fmt.Errorf("no raster %q in %s", name, s.kv)
	}
	if _, err := meta.UnmarshalMsg(buf); err != nil {
		return meta, fmt.Errorf("bad metadata for raster %q: %v", name, err)
	}
	if meta.Version.Major != FormatVersion.Major {
		return meta, fmt.Errorf("raster %q has format %s, can only read %d.x", name, meta.Version, FormatVersion.Major)
	}
	return meta, meta.check()
}

// getBlock returns the decoded bytes of a block or nil if it was never
// written.  The returned slice must not be modified.
func (s *Store) getBlock(name string, meta Metadata, b image.Point) ([]byte, error) {
	key := blockKey(name, b)
	if s.cache != nil {
		data, err := s.cache.Get(key)
		if err == nil {
			return data, nil
		}
		if err != freecache.ErrNotFound {
			return nil, err
		}
	}
	v, err := s.group.Do(string(key), func() (interface{}, error) {
		blocksRead.Inc()
		stored, err := s.kv.Get(key)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return []byte(nil), nil
		}
		data, _, err := lsms.DeserializeData(stored, true)
		if err != nil {
			return nil, fmt.Errorf("block %v of raster %q: %v", b, name, err)
		}
		if len(data) != meta.blockBytes() {
			return nil, fmt.Errorf("block %v of raster %q has %d bytes, expected %d", b, name, len(data), meta.blockBytes())
		}
		s.cachePut(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Store) cachePut(key, data []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(key, data, 0); err != nil {
		// Blocks larger than a cache segment can't be cached.
		lsms.Debugf("unable to cache block %x: %v\n", key, err)
	}
}

func (s *Store) putBlock(batch storage.Batch, name string, b image.Point, data []byte) error {
	key := blockKey(name, b)
	stored, err := lsms.SerializeData(data, s.compression, lsms.CRC32)
	if err != nil {
		return err
	}
	batch.Put(key, stored)
	blocksWritten.Inc()
	if s.cache != nil {
		s.cache.Del(key)
	}
	return nil
}

// BlockCoords returns the coordinates of every stored block of a raster.
func (s *Store) BlockCoords(name string) ([]image.Point, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	keys, err := s.kv.KeysWithPrefix(nameKey(keyBlock, name))
	if err != nil {
		return nil, err
	}
	coords := make([]image.Point, 0, len(keys))
	for _, k := range keys {
		b, err := decodeBlockKey(name, k)
		if err != nil {
			return nil, err
		}
		coords = append(coords, b)
	}
	return coords, nil
}

// Delete removes a raster's metadata and blocks.
func (s *Store) Delete(name string) error {
	coords, err := s.BlockCoords(name)
	if err != nil {
		return err
	}
	batch := s.kv.NewBatch()
	for _, b := range coords {
		key := blockKey(name, b)
		batch.Delete(key)
		if s.cache != nil {
			s.cache.Del(key)
		}
	}
	batch.Delete(nameKey(keyMetadata, name))
	return batch.Commit()
}
