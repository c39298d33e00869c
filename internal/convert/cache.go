// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package convert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
)

// bump when a converter's output changes, to orphan old disk entries
const cacheVersion = 2

// Cache memoizes expensive file conversions by a hash of the resource type,
// name and data. Recently used results stay in memory, and with a directory
// every result is also kept on disk across runs.
// A Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	mu  sync.Mutex
	mem *tinylfu.T[uint64, []byte]
	db  *pebble.DB
}

// OpenCache keeps up to entries results in memory. An empty dir means
// no disk tier.
func OpenCache(dir string, entries int) (*Cache, error) {
	entries = max(entries, 1)
	c := &Cache{mem: tinylfu.New[uint64, []byte](entries, entries*10, func(k uint64) uint64 { return k })}
	if dir != "" {
		db, err := pebble.Open(dir, &pebble.Options{})
		if err != nil {
			return nil, fmt.Errorf("conversion cache: %w", err)
		}
		c.db = db
	}
	return c, nil
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) get(k uint64) ([]byte, bool) {
	c.mu.Lock()
	v, ok := c.mem.Get(k)
	c.mu.Unlock()
	if ok || c.db == nil {
		return v, ok
	}

	val, closer, err := c.db.Get(diskKey(k))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			slog.Warn("cacheReadError", "err", err)
		}
		return nil, false
	}
	v = bytes.Clone(val)
	closer.Close()

	c.mu.Lock()
	c.mem.Add(k, v)
	c.mu.Unlock()
	return v, true
}

func (c *Cache) put(k uint64, v []byte) {
	c.mu.Lock()
	c.mem.Add(k, v)
	c.mu.Unlock()
	if c.db != nil {
		if err := c.db.Set(diskKey(k), v, pebble.NoSync); err != nil {
			slog.Warn("cacheWriteError", "err", err)
		}
	}
}

func diskKey(k uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{cacheVersion}, k)
}

// Wrap memoizes a converter that produces a separate file from nothing
// but the resource's own type, name and data.
func (c *Cache) Wrap(conv Converter) Converter {
	return cached{Converter: conv, c: c}
}

type cached struct {
	Converter
	c *Cache
}

func (w cached) Lossy() bool { return Lossy(w.Converter) }

func (w cached) Unpack(res *resourcefork.Resource, fork *resourcefork.Fork) (any, error) {
	var h xxhash.Digest
	h.Reset()
	h.WriteString(w.Converter.SeparateFile())
	h.Write(res.Type[:])
	h.Write([]byte{byte(len(res.Name))}) // sounds carry the name into the AIFF
	h.Write(res.Name)
	h.Write(res.Data)
	k := h.Sum64()

	if v, ok := w.c.get(k); ok {
		return bytes.Clone(v), nil
	}
	v, err := w.Converter.Unpack(res, fork)
	if err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		w.c.put(k, bytes.Clone(b))
	}
	return v, nil
}

// UseCache routes the picture and sound converters through c. Icons are
// left alone because their masks come from other resources.
func (r *Registry) UseCache(c *Cache) {
	for t, conv := range r.m {
		switch conv.(type) {
		case Picture, Sound:
			r.m[t] = c.Wrap(conv)
		}
	}
}
