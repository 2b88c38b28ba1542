// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache provides a block cache for the bgzf package, satisfying
// spec.md §3's permission for "a small LRU cache (capacity 1 sufficient
// for correctness; a few entries desirable for locality)".
package cache

import (
	"sync"

	"github.com/biogo/tabix/bgzf"
)

var _ Cache = (*LRU)(nil)

// Cache extends bgzf.Cache with inspection and resizing operations.
type Cache interface {
	bgzf.Cache

	// Len returns the number of blocks currently held.
	Len() int

	// Cap returns the maximum number of blocks the cache will hold.
	Cap() int

	// Resize changes the capacity to n, dropping excess blocks if n is
	// smaller than the number currently held.
	Resize(n int)

	// Drop evicts n blocks according to the cache's eviction policy.
	Drop(n int)
}

// NewLRU returns a least-recently-used Cache with n slots. Unused blocks
// (those from which nothing has been read) are evicted in preference to
// used ones. NewLRU returns nil if n is less than 1.
func NewLRU(n int) Cache {
	if n < 1 {
		return nil
	}
	c := &LRU{
		table: make(map[int64]*node, n),
		cap:   n,
	}
	c.root.next = &c.root
	c.root.prev = &c.root
	return c
}

// LRU is a least-recently-used bgzf.Block cache.
type LRU struct {
	mu    sync.Mutex
	root  node
	table map[int64]*node
	cap   int
}

type node struct {
	b          bgzf.Block
	next, prev *node
}

func insertAfter(pos, n *node) {
	n.prev = pos
	n.next = pos.next
	pos.next.prev = n
	pos.next = n
}

func remove(n *node, table map[int64]*node) {
	delete(table, n.b.Base())
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
}

// Len returns the number of blocks currently held.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Cap returns the maximum number of blocks the cache will hold.
func (c *LRU) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cap
}

// Resize changes the capacity to n, dropping excess blocks if n is
// smaller than the number currently held.
func (c *LRU) Resize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < len(c.table) {
		c.drop(len(c.table) - n)
	}
	c.cap = n
}

// Drop evicts n blocks, least recently used first.
func (c *LRU) Drop(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop(n)
}

func (c *LRU) drop(n int) {
	for ; n > 0 && len(c.table) > 0; n-- {
		remove(c.root.prev, c.table)
	}
}

// Get returns the Block with the given base file offset, removing it
// from the cache, or nil if no such Block is held.
func (c *LRU) Get(base int64) bgzf.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.table[base]
	if !ok {
		return nil
	}
	remove(n, c.table)
	return n.b
}

// Put inserts b into the cache. If the cache is at capacity and b was
// never read from, b itself is evicted immediately (not retained). Put
// is a no-op, reporting b as not retained, if a Block with the same base
// is already cached.
func (c *LRU) Put(b bgzf.Block) (evicted bgzf.Block, retained bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.table[b.Base()]; ok {
		return b, false
	}

	used := b.Used()
	var d bgzf.Block
	if len(c.table) == c.cap {
		if !used {
			return b, false
		}
		d = c.root.prev.b
		remove(c.root.prev, c.table)
	}

	n := &node{b: b}
	c.table[b.Base()] = n
	if used {
		insertAfter(&c.root, n)
	} else {
		insertAfter(c.root.prev, n)
	}
	return d, true
}
