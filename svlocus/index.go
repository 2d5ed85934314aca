// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"math"

	"github.com/biogo/store/llrb"
)

// indexEntry is one node of the node index. The interval is a copy of the
// node's interval taken when the entry was inserted; loci report every
// interval change as a remove/add pair, so the copy never goes stale while
// the index is in sync.
type indexEntry struct {
	iv   Interval
	addr NodeAddress
}

// Compare orders entries by interval, then by address, which makes the order
// total.
func (e indexEntry) Compare(c llrb.Comparable) int {
	e1 := c.(indexEntry)
	if d := e.iv.Compare(e1.iv); d != 0 {
		return d
	}
	return e.addr.Compare(e1.addr)
}

var (
	minEntry = indexEntry{
		iv:   Interval{RefID: math.MinInt32, Begin: math.MinInt32, End: math.MinInt32},
		addr: NodeAddress{Locus: math.MinInt32, Node: math.MinInt32},
	}
	maxEntry = indexEntry{
		iv:   Interval{RefID: math.MaxInt32, Begin: math.MaxInt32, End: math.MaxInt32},
		addr: NodeAddress{Locus: math.MaxInt32, Node: math.MaxInt32},
	}
)

// nodeIndex is the ordered set of every live node address of a Set, ordered
// by genomic position so that spatial neighbors are adjacent.
type nodeIndex struct {
	tree llrb.Tree
}

func (x *nodeIndex) insert(addr NodeAddress, iv Interval) {
	x.tree.Insert(indexEntry{iv: iv, addr: addr})
}

func (x *nodeIndex) remove(addr NodeAddress, iv Interval) {
	x.tree.Delete(indexEntry{iv: iv, addr: addr})
}

func (x *nodeIndex) contains(addr NodeAddress, iv Interval) bool {
	return x.tree.Get(indexEntry{iv: iv, addr: addr}) != nil
}

func (x *nodeIndex) len() int { return x.tree.Len() }

func (x *nodeIndex) reset() { x.tree = llrb.Tree{} }

// ascend calls fn on every entry at or after from, in order, until fn
// returns true.
func (x *nodeIndex) ascend(from indexEntry, fn func(e indexEntry) (done bool)) {
	x.tree.DoRange(func(c llrb.Comparable) bool { return fn(c.(indexEntry)) }, from, maxEntry)
}

// descend calls fn on every entry at or before from, in reverse order, until
// fn returns true.
func (x *nodeIndex) descend(from indexEntry, fn func(e indexEntry) (done bool)) {
	x.tree.DoRangeReverse(func(c llrb.Comparable) bool { return fn(c.(indexEntry)) }, from, minEntry)
}

// each calls fn on every entry in order until fn returns true.
func (x *nodeIndex) each(fn func(e indexEntry) (done bool)) {
	x.tree.Do(func(c llrb.Comparable) bool { return fn(c.(indexEntry)) })
}
