// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import "fmt"

// ReconstructIndex rebuilds the node index and the free-slot list from the
// loci alone. Empty loci become reusable.
func (s *Set) ReconstructIndex() {
	s.index.reset()
	s.free = s.free[:0]
	for id, l := range s.loci {
		l.id = id
		l.obs = s
		for slot := range l.nodes {
			s.index.insert(l.addr(slot), l.nodes[slot].Interval)
		}
		if l.Empty() {
			s.free = append(s.free, id)
		}
	}
}

// CheckState verifies the set's invariants:
//
//   - every locus passes Locus.CheckState, and loci in the free list are empty;
//   - every node has an index entry with its address and current interval,
//     and the index has no other entries.
//
// If checkOverlap is set it also verifies that no node has an empty interval,
// and that no two nodes on the same reference overlap. The latter holds after
// every completed Merge.
func (s *Set) CheckState(checkOverlap bool) error {
	total := 0
	for id, l := range s.loci {
		if err := l.CheckState(); err != nil {
			return err
		}
		if l.id != id {
			return newError(IndexInconsistency, fmt.Sprintf("locus in slot %d has id %d", id, l.id), -1)
		}
		if !l.Empty() && s.isFree(id) {
			return newError(IndexInconsistency, fmt.Sprintf("locus %d is free but has %d nodes", id, l.Len()), -1)
		}
		for slot := range l.nodes {
			addr := l.addr(slot)
			iv := l.nodes[slot].Interval
			if s.index.contains(addr, iv) {
				continue
			}
			if stale, ok := s.findIndexed(addr); ok {
				return newError(IndexInconsistency, "node index entry has a conflicting interval", -1,
					NodeRef{addr, iv}, NodeRef{addr, stale})
			}
			return newError(IndexInconsistency, "locus node is missing from node index", -1, NodeRef{addr, iv})
		}
		total += l.Len()
	}
	if total != s.index.len() {
		return newError(IndexInconsistency,
			fmt.Sprintf("conflicting internal node counts: %d nodes, %d index entries", total, s.index.len()), -1)
	}
	if !checkOverlap {
		return nil
	}

	var (
		err   error
		first = true
		last  indexEntry
	)
	s.index.each(func(e indexEntry) bool {
		if e.iv.Begin >= e.iv.End {
			err = newError(OverlapViolation, "empty or negative-length interval", -1, NodeRef{e.addr, e.iv})
			return true
		}
		if !first && last.iv.RefID == e.iv.RefID && last.iv.End > e.iv.Begin {
			err = newError(OverlapViolation, "overlapping nodes in graph", -1,
				NodeRef{last.addr, last.iv}, NodeRef{e.addr, e.iv})
			return true
		}
		first = false
		last = e
		return false
	})
	return err
}

// findIndexed scans the whole index for an entry with the given address, and
// returns the interval it was indexed under.
func (s *Set) findIndexed(addr NodeAddress) (Interval, bool) {
	var (
		iv    Interval
		found bool
	)
	s.index.each(func(e indexEntry) bool {
		if e.addr == addr {
			iv, found = e.iv, true
			return true
		}
		return false
	})
	return iv, found
}
