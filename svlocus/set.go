// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Set is a collection of loci plus the index of all their nodes. It is the
// merge engine: Merge folds a unit of evidence into the set, keeping live
// node intervals pairwise non-overlapping on each reference.
//
// Emptied loci keep their slot, and the lowest free slot is reused by the
// next inserted locus.
type Set struct {
	opts   Opts
	header *sam.Header
	loci   []*Locus
	free   []int // sorted ids of cleared loci
	index  nodeIndex
}

// New creates an empty set. header describes the references that Interval
// RefIDs point into. It may be nil.
func New(header *sam.Header, opts Opts) *Set {
	return &Set{opts: opts, header: header}
}

// Header returns the reference header passed to New or read by Load.
func (s *Set) Header() *sam.Header { return s.header }

// Source returns the label of the set.
func (s *Set) Source() string { return s.opts.Source }

// Len returns the number of locus slots, including empty ones.
func (s *Set) Len() int { return len(s.loci) }

// NonEmptyLen returns the number of loci with at least one node.
func (s *Set) NonEmptyLen() int {
	n := 0
	for _, l := range s.loci {
		if !l.Empty() {
			n++
		}
	}
	return n
}

// NodeCount returns the number of nodes in the set.
func (s *Set) NodeCount() int { return s.index.len() }

// Locus returns the locus with the given id. The caller must not modify it.
func (s *Set) Locus(id int) *Locus { return s.loci[id] }

// Node returns the node at addr. The caller must not modify it.
func (s *Set) Node(addr NodeAddress) *Node { return s.loci[addr.Locus].Node(addr.Node) }

func (s *Set) nodeAdded(addr NodeAddress, iv Interval) { s.index.insert(addr, iv) }

func (s *Set) nodeRemoved(addr NodeAddress, iv Interval) { s.index.remove(addr, iv) }

func (s *Set) isFree(id int) bool {
	i := sort.SearchInts(s.free, id)
	return i < len(s.free) && s.free[i] == id
}

func (s *Set) addFree(id int) {
	i := sort.SearchInts(s.free, id)
	if i < len(s.free) && s.free[i] == id {
		return
	}
	s.free = append(s.free, 0)
	copy(s.free[i+1:], s.free[i:])
	s.free[i] = id
}

// insertLocus copies src into the lowest free locus slot, or into a new slot
// if none is free, and returns the slot's id.
func (s *Set) insertLocus(src *Locus) int {
	var id int
	if len(s.free) == 0 {
		id = len(s.loci)
		s.loci = append(s.loci, &Locus{})
	} else {
		id = s.free[0]
		s.free = s.free[1:]
		if !s.loci[id].Empty() {
			log.Panicf("svlocus: free locus %d has %d nodes", id, s.loci[id].Len())
		}
	}
	l := s.loci[id]
	l.id = id
	l.obs = s
	l.copyLocus(src)
	return id
}

// clearLocus empties the locus and makes its slot reusable.
func (s *Set) clearLocus(id int) {
	s.loci[id].clear()
	s.addFree(id)
}

// combineLoci copies every node of locus "from" into locus "to", and clears
// "from" if clearSource is set.
func (s *Set) combineLoci(from, to int, clearSource bool) {
	if from == to || from >= len(s.loci) {
		return
	}
	src := s.loci[from]
	if src.Empty() {
		return
	}
	log.Debug.Printf("svlocus: combine loci %d -> %d (clear=%v)", from, to, clearSource)
	s.loci[to].copyLocus(src)
	if clearSource {
		s.clearLocus(from)
	}
}

// Merge folds the evidence graph "input" into the set. Every node of input
// that overlaps an existing node causes the loci owning the overlapping nodes
// to be unified into the lowest-numbered of them, and the overlapping nodes
// to be consolidated into one node whose interval covers them all and whose
// count is their sum. Input nodes that overlap nothing form a new locus.
//
// input must be a single connected component whose nodes do not overlap
// each other; this is assumed, not verified. input itself is not modified.
//
// An error means a graph invariant was broken. The set must then be
// considered inconsistent: discard it or reload it from a saved copy.
func (s *Set) Merge(input *Locus) error {
	if input.Empty() {
		return nil
	}
	return s.merge(input, sortedSlots(input))
}

// sortedSlots returns the node slots of l ordered by interval.
func sortedSlots(l *Locus) []int {
	slots := make([]int, l.Len())
	for i := range slots {
		slots[i] = i
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return l.nodes[slots[i]].Interval.Compare(l.nodes[slots[j]].Interval) < 0
	})
	return slots
}

// merge implements Merge, visiting input's nodes in the given order.
//
// The intersection search in nodeIntersect stops at the first
// non-intersecting neighbor in each direction. That is correct only if the
// staging nodes are visited in increasing position order: after the first
// consolidation the head locus holds copies of not-yet-visited staging
// nodes, which may sit between a visited node and an overlapping node and cut
// the search short. Merge always passes sortedSlots(input).
func (s *Set) merge(input *Locus, visit []int) error {
	start := s.insertLocus(input)
	head := start
	log.Debug.Printf("svlocus: merge input of %d nodes as locus %d", input.Len(), start)

	for _, slot := range visit {
		addr := NodeAddress{Locus: start, Node: slot}
		intersect := s.nodeIntersect(addr)
		log.Debug.Printf("svlocus: merge node %v %v: %d intersecting nodes", addr, s.Node(addr).Interval, len(intersect))

		if head != start {
			if len(intersect) == 0 {
				return newError(GraphInconsistency, "no intersecting nodes found during merge", head,
					NodeRef{addr, s.Node(addr).Interval})
			}
			if len(intersect) == 1 {
				continue
			}
		} else if len(intersect) == 0 {
			continue
		}

		head = s.moveIntersectToLowIndex(intersect, start, head)
		intersect = s.nodeIntersect(addr)

		// Merge the intersecting nodes from the highest address to the lowest,
		// so that removals never invalidate an address still to be processed.
		// One of them must contain the input node; it is the initial merge
		// target.
		inputIv := s.Node(addr).Interval
		super := -1
		var rest []NodeAddress
		for i, a := range intersect {
			if a.Locus != head {
				return newError(GraphInconsistency, "intersecting node outside the head locus after consolidation", head,
					NodeRef{addr, inputIv}, NodeRef{a, s.Node(a).Interval})
			}
			if super < 0 && s.Node(a).Interval.IsSupersetOf(inputIv) {
				super = i
				continue
			}
			rest = append(rest, a)
		}
		if super < 0 {
			return newError(GraphInconsistency, "no intersecting node contains the input node", head,
				NodeRef{addr, inputIv})
		}
		sort.Slice(rest, func(i, j int) bool { return rest[j].Less(rest[i]) })

		target := intersect[super]
		for _, a := range rest {
			if a.Less(target) {
				a, target = target, a
			}
			log.Debug.Printf("svlocus: merge and remove node %v -> %v", a, target)
			l := s.loci[head]
			if err := l.mergeNode(a.Node, target.Node); err != nil {
				return err
			}
			if err := l.removeNode(a.Node); err != nil {
				return err
			}
		}
	}

	if start != head {
		log.Debug.Printf("svlocus: clear staging locus %d", start)
		s.clearLocus(start)
	}
	if s.opts.VerifyMerge {
		return s.CheckState(true)
	}
	return nil
}

// nodeIntersect returns the addresses of all nodes outside addr's locus that
// intersect the node at addr, in index order.
//
// The search walks the index forward and backward from addr and stops at the
// first non-intersecting node in each direction. This finds every
// intersecting node only while the nodes outside addr's locus are pairwise
// non-overlapping, apart from what earlier steps of the current merge have
// introduced; see merge.
func (s *Set) nodeIntersect(addr NodeAddress) []NodeAddress {
	iv := s.Node(addr).Interval
	from := indexEntry{iv: iv, addr: addr}
	var found []indexEntry
	visit := func(e indexEntry) bool {
		if e.addr.Locus == addr.Locus {
			return false
		}
		if !iv.Intersects(e.iv) {
			return true
		}
		found = append(found, e)
		return false
	}
	s.index.ascend(from, visit)
	s.index.descend(from, visit)
	sort.Slice(found, func(i, j int) bool { return found[i].Compare(found[j]) < 0 })
	addrs := make([]NodeAddress, len(found))
	for i, e := range found {
		addrs[i] = e.addr
	}
	return addrs
}

// moveIntersectToLowIndex unifies the head locus and every locus owning a
// node in intersect into the lowest-numbered of them, and returns that id.
// The staging locus (start) is copied but never cleared here, and is not a
// candidate target.
func (s *Set) moveIntersectToLowIndex(intersect []NodeAddress, start, head int) int {
	startHead := head
	clearSource := start != startHead
	target := intersect[0].Locus
	for _, a := range intersect[1:] {
		if a.Locus < target {
			target = a.Locus
		}
	}
	if startHead != start && startHead < target {
		target = startHead
	}
	s.combineLoci(startHead, target, clearSource)
	for _, a := range intersect {
		s.combineLoci(a.Locus, target, true)
	}
	log.Debug.Printf("svlocus: reassigned intersecting loci to %d (previous head %d, staging %d)", target, startHead, start)
	return target
}

// MergeSet merges every non-empty locus of other into s, in locus id order.
// The first failure aborts the batch; it is logged and returned as a
// *BatchMergeError naming other's source and the failing locus.
func (s *Set) MergeSet(other *Set) error {
	for _, l := range other.loci {
		if l.Empty() {
			continue
		}
		if err := s.Merge(l); err != nil {
			log.Error.Printf("svlocus: merge failed: source %q locus %d: %v", other.Source(), l.ID(), err)
			return &BatchMergeError{Source: other.Source(), Locus: l.ID(), Err: err}
		}
	}
	return nil
}

// RegionIntersect returns the addresses of all nodes intersecting [begin,
// end) on reference refID, in index order. The set is left unchanged.
func (s *Set) RegionIntersect(refID, begin, end int32) []NodeAddress {
	if begin >= end {
		return nil
	}
	n := len(s.loci)
	id := s.insertLocus(&Locus{})
	slot := s.loci[id].AddNode(Interval{RefID: refID, Begin: begin, End: end}, 0)
	intersect := s.nodeIntersect(NodeAddress{Locus: id, Node: slot})
	s.clearLocus(id)
	if id == n {
		// The query locus was appended; drop the slot again.
		s.loci = s.loci[:n]
		s.free = s.free[:len(s.free)-1]
	}
	return intersect
}

// Clear removes every locus.
func (s *Set) Clear() {
	s.loci = nil
	s.free = nil
	s.index.reset()
}

func (s *Set) String() string {
	return fmt.Sprintf("svlocus.Set{source: %q, loci: %d, nodes: %d}", s.opts.Source, len(s.loci), s.index.len())
}
