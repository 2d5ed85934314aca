// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"fmt"
	"sort"
	"strings"
)

// NodeAddress identifies a node by the id of its locus within a Set and its
// slot within that locus. Addresses are ordered by locus, then slot.
type NodeAddress struct {
	Locus int
	Node  int
}

// Compare returns (negative int, 0, positive int) if (a<a1, a=a1, a>a1)
// respectively.
func (a NodeAddress) Compare(a1 NodeAddress) int {
	if a.Locus != a1.Locus {
		return a.Locus - a1.Locus
	}
	return a.Node - a1.Node
}

// Less returns true iff a < a1.
func (a NodeAddress) Less(a1 NodeAddress) bool { return a.Compare(a1) < 0 }

func (a NodeAddress) String() string { return fmt.Sprintf("%d:%d", a.Locus, a.Node) }

// Edge is one outgoing edge of a node.
type Edge struct {
	// To is the slot of the target node in the same locus.
	To int
	// Count is the number of observations supporting the edge from this
	// node's side.
	Count uint32
}

// Node is one interval of a locus together with its observation count and
// its edges to other nodes of the same locus. Edges never cross loci.
type Node struct {
	Interval Interval
	Count    uint32
	edges    map[int]uint32 // target slot -> count
}

// NumEdges returns the number of outgoing edges, including a self edge.
func (n *Node) NumEdges() int { return len(n.edges) }

// EdgeCount returns the count of the edge to slot "to".
func (n *Node) EdgeCount(to int) (uint32, bool) {
	c, ok := n.edges[to]
	return c, ok
}

// Edges returns the outgoing edges sorted by target slot.
func (n *Node) Edges() []Edge {
	edges := make([]Edge, 0, len(n.edges))
	for to, c := range n.edges {
		edges = append(edges, Edge{To: to, Count: c})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	return edges
}

func (n *Node) addEdge(to int, count uint32) {
	if n.edges == nil {
		n.edges = map[int]uint32{}
	}
	n.edges[to] += count
}

func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LocusNode: %v n_edges: %d obs_count: %d\n", n.Interval, len(n.edges), n.Count)
	for _, e := range n.Edges() {
		fmt.Fprintf(&b, "\tEdgeTo: %d obs_count: %d\n", e.To, e.Count)
	}
	return b.String()
}

// locusObserver is told about every change to the set of live node
// addresses of a locus. nodeRemoved is called before the node at addr is
// changed or dropped, so iv is the interval it was added with.
type locusObserver interface {
	nodeAdded(addr NodeAddress, iv Interval)
	nodeRemoved(addr NodeAddress, iv Interval)
}

// Locus is a connected component of the evidence graph: a dense,
// slot-addressed list of nodes whose edges only point at each other.
//
// A Locus built by an evidence producer stands alone. Once copied into a Set,
// every change to it is reported to the Set's node index.
type Locus struct {
	nodes []Node
	id    int
	obs   locusObserver
}

// NewLocus creates an empty, standalone locus.
func NewLocus() *Locus { return &Locus{} }

// ID returns the id of the locus within its Set. It is 0 for a standalone
// locus.
func (l *Locus) ID() int { return l.id }

// Len returns the number of nodes.
func (l *Locus) Len() int { return len(l.nodes) }

// Empty returns true iff the locus has no nodes.
func (l *Locus) Empty() bool { return len(l.nodes) == 0 }

// Node returns the node at the given slot. The caller must not modify it.
func (l *Locus) Node(slot int) *Node { return &l.nodes[slot] }

// AddNode appends a node with the given interval and observation count and
// returns its slot.
func (l *Locus) AddNode(iv Interval, count uint32) int {
	slot := len(l.nodes)
	l.nodes = append(l.nodes, Node{Interval: iv, Count: count})
	l.notifyAdded(slot)
	return slot
}

// LinkNodes adds an edge from slot a to slot b with count ab, and the
// reverse edge with count ba. If a==b a single self edge with count ab+ba is
// added.
func (l *Locus) LinkNodes(a, b int, ab, ba uint32) error {
	if !l.validSlot(a) || !l.validSlot(b) {
		return newError(GraphInconsistency, fmt.Sprintf("link %d-%d: slot out of range [0,%d)", a, b, len(l.nodes)), -1)
	}
	if a == b {
		l.nodes[a].addEdge(a, ab+ba)
		return nil
	}
	l.nodes[a].addEdge(b, ab)
	l.nodes[b].addEdge(a, ba)
	return nil
}

func (l *Locus) validSlot(slot int) bool { return slot >= 0 && slot < len(l.nodes) }

func (l *Locus) addr(slot int) NodeAddress { return NodeAddress{Locus: l.id, Node: slot} }

func (l *Locus) notifyAdded(slot int) {
	if l.obs != nil {
		l.obs.nodeAdded(l.addr(slot), l.nodes[slot].Interval)
	}
}

func (l *Locus) notifyRemoved(slot int) {
	if l.obs != nil {
		l.obs.nodeRemoved(l.addr(slot), l.nodes[slot].Interval)
	}
}

// mergeNode folds the node at slot "from" into the node at slot "to": the
// interval of "to" grows to cover both, counts are summed, edges of "from"
// move to "to", and edges pointing at "from" are redirected to "to". Edges
// between the two become a self edge of "to". "from" is left without edges,
// ready for removeNode.
func (l *Locus) mergeNode(from, to int) error {
	if from == to || !l.validSlot(from) || !l.validSlot(to) {
		return newError(GraphInconsistency,
			fmt.Sprintf("cannot merge node slot %d into %d in a locus of %d nodes", from, to, len(l.nodes)),
			-1)
	}
	l.notifyRemoved(to)
	fromNode, toNode := &l.nodes[from], &l.nodes[to]
	toNode.Interval = toNode.Interval.union(fromNode.Interval)
	toNode.Count += fromNode.Count
	for target, c := range fromNode.edges {
		if target == from {
			target = to
		}
		toNode.addEdge(target, c)
	}
	fromNode.edges = nil
	for i := range l.nodes {
		n := &l.nodes[i]
		c, ok := n.edges[from]
		if !ok {
			continue
		}
		delete(n.edges, from)
		n.addEdge(to, c)
	}
	l.notifyAdded(to)
	return nil
}

// removeNode deletes the node at slot and shifts every higher slot down by
// one, renumbering edges to match. Edges that still point at the removed
// node are dropped. Removing nodes from the highest slot to the lowest keeps
// pending lower slots valid.
func (l *Locus) removeNode(slot int) error {
	if !l.validSlot(slot) {
		return newError(GraphInconsistency,
			fmt.Sprintf("cannot remove node slot %d from a locus of %d nodes", slot, len(l.nodes)), -1)
	}
	for i := slot; i < len(l.nodes); i++ {
		l.notifyRemoved(i)
	}
	last := len(l.nodes) - 1
	copy(l.nodes[slot:], l.nodes[slot+1:])
	l.nodes[last] = Node{}
	l.nodes = l.nodes[:last]
	for i := range l.nodes {
		n := &l.nodes[i]
		renumber := false
		for target := range n.edges {
			if target >= slot {
				renumber = true
				break
			}
		}
		if !renumber {
			continue
		}
		edges := make(map[int]uint32, len(n.edges))
		for target, c := range n.edges {
			switch {
			case target == slot:
				continue
			case target > slot:
				target--
			}
			edges[target] += c
		}
		n.edges = edges
	}
	for i := slot; i < len(l.nodes); i++ {
		l.notifyAdded(i)
	}
	return nil
}

// copyLocus appends every node of src to l, offsetting src's edge targets by
// l's original size.
func (l *Locus) copyLocus(src *Locus) {
	offset := len(l.nodes)
	for i := range src.nodes {
		sn := &src.nodes[i]
		n := Node{Interval: sn.Interval, Count: sn.Count}
		if len(sn.edges) > 0 {
			n.edges = make(map[int]uint32, len(sn.edges))
			for target, c := range sn.edges {
				n.edges[target+offset] = c
			}
		}
		l.nodes = append(l.nodes, n)
	}
	for slot := offset; slot < len(l.nodes); slot++ {
		l.notifyAdded(slot)
	}
}

// clear removes every node. The locus id and observer are kept.
func (l *Locus) clear() {
	for i := range l.nodes {
		l.notifyRemoved(i)
	}
	l.nodes = nil
}

// CheckState verifies that every edge points at an existing node of the
// locus and that every edge has a reverse edge.
func (l *Locus) CheckState() error {
	for i := range l.nodes {
		n := &l.nodes[i]
		for target := range n.edges {
			if !l.validSlot(target) {
				return newError(GraphInconsistency,
					fmt.Sprintf("edge to missing node slot %d", target), -1,
					NodeRef{l.addr(i), n.Interval})
			}
			if _, ok := l.nodes[target].edges[i]; !ok {
				return newError(GraphInconsistency, "edge has no reverse edge", -1,
					NodeRef{l.addr(i), n.Interval}, NodeRef{l.addr(target), l.nodes[target].Interval})
			}
		}
	}
	return nil
}

func (l *Locus) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LOCUS BEGIN INDEX %d\n", l.id)
	for i := range l.nodes {
		fmt.Fprintf(&b, "NodeIndex: %d %v", i, l.nodes[i].String())
	}
	fmt.Fprintf(&b, "LOCUS END INDEX %d\n", l.id)
	return b.String()
}
