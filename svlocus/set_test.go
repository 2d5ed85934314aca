package svlocus

import (
	"errors"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// newUnit creates a unit of evidence: one node per interval, each with the
// given count, consecutive nodes linked by edges of count 1.
func newUnit(count uint32, ivs ...Interval) *Locus {
	l := NewLocus()
	for i, iv := range ivs {
		l.AddNode(iv, count)
		if i > 0 {
			if err := l.LinkNodes(i-1, i, 1, 1); err != nil {
				panic(err)
			}
		}
	}
	return l
}

func newTestSet() *Set {
	return New(nil, Opts{Source: "test", VerifyMerge: true})
}

func mustMerge(t *testing.T, s *Set, l *Locus) {
	t.Helper()
	assert.NoError(t, s.Merge(l))
}

func TestMergeOverlappingUnits(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(1, Interval{0, 150, 250}))
	expect.EQ(t, s.NonEmptyLen(), 1)
	expect.EQ(t, s.NodeCount(), 1)
	n := s.Node(NodeAddress{0, 0})
	expect.EQ(t, n.Interval, Interval{0, 100, 250})
	expect.EQ(t, n.Count, uint32(2))

	// A disjoint unit gets its own locus, in the slot freed by the staging
	// locus of the previous merge.
	mustMerge(t, s, newUnit(1, Interval{0, 500, 600}))
	expect.EQ(t, s.NodeCount(), 2)
	expect.EQ(t, s.NonEmptyLen(), 2)
	expect.EQ(t, s.Len(), 2)
	expect.EQ(t, s.Node(NodeAddress{1, 0}).Interval, Interval{0, 500, 600})
	assert.NoError(t, s.CheckState(true))
}

func TestMergeContainedUnit(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(3, Interval{0, 120, 130}))
	expect.EQ(t, s.NodeCount(), 1)
	n := s.Node(NodeAddress{0, 0})
	expect.EQ(t, n.Interval, Interval{0, 100, 200})
	expect.EQ(t, n.Count, uint32(4))

	mustMerge(t, s, newUnit(2, Interval{0, 100, 200}))
	expect.EQ(t, s.NodeCount(), 1)
	expect.EQ(t, s.Node(NodeAddress{0, 0}).Count, uint32(6))
}

func TestMergeDifferentReferences(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(1, Interval{1, 100, 200}))
	expect.EQ(t, s.NodeCount(), 2)
	expect.EQ(t, s.NonEmptyLen(), 2)
}

func TestMergeUnifiesLoci(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(1, Interval{0, 1000, 1100}))
	expect.EQ(t, s.NonEmptyLen(), 2)

	mustMerge(t, s, newUnit(1, Interval{0, 150, 160}, Interval{0, 1050, 1060}))
	expect.EQ(t, s.NonEmptyLen(), 1)
	expect.EQ(t, s.Len(), 3)
	l := s.Locus(0)
	expect.EQ(t, l.Len(), 2)
	expect.True(t, s.Locus(1).Empty())
	expect.True(t, s.Locus(2).Empty())

	expect.EQ(t, l.Node(0).Interval, Interval{0, 100, 200})
	expect.EQ(t, l.Node(0).Count, uint32(2))
	expect.EQ(t, l.Node(1).Interval, Interval{0, 1000, 1100})
	expect.EQ(t, l.Node(1).Count, uint32(2))
	expect.EQ(t, l.Node(0).Edges(), []Edge{{To: 1, Count: 1}})
	expect.EQ(t, l.Node(1).Edges(), []Edge{{To: 0, Count: 1}})

	// Freed slots are reused lowest first.
	mustMerge(t, s, newUnit(1, Interval{0, 5000, 5100}))
	expect.EQ(t, s.Locus(1).Len(), 1)
	expect.EQ(t, s.Len(), 3)
}

func TestMergeBridgesNodes(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(1, Interval{0, 300, 400}))
	mustMerge(t, s, newUnit(1, Interval{0, 150, 350}))
	expect.EQ(t, s.NodeCount(), 1)
	expect.EQ(t, s.NonEmptyLen(), 1)
	n := s.Node(NodeAddress{0, 0})
	expect.EQ(t, n.Interval, Interval{0, 100, 400})
	expect.EQ(t, n.Count, uint32(3))
}

func TestMergeSelfEdge(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 0, 1000}))
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}, Interval{0, 800, 900}))
	expect.EQ(t, s.NodeCount(), 1)
	n := s.Node(NodeAddress{0, 0})
	expect.EQ(t, n.Count, uint32(3))
	expect.EQ(t, n.Edges(), []Edge{{To: 0, Count: 2}})
}

func TestMergeEmptyInput(t *testing.T) {
	s := newTestSet()
	assert.NoError(t, s.Merge(NewLocus()))
	expect.EQ(t, s.Len(), 0)
}

func TestMergeInputUnchanged(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 0, 150}))
	in := newUnit(1, Interval{0, 100, 200}, Interval{0, 800, 900})
	mustMerge(t, s, in)
	expect.EQ(t, in.Len(), 2)
	expect.EQ(t, in.Node(0).Interval, Interval{0, 100, 200})
	expect.EQ(t, in.Node(0).Edges(), []Edge{{To: 1, Count: 1}})
}

// The intersection search stops at the first non-intersecting neighbor, which
// is only correct when staging nodes are visited in position order.
func TestMergeVisitOrder(t *testing.T) {
	newInput := func() *Locus {
		return newUnit(1, Interval{0, 100, 110}, Interval{0, 300, 400})
	}
	s := New(nil, Opts{})
	mustMerge(t, s, newUnit(1, Interval{0, 50, 1000}))
	assert.NoError(t, s.merge(newInput(), []int{0, 1}))
	assert.NoError(t, s.CheckState(true))
	expect.EQ(t, s.NodeCount(), 1)
	expect.EQ(t, s.Node(NodeAddress{0, 0}).Count, uint32(3))

	s = New(nil, Opts{})
	mustMerge(t, s, newUnit(1, Interval{0, 50, 1000}))
	assert.NoError(t, s.merge(newInput(), []int{1, 0}))
	assert.NoError(t, s.CheckState(false))
	expect.EQ(t, ErrorCode(s.CheckState(true)), OverlapViolation)
	expect.EQ(t, s.NodeCount(), 2)
}

// detach disconnects locus id from the node index, so nodes copied into it
// are never indexed.
func detach(s *Set, id int) { s.loci[id].obs = nil }

func TestMergeNoIntersectionError(t *testing.T) {
	s := New(nil, Opts{})
	mustMerge(t, s, newUnit(1, Interval{0, 50, 200}))
	detach(s, 0)
	err := s.Merge(newUnit(1, Interval{0, 100, 110}, Interval{0, 5000, 5100}))
	var e *Error
	assert.True(t, errors.As(err, &e))
	expect.EQ(t, e.Code, GraphInconsistency)
	expect.EQ(t, e.Head, 0)
	expect.EQ(t, e.Nodes[0], NodeRef{NodeAddress{1, 1}, Interval{0, 5000, 5100}})
}

func TestMergeNoSupersetError(t *testing.T) {
	s := New(nil, Opts{})
	mustMerge(t, s, newUnit(1, Interval{0, 50, 105}))
	detach(s, 0)
	err := s.Merge(newUnit(1, Interval{0, 100, 110}))
	var e *Error
	assert.True(t, errors.As(err, &e))
	expect.EQ(t, e.Code, GraphInconsistency)
	expect.EQ(t, e.Nodes[0].Interval, Interval{0, 100, 110})
}

func TestMergeSet(t *testing.T) {
	a := newTestSet()
	mustMerge(t, a, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, a, newUnit(1, Interval{1, 100, 200}))

	b := New(nil, Opts{Source: "b"})
	mustMerge(t, b, newUnit(2, Interval{0, 150, 250}, Interval{1, 150, 160}))
	mustMerge(t, b, newUnit(1, Interval{2, 0, 10}))

	assert.NoError(t, a.MergeSet(b))
	expect.EQ(t, a.NonEmptyLen(), 2)
	expect.EQ(t, a.NodeCount(), 3)
	l := a.Locus(0)
	expect.EQ(t, l.Len(), 2)
	expect.EQ(t, l.Node(0).Interval, Interval{0, 100, 250})
	expect.EQ(t, l.Node(0).Count, uint32(3))
	expect.EQ(t, l.Node(1).Interval, Interval{1, 100, 200})
	expect.EQ(t, l.Node(1).Count, uint32(3))
}

func TestMergeSetWrapsFailure(t *testing.T) {
	dst := New(nil, Opts{})
	mustMerge(t, dst, newUnit(1, Interval{0, 50, 105}))
	detach(dst, 0)

	src := New(nil, Opts{Source: "src.svl"})
	mustMerge(t, src, newUnit(1, Interval{3, 0, 10}))
	mustMerge(t, src, newUnit(1, Interval{0, 100, 110}))

	err := dst.MergeSet(src)
	var be *BatchMergeError
	assert.True(t, errors.As(err, &be))
	expect.EQ(t, be.Source, "src.svl")
	expect.EQ(t, be.Locus, 1)
	expect.EQ(t, ErrorCode(err), GraphInconsistency)
}

func TestRegionIntersect(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(1, Interval{0, 150, 250}))
	mustMerge(t, s, newUnit(1, Interval{0, 500, 600}))
	mustMerge(t, s, newUnit(1, Interval{1, 500, 600}))

	fp := Fingerprint(s)
	expect.EQ(t, s.RegionIntersect(0, 180, 550), []NodeAddress{{0, 0}, {1, 0}})
	expect.EQ(t, len(s.RegionIntersect(0, 300, 400)), 0)
	expect.EQ(t, s.RegionIntersect(1, 0, 501), []NodeAddress{{2, 0}})
	expect.EQ(t, len(s.RegionIntersect(3, 0, 1000)), 0)
	expect.EQ(t, len(s.RegionIntersect(0, 200, 100)), 0)
	expect.EQ(t, s.Len(), 3)
	expect.EQ(t, len(s.free), 0)
	expect.EQ(t, Fingerprint(s), fp)
	assert.NoError(t, s.CheckState(true))

	// With a free slot, the query reuses it and gives it back.
	mustMerge(t, s, newUnit(1, Interval{0, 550, 650}))
	expect.EQ(t, s.free, []int{3})
	expect.EQ(t, s.RegionIntersect(0, 0, 1000), []NodeAddress{{0, 0}, {1, 0}})
	expect.EQ(t, s.free, []int{3})
	expect.EQ(t, s.Len(), 4)
	assert.NoError(t, s.CheckState(true))
}

func TestCheckStateIndexInconsistency(t *testing.T) {
	build := func() *Set {
		s := newTestSet()
		mustMerge(t, s, newUnit(1, Interval{0, 100, 200}, Interval{0, 500, 600}))
		assert.NoError(t, s.CheckState(true))
		return s
	}

	s := build()
	s.index.remove(NodeAddress{0, 1}, Interval{0, 500, 600})
	expect.EQ(t, ErrorCode(s.CheckState(false)), IndexInconsistency)

	s = build()
	s.loci[0].nodes[1].Interval.End = 700
	err := s.CheckState(false)
	var e *Error
	assert.True(t, errors.As(err, &e))
	expect.EQ(t, e.Code, IndexInconsistency)
	expect.EQ(t, e.Nodes, []NodeRef{
		{NodeAddress{0, 1}, Interval{0, 500, 700}},
		{NodeAddress{0, 1}, Interval{0, 500, 600}},
	})

	s = build()
	s.index.insert(NodeAddress{7, 7}, Interval{0, 0, 10})
	expect.EQ(t, ErrorCode(s.CheckState(false)), IndexInconsistency)

	s = build()
	s.addFree(0)
	expect.EQ(t, ErrorCode(s.CheckState(false)), IndexInconsistency)
}

func TestCheckStateOverlapViolation(t *testing.T) {
	s := New(nil, Opts{})
	mustMerge(t, s, newUnit(1, Interval{0, 100, 100}))
	assert.NoError(t, s.CheckState(false))
	expect.EQ(t, ErrorCode(s.CheckState(true)), OverlapViolation)

	s = New(nil, Opts{})
	s.insertLocus(newUnit(1, Interval{0, 100, 200}))
	s.insertLocus(newUnit(1, Interval{0, 150, 250}))
	assert.NoError(t, s.CheckState(false))
	err := s.CheckState(true)
	var e *Error
	assert.True(t, errors.As(err, &e))
	expect.EQ(t, e.Code, OverlapViolation)
	expect.EQ(t, e.Nodes[0].Addr, NodeAddress{0, 0})
	expect.EQ(t, e.Nodes[1].Addr, NodeAddress{1, 0})
}

func TestReconstructIndex(t *testing.T) {
	s := newTestSet()
	mustMerge(t, s, newUnit(1, Interval{0, 100, 200}))
	mustMerge(t, s, newUnit(1, Interval{0, 1000, 1100}))
	mustMerge(t, s, newUnit(1, Interval{0, 150, 160}, Interval{0, 1050, 1060}))
	fp := Fingerprint(s)

	s.index.reset()
	s.free = nil
	expect.EQ(t, ErrorCode(s.CheckState(false)), IndexInconsistency)
	s.ReconstructIndex()
	assert.NoError(t, s.CheckState(true))
	expect.EQ(t, s.free, []int{1, 2})
	expect.EQ(t, s.NodeCount(), 2)
	expect.EQ(t, Fingerprint(s), fp)
}

func TestErrorMessage(t *testing.T) {
	err := newError(OverlapViolation, "overlapping nodes in graph", 3,
		NodeRef{NodeAddress{0, 1}, Interval{0, 10, 20}}, NodeRef{NodeAddress{2, 0}, Interval{0, 15, 30}})
	expect.EQ(t, err.Error(),
		"svlocus: overlap violation: overlapping nodes in graph: 0:1 0:10-20, 2:0 0:15-30 (head locus 3)")
	be := &BatchMergeError{Source: "x", Locus: 4, Err: err}
	expect.EQ(t, be.Error(), `svlocus: merge of locus 4 from "x" failed: `+err.Error())
}
