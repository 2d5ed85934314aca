// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"fmt"
	"io"

	"github.com/grailbio/base/tsv"
)

// Dump writes every locus, including empty ones, in a human-readable format.
func (s *Set) Dump(w io.Writer) error {
	if _, err := io.WriteString(w, "LOCUSSET_START\n"); err != nil {
		return err
	}
	for _, l := range s.loci {
		if _, err := io.WriteString(w, l.String()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "LOCUSSET_END\n")
	return err
}

// DumpIndex writes every address in the node index, in index order.
func (s *Set) DumpIndex(w io.Writer) (err error) {
	if _, err = io.WriteString(w, "SVLocusSet Index START\n"); err != nil {
		return
	}
	s.index.each(func(e indexEntry) bool {
		_, err = fmt.Fprintf(w, "SVNodeIndex: %v\n", e.addr)
		return err != nil
	})
	if err != nil {
		return
	}
	_, err = io.WriteString(w, "SVLocusSet Index END\n")
	return
}

// DumpRegion writes every node intersecting [begin, end) on refID.
func (s *Set) DumpRegion(w io.Writer, refID, begin, end int32) error {
	for _, addr := range s.RegionIntersect(refID, begin, end) {
		if _, err := fmt.Fprintf(w, "SVNode LocusIndex:NodeIndex : %v\n%v", addr, s.Node(addr)); err != nil {
			return err
		}
	}
	return nil
}

// LocusStats summarizes one locus.
type LocusStats struct {
	Locus           int
	NodeCount       uint32
	NodeObsCount    uint32
	MaxNodeObsCount uint32
	RegionSize      uint32
	MaxRegionSize   uint32
	EdgeCount       uint32
	MaxEdgeCount    uint32
	EdgeObsCount    uint32
	MaxEdgeObsCount uint32
}

// Stats computes the statistics of locus id.
func (s *Set) Stats(id int) LocusStats {
	l := s.loci[id]
	st := LocusStats{Locus: id, NodeCount: uint32(l.Len())}
	for i := range l.nodes {
		n := &l.nodes[i]
		st.NodeObsCount += n.Count
		st.MaxNodeObsCount = maxUint32(st.MaxNodeObsCount, n.Count)

		size := uint32(n.Interval.Size())
		st.RegionSize += size
		st.MaxRegionSize = maxUint32(st.MaxRegionSize, size)

		nEdges := uint32(len(n.edges))
		st.EdgeCount += nEdges
		st.MaxEdgeCount = maxUint32(st.MaxEdgeCount, nEdges)
		for _, c := range n.edges {
			st.EdgeObsCount += c
			st.MaxEdgeObsCount = maxUint32(st.MaxEdgeObsCount, c)
		}
	}
	return st
}

// DumpStats writes one TSV row of LocusStats per locus slot, empty loci
// included, after a header line.
func (s *Set) DumpStats(w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("locusIndex\tnodeCount\tnodeObsCount\tmaxNodeObsCount\tregionSize\tmaxRegionSize\tedgeCount\tmaxEdgeCount\tedgeObsCount\tmaxEdgeObsCount")
	if err := out.EndLine(); err != nil {
		return err
	}
	for id := range s.loci {
		st := s.Stats(id)
		out.WriteUint32(uint32(st.Locus))
		out.WriteUint32(st.NodeCount)
		out.WriteUint32(st.NodeObsCount)
		out.WriteUint32(st.MaxNodeObsCount)
		out.WriteUint32(st.RegionSize)
		out.WriteUint32(st.MaxRegionSize)
		out.WriteUint32(st.EdgeCount)
		out.WriteUint32(st.MaxEdgeCount)
		out.WriteUint32(st.EdgeObsCount)
		out.WriteUint32(st.MaxEdgeObsCount)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
