// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"encoding/binary"
	"sort"

	farm "github.com/dgryski/go-farm"
)

// Fingerprint returns a digest of the graph stored in s that does not depend
// on locus ids, node slots, or the order of either: two sets have the same
// fingerprint iff (with overwhelming probability) they hold the same loci,
// each with the same node intervals, counts, and edges. Empty loci are
// ignored. Save followed by Load preserves the fingerprint.
func Fingerprint(s *Set) uint64 {
	var hashes []uint64
	for _, l := range s.loci {
		if !l.Empty() {
			hashes = append(hashes, locusFingerprint(l))
		}
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	buf := make([]byte, 8*len(hashes))
	for i, h := range hashes {
		binary.LittleEndian.PutUint64(buf[8*i:], h)
	}
	return farm.Hash64(buf)
}

// locusFingerprint hashes the nodes of l in interval order, naming edge
// targets by their intervals rather than their slots.
//
// REQUIRES: no two nodes of l have the same interval.
func locusFingerprint(l *Locus) uint64 {
	slots := sortedSlots(l)
	var buf []byte
	putInterval := func(iv Interval) {
		buf = appendUint32(buf, uint32(iv.RefID))
		buf = appendUint32(buf, uint32(iv.Begin))
		buf = appendUint32(buf, uint32(iv.End))
	}
	for _, slot := range slots {
		n := &l.nodes[slot]
		putInterval(n.Interval)
		buf = appendUint32(buf, n.Count)
		edges := n.Edges()
		sort.Slice(edges, func(i, j int) bool {
			return l.nodes[edges[i].To].Interval.Compare(l.nodes[edges[j].To].Interval) < 0
		})
		buf = appendUint32(buf, uint32(len(edges)))
		for _, e := range edges {
			putInterval(l.nodes[e.To].Interval)
			buf = appendUint32(buf, e.Count)
		}
	}
	return farm.Hash64(buf)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
