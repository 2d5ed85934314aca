// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

// This file implements persistence. A saved Set is a recordio file:
//
//   header  svlocus-version  fileVersion
//           svlocus-source   source label of the saved set
//           svlocus-sam      SAM header text (absent if the set has none)
//   items   one item per non-empty locus, in locus id order
//
// No locus count is stored; the loci run to the end of the file. Each item is
// a sequence of varints:
//
//   nNodes uvarint
//   nNodes times:
//     refID varint, begin varint, end varint, count uvarint
//     nEdges uvarint
//     nEdges times: target slot uvarint, count uvarint
//
// Loading never trusts anything but the loci: ids are reassigned densely, and
// the node index is rebuilt and verified.

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/hts/sam"
)

const (
	versionHeader = "svlocus-version"
	fileVersion   = "SVLOCUS_V1"
	sourceHeader  = "svlocus-source"
	samHeader     = "svlocus-sam"
)

func init() {
	recordiozstd.Init()
}

// Write writes the set to w in the format described above.
func (s *Set) Write(w io.Writer) error {
	rio := recordio.NewWriter(w, recordio.WriterOpts{
		Marshal:      marshalLocus,
		Transformers: s.opts.Transformers,
	})
	rio.AddHeader(versionHeader, fileVersion)
	rio.AddHeader(sourceHeader, s.opts.Source)
	if s.header != nil {
		text, err := s.header.MarshalText()
		if err != nil {
			return errors.E(err, "svlocus: encode SAM header")
		}
		rio.AddHeader(samHeader, string(text))
	}
	for _, l := range s.loci {
		if l.Empty() {
			continue
		}
		rio.Append(l)
	}
	return rio.Finish()
}

// Read replaces the contents of the set with the loci stored in rs, then
// rebuilds the node index and runs CheckState(true). source becomes the set's
// label. The header is replaced by the one stored in rs, or nil if there is
// none.
func (s *Set) Read(rs io.ReadSeeker, source string) error {
	s.Clear()
	s.header = nil
	s.opts.Source = source
	rio := recordio.NewScanner(rs, recordio.ScannerOpts{Unmarshal: unmarshalLocus})
	versionFound := false
	for _, kv := range rio.Header() {
		switch kv.Key {
		case versionHeader:
			if v, _ := kv.Value.(string); v != fileVersion {
				return errors.E(errors.Invalid, fmt.Sprintf("svlocus %s: file version %v, expect %v", source, kv.Value, fileVersion))
			}
			versionFound = true
		case samHeader:
			text, _ := kv.Value.(string)
			h, err := sam.NewHeader([]byte(text), nil)
			if err != nil {
				return errors.E(errors.Invalid, err, fmt.Sprintf("svlocus %s: decode SAM header", source))
			}
			s.header = h
		}
	}
	if !versionFound {
		if err := rio.Err(); err != nil {
			return errors.E(err, fmt.Sprintf("svlocus %s", source))
		}
		return errors.E(errors.Invalid, fmt.Sprintf("svlocus %s: %s not found in header", source, versionHeader))
	}
	for rio.Scan() {
		l := rio.Get().(*Locus)
		if l.Empty() {
			continue
		}
		l.id = len(s.loci)
		s.loci = append(s.loci, l)
	}
	if err := rio.Err(); err != nil {
		return errors.E(err, fmt.Sprintf("svlocus %s: read loci", source))
	}
	s.ReconstructIndex()
	if err := s.CheckState(true); err != nil {
		return errors.E(errors.Integrity, err, fmt.Sprintf("svlocus %s", source))
	}
	return nil
}

// Save writes the set to path.
func (s *Set) Save(ctx context.Context, path string) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "svlocus: create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = s.Write(out.Writer(ctx)); err != nil {
		return errors.E(err, "svlocus: write", path)
	}
	log.Printf("svlocus: saved %d loci, %d nodes to %s", s.NonEmptyLen(), s.NodeCount(), path)
	return nil
}

// Load replaces the contents of the set with the loci saved at path. The
// set's source label becomes path.
func (s *Set) Load(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "svlocus: open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if err = s.Read(in.Reader(ctx), path); err != nil {
		return err
	}
	log.Printf("svlocus: loaded %d loci, %d nodes from %s", len(s.loci), s.NodeCount(), path)
	return nil
}

func marshalLocus(scratch []byte, v interface{}) ([]byte, error) {
	l := v.(*Locus)
	// The scratch buffer is not reused, since recordio may still hold the
	// previous item.
	buf := make([]byte, 0, 16+len(l.nodes)*24)
	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(x uint64) { buf = append(buf, tmp[:binary.PutUvarint(tmp[:], x)]...) }
	putVarint := func(x int64) { buf = append(buf, tmp[:binary.PutVarint(tmp[:], x)]...) }

	putUvarint(uint64(len(l.nodes)))
	for i := range l.nodes {
		n := &l.nodes[i]
		putVarint(int64(n.Interval.RefID))
		putVarint(int64(n.Interval.Begin))
		putVarint(int64(n.Interval.End))
		putUvarint(uint64(n.Count))
		edges := n.Edges()
		putUvarint(uint64(len(edges)))
		for _, e := range edges {
			putUvarint(uint64(e.To))
			putUvarint(uint64(e.Count))
		}
	}
	return buf, nil
}

// locusDecoder reads the varint stream written by marshalLocus.
type locusDecoder struct {
	buf []byte
	err error
}

func (d *locusDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	x, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = errors.E(errors.Invalid, "svlocus: truncated or corrupt locus record")
		return 0
	}
	d.buf = d.buf[n:]
	return x
}

func (d *locusDecoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	x, n := binary.Varint(d.buf)
	if n <= 0 {
		d.err = errors.E(errors.Invalid, "svlocus: truncated or corrupt locus record")
		return 0
	}
	d.buf = d.buf[n:]
	return x
}

func unmarshalLocus(in []byte) (interface{}, error) {
	d := locusDecoder{buf: in}
	n := d.uvarint()
	if d.err == nil && n > uint64(len(in)) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("svlocus: locus record claims %d nodes in %d bytes", n, len(in)))
	}
	nNodes := int(n)
	l := &Locus{nodes: make([]Node, 0, nNodes)}
	for i := 0; i < nNodes && d.err == nil; i++ {
		n := Node{
			Interval: Interval{
				RefID: int32(d.varint()),
				Begin: int32(d.varint()),
				End:   int32(d.varint()),
			},
			Count: uint32(d.uvarint()),
		}
		nEdges := int(d.uvarint())
		for j := 0; j < nEdges && d.err == nil; j++ {
			to := int(d.uvarint())
			n.addEdge(to, uint32(d.uvarint()))
		}
		l.nodes = append(l.nodes, n)
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("svlocus: %d trailing bytes in locus record", len(d.buf)))
	}
	return l, nil
}
