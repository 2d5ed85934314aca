// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/svgraph/callregion"
	"github.com/grailbio/svgraph/evidence"
	"github.com/grailbio/svgraph/svlocus"
	"github.com/klauspost/compress/gzip"
)

type buildOpts struct {
	// headerPath is a SAM header text file. Exactly one of headerPath and refs
	// must be set.
	headerPath string
	// refs is a comma-separated list of name:length reference sequences.
	refs string
	// callRegions is an optional BED path.
	callRegions  string
	minCount     uint32
	verify       bool
	transformers []string
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parseRefs creates a header from a "name:length,..." list.
func parseRefs(refs string) (*sam.Header, error) {
	var list []*sam.Reference
	for _, ref := range splitList(refs) {
		i := strings.LastIndexByte(ref, ':')
		if i <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("reference %q: expect name:length", ref))
		}
		n, err := strconv.Atoi(ref[i+1:])
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("reference %q", ref))
		}
		r, err := sam.NewReference(ref[:i], "", "", n, nil, nil)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("reference %q", ref))
		}
		list = append(list, r)
	}
	return sam.NewHeader(nil, list)
}

func readHeader(ctx context.Context, path string) (h *sam.Header, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	text, err := ioutil.ReadAll(in.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, path)
	}
	h, err = sam.NewHeader(text, nil)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, path)
	}
	return h, nil
}

func build(ctx context.Context, opts buildOpts, inputs []string, out string) error {
	var (
		header *sam.Header
		err    error
	)
	switch {
	case opts.headerPath != "" && opts.refs != "":
		return errors.E(errors.Invalid, "-header and -refs are mutually exclusive")
	case opts.headerPath != "":
		header, err = readHeader(ctx, opts.headerPath)
	case opts.refs != "":
		header, err = parseRefs(opts.refs)
	default:
		return errors.E(errors.Invalid, "one of -header or -refs is required")
	}
	if err != nil {
		return err
	}
	evOpts := evidence.Opts{MinCount: opts.minCount}
	if opts.callRegions != "" {
		if evOpts.CallRegions, err = callregion.NewFromPath(ctx, opts.callRegions, callregion.Opts{}); err != nil {
			return err
		}
	}
	setOpts := svlocus.Opts{Source: out, VerifyMerge: opts.verify, Transformers: opts.transformers}
	s, err := svlocus.BuildParallel(header, setOpts, len(inputs), func(shard int, s *svlocus.Set) error {
		return evidence.Build(ctx, inputs[shard], s, evOpts)
	})
	if err != nil {
		return err
	}
	return s.Save(ctx, out)
}

// sameRefs returns true iff a and b list the same reference names and
// lengths, in the same order.
func sameRefs(a, b *sam.Header) bool {
	if a == nil || b == nil {
		return a == b
	}
	ra, rb := a.Refs(), b.Refs()
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if ra[i].Name() != rb[i].Name() || ra[i].Len() != rb[i].Len() {
			return false
		}
	}
	return true
}

func merge(ctx context.Context, opts svlocus.Opts, out string, inputs []string) error {
	sets := make([]*svlocus.Set, len(inputs))
	err := traverse.Each(len(inputs), func(i int) error {
		s := svlocus.New(nil, opts)
		if err := s.Load(ctx, inputs[i]); err != nil {
			return err
		}
		sets[i] = s
		return nil
	})
	if err != nil {
		return err
	}
	for i, s := range sets[1:] {
		if !sameRefs(sets[0].Header(), s.Header()) {
			return errors.E(errors.Invalid, fmt.Sprintf("%s and %s have different references", inputs[0], inputs[i+1]))
		}
	}
	opts.Source = out
	dst := svlocus.New(sets[0].Header(), opts)
	if err := svlocus.MergeAll(dst, sets...); err != nil {
		return err
	}
	log.Printf("merged %d graphs: %d loci, %d nodes", len(sets), dst.NonEmptyLen(), dst.NodeCount())
	return dst.Save(ctx, out)
}

func load(ctx context.Context, path string) (*svlocus.Set, error) {
	s := svlocus.New(nil, svlocus.Opts{})
	if err := s.Load(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}

// fileChecksum returns the seahash of the bytes of the file at path.
func fileChecksum(ctx context.Context, path string) (sum uint64, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	h := seahash.New()
	if _, err = io.Copy(h, in.Reader(ctx)); err != nil {
		return 0, errors.E(err, path)
	}
	return h.Sum64(), nil
}

// check loads the graph at path, which verifies it, and prints its counts and
// fingerprint. If withChecksum is set, the checksum of the file bytes is
// printed too. Two files with equal fingerprints hold the same graph even if
// their checksums differ.
func check(ctx context.Context, w io.Writer, path string, withChecksum bool) error {
	s, err := load(ctx, path)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(w, "%s: OK loci=%d nodes=%d fingerprint=%016x",
		path, s.NonEmptyLen(), s.NodeCount(), svlocus.Fingerprint(s)); err != nil {
		return err
	}
	if withChecksum {
		sum, err := fileChecksum(ctx, path)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintf(w, " checksum=%016x", sum); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func dump(ctx context.Context, w io.Writer, path string, index bool) error {
	s, err := load(ctx, path)
	if err != nil {
		return err
	}
	if index {
		return s.DumpIndex(w)
	}
	return s.Dump(w)
}

func region(ctx context.Context, w io.Writer, path, regionStr string) error {
	entry, err := callregion.ParseRegion(regionStr)
	if err != nil {
		return err
	}
	s, err := load(ctx, path)
	if err != nil {
		return err
	}
	if s.Header() == nil {
		return errors.E(errors.NotSupported, path, "has no reference header")
	}
	for _, ref := range s.Header().Refs() {
		if ref.Name() == entry.ChrName {
			return s.DumpRegion(w, int32(ref.ID()), int32(entry.Start0), int32(entry.End))
		}
	}
	return errors.E(errors.NotExist, fmt.Sprintf("reference %q not in %s", entry.ChrName, path))
}

func stats(ctx context.Context, w io.Writer, path, out string) (err error) {
	s, err := load(ctx, path)
	if err != nil {
		return err
	}
	if out == "" {
		return s.DumpStats(w)
	}
	f, err := file.Create(ctx, out)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	if fileio.DetermineType(out) != fileio.Gzip {
		return s.DumpStats(f.Writer(ctx))
	}
	gz := gzip.NewWriter(f.Writer(ctx))
	if err = s.DumpStats(gz); err != nil {
		return err
	}
	return gz.Close()
}
