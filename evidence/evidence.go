// Package evidence turns breakend observations into the small, connected
// svlocus.Locus graphs that svlocus.Set.Merge consumes.
//
// The input is a TSV file with one observation per row:
//
//   CHROM BEGIN END CHROM2 BEGIN2 END2 COUNT
//
// Coordinates are 0-based, half-open. CHROM2 is "." for an observation with a
// single breakend, in which case BEGIN2 and END2 are ignored. Lines starting
// with '#' are comments.
package evidence

import (
	"context"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/svgraph/callregion"
	"github.com/grailbio/svgraph/svlocus"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Opts controls which observations become loci.
type Opts struct {
	// MinCount drops observations with a smaller COUNT.
	MinCount uint32
	// CallRegions, if non-nil, drops observations none of whose breakends
	// intersect it.
	CallRegions *callregion.Set
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{MinCount: 1}

// row is one line of the input TSV.
type row struct {
	Chrom  string
	Begin  int64
	End    int64
	Chrom2 string
	Begin2 string
	End2   string
	Count  int64
}

// Breakend is one side of an observation.
type Breakend struct {
	Chrom      string
	Begin, End int32
}

// Record is one parsed observation. Remote.Chrom is empty if the observation
// has a single breakend.
type Record struct {
	Local, Remote Breakend
	Count         uint32
}

// Stats counts the rows seen by a Reader.
type Stats struct {
	Rows          int
	Loci          int
	LowCount      int
	OutsideRegion int
}

// Reader reads observations and converts them to loci.
type Reader struct {
	opts   Opts
	refIDs map[string]int32
	in     *tsv.Reader
	line   int
	stats  Stats
}

// NewReader creates a reader of evidence TSV rows. header resolves
// chromosome names to reference ids.
func NewReader(r io.Reader, header *sam.Header, opts Opts) *Reader {
	in := tsv.NewReader(r)
	in.Comment = '#'
	refIDs := map[string]int32{}
	if header != nil {
		for _, ref := range header.Refs() {
			refIDs[ref.Name()] = int32(ref.ID())
		}
	}
	return &Reader{opts: opts, refIDs: refIDs, in: in}
}

// Stats returns the counts accumulated so far.
func (r *Reader) Stats() Stats { return r.stats }

// ReadRecord reads the next observation, filtered or not. It returns io.EOF
// at the end of input.
func (r *Reader) ReadRecord() (Record, error) {
	var v row
	if err := r.in.Read(&v); err != nil {
		if err == io.EOF {
			return Record{}, err
		}
		return Record{}, errors.Wrapf(err, "evidence: row %d", r.line+1)
	}
	r.line++
	rec, err := parseRow(v)
	if err != nil {
		return Record{}, errors.Wrapf(err, "evidence: row %d", r.line)
	}
	return rec, nil
}

func parseRow(v row) (Record, error) {
	rec := Record{}
	var err error
	if rec.Local, err = newBreakend(v.Chrom, v.Begin, v.End); err != nil {
		return rec, err
	}
	if v.Chrom2 != "." && v.Chrom2 != "" {
		begin2, err := strconv.ParseInt(v.Begin2, 10, 32)
		if err != nil {
			return rec, errors.Wrap(err, "BEGIN2")
		}
		end2, err := strconv.ParseInt(v.End2, 10, 32)
		if err != nil {
			return rec, errors.Wrap(err, "END2")
		}
		if rec.Remote, err = newBreakend(v.Chrom2, begin2, end2); err != nil {
			return rec, err
		}
	}
	if v.Count < 0 || v.Count > int64(^uint32(0)) {
		return rec, errors.Errorf("COUNT %d out of range", v.Count)
	}
	rec.Count = uint32(v.Count)
	return rec, nil
}

func newBreakend(chrom string, begin, end int64) (Breakend, error) {
	if begin < 0 || end <= begin || end > int64(^uint32(0)>>1) {
		return Breakend{}, errors.Errorf("invalid breakend %s:%d-%d", chrom, begin, end)
	}
	return Breakend{Chrom: chrom, Begin: int32(begin), End: int32(end)}, nil
}

// keep reports whether rec passes the filters in opts, updating stats.
func (r *Reader) keep(rec Record) bool {
	if rec.Count < r.opts.MinCount {
		r.stats.LowCount++
		return false
	}
	if cr := r.opts.CallRegions; cr != nil {
		in := cr.Intersects(rec.Local.Chrom, callregion.PosType(rec.Local.Begin), callregion.PosType(rec.Local.End))
		if !in && rec.Remote.Chrom != "" {
			in = cr.Intersects(rec.Remote.Chrom, callregion.PosType(rec.Remote.Begin), callregion.PosType(rec.Remote.End))
		}
		if !in {
			r.stats.OutsideRegion++
			return false
		}
	}
	return true
}

// Next returns the locus for the next observation that passes the filters.
// It returns io.EOF at the end of input.
func (r *Reader) Next() (*svlocus.Locus, error) {
	for {
		rec, err := r.ReadRecord()
		if err != nil {
			return nil, err
		}
		r.stats.Rows++
		if !r.keep(rec) {
			continue
		}
		l, err := r.NewLocus(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "evidence: row %d", r.line)
		}
		r.stats.Loci++
		return l, nil
	}
}

func (r *Reader) interval(b Breakend) (svlocus.Interval, error) {
	refID, ok := r.refIDs[b.Chrom]
	if !ok {
		return svlocus.Interval{}, errors.Errorf("unknown chromosome %q", b.Chrom)
	}
	return svlocus.Interval{RefID: refID, Begin: b.Begin, End: b.End}, nil
}

// NewLocus converts rec to a locus. A single breakend becomes one node. Two
// breakends become two nodes joined by an edge carrying the count in both
// directions, unless they overlap, in which case they are folded into one
// node covering both, with a self edge carrying the count.
func (r *Reader) NewLocus(rec Record) (*svlocus.Locus, error) {
	local, err := r.interval(rec.Local)
	if err != nil {
		return nil, err
	}
	l := svlocus.NewLocus()
	if rec.Remote.Chrom == "" {
		l.AddNode(local, rec.Count)
		return l, nil
	}
	remote, err := r.interval(rec.Remote)
	if err != nil {
		return nil, err
	}
	if local.Intersects(remote) {
		if remote.Begin < local.Begin {
			local.Begin = remote.Begin
		}
		if remote.End > local.End {
			local.End = remote.End
		}
		n := l.AddNode(local, rec.Count)
		return l, l.LinkNodes(n, n, rec.Count, 0)
	}
	a := l.AddNode(local, rec.Count)
	b := l.AddNode(remote, rec.Count)
	return l, l.LinkNodes(a, b, rec.Count, rec.Count)
}

// Build merges every observation of the evidence file at path into s. Gzipped
// files are decompressed.
func Build(ctx context.Context, path string, s *svlocus.Set, opts Opts) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "evidence: open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return errors.Wrapf(err, "evidence: %s", path)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	r := NewReader(reader, s.Header(), opts)
	for {
		l, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, path)
		}
		if err := s.Merge(l); err != nil {
			return errors.Wrapf(err, "evidence: %s: merge row %d", path, r.line)
		}
	}
	st := r.Stats()
	log.Printf("evidence: %s: %d rows, %d loci merged, %d below min count, %d outside call regions",
		path, st.Rows, st.Loci, st.LowCount, st.OutsideRegion)
	return nil
}
