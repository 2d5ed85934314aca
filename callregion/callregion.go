package callregion

import (
	"bufio"
	"context"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// PosType is the coordinate type of a Set.
type PosType int32

const posTypeMax = math.MaxInt32

// Opts defines the behavior of the BED loaders.
type Opts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// Set is a union of intervals, stored per chromosome as a length-2N sequence
// of boundaries: the start of interval #k is in element [2k] and its end in
// element [2k+1], in increasing order. A position p is covered iff the number
// of boundaries <= p is odd.
//
// A Set is immutable once loaded, and safe for concurrent queries.
type Set struct {
	nameMap map[string][]PosType
	nBases  int
}

// Entry is a single interval with 0-based, half-open coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved. Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// builder accumulates sorted intervals into a Set, merging touching and
// overlapping ones.
type builder struct {
	set          *Set
	prevChr      string
	prevStart    PosType
	prevEnd      PosType
	chrIntervals []PosType
}

func newBuilder() *builder {
	return &builder{set: &Set{nameMap: map[string][]PosType{}}}
}

// flush saves the pending interval and the current chromosome.
func (b *builder) flush() {
	if b.prevChr == "" {
		return
	}
	if b.prevEnd != -1 {
		b.chrIntervals = append(b.chrIntervals, b.prevStart, b.prevEnd)
	}
	b.set.nameMap[b.prevChr] = b.chrIntervals
}

// add appends [start, end) on chr. chr may alias a scratch buffer; it is
// copied when it starts a new chromosome.
func (b *builder) add(chr string, start, end PosType) error {
	if start < 0 {
		return errors.Errorf("negative start coordinate %d", start)
	}
	if end < start || end >= posTypeMax {
		return errors.Errorf("invalid coordinate pair [%d, %d)", start, end)
	}
	if chr != b.prevChr {
		b.flush()
		b.prevChr = string(append([]byte(nil), chr...))
		if _, found := b.set.nameMap[b.prevChr]; found {
			return errors.Errorf("unsorted input (split chromosome %v)", b.prevChr)
		}
		b.chrIntervals = []PosType{}
		if end == start {
			// Mentioned chromosome with no covered bases.
			b.prevStart, b.prevEnd = -1, -1
			return nil
		}
		b.prevStart, b.prevEnd = start, end
		b.set.nBases += int(end - start)
		return nil
	}
	if end == start {
		return nil
	}
	if b.prevEnd == -1 {
		b.prevStart, b.prevEnd = start, end
		b.set.nBases += int(end - start)
		return nil
	}
	if start > b.prevEnd {
		b.chrIntervals = append(b.chrIntervals, b.prevStart, b.prevEnd)
		b.prevStart, b.prevEnd = start, end
		b.set.nBases += int(end - start)
		return nil
	}
	if start < b.prevStart {
		return errors.Errorf("unsorted input at %s:%d", chr, start)
	}
	if end > b.prevEnd {
		b.set.nBases += int(end - b.prevEnd)
		b.prevEnd = end
	}
	return nil
}

// New loads the intervals of a BED file sorted by chromosome and start
// position. Extra columns are ignored, as are blank lines and lines starting
// with '#', "track" or "browser".
func New(r io.Reader, opts Opts) (*Set, error) {
	var startSubtract PosType
	if opts.OneBasedInput {
		startSubtract = 1
	}
	var tokens [3][]byte
	b := newBuilder()
	scanner := bufio.NewScanner(r)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 || isBEDHeader(tokens[0]) {
			continue
		}
		if nToken != 3 {
			return nil, errors.Errorf("callregion: line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.ParseInt(gunsafe.BytesToString(tokens[1]), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "callregion: line %d", lineIdx)
		}
		end, err := strconv.ParseInt(gunsafe.BytesToString(tokens[2]), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "callregion: line %d", lineIdx)
		}
		if err := b.add(gunsafe.BytesToString(tokens[0]), PosType(start)-startSubtract, PosType(end)); err != nil {
			return nil, errors.Wrapf(err, "callregion: line %d", lineIdx)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "callregion")
	}
	b.flush()
	log.Printf("callregion: BED loaded, %d base(s) covered", b.set.nBases)
	return b.set, nil
}

func isBEDHeader(tok []byte) bool {
	s := gunsafe.BytesToString(tok)
	return strings.HasPrefix(s, "#") || s == "track" || s == "browser"
}

// NewFromPath is a wrapper for New that takes a path instead of an
// io.Reader. Gzipped files are decompressed.
func NewFromPath(ctx context.Context, path string, opts Opts) (set *Set, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "callregion: open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, errors.Wrapf(err, "callregion: %s", path)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	set, err = New(reader, opts)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return set, nil
}

// NewFromEntries initializes a Set from []Entry sorted by chromosome and
// start position.
func NewFromEntries(entries []Entry) (*Set, error) {
	b := newBuilder()
	for _, e := range entries {
		if err := b.add(e.ChrName, e.Start0, e.End); err != nil {
			return nil, errors.Wrap(err, "callregion")
		}
	}
	b.flush()
	return b.set, nil
}

// Bases returns the number of positions covered by the set.
func (s *Set) Bases() int { return s.nBases }

// Chromosomes returns the names of the chromosomes mentioned by the set,
// sorted.
func (s *Set) Chromosomes() []string {
	names := make([]string, 0, len(s.nameMap))
	for name := range s.nameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains checks whether position pos (0-based) of chromosome chrName is
// covered.
func (s *Set) Contains(chrName string, pos PosType) bool {
	return searchPosType(s.nameMap[chrName], pos+1)&1 == 1
}

// Intersects checks whether the 0-based half-open interval [begin, end) on
// chrName shares at least one position with the set. Empty intervals
// intersect nothing.
func (s *Set) Intersects(chrName string, begin, end PosType) bool {
	if end <= begin {
		return false
	}
	chrIntervals := s.nameMap[chrName]
	idx := searchPosType(chrIntervals, begin+1)
	if idx&1 == 1 {
		return true
	}
	return idx != len(chrIntervals) && end > chrIntervals[idx]
}

// ParseRegion parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries. The interval
// [0, posTypeMax - 1) is returned if there is no positional restriction.
// Commas in positions are ignored, so "chr1:1,000-2,000" is accepted.
func ParseRegion(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = errors.New("callregion.ParseRegion: empty region string")
		return
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		result.ChrName = region
		result.End = posTypeMax - 1
		return
	}
	if colonPos == 0 {
		err = errors.Errorf("callregion.ParseRegion: empty contig ID in %q", region)
		return
	}
	result.ChrName = region[:colonPos]
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int64
		if pos1, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			err = errors.Wrapf(err, "callregion.ParseRegion: %q", region)
			return
		}
		if pos1 <= 0 {
			err = errors.Errorf("callregion.ParseRegion: position %v in region string out of range", rangeStr)
			return
		}
		result.Start0 = PosType(pos1 - 1)
		result.End = PosType(pos1)
		return
	}
	var start1, end int64
	if start1, err = strconv.ParseInt(rangeStr[:dashPos], 10, 64); err != nil {
		err = errors.Wrapf(err, "callregion.ParseRegion: %q", region)
		return
	}
	if start1 <= 0 {
		err = errors.Errorf("callregion.ParseRegion: position %v in region string out of range", rangeStr[:dashPos])
		return
	}
	if end, err = strconv.ParseInt(rangeStr[dashPos+1:], 10, 64); err != nil {
		err = errors.Wrapf(err, "callregion.ParseRegion: %q", region)
		return
	}
	if end < start1 || end >= posTypeMax {
		err = errors.Errorf("callregion.ParseRegion: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end)
	return
}
