package evidence

import (
	"io"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/svgraph/callregion"
	"github.com/grailbio/svgraph/svlocus"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 100000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 100000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func readAll(t *testing.T, r *Reader) []*svlocus.Locus {
	var loci []*svlocus.Locus
	for {
		l, err := r.Next()
		if err == io.EOF {
			return loci
		}
		assert.NoError(t, err)
		loci = append(loci, l)
	}
}

func TestNewLocus(t *testing.T) {
	r := NewReader(strings.NewReader(""), header, DefaultOpts)

	l, err := r.NewLocus(Record{Local: Breakend{"chr2", 10, 20}, Count: 3})
	assert.NoError(t, err)
	expect.EQ(t, l.Len(), 1)
	expect.EQ(t, l.Node(0).Interval, svlocus.Interval{RefID: 1, Begin: 10, End: 20})
	expect.EQ(t, l.Node(0).Count, uint32(3))
	expect.EQ(t, l.Node(0).NumEdges(), 0)

	l, err = r.NewLocus(Record{Local: Breakend{"chr1", 10, 20}, Remote: Breakend{"chr2", 10, 20}, Count: 2})
	assert.NoError(t, err)
	expect.EQ(t, l.Len(), 2)
	expect.EQ(t, l.Node(0).Edges(), []svlocus.Edge{{To: 1, Count: 2}})
	expect.EQ(t, l.Node(1).Edges(), []svlocus.Edge{{To: 0, Count: 2}})
	assert.NoError(t, l.CheckState())

	l, err = r.NewLocus(Record{Local: Breakend{"chr1", 10, 20}, Remote: Breakend{"chr1", 5, 15}, Count: 2})
	assert.NoError(t, err)
	expect.EQ(t, l.Len(), 1)
	expect.EQ(t, l.Node(0).Interval, svlocus.Interval{RefID: 0, Begin: 5, End: 20})
	expect.EQ(t, l.Node(0).Edges(), []svlocus.Edge{{To: 0, Count: 2}})

	_, err = r.NewLocus(Record{Local: Breakend{"chrX", 10, 20}, Count: 1})
	expect.HasSubstr(t, err.Error(), "unknown chromosome")
}

func TestReaderFilters(t *testing.T) {
	const tsv = "chr1\t100\t200\t.\t.\t.\t1\n" +
		"chr1\t300\t400\t.\t.\t.\t5\n" +
		"chr2\t100\t200\tchr1\t1000\t1100\t5\n" +
		"chr2\t100\t200\tchr2\t1000\t1100\t5\n"
	r := NewReader(strings.NewReader(tsv), header, Opts{MinCount: 2})
	loci := readAll(t, r)
	expect.EQ(t, len(loci), 3)
	expect.EQ(t, r.Stats(), Stats{Rows: 4, Loci: 3, LowCount: 1})

	regions, err := callregion.NewFromEntries([]callregion.Entry{{ChrName: "chr1", Start0: 350, End: 1050}})
	assert.NoError(t, err)
	r = NewReader(strings.NewReader(tsv), header, Opts{MinCount: 2, CallRegions: regions})
	loci = readAll(t, r)
	expect.EQ(t, len(loci), 2)
	expect.EQ(t, loci[0].Node(0).Interval, svlocus.Interval{RefID: 0, Begin: 300, End: 400})
	expect.EQ(t, loci[1].Node(1).Interval, svlocus.Interval{RefID: 0, Begin: 1000, End: 1100})
	expect.EQ(t, r.Stats(), Stats{Rows: 4, Loci: 2, LowCount: 1, OutsideRegion: 1})
}

func TestReaderErrors(t *testing.T) {
	for _, tsv := range []string{
		"chr1\tx\t200\t.\t.\t.\t1\n",
		"chr1\t200\t100\t.\t.\t.\t1\n",
		"chr1\t100\t200\tchr2\tx\t10\t1\n",
		"chr1\t100\t200\t.\t.\t.\t-1\n",
		"chr9\t100\t200\t.\t.\t.\t1\n",
	} {
		r := NewReader(strings.NewReader(tsv), header, DefaultOpts)
		_, err := r.Next()
		expect.NotNil(t, err, tsv)
		expect.True(t, err != io.EOF, tsv)
	}
}

func TestBuild(t *testing.T) {
	ctx := vcontext.Background()
	for _, path := range []string{"testdata/evidence.tsv", "testdata/evidence.tsv.gz"} {
		s := svlocus.New(header, svlocus.Opts{VerifyMerge: true})
		assert.NoError(t, Build(ctx, path, s, DefaultOpts))
		expect.EQ(t, s.NonEmptyLen(), 2)
		expect.EQ(t, s.NodeCount(), 4)

		l := s.Locus(0)
		expect.EQ(t, l.Len(), 3)
		expect.EQ(t, l.Node(0).Interval, svlocus.Interval{RefID: 0, Begin: 100, End: 250})
		expect.EQ(t, l.Node(0).Count, uint32(4))
		expect.EQ(t, l.Node(0).Edges(), []svlocus.Edge{{To: 1, Count: 2}, {To: 2, Count: 1}})
		expect.EQ(t, l.Node(2).Interval, svlocus.Interval{RefID: 1, Begin: 9000, End: 9100})

		l = s.Locus(1)
		expect.EQ(t, l.Len(), 1)
		expect.EQ(t, l.Node(0).Interval, svlocus.Interval{RefID: 0, Begin: 1000, End: 1200})
		expect.EQ(t, l.Node(0).Edges(), []svlocus.Edge{{To: 0, Count: 3}})
		assert.NoError(t, s.CheckState(true))
	}

	s := svlocus.New(header, svlocus.Opts{})
	expect.NotNil(t, Build(ctx, "testdata/missing.tsv", s, DefaultOpts))
}
