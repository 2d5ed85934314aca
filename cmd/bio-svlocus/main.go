// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// bio-svlocus builds, merges and inspects structural-variant locus graphs.
//
//   bio-svlocus build -refs=chr1:248956422,chr2:242193529 a.tsv b.tsv out.svl
//   bio-svlocus merge out.svl in1.svl in2.svl
//   bio-svlocus check [-checksum] in.svl
//   bio-svlocus dump [-index] in.svl
//   bio-svlocus region in.svl chr1:1000-2000
//   bio-svlocus stats [-out=stats.tsv.gz] in.svl
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/svgraph/evidence"
	"github.com/grailbio/svgraph/svlocus"
	"v.io/x/lib/cmdline"
)

func newCmdBuild() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "build",
		Short: "Build a locus graph from evidence TSV files",
		Long: `
Each evidence file is read by its own worker into a graph of its own, and the
graphs are merged at the end. Evidence rows have the columns

  CHROM BEGIN END CHROM2 BEGIN2 END2 COUNT

with 0-based, half-open coordinates; CHROM2 is "." for a single breakend.`,
		ArgsName: "evidence.tsv... out.svl",
	}
	opts := buildOpts{}
	cmd.Flags.StringVar(&opts.headerPath, "header", "", "Path of a SAM header (text) listing the reference sequences. This xor -refs is required")
	cmd.Flags.StringVar(&opts.refs, "refs", "", "Comma-separated list of reference sequences, each name:length. This xor -header is required")
	cmd.Flags.StringVar(&opts.callRegions, "call-regions", "", "BED file (optionally gzipped). If set, evidence with no breakend in these regions is dropped")
	minCount := cmd.Flags.Uint("min-count", uint(evidence.DefaultOpts.MinCount), "Evidence rows with a smaller COUNT are dropped")
	cmd.Flags.BoolVar(&opts.verify, "verify", false, "Check the graph invariants after every merge. Slow")
	transformers := cmd.Flags.String("transformers", strings.Join(svlocus.DefaultOpts.Transformers, ","), "Comma-separated list of recordio transformers applied to the output")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("build takes evidence paths and an output path, but got %v", argv)
		}
		opts.minCount = uint32(*minCount)
		opts.transformers = splitList(*transformers)
		return build(vcontext.Background(), opts, argv[:len(argv)-1], argv[len(argv)-1])
	})
	return cmd
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Merge locus graphs",
		Long:     "\nThe inputs are loaded in parallel and merged in argument order.",
		ArgsName: "out.svl in.svl...",
	}
	verify := cmd.Flags.Bool("verify", false, "Check the graph invariants after every merge. Slow")
	transformers := cmd.Flags.String("transformers", strings.Join(svlocus.DefaultOpts.Transformers, ","), "Comma-separated list of recordio transformers applied to the output")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("merge takes an output path and input paths, but got %v", argv)
		}
		opts := svlocus.Opts{VerifyMerge: *verify, Transformers: splitList(*transformers)}
		return merge(vcontext.Background(), opts, argv[0], argv[1:])
	})
	return cmd
}

func newCmdCheck() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "check",
		Short:    "Load a locus graph, verify its invariants, and print its counts and fingerprint",
		ArgsName: "path",
	}
	checksum := cmd.Flags.Bool("checksum", false, "Also print a checksum of the file contents")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("check takes one pathname argument, but got %v", argv)
		}
		return check(vcontext.Background(), env.Stdout, argv[0], *checksum)
	})
	return cmd
}

func newCmdDump() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "dump",
		Short:    "Print every locus of a locus graph",
		ArgsName: "path",
	}
	index := cmd.Flags.Bool("index", false, "Print the node index instead of the loci")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("dump takes one pathname argument, but got %v", argv)
		}
		return dump(vcontext.Background(), env.Stdout, argv[0], *index)
	})
	return cmd
}

func newCmdRegion() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "region",
		Short: "Print the nodes of a locus graph that intersect a region",
		Long: `
The region is 'chr', 'chr:pos' or 'chr:begin-end', where [begin,end] is a
1-based, closed interval, as in samtools.`,
		ArgsName: "path region",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("region takes a path and a region, but got %v", argv)
		}
		return region(vcontext.Background(), env.Stdout, argv[0], argv[1])
	})
	return cmd
}

func newCmdStats() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "stats",
		Short:    "Print per-locus statistics of a locus graph as TSV",
		ArgsName: "path",
	}
	out := cmd.Flags.String("out", "", "Output path. A .gz suffix gzips the output. Defaults to stdout")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("stats takes one pathname argument, but got %v", argv)
		}
		return stats(vcontext.Background(), env.Stdout, argv[0], *out)
	})
	return cmd
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-svlocus",
			Short:    "Tools for structural-variant locus graphs",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdBuild(),
				newCmdMerge(),
				newCmdCheck(),
				newCmdDump(),
				newCmdRegion(),
				newCmdStats(),
			},
		})
}
