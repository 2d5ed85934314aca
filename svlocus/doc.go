// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package svlocus maintains a graph of structural-variant evidence clustered
// into connected regions ("loci").
//
// Each unit of evidence is a small Locus: one or a few genomic intervals
// (nodes) joined by co-occurrence edges. Set.Merge folds such a unit into a
// Set so that overlapping intervals end up represented by a single node,
// observation counts accumulate, and the live intervals of the Set stay
// pairwise non-overlapping per reference after every completed merge.
//
// Nodes are never referenced directly. A NodeAddress (locus id, node slot) is
// the only handle, because slots are renumbered when nodes are removed and
// locus slots are recycled once emptied. The Set keeps every live address in
// an ordered index keyed by genomic position; the index can always be rebuilt
// from the loci with Set.ReconstructIndex, and Set.CheckState verifies that
// the two agree.
//
// A Set is not safe for concurrent use. Build one Set per worker and merge
// them at the end (see BuildParallel).
package svlocus
