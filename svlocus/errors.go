// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a broken graph invariant.
type Code int

const (
	// GraphInconsistency means the graph structure contradicts the merge
	// algorithm's expectations: a node of a connected input did not intersect
	// the region already unified, no node contained the input node after
	// consolidation, or a node slot did not exist.
	GraphInconsistency Code = iota + 1
	// IndexInconsistency means the node index and the loci disagree.
	IndexInconsistency
	// OverlapViolation means two indexed nodes overlap on the same reference,
	// or a node has an empty interval.
	OverlapViolation
)

func (c Code) String() string {
	switch c {
	case GraphInconsistency:
		return "graph inconsistency"
	case IndexInconsistency:
		return "index inconsistency"
	case OverlapViolation:
		return "overlap violation"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// NodeRef pairs an address with the interval found there when an error was
// raised.
type NodeRef struct {
	Addr     NodeAddress
	Interval Interval
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%v %v", r.Addr, r.Interval)
}

// Error reports a broken invariant, with enough context to diagnose it
// without re-running. None of these are retryable: a Set that returned an
// Error from Merge should be discarded or reloaded.
type Error struct {
	Code Code
	// Msg describes the failed check.
	Msg string
	// Nodes lists the nodes involved, the offending node first.
	Nodes []NodeRef
	// Head is the locus chosen as the unification target when the error was
	// raised, or -1.
	Head int
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "svlocus: %v: %s", e.Code, e.Msg)
	for i, n := range e.Nodes {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(n.String())
	}
	if e.Head >= 0 {
		fmt.Fprintf(&b, " (head locus %d)", e.Head)
	}
	return b.String()
}

func newError(code Code, msg string, head int, nodes ...NodeRef) *Error {
	return &Error{Code: code, Msg: msg, Nodes: nodes, Head: head}
}

// BatchMergeError is returned by Set.MergeSet when merging one of the source
// set's loci fails.
type BatchMergeError struct {
	// Source is the label of the set being merged in.
	Source string
	// Locus is the id of the failing locus within the source set.
	Locus int
	Err   error
}

func (e *BatchMergeError) Error() string {
	return fmt.Sprintf("svlocus: merge of locus %d from %q failed: %v", e.Locus, e.Source, e.Err)
}

// Unwrap returns the per-locus error.
func (e *BatchMergeError) Unwrap() error { return e.Err }

// ErrorCode returns the Code of the first *Error in err's chain, or 0 if there
// is none.
func ErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
