// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import "github.com/grailbio/base/recordio/recordiozstd"

// Opts controls the behavior of a Set.
type Opts struct {
	// Source labels the set in diagnostics, e.g., the path it was loaded from
	// or the worker that built it. Load overwrites it with the path.
	Source string
	// VerifyMerge runs CheckState(true) after every Merge. It is slow, and
	// meant for tests and debugging.
	VerifyMerge bool
	// Transformers is the list of recordio transformers applied by Write.
	Transformers []string
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Transformers: []string{recordiozstd.Name},
}
