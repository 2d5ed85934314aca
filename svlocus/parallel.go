// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
)

// BuildParallel runs build(shard, set) for shard in [0, nShard) concurrently,
// each shard filling a Set of its own, then merges the shard sets in shard
// order into a single Set. The shard sets are labeled "<opts.Source>/shard<N>"
// so that a failing merge names its shard.
func BuildParallel(header *sam.Header, opts Opts, nShard int, build func(shard int, s *Set) error) (*Set, error) {
	shards := make([]*Set, nShard)
	err := traverse.Each(nShard, func(shard int) error {
		shardOpts := opts
		shardOpts.Source = fmt.Sprintf("%s/shard%d", opts.Source, shard)
		s := New(header, shardOpts)
		if err := build(shard, s); err != nil {
			return err
		}
		shards[shard] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	merged := New(header, opts)
	return merged, MergeAll(merged, shards...)
}

// MergeAll merges each of srcs into dst in order. It stops at the first
// failure.
func MergeAll(dst *Set, srcs ...*Set) error {
	for _, src := range srcs {
		if err := dst.MergeSet(src); err != nil {
			return err
		}
		log.Debug.Printf("svlocus: merged %v into %v", src, dst)
	}
	return nil
}
