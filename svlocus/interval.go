// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package svlocus

import "fmt"

// Interval is the half-open range [Begin, End) on reference RefID.  RefID
// matches the reference ID in the Set's sam.Header, when one is set.
type Interval struct {
	RefID int32
	Begin int32
	End   int32
}

// Compare returns (negative int, 0, positive int) if (iv<iv1, iv=iv1,
// iv>iv1) respectively. Intervals are ordered by reference, then begin, then
// end.
func (iv Interval) Compare(iv1 Interval) int {
	switch {
	case iv.RefID != iv1.RefID:
		return cmpInt32(iv.RefID, iv1.RefID)
	case iv.Begin != iv1.Begin:
		return cmpInt32(iv.Begin, iv1.Begin)
	default:
		return cmpInt32(iv.End, iv1.End)
	}
}

// Intersects returns true iff iv and iv1 share at least one position.
func (iv Interval) Intersects(iv1 Interval) bool {
	return iv.RefID == iv1.RefID && iv.Begin < iv1.End && iv1.Begin < iv.End
}

// IsSupersetOf returns true iff every position of iv1 is also in iv.
func (iv Interval) IsSupersetOf(iv1 Interval) bool {
	return iv.RefID == iv1.RefID && iv.Begin <= iv1.Begin && iv1.End <= iv.End
}

// Size returns the number of positions in the interval, or 0 for an empty or
// inverted interval.
func (iv Interval) Size() int32 {
	if iv.End <= iv.Begin {
		return 0
	}
	return iv.End - iv.Begin
}

// union returns the smallest interval containing both iv and iv1.
//
// REQUIRES: iv.RefID == iv1.RefID
func (iv Interval) union(iv1 Interval) Interval {
	u := iv
	if iv1.Begin < u.Begin {
		u.Begin = iv1.Begin
	}
	if iv1.End > u.End {
		u.End = iv1.End
	}
	return u
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d:%d-%d", iv.RefID, iv.Begin, iv.End)
}

func cmpInt32(a, b int32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
