// Package segment implements the per-track bookkeeping of emitted
// media segments: an ordered list supporting amortized O(1) append and
// nearest-segment/sync-point/sample lookups.
package segment

import "sort"

// SampleInfo describes one sample's position on the corrected and
// original timelines, used for sync-point and last-sample lookups.
type SampleInfo struct {
	DTS         int64
	PTS         int64
	Duration    int64
	OriginalDTS int64
	IsSyncPoint bool
	FilePosition int64
}

// Info is one emitted media segment's bookkeeping record.
type Info struct {
	BeginDTS         int64
	EndDTS           int64
	BeginPTS         int64
	EndPTS           int64
	OriginalBeginDTS int64
	OriginalEndDTS   int64

	SyncPoints []SampleInfo

	FirstSample SampleInfo
	LastSample  SampleInfo
}

// AppendSyncPoint records a sample as a sync point of this segment.
func (v *Info) AppendSyncPoint(s SampleInfo) {
	s.IsSyncPoint = true
	v.SyncPoints = append(v.SyncPoints, s)
}

// List is an ordered, per-track list of Info records, sorted by
// OriginalBeginDTS. Mirrors the teacher's preference for small,
// purpose-built structures over a generic container.
type List struct {
	kind string
	list []*Info

	// lastAppendLocation caches the index of the most recent append,
	// so that the common monotonic-append case is O(1) instead of a
	// binary search every time.
	lastAppendLocation int
}

// NewList creates an empty segment-info list for a track kind
// ("audio" or "video"), used only for diagnostics/labeling.
func NewList(kind string) *List {
	return &List{kind: kind, lastAppendLocation: -1}
}

// Kind returns the track kind this list was created for.
func (v *List) Kind() string {
	return v.kind
}

// Len returns the number of segments currently retained.
func (v *List) Len() int {
	return len(v.list)
}

// IsEmpty reports whether the list has no segments.
func (v *List) IsEmpty() bool {
	return len(v.list) == 0
}

// Clear drops all retained segments and resets the append cache.
func (v *List) Clear() {
	v.list = nil
	v.lastAppendLocation = -1
}

// searchNearestSegmentBefore returns the index of the segment whose
// OriginalBeginDTS is the largest value ≤ originalBeginDTS, -1 if
// originalBeginDTS precedes every segment, or -2 if the list is empty.
func (v *List) searchNearestSegmentBefore(originalBeginDTS int64) int {
	n := len(v.list)
	if n == 0 {
		return -2
	}
	if originalBeginDTS < v.list[0].OriginalBeginDTS {
		return -1
	}

	lbound, ubound := 0, n-1
	mid := 0
	for lbound <= ubound {
		mid = (lbound + ubound) / 2
		if mid == n-1 {
			break
		}
		if v.list[mid].OriginalBeginDTS <= originalBeginDTS && originalBeginDTS < v.list[mid+1].OriginalBeginDTS {
			break
		}
		if v.list[mid].OriginalBeginDTS < originalBeginDTS {
			lbound = mid + 1
		} else {
			ubound = mid - 1
		}
	}
	return mid
}

// searchNearestSegmentAfter returns the index of the segment whose
// OriginalBeginDTS is the smallest value ≥ originalBeginDTS.
func (v *List) searchNearestSegmentAfter(originalBeginDTS int64) int {
	idx := v.searchNearestSegmentBefore(originalBeginDTS)
	switch {
	case idx == -2:
		return -2
	case idx == -1:
		return 0
	case v.list[idx].OriginalBeginDTS == originalBeginDTS:
		return idx
	default:
		return idx + 1
	}
}

// Append inserts info into the list, keeping it sorted by
// OriginalBeginDTS. The common case — appending strictly after the
// last-known insertion point — is handled in O(1); otherwise falls
// back to a binary search for the correct insertion index.
func (v *List) Append(info *Info) {
	n := len(v.list)

	if n == 0 {
		v.list = append(v.list, info)
		v.lastAppendLocation = 0
		return
	}

	if v.lastAppendLocation >= 0 && v.lastAppendLocation < n &&
		info.OriginalBeginDTS >= v.list[v.lastAppendLocation].OriginalBeginDTS {
		// Check whether we're still appending at (or past) the tail.
		insertIdx := v.lastAppendLocation + 1
		if insertIdx >= n || info.OriginalBeginDTS < v.list[insertIdx].OriginalBeginDTS {
			v.list = append(v.list, nil)
			copy(v.list[insertIdx+1:], v.list[insertIdx:n])
			v.list[insertIdx] = info
			v.lastAppendLocation = insertIdx
			return
		}
	}

	idx := sort.Search(n, func(i int) bool {
		return v.list[i].OriginalBeginDTS > info.OriginalBeginDTS
	})
	v.list = append(v.list, nil)
	copy(v.list[idx+1:], v.list[idx:n])
	v.list[idx] = info
	v.lastAppendLocation = idx
}

// GetLastSegmentBefore returns the segment whose OriginalBeginDTS ≤ k
// and whose successor (if any) begins after k, or nil if k precedes
// the first segment.
func (v *List) GetLastSegmentBefore(k int64) *Info {
	idx := v.searchNearestSegmentBefore(k)
	if idx < 0 {
		return nil
	}
	return v.list[idx]
}

// GetLastSampleBefore returns the last sample of the segment returned
// by GetLastSegmentBefore, or nil if there is no such segment.
func (v *List) GetLastSampleBefore(k int64) *SampleInfo {
	info := v.GetLastSegmentBefore(k)
	if info == nil {
		return nil
	}
	s := info.LastSample
	return &s
}

// GetLastSyncPointBefore walks backward from GetLastSegmentBefore's
// result until it finds a sync point whose OriginalDTS is at or
// before k, and returns the last such sync point.
func (v *List) GetLastSyncPointBefore(k int64) *SampleInfo {
	idx := v.searchNearestSegmentBefore(k)
	for ; idx >= 0; idx-- {
		pts := v.list[idx].SyncPoints
		for i := len(pts) - 1; i >= 0; i-- {
			if pts[i].OriginalDTS <= k {
				last := pts[i]
				return &last
			}
		}
	}
	return nil
}
