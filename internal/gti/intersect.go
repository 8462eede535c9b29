package gti

import (
	"fmt"
	"math"
	"sort"
)

// Coalesce joins consecutive intervals where one ends exactly where the next
// starts. Chains of touching intervals collapse into one. The input is not
// modified.
func Coalesce(l List) List {
	if len(l) == 0 {
		return List{}
	}
	out := make(List, 0, len(l))
	cur := l[0]
	for _, iv := range l[1:] {
		if iv.Start == cur.End {
			cur.End = iv.End
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	return append(out, cur)
}

type series int

const (
	seriesA series = iota
	seriesB
)

func (s series) other() series {
	return 1 - s
}

// endEvent is the end of one interval, tagged with the list it came from.
type endEvent struct {
	at     float64
	series series
}

// latestStartBefore returns the index of the last interval in l whose start
// is strictly less than t. found is false when no interval starts before t.
func latestStartBefore(l List, t float64) (idx int, found bool) {
	// l is sorted by start, so the matching starts form a prefix.
	n := sort.Search(len(l), func(i int) bool { return l[i].Start >= t })
	if n == 0 {
		return 0, false
	}
	return n - 1, true
}

// closesInside reports whether any interval of l ends strictly inside (lo, hi).
func closesInside(l List, lo, hi float64) bool {
	i := sort.Search(len(l), func(i int) bool { return l[i].End > lo })
	return i < len(l) && l[i].End < hi
}

// Intersect returns the intervals covered by both a and b, computed exactly
// (no time binning). Both lists are validated and their touching boundaries
// joined first. Either list empty gives an empty result.
//
// The sweep walks every interval end of both lists in ascending order (ties
// keep a before b). At each end e it locates, in both lists, the latest start
// below e; the later of the two is the candidate start s. [s, e] is emitted
// unless it starts inside the previously emitted interval or the other
// list's coverage breaks somewhere in [s, e).
func Intersect(a, b List) (List, error) {
	if err := Validate(a); err != nil {
		return nil, fmt.Errorf("first list: %w", err)
	}
	if err := Validate(b); err != nil {
		return nil, fmt.Errorf("second list: %w", err)
	}
	if len(a) == 0 || len(b) == 0 {
		return List{}, nil
	}

	lists := [2]List{Coalesce(a), Coalesce(b)}

	events := make([]endEvent, 0, len(lists[seriesA])+len(lists[seriesB]))
	for _, s := range []series{seriesA, seriesB} {
		for _, iv := range lists[s] {
			events = append(events, endEvent{at: iv.End, series: s})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })

	out := List{}
	lastEnd := math.Inf(-1)
	for _, ev := range events {
		this, other := lists[ev.series], lists[ev.series.other()]

		ti, ok := latestStartBefore(this, ev.at)
		if !ok {
			continue
		}
		oi, ok := latestStartBefore(other, ev.at)
		if !ok {
			// Nothing in the other list has opened yet.
			continue
		}

		start := math.Max(this[ti].Start, other[oi].Start)
		if start <= lastEnd {
			continue
		}
		if other[oi].End <= start || closesInside(other, start, ev.at) {
			continue
		}

		out = append(out, Interval{Start: start, End: ev.at})
		lastEnd = ev.at
	}
	return out, nil
}

// IntersectAll folds Intersect over any number of lists. With no lists it
// returns an empty result.
func IntersectAll(lists ...List) (List, error) {
	if len(lists) == 0 {
		return List{}, nil
	}
	acc := lists[0]
	if err := Validate(acc); err != nil {
		return nil, fmt.Errorf("list 0: %w", err)
	}
	acc = Coalesce(acc)
	for i, l := range lists[1:] {
		var err error
		acc, err = Intersect(acc, l)
		if err != nil {
			return nil, fmt.Errorf("list %d: %w", i+1, err)
		}
	}
	return acc, nil
}
