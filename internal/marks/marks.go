// Package marks transforms inline style intervals over block text.
//
// Offsets are UTF-16 code units, matching what browser editors report for
// selections. Every function is pure: inputs are never modified and a new
// slice is returned. Callers clamp ranges to the text before calling in;
// a call with start >= end returns the marks unchanged.
package marks

import (
	"sort"
	"unicode/utf16"

	"blocknotes/internal/domain"
)

// Apply adds [start,end) of type t and merges every overlapping or adjacent
// interval of that type into minimal runs. Marks of other types are kept.
func Apply(marks []domain.Mark, t domain.MarkType, start, end int) []domain.Mark {
	if start >= end {
		return clone(marks)
	}
	others, same := split(marks, t)
	same = append(same, domain.Mark{Type: t, Start: start, End: end})
	return append(others, merge(same)...)
}

// Remove clears type t from [start,end). Marks fully inside the range are
// dropped, marks crossing its edges keep their outside remainders.
func Remove(marks []domain.Mark, t domain.MarkType, start, end int) []domain.Mark {
	if start >= end {
		return clone(marks)
	}
	out := make([]domain.Mark, 0, len(marks)+1)
	for _, m := range marks {
		if m.Type != t || m.End <= start || m.Start >= end {
			out = append(out, m)
			continue
		}
		if m.Start < start {
			out = append(out, domain.Mark{Type: t, Start: m.Start, End: start})
		}
		if m.End > end {
			out = append(out, domain.Mark{Type: t, Start: end, End: m.End})
		}
	}
	return out
}

// Change describes the minimal edit between two text snapshots.
type Change struct {
	Start    int // first differing UTF-16 offset
	Deleted  int // code units removed at Start
	Inserted int // code units inserted at Start
}

// Diff locates the changed span with a longest-common-prefix scan followed
// by a longest-common-suffix scan that never reaches back into the prefix.
func Diff(oldText, newText string) Change {
	a := utf16.Encode([]rune(oldText))
	b := utf16.Encode([]rune(newText))

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	return Change{
		Start:    prefix,
		Deleted:  len(a) - prefix - suffix,
		Inserted: len(b) - prefix - suffix,
	}
}

// AdjustForChange carries marks from oldText over to newText.
//
// Deletion runs first: boundaries inside the deleted span collapse onto its
// start, later boundaries shift left, and marks left empty are dropped.
// Insertion runs second at the same pivot: boundaries at or after the pivot
// shift right, except that a mark straddling the pivot only extends its end.
func AdjustForChange(marks []domain.Mark, oldText, newText string) []domain.Mark {
	if oldText == newText {
		return clone(marks)
	}
	return Shift(marks, Diff(oldText, newText))
}

// Shift applies a Change to marks. See AdjustForChange.
func Shift(marks []domain.Mark, c Change) []domain.Mark {
	pivot := c.Start
	delEnd := c.Start + c.Deleted

	out := make([]domain.Mark, 0, len(marks))
	for _, m := range marks {
		if c.Deleted > 0 {
			m.Start = collapse(m.Start, pivot, delEnd, c.Deleted)
			m.End = collapse(m.End, pivot, delEnd, c.Deleted)
			if m.End <= m.Start {
				continue
			}
		}
		if c.Inserted > 0 {
			switch {
			case m.Start < pivot && m.End >= pivot:
				m.End += c.Inserted
			case m.Start >= pivot:
				m.Start += c.Inserted
				m.End += c.Inserted
			}
		}
		out = append(out, m)
	}
	return out
}

func collapse(pos, start, end, deleted int) int {
	switch {
	case pos >= end:
		return pos - deleted
	case pos > start:
		return start
	}
	return pos
}

// Len returns the length of text in UTF-16 code units.
func Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// Clamp restricts every mark to [0,length) and drops marks left empty.
func Clamp(marks []domain.Mark, length int) []domain.Mark {
	out := make([]domain.Mark, 0, len(marks))
	for _, m := range marks {
		m.Start = max(0, min(m.Start, length))
		m.End = max(0, min(m.End, length))
		if m.End > m.Start {
			out = append(out, m)
		}
	}
	return out
}

// Normalize merges overlapping and adjacent same-type marks and orders the
// result by type, then start.
func Normalize(marks []domain.Mark) []domain.Mark {
	byType := map[domain.MarkType][]domain.Mark{}
	var types []domain.MarkType
	for _, m := range marks {
		if m.End <= m.Start {
			continue
		}
		if _, ok := byType[m.Type]; !ok {
			types = append(types, m.Type)
		}
		byType[m.Type] = append(byType[m.Type], m)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	out := make([]domain.Mark, 0, len(marks))
	for _, t := range types {
		out = append(out, merge(byType[t])...)
	}
	return out
}

// Of returns the marks of type t sorted by start.
func Of(marks []domain.Mark, t domain.MarkType) []domain.Mark {
	_, same := split(marks, t)
	sort.Slice(same, func(i, j int) bool { return same[i].Start < same[j].Start })
	return same
}

func split(marks []domain.Mark, t domain.MarkType) (others, same []domain.Mark) {
	others = make([]domain.Mark, 0, len(marks))
	for _, m := range marks {
		if m.Type == t {
			same = append(same, m)
		} else {
			others = append(others, m)
		}
	}
	return others, same
}

// merge sorts same-type marks and folds every run whose start is at or
// before the current end.
func merge(same []domain.Mark) []domain.Mark {
	if len(same) == 0 {
		return nil
	}
	sorted := append([]domain.Mark(nil), same...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []domain.Mark{sorted[0]}
	for _, m := range sorted[1:] {
		last := &out[len(out)-1]
		if m.Start <= last.End {
			if m.End > last.End {
				last.End = m.End
			}
			continue
		}
		out = append(out, m)
	}
	return out
}

func clone(marks []domain.Mark) []domain.Mark {
	return append(make([]domain.Mark, 0, len(marks)), marks...)
}
