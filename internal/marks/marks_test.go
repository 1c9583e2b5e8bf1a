package marks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocknotes/internal/domain"
	"blocknotes/internal/marks"
)

func bold(start, end int) domain.Mark {
	return domain.Mark{Type: domain.MarkBold, Start: start, End: end}
}

func italic(start, end int) domain.Mark {
	return domain.Mark{Type: domain.MarkItalic, Start: start, End: end}
}

// --- Apply ---

func TestApply_MergesAdjacentRuns(t *testing.T) {
	m := marks.Apply(nil, domain.MarkBold, 0, 5)
	m = marks.Apply(m, domain.MarkBold, 5, 10)
	assert.Equal(t, []domain.Mark{bold(0, 10)}, m)
}

func TestApply_MergesOverlapAndSorts(t *testing.T) {
	in := []domain.Mark{bold(20, 25), bold(2, 6)}
	got := marks.Apply(in, domain.MarkBold, 4, 12)
	assert.Equal(t, []domain.Mark{bold(2, 12), bold(20, 25)}, got)
}

func TestApply_Idempotent(t *testing.T) {
	base := []domain.Mark{italic(0, 4), bold(1, 3), bold(8, 9)}
	once := marks.Apply(base, domain.MarkBold, 2, 8)
	twice := marks.Apply(once, domain.MarkBold, 2, 8)
	assert.Equal(t, once, twice)
}

func TestApply_LeavesOtherTypes(t *testing.T) {
	in := []domain.Mark{italic(0, 10)}
	got := marks.Apply(in, domain.MarkBold, 3, 4)
	assert.Equal(t, []domain.Mark{italic(0, 10), bold(3, 4)}, got)
}

func TestApply_EmptyRangeIsNoop(t *testing.T) {
	in := []domain.Mark{bold(0, 2)}
	assert.Equal(t, in, marks.Apply(in, domain.MarkBold, 4, 4))
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	in := []domain.Mark{bold(5, 8), bold(0, 2)}
	_ = marks.Apply(in, domain.MarkBold, 1, 6)
	assert.Equal(t, []domain.Mark{bold(5, 8), bold(0, 2)}, in)
}

// --- Remove ---

func TestRemove_SplitsMark(t *testing.T) {
	got := marks.Remove([]domain.Mark{bold(0, 10)}, domain.MarkBold, 3, 7)
	assert.Equal(t, []domain.Mark{bold(0, 3), bold(7, 10)}, got)
}

func TestRemove_Cases(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.Mark
		want []domain.Mark
	}{
		{"disjoint", []domain.Mark{bold(0, 2)}, []domain.Mark{bold(0, 2)}},
		{"contained", []domain.Mark{bold(4, 6)}, []domain.Mark{}},
		{"left overlap", []domain.Mark{bold(1, 5)}, []domain.Mark{bold(1, 3)}},
		{"right overlap", []domain.Mark{bold(5, 9)}, []domain.Mark{bold(7, 9)}},
		{"other type", []domain.Mark{italic(0, 10)}, []domain.Mark{italic(0, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marks.Remove(tt.in, domain.MarkBold, 3, 7))
		})
	}
}

// --- Diff / AdjustForChange ---

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     marks.Change
	}{
		{"insert middle", "hello world", "hello big world", marks.Change{Start: 6, Deleted: 0, Inserted: 4}},
		{"delete", "hello big world", "hello world", marks.Change{Start: 6, Deleted: 4, Inserted: 0}},
		{"replace", "abcXdef", "abcYYdef", marks.Change{Start: 3, Deleted: 1, Inserted: 2}},
		{"repeated chars", "aaa", "aaaa", marks.Change{Start: 3, Deleted: 0, Inserted: 1}},
		{"surrogate pair", "a😀b", "a😀xb", marks.Change{Start: 3, Deleted: 0, Inserted: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marks.Diff(tt.old, tt.new))
		})
	}
}

func TestAdjust_InsertShiftsLaterMarks(t *testing.T) {
	old := "hello world"
	in := []domain.Mark{bold(0, 2), italic(6, 11), bold(2, 8)}
	got := marks.AdjustForChange(in, old, "hello big world")

	// entirely before the pivot: untouched
	assert.Equal(t, bold(0, 2), got[0])
	// starts at the pivot: shifted right by 4
	assert.Equal(t, italic(10, 15), got[1])
	// straddles the pivot: only the end grows
	assert.Equal(t, bold(2, 12), got[2])
}

func TestAdjust_TypingAtEndOfStyledRun(t *testing.T) {
	got := marks.AdjustForChange([]domain.Mark{bold(0, 5)}, "hello", "hello!")
	assert.Equal(t, []domain.Mark{bold(0, 6)}, got)
}

func TestAdjust_DeleteCollapsesAndDrops(t *testing.T) {
	old := "0123456789"
	in := []domain.Mark{bold(3, 5), italic(1, 4), bold(6, 9)}
	// delete "2345"
	got := marks.AdjustForChange(in, old, "016789")
	require.Len(t, got, 2)
	assert.Equal(t, italic(1, 2), got[0])
	assert.Equal(t, bold(2, 5), got[1])
}

func TestAdjust_ReplaceInsideMark(t *testing.T) {
	old := "abcdef"
	got := marks.AdjustForChange([]domain.Mark{bold(1, 5)}, old, "abXYZef")
	// "cd" deleted at 2 -> [1,3), then 3 inserted straddling -> [1,6)
	assert.Equal(t, []domain.Mark{bold(1, 6)}, got)
}

func TestAdjust_LineBreakPaste(t *testing.T) {
	old := "first second"
	in := []domain.Mark{italic(6, 12)}
	got := marks.AdjustForChange(in, old, "first\n\nsecond")
	assert.Equal(t, []domain.Mark{italic(7, 13)}, got)
}

func TestAdjust_UnchangedText(t *testing.T) {
	in := []domain.Mark{bold(0, 3)}
	assert.Equal(t, in, marks.AdjustForChange(in, "abc", "abc"))
}

func TestAdjust_InsertPropertyAcrossPositions(t *testing.T) {
	old := "the quick brown fox"
	in := []domain.Mark{bold(0, 3), italic(4, 9), bold(10, 15), italic(16, 19)}
	ins := "ZZ"
	for p := 0; p <= len(old); p++ {
		newText := old[:p] + ins + old[p:]
		got := marks.AdjustForChange(in, old, newText)
		require.Len(t, got, len(in))
		for i, m := range in {
			switch {
			case m.Start >= p:
				assert.Equal(t, m.Start+len(ins), got[i].Start, "p=%d mark=%v", p, m)
				assert.Equal(t, m.End+len(ins), got[i].End, "p=%d mark=%v", p, m)
			case m.End >= p:
				assert.Equal(t, m.Start, got[i].Start, "p=%d mark=%v", p, m)
				assert.Equal(t, m.End+len(ins), got[i].End, "p=%d mark=%v", p, m)
			default:
				assert.Equal(t, m, got[i], "p=%d", p)
			}
		}
	}
}

// --- helpers ---

func TestLen_CountsUTF16Units(t *testing.T) {
	assert.Equal(t, 3, marks.Len("abc"))
	assert.Equal(t, 4, marks.Len("a😀b"))
	assert.Equal(t, 2, marks.Len("é!"))
}

func TestClamp(t *testing.T) {
	got := marks.Clamp([]domain.Mark{bold(-2, 3), italic(4, 50), bold(9, 12)}, 8)
	assert.Equal(t, []domain.Mark{bold(0, 3), italic(4, 8)}, got)
}

func TestNormalize(t *testing.T) {
	got := marks.Normalize([]domain.Mark{italic(5, 6), bold(4, 9), bold(0, 4), italic(1, 2)})
	assert.Equal(t, []domain.Mark{bold(0, 9), italic(1, 2), italic(5, 6)}, got)
}
