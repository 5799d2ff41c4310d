package snapshot

import (
	"fmt"
	"strings"
)

// columnWidth is the fixed right-aligned column width spec.md §4.8
// mandates for the human-readable dump.
const columnWidth = 20

// defaultWidth is the terminal width TextRenderer folds to when none
// is configured.
const defaultWidth = 80

// TextRenderer renders a row of named values into fixed-width,
// right-aligned columns, wrapping to a new line whenever the next
// column would overflow Width.
type TextRenderer struct {
	// Width is the terminal width to fold at; zero means
	// defaultWidth.
	Width int
}

func (r TextRenderer) width() int {
	if r.Width <= 0 {
		return defaultWidth
	}
	return r.Width
}

// Row renders name/value pairs (in the order given) as folded,
// fixed-width columns, one label:value pair per column.
func (r TextRenderer) Row(cols []Column) string {
	width := r.width()
	var b strings.Builder
	lineLen := 0
	for _, c := range cols {
		cell := fmt.Sprintf("%*s", columnWidth, fmt.Sprintf("%s=%v", c.Label, c.Value))
		if lineLen > 0 && lineLen+len(cell) > width {
			b.WriteByte('\n')
			lineLen = 0
		}
		b.WriteString(cell)
		lineLen += len(cell)
	}
	return b.String()
}

// Column is one named value to render.
type Column struct {
	Label string
	Value any
}

// RenderSnapshot renders every field of s as a sequence of folded
// rows: one row for insn totals (reduced across cores), one for
// branch totals, one for cache totals, one for the time breakdown.
func (r TextRenderer) RenderSnapshot(s Snapshot) string {
	var rows []string

	insn := s.InsnData.Reduce()
	rows = append(rows, r.Row([]Column{
		{"cycles", insn.Cycles},
		{"total_insn", insn.TotalInsn},
		{"load_insn", insn.LoadInsn},
		{"store_insn", insn.StoreInsn},
	}))

	var correct, wrong uint64
	for _, c := range s.BranchData.Cores {
		correct += c.Correct
		wrong += c.Wrong
	}
	rows = append(rows, r.Row([]Column{
		{"branch_correct", correct},
		{"branch_wrong", wrong},
	}))

	rows = append(rows, r.Row([]Column{
		{"memory_accesses", s.CacheData.MemoryAccesses},
		{"memory_time_ns", s.CacheData.MemoryTimeNanos},
	}))

	timeCols := make([]Column, numTimeSlots)
	for i := 0; i < int(numTimeSlots); i++ {
		timeCols[i] = Column{TimeSlot(i).String(), s.TimeNanos[i]}
	}
	rows = append(rows, r.Row(timeCols))

	return strings.Join(rows, "\n")
}
