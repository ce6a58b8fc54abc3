package rewrite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOverlap is returned when an edit would clobber another edit.
	ErrOverlap = errors.New("edit overlaps an existing edit")
	// ErrOutOfRange is returned for spans outside the source buffer.
	ErrOutOfRange = errors.New("edit span out of range")
)

// Edit is one textual change against the original source. Insertions have
// Start == End.
type Edit struct {
	Start uint32
	End   uint32
	Text  string
	order int
}

// IsInsert reports whether the edit adds text without removing any.
func (e Edit) IsInsert() bool {
	return e.Start == e.End
}

// Buffer collects edits against an immutable source and applies them in one
// pass. Edits are never applied in place, so offsets taken from the syntax
// tree stay valid for the whole run.
type Buffer struct {
	src   []byte
	edits []Edit
	seq   int
}

// NewBuffer creates an edit buffer over src.
func NewBuffer(src []byte) *Buffer {
	return &Buffer{src: src}
}

// Source returns the original, unedited text.
func (b *Buffer) Source() []byte {
	return b.src
}

// Edits returns a copy of the recorded edits in registration order.
func (b *Buffer) Edits() []Edit {
	out := make([]Edit, len(b.edits))
	copy(out, b.edits)
	return out
}

// InsertAfter inserts text at pos, after any text already inserted there.
func (b *Buffer) InsertAfter(pos uint32, text string) error {
	b.seq++
	return b.insert(pos, text, b.seq)
}

// InsertBefore inserts text at pos, before any text already inserted there.
func (b *Buffer) InsertBefore(pos uint32, text string) error {
	b.seq++
	return b.insert(pos, text, -b.seq)
}

func (b *Buffer) insert(pos uint32, text string, order int) error {
	if int(pos) > len(b.src) {
		return fmt.Errorf("%w: insert at %d (len %d)", ErrOutOfRange, pos, len(b.src))
	}
	for _, e := range b.edits {
		if !e.IsInsert() && e.Start < pos && pos < e.End {
			return fmt.Errorf("%w: insert at %d inside replaced span [%d,%d)", ErrOverlap, pos, e.Start, e.End)
		}
	}
	b.edits = append(b.edits, Edit{Start: pos, End: pos, Text: text, order: order})
	return nil
}

// Replace replaces the span [start, end) with text.
func (b *Buffer) Replace(start, end uint32, text string) error {
	if start > end || int(end) > len(b.src) {
		return fmt.Errorf("%w: replace [%d,%d) (len %d)", ErrOutOfRange, start, end, len(b.src))
	}
	if start == end {
		return b.InsertAfter(start, text)
	}
	for _, e := range b.edits {
		if e.IsInsert() {
			if start < e.Start && e.Start < end {
				return fmt.Errorf("%w: replace [%d,%d) covers insert at %d", ErrOverlap, start, end, e.Start)
			}
			continue
		}
		if start < e.End && e.Start < end {
			return fmt.Errorf("%w: replace [%d,%d) overlaps [%d,%d)", ErrOverlap, start, end, e.Start, e.End)
		}
	}
	b.seq++
	b.edits = append(b.edits, Edit{Start: start, End: end, Text: text, order: b.seq})
	return nil
}

// Wrap surrounds [start, end) with the given prefix and suffix.
func (b *Buffer) Wrap(start, end uint32, prefix, suffix string) error {
	if start > end || int(end) > len(b.src) {
		return fmt.Errorf("%w: wrap [%d,%d) (len %d)", ErrOutOfRange, start, end, len(b.src))
	}
	if err := b.InsertBefore(start, prefix); err != nil {
		return err
	}
	return b.InsertAfter(end, suffix)
}

// Render returns the text of [start, end) with every edit that lies inside
// the span applied. Insertions exactly on the span boundaries are excluded.
func (b *Buffer) Render(start, end uint32) string {
	if int(end) > len(b.src) {
		end = uint32(len(b.src))
	}
	if start > end {
		return ""
	}

	var inside []Edit
	for _, e := range b.edits {
		if e.IsInsert() {
			if start < e.Start && e.Start < end {
				inside = append(inside, e)
			}
			continue
		}
		if start <= e.Start && e.End <= end {
			inside = append(inside, e)
		}
	}
	return apply(b.src, start, end, inside)
}

// Materialize applies all edits to the source and returns the result.
func (b *Buffer) Materialize() string {
	return apply(b.src, 0, uint32(len(b.src)), b.edits)
}

func apply(src []byte, start, end uint32, edits []Edit) string {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, c := sorted[i], sorted[j]
		if a.Start != c.Start {
			return a.Start < c.Start
		}
		// insertions at a position go before a replacement starting there
		if a.IsInsert() != c.IsInsert() {
			return a.IsInsert()
		}
		return a.order < c.order
	})

	var sb strings.Builder
	sb.Grow(int(end-start) + 64)
	cursor := start
	for _, e := range sorted {
		if e.Start < cursor {
			continue
		}
		sb.Write(src[cursor:e.Start])
		sb.WriteString(e.Text)
		cursor = e.End
	}
	sb.Write(src[cursor:end])
	return sb.String()
}
