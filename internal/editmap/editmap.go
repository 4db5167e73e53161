// Package editmap implements the edit-remapping algebra (C2): a pure,
// total function that applies an ordered batch of text edits to a chunk
// array in place, keeping spans contiguous and invalidating stale audio.
// It never fails — edit-remapping is total per section 7's error design.
//
// All offsets (position, Start, End) are byte offsets into the source
// text, matching chunk.New's use of len(rawText) to derive End.
package editmap

import (
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/chunk"
)

// Kind distinguishes an insertion from a deletion.
type Kind int

const (
	Add Kind = iota
	Remove
)

// Edit is one entry in the ordered batch applied by Apply.
type Edit struct {
	Position int
	Kind     Kind
	// Text is the inserted text for Add, or the removed text for Remove
	// (only its length is semantically required, but callers typically
	// have the actual removed text available).
	Text string
}

// Apply mutates chunks in place so they reflect every edit in order,
// atomically with respect to any observer (section 5: no task may observe
// chunks partway through a batch — callers must not yield control to other
// goroutines while Apply is running, which is naturally satisfied since
// Apply performs no I/O and never blocks).
func Apply(edits []Edit, chunks []chunk.Chunk, clean chunk.CleanFunc) {
	for _, e := range edits {
		switch e.Kind {
		case Add:
			applyInsert(e, chunks, clean)
		case Remove:
			applyDelete(e, chunks, clean)
		}
	}
}

func lastEnd(chunks []chunk.Chunk) int {
	if len(chunks) == 0 {
		return 0
	}
	return chunks[len(chunks)-1].End
}

// applyInsert implements section 4.2's insertion policy.
func applyInsert(e Edit, chunks []chunk.Chunk, clean chunk.CleanFunc) {
	if len(chunks) == 0 {
		return
	}
	position := e.Position
	length := len(e.Text)
	end := lastEnd(chunks)
	if position > end {
		return
	}

	for i := range chunks {
		c := &chunks[i]
		isLast := i == len(chunks)-1

		if position < c.Start {
			// Entirely after the insertion point: pure shift, no text
			// change, audio preserved.
			c.Start += length
			c.End += length
			continue
		}

		insertsHere := position < c.End || (isLast && position == c.End)
		if insertsHere {
			offset := position - c.Start
			newRaw := c.RawText[:offset] + e.Text + c.RawText[offset:]
			c.End += length
			c.SetRawText(newRaw, clean)
			continue
		}
		// position >= c.End and not the EOF-absorbing last chunk: entirely
		// before the insertion point, untouched.
	}
}

// applyDelete implements section 4.2's deletion policy.
func applyDelete(e Edit, chunks []chunk.Chunk, clean chunk.CleanFunc) {
	if len(chunks) == 0 {
		return
	}
	left := e.Position
	length := len(e.Text)
	right := left + length
	end := lastEnd(chunks)
	if left >= end {
		return
	}

	for i := range chunks {
		c := &chunks[i]

		switch {
		case c.End <= left:
			// Entirely before the deletion: unchanged.

		case c.Start >= right:
			// Entirely after the deletion: shift both endpoints left.
			c.Start -= length
			c.End -= length

		default:
			startInside := c.Start >= left
			endInside := c.End <= right

			switch {
			case startInside && endInside:
				// Fully-contained: collapse to an empty placeholder chunk.
				c.Start = left
				c.End = left
				c.SetRawText("", clean)

			case startInside && !endInside:
				// Left-overlap: deletion eats the chunk's front.
				overlap := right - c.Start
				newRaw := c.RawText[overlap:]
				c.Start = left
				c.End -= length
				c.SetRawText(newRaw, clean)

			case !startInside && endInside:
				// Right-overlap: deletion eats the chunk's back.
				keep := left - c.Start
				newRaw := c.RawText[:keep]
				c.End = left
				c.SetRawText(newRaw, clean)

			default:
				// Interior: deletion entirely inside the chunk.
				removeStart := left - c.Start
				removeEnd := right - c.Start
				newRaw := c.RawText[:removeStart] + c.RawText[removeEnd:]
				c.End -= length
				c.SetRawText(newRaw, clean)
			}
		}
	}
}
