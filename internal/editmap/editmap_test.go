package editmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/chunk"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/editmap"
)

func noopClean(s string) string { return s }

func newChunks(t *testing.T, spans ...string) []chunk.Chunk {
	t.Helper()
	chunks := make([]chunk.Chunk, 0, len(spans))
	offset := 0
	for _, s := range spans {
		chunks = append(chunks, chunk.New(s, offset, noopClean))
		offset += len(s)
	}
	return chunks
}

func rawTexts(chunks []chunk.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.RawText
	}
	return out
}

func assertContiguous(t *testing.T, chunks []chunk.Chunk) {
	t.Helper()
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End, chunks[i].Start, "chunk %d not contiguous with %d", i, i-1)
	}
}

func TestInsertEntirelyAfterChunkIsPureShift(t *testing.T) {
	chunks := newChunks(t, "Hello ", "world.")
	chunks[0].AttachAudio([]byte("audio"))

	editmap.Apply([]editmap.Edit{{Position: 6, Kind: editmap.Add, Text: "there "}}, chunks, noopClean)

	assert.Equal(t, []byte("audio"), chunks[0].Audio, "untouched chunk keeps its audio")
	assert.Equal(t, "there world.", chunks[1].RawText)
	assertContiguous(t, chunks)
}

func TestInsertInsideChunkInvalidatesItsAudio(t *testing.T) {
	chunks := newChunks(t, "Hello world.")
	chunks[0].AttachAudio([]byte("audio"))

	editmap.Apply([]editmap.Edit{{Position: 5, Kind: editmap.Add, Text: " there"}}, chunks, noopClean)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello there world.", chunks[0].RawText)
	assert.Nil(t, chunks[0].Audio)
}

func TestInsertAtEOFAbsorbsIntoLastChunk(t *testing.T) {
	chunks := newChunks(t, "Hello.")
	editmap.Apply([]editmap.Edit{{Position: 6, Kind: editmap.Add, Text: " More."}}, chunks, noopClean)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello. More.", chunks[0].RawText)
}

func TestDeleteFullyContainedChunkCollapsesToEmptyPlaceholder(t *testing.T) {
	chunks := newChunks(t, "One. ", "Two. ", "Three.")
	editmap.Apply([]editmap.Edit{{Position: 5, Kind: editmap.Remove, Text: "Two. "}}, chunks, noopClean)

	require.Len(t, chunks, 3)
	assert.True(t, chunks[1].IsEmpty())
	assert.Equal(t, "One. ", chunks[0].RawText)
	assert.Equal(t, "Three.", chunks[2].RawText)
	assertContiguous(t, chunks)
}

func TestDeleteDoesNotShrinkBelowZeroLength(t *testing.T) {
	chunks := newChunks(t, "Solo chunk.")
	editmap.Apply([]editmap.Edit{{Position: 0, Kind: editmap.Remove, Text: "Solo chunk."}}, chunks, noopClean)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 0, chunks[0].End)
	assert.Equal(t, "", chunks[0].RawText)
}

func TestDeleteSpanningTwoChunksOverlapsFrontAndBack(t *testing.T) {
	chunks := newChunks(t, "AAAA", "BBBB")
	// Remove "AABB": last 2 of chunk0, first 2 of chunk1.
	editmap.Apply([]editmap.Edit{{Position: 2, Kind: editmap.Remove, Text: "AABB"}}, chunks, noopClean)

	require.Len(t, chunks, 2)
	assert.Equal(t, "AA", chunks[0].RawText)
	assert.Equal(t, "BB", chunks[1].RawText)
	assertContiguous(t, chunks)
}

func TestDeleteInteriorOfOneChunkKeepsBothEnds(t *testing.T) {
	chunks := newChunks(t, "Hello world.")
	chunks[0].AttachAudio([]byte("audio"))
	editmap.Apply([]editmap.Edit{{Position: 5, Kind: editmap.Remove, Text: " world"}}, chunks, noopClean)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello.", chunks[0].RawText)
	assert.Nil(t, chunks[0].Audio)
}

func TestApplyAppliesEditsInOrder(t *testing.T) {
	chunks := newChunks(t, "Hello world.")
	edits := []editmap.Edit{
		{Position: 5, Kind: editmap.Remove, Text: " world"},
		{Position: 5, Kind: editmap.Add, Text: " there"},
	}
	editmap.Apply(edits, chunks, noopClean)
	assert.Equal(t, "Hello there.", chunks[0].RawText)
}

func TestApplyOnEmptyChunkListIsNoop(t *testing.T) {
	var chunks []chunk.Chunk
	assert.NotPanics(t, func() {
		editmap.Apply([]editmap.Edit{{Position: 0, Kind: editmap.Add, Text: "x"}}, chunks, noopClean)
	})
}

func TestRawTextsHelperSanityCheck(t *testing.T) {
	chunks := newChunks(t, "a", "b")
	assert.Equal(t, []string{"a", "b"}, rawTexts(chunks))
}
