package reader

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/YLivay/chunkview/log"
	"github.com/YLivay/chunkview/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestReader(t *testing.T, path string, chunkSize, bufferSize int, opts ...Option) *ChunkReader {
	r, err := Open(path, chunkSize, bufferSize, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, r.Close())
	})
	return r
}

// referenceLines reads the whole file at once, the way the reader is supposed
// to see it.
func referenceLines(t *testing.T, path string) []string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func chunksOf(lines []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(lines); start += size {
		chunks = append(chunks, lines[start:min(start+size, len(lines))])
	}
	return chunks
}

// assertAligned checks the resident buffer holds whole chunks, unless it is
// the final buffer.
func assertAligned(t *testing.T, r *ChunkReader) {
	t.Helper()
	if r.buf.Remaining > 0 {
		assert.Zero(t, len(r.buf.Lines)%r.chunkSize, "buffer %d has %d lines", r.buf.Seq, len(r.buf.Lines))
		assert.NotEmpty(t, r.buf.Lines)
	}
	assert.GreaterOrEqual(t, r.position, 0)
	assert.LessOrEqual(t, r.position, len(r.buf.Lines))
}

func readForwardAll(t *testing.T, r *ChunkReader) []string {
	var all []string
	for {
		chunk, err := r.Next()
		require.NoError(t, err)
		assertAligned(t, r)
		if len(chunk) == 0 {
			return all
		}
		require.LessOrEqual(t, len(chunk), r.ChunkSize())
		all = append(all, chunk...)
	}
}

func readBackwardAll(t *testing.T, r *ChunkReader) []string {
	var chunks [][]string
	for {
		chunk, err := r.Previous()
		require.NoError(t, err)
		assertAligned(t, r)
		if len(chunk) == 0 {
			break
		}
		require.LessOrEqual(t, len(chunk), r.ChunkSize())
		chunks = append(chunks, chunk)
	}

	slices.Reverse(chunks)
	return slices.Concat(chunks...)
}

type testFile struct {
	name  string
	lines []string
	// Terminate the last line with a delimiter.
	trailing bool
}

func testFiles() []testFile {
	varied := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		varied = append(varied, strings.Repeat(string(rune('a'+i%26)), i%37))
	}

	return []testFile{
		{name: "numbered", lines: utils.NumberedLines("line", 250), trailing: true},
		{name: "numbered no trailing newline", lines: utils.NumberedLines("line", 250)},
		{name: "varied lengths", lines: varied, trailing: true},
		{name: "empty lines", lines: []string{"", "", "a", "", "", "", "b", ""}, trailing: true},
		{name: "single line", lines: []string{"only"}},
		{name: "utf8", lines: []string{"naïve,café", "日本語,テキスト", "emoji,😀😀", "plain,text"}, trailing: true},
	}
}

func TestChunkReader_ForwardReproducesFile(t *testing.T) {
	for _, f := range testFiles() {
		path := utils.CreateLinesFile(t, f.lines, f.trailing)
		for _, chunkSize := range []int{1, 3, 7, 64, 1000} {
			for _, budget := range []int{1, 5, 16, 100, 1 << 20} {
				t.Run(fmt.Sprintf("%s/chunk=%d/budget=%d", f.name, chunkSize, budget), func(t *testing.T) {
					r := openTestReader(t, path, chunkSize, budget)

					got := readForwardAll(t, r)
					if diff := cmp.Diff(referenceLines(t, path), got); diff != "" {
						t.Errorf("forward read mismatch (-want +got):\n%s", diff)
					}
					assert.Equal(t, AtEnd, r.state)
				})
			}
		}
	}
}

func TestChunkReader_BackwardReproducesFile(t *testing.T) {
	for _, f := range testFiles() {
		path := utils.CreateLinesFile(t, f.lines, f.trailing)
		for _, chunkSize := range []int{1, 3, 7, 64} {
			for _, budget := range []int{1, 5, 16, 100, 1 << 20} {
				t.Run(fmt.Sprintf("%s/chunk=%d/budget=%d", f.name, chunkSize, budget), func(t *testing.T) {
					r := openTestReader(t, path, chunkSize, budget)
					readForwardAll(t, r)

					got := readBackwardAll(t, r)
					if diff := cmp.Diff(referenceLines(t, path), got); diff != "" {
						t.Errorf("backward read mismatch (-want +got):\n%s", diff)
					}
					assert.Equal(t, AtBeginning, r.state)

					// And forward again, through restored buffers.
					got = readForwardAll(t, r)
					if diff := cmp.Diff(referenceLines(t, path), got); diff != "" {
						t.Errorf("second forward read mismatch (-want +got):\n%s", diff)
					}
				})
			}
		}
	}
}

// TestChunkReader_RandomWalk compares the reader against a model that just
// indexes the chunks of the whole file.
func TestChunkReader_RandomWalk(t *testing.T) {
	for _, f := range testFiles() {
		path := utils.CreateLinesFile(t, f.lines, f.trailing)
		for _, chunkSize := range []int{1, 4, 9} {
			for _, budget := range []int{3, 16, 64, 1 << 20} {
				t.Run(fmt.Sprintf("%s/chunk=%d/budget=%d", f.name, chunkSize, budget), func(t *testing.T) {
					r := openTestReader(t, path, chunkSize, budget)
					chunks := chunksOf(referenceLines(t, path), r.ChunkSize())

					rng := rand.New(rand.NewSource(int64(chunkSize*7919 + budget)))
					current := -1
					for step := 0; step < 400; step++ {
						var (
							got []string
							err error
						)
						if rng.Intn(3) > 0 {
							current = min(current+1, len(chunks))
							got, err = r.Next()
						} else {
							current = max(current-1, -1)
							got, err = r.Previous()
						}
						require.NoError(t, err)
						assertAligned(t, r)

						var want []string
						if current >= 0 && current < len(chunks) {
							want = chunks[current]
						}
						if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b []string) bool {
							return slices.Equal(a, b)
						})); diff != "" {
							t.Fatalf("step %d, chunk %d mismatch (-want +got):\n%s", step, current, diff)
						}
					}
				})
			}
		}
	}
}

func TestChunkReader_Scenario2500Lines(t *testing.T) {
	lines := utils.NumberedLines("line", 2500)
	path := utils.CreateLinesFile(t, lines, true)
	r := openTestReader(t, path, 1000, 4096)

	next := func() []string {
		chunk, err := r.Next()
		require.NoError(t, err)
		return chunk
	}
	previous := func() []string {
		chunk, err := r.Previous()
		require.NoError(t, err)
		return chunk
	}

	assert.Equal(t, lines[0:1000], next())
	assert.Equal(t, lines[1000:2000], next())
	assert.Equal(t, lines[2000:2500], next())
	assert.Empty(t, next())
	assert.Equal(t, AtEnd, r.state)
	assert.Equal(t, 3, r.hist.Last())

	assert.Equal(t, lines[2000:2500], previous())
	assert.Equal(t, lines[1000:2000], previous())
	assert.Equal(t, 2, r.buf.Seq)
	assert.Equal(t, lines[0:1000], previous())
	assert.Equal(t, 1, r.buf.Seq)
	assert.Empty(t, previous())
	assert.Equal(t, AtBeginning, r.state)
}

func TestChunkReader_RoundTrip(t *testing.T) {
	lines := utils.NumberedLines("row", 100)
	path := utils.CreateLinesFile(t, lines, true)
	r := openTestReader(t, path, 10, 64)

	for i := 0; i < 5; i++ {
		_, err := r.Next()
		require.NoError(t, err)
	}
	before, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, lines[50:60], before)

	_, err = r.Next()
	require.NoError(t, err)
	back, err := r.Previous()
	require.NoError(t, err)
	assert.Equal(t, before, back)

	again, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, lines[60:70], again)
}

func TestChunkReader_IdempotentAtBoundaries(t *testing.T) {
	path := utils.CreateLinesFile(t, utils.NumberedLines("row", 5), true)
	r := openTestReader(t, path, 2, 4)

	for i := 0; i < 3; i++ {
		chunk, err := r.Previous()
		require.NoError(t, err)
		assert.Empty(t, chunk)
		assert.Equal(t, AtBeginning, r.state)
	}

	readForwardAll(t, r)
	for i := 0; i < 3; i++ {
		chunk, err := r.Next()
		require.NoError(t, err)
		assert.Empty(t, chunk)
		assert.Equal(t, AtEnd, r.state)
	}

	chunk, err := r.Previous()
	require.NoError(t, err)
	assert.Equal(t, []string{"row-5"}, chunk)
}

func TestChunkReader_BudgetSmallerThanAChunk(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = fmt.Sprintf("%03d,%s", i, strings.Repeat("x", 40))
	}
	path := utils.CreateLinesFile(t, lines, false)

	// One chunk is 5 lines of 45 bytes, far more than the budget.
	r := openTestReader(t, path, 5, 16)

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, lines[0:5], chunk)

	assert.Equal(t, lines[5:], readForwardAll(t, r))
	assert.Equal(t, lines, readBackwardAll(t, r))
}

func TestChunkReader_LineOnBufferBoundary(t *testing.T) {
	// "aaaaaaa\n" ends exactly at the 8 byte budget, the next line straddles
	// the following read boundaries.
	lines := []string{"aaaaaaa", "bbbbbbbbbbbb", "cc", "ddddddd"}
	path := utils.CreateLinesFile(t, lines, true)

	for _, chunkSize := range []int{1, 2} {
		r := openTestReader(t, path, chunkSize, 8)
		got := readForwardAll(t, r)
		if diff := cmp.Diff(referenceLines(t, path), got); diff != "" {
			t.Errorf("chunk %d: mismatch (-want +got):\n%s", chunkSize, diff)
		}
		assert.Equal(t, lines, readBackwardAll(t, r))
	}
}

func TestChunkReader_WholeFileCapsChunkSize(t *testing.T) {
	path := utils.CreateLinesFile(t, []string{"a", "b", "c"}, true)
	r := openTestReader(t, path, 10, 1<<20)

	assert.Equal(t, 3, r.ChunkSize())
	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, chunk)

	chunk, err = r.Next()
	require.NoError(t, err)
	assert.Empty(t, chunk)
	assert.Equal(t, 1, r.hist.Last())
}

func TestChunkReader_EmptyFile(t *testing.T) {
	path := utils.CreateTestFile(t, "")
	r := openTestReader(t, path, 10, 1024)

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Empty(t, chunk)
	assert.Equal(t, AtEnd, r.state)

	chunk, err = r.Previous()
	require.NoError(t, err)
	assert.Empty(t, chunk)
	assert.Equal(t, AtBeginning, r.state)
}

func TestChunkReader_CustomDelimiter(t *testing.T) {
	path := utils.CreateTestFile(t, "a;b;c;d;e")
	r := openTestReader(t, path, 2, 3, WithDelimiter(';'))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, readForwardAll(t, r))
}

func TestChunkReader_ReturnedChunksAreCopies(t *testing.T) {
	path := utils.CreateLinesFile(t, []string{"a", "b", "c"}, true)
	r := openTestReader(t, path, 3, 1<<20)

	chunk, err := r.Next()
	require.NoError(t, err)
	chunk[0] = "mutated"

	chunk, err = r.Previous()
	require.NoError(t, err)
	assert.Empty(t, chunk)
	chunk, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, chunk)
}

func TestChunkReader_ReadFailureKeepsState(t *testing.T) {
	contents := strings.Join(utils.NumberedLines("l", 10), "\n") + "\n"
	src, flaky := newStringSource(contents)
	// Each 8 byte read holds exactly two lines, so every buffer is one chunk.
	r, err := NewChunkReader(src, 2, 8)
	require.NoError(t, err)

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"l-1", "l-2"}, chunk)
	seq, position, lastLen := r.buf.Seq, r.position, r.lastLen

	flaky.fail = true
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrRead)
	assert.Equal(t, seq, r.buf.Seq)
	assert.Equal(t, position, r.position)
	assert.Equal(t, lastLen, r.lastLen)
	assert.Equal(t, Forward, r.lastDir)

	flaky.fail = false
	chunk, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"l-3", "l-4"}, chunk)
	assert.Equal(t, 2, r.buf.Seq)

	chunk, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"l-5", "l-6"}, chunk)
	assert.Equal(t, 3, r.buf.Seq)
	position = r.position

	// Going back needs buffer 2 restored.
	flaky.fail = true
	_, err = r.Previous()
	assert.ErrorIs(t, err, ErrRead)
	assert.Equal(t, 3, r.buf.Seq)
	assert.Equal(t, position, r.position)
	assert.Equal(t, Forward, r.lastDir)

	flaky.fail = false
	chunk, err = r.Previous()
	require.NoError(t, err)
	assert.Equal(t, []string{"l-3", "l-4"}, chunk)
	assert.Equal(t, 2, r.buf.Seq)
}

func TestChunkReader_MissingHistoryIsFatal(t *testing.T) {
	path := utils.CreateLinesFile(t, utils.NumberedLines("l", 10), true)
	r := openTestReader(t, path, 2, 8)

	for r.buf.Seq < 2 {
		_, err := r.Next()
		require.NoError(t, err)
	}
	delete(r.hist.spans, 1)

	_, err := r.Previous()
	assert.ErrorIs(t, err, ErrInvariant)

	// The reader refuses to continue after that.
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrInvariant)
	_, err = r.Previous()
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("/definitely/not/here.csv", 10, 1024)
	assert.ErrorIs(t, err, ErrOpen)

	path := utils.CreateTestFile(t, "a\n")
	_, err = Open(path, 0, 1024)
	assert.ErrorIs(t, err, ErrOpen)
	_, err = Open(path, 10, 0)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestChunkReader_LogsLoads(t *testing.T) {
	var out bytes.Buffer
	logger := log.New(&out, "", 0, true)

	path := utils.CreateLinesFile(t, utils.NumberedLines("l", 10), true)
	r := openTestReader(t, path, 2, 8, WithLogger(logger))

	readForwardAll(t, r)
	assert.Contains(t, out.String(), "debug: loaded buffer 2")

	readBackwardAll(t, r)
	assert.Contains(t, out.String(), "debug: restored buffer 1")
}
