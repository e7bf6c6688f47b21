package reader

import "fmt"

// Buffer is the window of the input that is currently held in memory.
type Buffer struct {
	// The lines of the window, without delimiters.
	Lines []string

	// The byte range [Start, End) the lines were decoded from. Both ends sit
	// on line boundaries.
	Start int64
	End   int64

	// Sequence number of the buffer, starting at 1 at the start of the input.
	Seq int

	// Bytes of input after End. Zero means this is the final buffer.
	Remaining int64
}

// Carry is what a forward load leaves behind for the next forward load.
type Carry struct {
	// Where the next raw read starts.
	Offset int64

	// Where the first line that isn't part of any buffer yet starts.
	LineStart int64

	// Bytes read past the last delimiter of the previous read.
	Fragment []byte

	// Complete lines withheld from the previous buffer to keep its length a
	// multiple of the chunk size.
	Overflow []string
}

// span is what the history remembers about a loaded buffer.
type span struct {
	Start int64
	End   int64
	Lines int
}

// history maps buffer sequence numbers to the span each buffer covered. It is
// append only: sequence numbers are handed out in order by forward loads.
type history struct {
	spans map[int]span
	last  int
}

func newHistory() *history {
	return &history{spans: make(map[int]span)}
}

func (h *history) record(b *Buffer) {
	if b.Seq <= h.last {
		return
	}
	h.spans[b.Seq] = span{Start: b.Start, End: b.End, Lines: len(b.Lines)}
	h.last = b.Seq
}

func (h *history) lookup(seq int) (span, bool) {
	s, ok := h.spans[seq]
	return s, ok
}

// Last returns the highest sequence number loaded so far.
func (h *history) Last() int {
	return h.last
}

// LoadForward loads the buffer that follows the one numbered prevSeq, reading
// new data from the position described by carry. It keeps reading budget
// sized spans until at least chunkSize lines are available or the input ends.
//
// Unless the input ends, the returned buffer is truncated to a multiple of
// chunkSize; the withheld lines are returned in the new carry. The caller's
// carry is not modified, so a failed load can be retried with it.
func LoadForward(src *ByteSource, prevSeq, chunkSize, budget int, carry Carry, delim byte) (*Buffer, Carry, error) {
	if chunkSize <= 0 || budget <= 0 {
		return nil, carry, fmt.Errorf("%w: chunk size %d and budget %d must be positive", ErrInvariant, chunkSize, budget)
	}

	lines := make([]string, 0, len(carry.Overflow))
	lines = append(lines, carry.Overflow...)
	fragment := carry.Fragment
	offset := carry.Offset
	more := offset < src.Size()

	for more {
		data, err := src.Read(ReadRequest{Offset: offset, Length: budget})
		if err != nil {
			return nil, carry, err
		}
		if len(data) == 0 {
			return nil, carry, fmt.Errorf("%w: no data at offset %d of %d", ErrRead, offset, src.Size())
		}
		offset += int64(len(data))
		more = offset < src.Size()

		var decoded []string
		decoded, fragment = SplitLines(data, fragment, more, delim)
		lines = append(lines, decoded...)

		if len(lines) >= chunkSize {
			break
		}
	}

	keep := len(lines)
	if more {
		keep = len(lines) / chunkSize * chunkSize
	}

	buf := &Buffer{
		Lines: lines[:keep:keep],
		Start: carry.LineStart,
		Seq:   prevSeq + 1,
	}
	if more {
		buf.End = buf.Start + spanSize(buf.Lines)
	} else {
		// The final line may not have a delimiter, so don't count one.
		buf.End = src.Size()
	}
	buf.Remaining = src.Size() - buf.End

	next := Carry{
		Offset:    offset,
		LineStart: buf.End,
		Fragment:  fragment,
	}
	if keep < len(lines) {
		next.Overflow = append([]string(nil), lines[keep:]...)
	}

	return buf, next, nil
}

// LoadRecorded loads the buffer numbered seq again from the span the history
// recorded for it. The span is read backwards from its end offset, the same
// way the reader approaches a buffer when paging backwards.
func LoadRecorded(src *ByteSource, hist *history, seq, chunkSize int, delim byte) (*Buffer, error) {
	s, ok := hist.lookup(seq)
	if !ok {
		return nil, fmt.Errorf("%w: no history for buffer %d", ErrInvariant, seq)
	}

	data, start, err := src.ReadBackwardsFrom(s.End, int(s.End-s.Start))
	if err != nil {
		return nil, err
	}
	if start != s.Start {
		return nil, fmt.Errorf("%w: buffer %d starts at %d, recorded %d", ErrInvariant, seq, start, s.Start)
	}

	// Recorded spans are line aligned, so nothing can be left over.
	lines, fragment := SplitLines(data, nil, false, delim)
	if fragment != nil || len(lines) != s.Lines {
		return nil, fmt.Errorf("%w: buffer %d decoded to %d lines, recorded %d", ErrInvariant, seq, len(lines), s.Lines)
	}

	buf := &Buffer{
		Lines:     lines,
		Start:     s.Start,
		End:       s.End,
		Seq:       seq,
		Remaining: src.Size() - s.End,
	}
	if buf.Remaining > 0 && len(buf.Lines)%chunkSize != 0 {
		return nil, fmt.Errorf("%w: buffer %d has %d lines, not a multiple of %d", ErrInvariant, seq, len(buf.Lines), chunkSize)
	}
	return buf, nil
}

// LoadBackward loads the buffer that precedes the one numbered seq.
func LoadBackward(src *ByteSource, hist *history, seq, chunkSize int, delim byte) (*Buffer, error) {
	if seq <= 1 {
		return nil, ErrBeginningReached
	}

	return LoadRecorded(src, hist, seq-1, chunkSize, delim)
}
