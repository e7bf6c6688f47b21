package reader

import (
	"errors"
	"fmt"
	"slices"

	"github.com/YLivay/chunkview/log"
)

// Direction is the direction of the last move of a ChunkReader.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// State tells whether a ChunkReader sits at one of the ends of the input.
type State int

const (
	Ready State = iota
	AtBeginning
	AtEnd
)

func (s State) String() string {
	switch s {
	case AtBeginning:
		return "beginning"
	case AtEnd:
		return "end"
	default:
		return "ready"
	}
}

// ChunkReader pages through a line oriented file chunkSize lines at a time,
// keeping only one buffer of roughly bufferSize bytes in memory.
//
// A ChunkReader is not safe for concurrent use.
type ChunkReader struct {
	src *ByteSource
	log *log.Logger

	chunkSize int
	budget    int
	delim     byte

	// The one resident buffer.
	buf *Buffer
	// State of the forward frontier, i.e. what follows the buffer numbered
	// hist.Last().
	carry Carry
	hist  *history

	// Line index inside buf. Next leaves it after the chunk it returned,
	// Previous leaves it at the start of the chunk it returned.
	position int
	lastDir  Direction
	// Length of the chunk returned by the last call.
	lastLen int
	state   State

	// Set once an invariant violation was detected. All later calls fail.
	fatal error
}

type Option func(*ChunkReader)

// WithDelimiter sets the line delimiter. The default is '\n'.
func WithDelimiter(delim byte) Option {
	return func(r *ChunkReader) {
		r.delim = delim
	}
}

// WithLogger sets the logger buffer loads are reported to at debug level.
func WithLogger(l *log.Logger) Option {
	return func(r *ChunkReader) {
		if l != nil {
			r.log = l
		}
	}
}

// Open opens the file at path for paging. The file stays open until Close is
// called.
func Open(path string, chunkSize, bufferSize int, opts ...Option) (*ChunkReader, error) {
	src, err := OpenByteSource(path)
	if err != nil {
		return nil, err
	}

	r, err := NewChunkReader(src, chunkSize, bufferSize, opts...)
	if err != nil {
		return nil, errors.Join(err, src.Close())
	}
	return r, nil
}

// NewChunkReader creates a reader over src and loads the first buffer. If
// bufferSize covers the whole input, the input is loaded as a single buffer
// and chunkSize is capped to its line count.
func NewChunkReader(src *ByteSource, chunkSize, bufferSize int, opts ...Option) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrOpen, chunkSize)
	}
	if bufferSize <= 0 {
		return nil, fmt.Errorf("%w: buffer size must be positive, got %d", ErrOpen, bufferSize)
	}

	r := &ChunkReader{
		src:       src,
		log:       log.Discard(),
		chunkSize: chunkSize,
		budget:    bufferSize,
		delim:     '\n',
		hist:      newHistory(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if int64(bufferSize) >= src.Size() {
		if err := r.loadWhole(); err != nil {
			return nil, err
		}
	} else {
		buf, carry, err := LoadForward(src, 0, r.chunkSize, r.budget, Carry{}, r.delim)
		if err != nil {
			return nil, err
		}
		r.install(buf, carry)
	}

	return r, nil
}

func (r *ChunkReader) loadWhole() error {
	data, err := r.src.ReadForward(int(r.src.Size()))
	if err != nil {
		return err
	}

	lines, _ := SplitLines(data, nil, false, r.delim)
	if len(lines) > 0 && r.chunkSize > len(lines) {
		r.chunkSize = len(lines)
	}

	r.install(&Buffer{
		Lines: lines,
		End:   r.src.Size(),
		Seq:   1,
	}, Carry{Offset: r.src.Size(), LineStart: r.src.Size()})
	r.log.Debugf("loaded whole input: %d lines, %d bytes, chunk size %d", len(lines), r.src.Size(), r.chunkSize)
	return nil
}

// install makes buf a newly loaded frontier buffer.
func (r *ChunkReader) install(buf *Buffer, carry Carry) {
	r.buf = buf
	r.carry = carry
	r.hist.record(buf)
}

// ChunkSize returns the number of lines per chunk. It can be smaller than
// requested when the whole input has fewer lines.
func (r *ChunkReader) ChunkSize() int {
	return r.chunkSize
}

// Next returns the chunk after the one returned last. At the end of the input
// it returns an empty chunk.
func (r *ChunkReader) Next() ([]string, error) {
	if r.fatal != nil {
		return nil, r.fatal
	}

	buf := r.buf
	pos := r.position
	if r.lastDir == Backward {
		// Skip past the chunk Previous returned.
		pos += r.lastLen
	}

	if pos >= len(buf.Lines) {
		if buf.Remaining == 0 {
			r.position = len(buf.Lines)
			r.lastDir = Forward
			r.lastLen = 0
			r.state = AtEnd
			return nil, nil
		}

		next, err := r.loadNext()
		if err != nil {
			return nil, r.fail(err)
		}
		buf = next
		pos = 0
	}

	end := min(pos+r.chunkSize, len(buf.Lines))
	r.buf = buf
	r.position = end
	r.lastDir = Forward
	r.lastLen = end - pos
	r.state = Ready
	return slices.Clone(buf.Lines[pos:end]), nil
}

// Previous returns the chunk before the one returned last. At the start of
// the input it returns an empty chunk.
func (r *ChunkReader) Previous() ([]string, error) {
	if r.fatal != nil {
		return nil, r.fatal
	}

	buf := r.buf
	pos := r.position
	if r.lastDir == Forward {
		// Step back over the chunk Next returned.
		pos -= r.lastLen
	}

	if pos <= 0 {
		prev, err := LoadBackward(r.src, r.hist, buf.Seq, r.chunkSize, r.delim)
		if errors.Is(err, ErrBeginningReached) {
			r.position = 0
			r.lastDir = Backward
			r.lastLen = 0
			r.state = AtBeginning
			return nil, nil
		}
		if err != nil {
			return nil, r.fail(err)
		}

		r.log.Debugf("restored buffer %d: %d lines, bytes [%d, %d)", prev.Seq, len(prev.Lines), prev.Start, prev.End)
		buf = prev
		pos = len(prev.Lines)
	}

	// Chunks start on multiples of the chunk size. Only the last chunk of the
	// input can be shorter.
	start := (pos - 1) / r.chunkSize * r.chunkSize
	r.buf = buf
	r.position = start
	r.lastDir = Backward
	r.lastLen = pos - start
	r.state = Ready
	return slices.Clone(buf.Lines[start:pos]), nil
}

// loadNext loads the buffer after the resident one. Buffers that were loaded
// before are restored from history, new ones are read from the frontier.
func (r *ChunkReader) loadNext() (*Buffer, error) {
	seq := r.buf.Seq + 1
	if seq <= r.hist.Last() {
		buf, err := LoadRecorded(r.src, r.hist, seq, r.chunkSize, r.delim)
		if err != nil {
			return nil, err
		}
		r.log.Debugf("restored buffer %d: %d lines, bytes [%d, %d)", buf.Seq, len(buf.Lines), buf.Start, buf.End)
		return buf, nil
	}

	buf, carry, err := LoadForward(r.src, r.buf.Seq, r.chunkSize, r.budget, r.carry, r.delim)
	if err != nil {
		return nil, err
	}
	if buf.Remaining > 0 && (len(buf.Lines) == 0 || len(buf.Lines)%r.chunkSize != 0) {
		return nil, fmt.Errorf("%w: buffer %d has %d lines, not a multiple of %d", ErrInvariant, buf.Seq, len(buf.Lines), r.chunkSize)
	}

	r.install(buf, carry)
	r.log.Debugf("loaded buffer %d: %d lines, bytes [%d, %d), %d overflow lines, %d fragment bytes",
		buf.Seq, len(buf.Lines), buf.Start, buf.End, len(carry.Overflow), len(carry.Fragment))
	return buf, nil
}

// fail records invariant violations so the reader refuses further use. Read
// errors leave the reader as it was.
func (r *ChunkReader) fail(err error) error {
	if errors.Is(err, ErrInvariant) {
		r.fatal = err
	}
	return err
}

// Close releases the input file.
func (r *ChunkReader) Close() error {
	return r.src.Close()
}
