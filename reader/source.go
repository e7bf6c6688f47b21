package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadRequest is an absolute read against a ByteSource.
type ReadRequest struct {
	Offset int64
	Length int
}

// ByteSource is a sized, random access view of the input file. Every read is
// an explicit offset and length. The source only remembers where the most
// recent read ended.
type ByteSource struct {
	r      io.ReaderAt
	closer io.Closer
	size   int64
	offset int64
}

// OpenByteSource opens the file at path. The size is captured once and stays
// fixed for the lifetime of the source.
func OpenByteSource(path string) (*ByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrOpen, err), f.Close())
	}
	if info.IsDir() {
		return nil, errors.Join(fmt.Errorf("%w: %s is a directory", ErrOpen, path), f.Close())
	}

	src := NewByteSource(f, info.Size())
	src.closer = f
	return src, nil
}

// NewByteSource wraps r, which must hold exactly size bytes.
func NewByteSource(r io.ReaderAt, size int64) *ByteSource {
	return &ByteSource{r: r, size: size}
}

// Size returns the total size of the input in bytes.
func (s *ByteSource) Size() int64 {
	return s.size
}

// Offset returns the position right after the most recently read span.
func (s *ByteSource) Offset() int64 {
	return s.offset
}

// Read performs req and returns the bytes read. Fewer than req.Length bytes
// are only returned when the request runs past the end of the input.
func (s *ByteSource) Read(req ReadRequest) ([]byte, error) {
	if req.Offset < 0 || req.Length < 0 {
		return nil, fmt.Errorf("%w: invalid read of %d bytes at %d", ErrRead, req.Length, req.Offset)
	}

	want := int64(req.Length)
	if avail := s.size - req.Offset; avail < want {
		want = max(avail, 0)
	}
	if want == 0 {
		s.offset = min(req.Offset, s.size)
		return nil, nil
	}

	buf := make([]byte, want)
	n, err := s.r.ReadAt(buf, req.Offset)
	// ReaderAt may report io.EOF alongside a full read of the final bytes.
	if errors.Is(err, io.EOF) && int64(n) == want {
		err = nil
	}
	if err == nil && int64(n) < want {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			// The input got shorter after it was opened.
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read %d of %d bytes at offset %d: %w", ErrRead, n, want, req.Offset, err)
	}

	s.offset = req.Offset + int64(n)
	return buf[:n], nil
}

// ReadForward reads up to limit bytes starting where the previous read ended.
func (s *ByteSource) ReadForward(limit int) ([]byte, error) {
	return s.Read(ReadRequest{Offset: s.offset, Length: limit})
}

// ReadBackwardsFrom reads up to limit bytes that end right before fromPos. It
// returns the data and the offset the data starts at. Reads are capped by the
// start of the input.
func (s *ByteSource) ReadBackwardsFrom(fromPos int64, limit int) ([]byte, int64, error) {
	if fromPos < 0 || fromPos > s.size {
		return nil, fromPos, fmt.Errorf("%w: cannot read backwards from %d", ErrRead, fromPos)
	}

	toRead := min(fromPos, int64(limit))
	start := fromPos - toRead
	data, err := s.Read(ReadRequest{Offset: start, Length: int(toRead)})
	if err != nil {
		return nil, fromPos, err
	}
	return data, start, nil
}

// Close releases the underlying file, if the source owns one.
func (s *ByteSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
