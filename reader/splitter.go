package reader

import "bytes"

// SplitLines splits span into lines on delim. A fragment carried over from a
// previous read is prepended to the first line.
//
// If the data does not end with delim and more is true, the last piece is an
// incomplete line: it is returned as the next fragment instead of a line. If
// more is false the last piece is the final line of the input, which does not
// need a trailing delimiter.
func SplitLines(span, fragment []byte, more bool, delim byte) (lines []string, next []byte) {
	data := span
	if len(fragment) > 0 {
		data = make([]byte, 0, len(fragment)+len(span))
		data = append(data, fragment...)
		data = append(data, span...)
	}

	if len(data) == 0 {
		return nil, nil
	}

	lines = make([]string, 0, bytes.Count(data, []byte{delim})+1)
	for {
		i := bytes.IndexByte(data, delim)
		if i < 0 {
			break
		}
		lines = append(lines, string(data[:i]))
		data = data[i+1:]
	}

	if len(data) == 0 {
		return lines, nil
	}
	if more {
		// Copy so the fragment doesn't pin the whole read buffer.
		return lines, bytes.Clone(data)
	}
	return append(lines, string(data)), nil
}

// spanSize returns how many bytes lines took up in the input, counting one
// delimiter per line.
func spanSize(lines []string) int64 {
	var n int64
	for _, line := range lines {
		n += int64(len(line)) + 1
	}
	return n
}
