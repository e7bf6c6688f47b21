// Package config loads chunkview settings from a JSON file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
)

// ErrConfig indicates a config file that cannot be read or holds bad values.
var ErrConfig = errors.New("invalid config")

// EnvVar names the environment variable holding a config file path.
const EnvVar = "CHUNKVIEW_CONFIG"

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "conf.json"

type Config struct {
	// Bytes read per buffer load.
	BufferSize int
	// Lines per chunk.
	ChunkSize int
	// Column separator.
	Separator string
	// Line delimiter.
	Delimiter byte

	HighlightLines bool
	Header         bool
	Regex          bool
	Search         string
}

func Default() Config {
	return Config{
		BufferSize:     64 << 20,
		ChunkSize:      1000,
		Separator:      ",",
		Delimiter:      '\n',
		HighlightLines: true,
	}
}

// Parse reads a JSON config document. Missing keys keep their defaults.
func Parse(data []byte) (Config, error) {
	c := Default()
	if !gjson.ValidBytes(data) {
		return c, fmt.Errorf("%w: not valid JSON", ErrConfig)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return c, fmt.Errorf("%w: expected a JSON object", ErrConfig)
	}

	if v := doc.Get("buffer_size"); v.Exists() {
		var (
			size int
			err  error
		)
		if v.Type == gjson.Number {
			size, err = megabytes(v.Float())
		} else {
			size, err = ParseSize(v.String())
		}
		if err != nil {
			return c, err
		}
		c.BufferSize = size
	}

	if v := doc.Get("chunk_size"); v.Exists() {
		if v.Type != gjson.Number || v.Int() <= 0 || float64(v.Int()) != v.Float() {
			return c, fmt.Errorf("%w: chunk_size must be a positive integer, got %s", ErrConfig, v.Raw)
		}
		c.ChunkSize = int(v.Int())
	}

	if v := doc.Get("separator"); v.Exists() {
		if v.Type != gjson.String || v.String() == "" {
			return c, fmt.Errorf("%w: separator must be a non-empty string, got %s", ErrConfig, v.Raw)
		}
		c.Separator = v.String()
	}

	if v := doc.Get("delimiter"); v.Exists() {
		d, err := ParseDelimiter(v.String())
		if v.Type != gjson.String || err != nil {
			return c, fmt.Errorf("%w: delimiter must be a single byte, got %s", ErrConfig, v.Raw)
		}
		c.Delimiter = d
	}

	for key, dst := range map[string]*bool{
		"highlightLines": &c.HighlightLines,
		"header":         &c.Header,
		"regex":          &c.Regex,
	} {
		if v := doc.Get(key); v.Exists() {
			if !v.IsBool() {
				return c, fmt.Errorf("%w: %s must be true or false, got %s", ErrConfig, key, v.Raw)
			}
			*dst = v.Bool()
		}
	}

	if v := doc.Get("search"); v.Exists() {
		c.Search = v.String()
	}

	return c, nil
}

// Load reads and parses the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("%w: %w", ErrConfig, err)
	}

	c, err := Parse(data)
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Resolve picks the config file to load: flagPath if set, then the path in
// $CHUNKVIEW_CONFIG, then conf.json in the working directory if it exists.
// An empty result means no config file.
func Resolve(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvVar); p != "" {
		return p
	}
	if fi, err := os.Stat(DefaultFile); err == nil && fi.Mode().IsRegular() {
		return DefaultFile
	}
	return ""
}

// ParseSize parses a buffer size. A plain number is a count of mebibytes,
// anything else is parsed as a human readable size like "512KB" or "64MiB".
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return megabytes(f)
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad buffer size %q: %w", ErrConfig, s, err)
	}
	if n == 0 || n > uint64(maxSize) {
		return 0, fmt.Errorf("%w: buffer size %q out of range", ErrConfig, s)
	}
	return int(n), nil
}

const maxSize = 1 << 40

func megabytes(f float64) (int, error) {
	n := f * (1 << 20)
	if n < 1 || n > maxSize {
		return 0, fmt.Errorf("%w: buffer size %v MiB out of range", ErrConfig, f)
	}
	return int(n), nil
}

// ParseDelimiter parses a line delimiter. Besides a single byte it accepts
// the escapes \n, \r, \t and \0.
func ParseDelimiter(s string) (byte, error) {
	switch s {
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	case `\t`:
		return '\t', nil
	case `\0`:
		return 0, nil
	}
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: delimiter must be a single byte, got %q", ErrConfig, s)
	}
	return s[0], nil
}
