package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"main/internal/bus"
	"main/internal/codec"
)

// SourceConfig controls reading a recorded run back as an input stream.
type SourceConfig struct {
	Dir             string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c SourceConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid wal source config: Dir is empty")
	}
	if c.MaxPayloadSize < 0 {
		return fmt.Errorf("invalid wal source config: MaxPayloadSize must be >= 0")
	}
	return nil
}

// Source replays the records of a recorded run in segment order. Segment
// names sort by open time, so file order is record order.
type Source struct {
	cfg    SourceConfig
	files  []string
	idx    int
	file   *os.File
	reader *Reader
}

// NewSource lists the run's segments and prepares sequential decoding.
func NewSource(cfg SourceConfig) (*Source, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := collectSegments(cfg.Dir, cfg.FilePrefix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no wal segments under %s with prefix %q", cfg.Dir, cfg.FilePrefix)
	}
	return &Source{cfg: cfg, files: files}, nil
}

// Next decodes the next recorded message. It returns io.EOF after the last
// record of the last segment.
func (s *Source) Next(ctx context.Context) (bus.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return bus.Message{}, err
		}
		if s.reader == nil {
			if s.idx >= len(s.files) {
				return bus.Message{}, io.EOF
			}
			file, err := os.Open(s.files[s.idx])
			if err != nil {
				return bus.Message{}, err
			}
			s.file = file
			s.reader = NewReader(file, ReaderOptions{
				DisableChecksum: s.cfg.DisableChecksum,
				MaxPayloadSize:  s.cfg.MaxPayloadSize,
			})
		}

		header, payload, err := s.reader.Next()
		if err == io.EOF {
			s.closeCurrent()
			s.idx++
			continue
		}
		if err != nil {
			return bus.Message{}, fmt.Errorf("read %s: %w", s.files[s.idx], err)
		}

		p, err := codec.DecodePayload(header.Topic, payload)
		if err != nil {
			return bus.Message{}, fmt.Errorf("decode %s: %w", s.files[s.idx], err)
		}
		return bus.Message{Header: header, Payload: p}, nil
	}
}

// Close releases the currently open segment.
func (s *Source) Close() error {
	s.closeCurrent()
	return nil
}

func (s *Source) closeCurrent() {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	s.reader = nil
}

func collectSegments(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	want := prefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, want) || !strings.HasSuffix(name, ".wal") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
