package replay

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/schema"
)

// Config names the tick files of one backtest. Files are classified by
// name: "trades" rows are trade prints, "bookTicker" rows are best quote
// updates. A .zip file must contain exactly one csv.
type Config struct {
	Symbol string   `json:"symbol"`
	Files  []string `json:"files"`
}

// Republisher replays recorded Binance csv ticks as a backtest source.
// It merges the trade and bookticker streams by event time, trade first on
// strictly earlier timestamps. The stream ends with io.EOF.
type Republisher struct {
	sym schema.Symbol

	trades *lineScanner
	books  *lineScanner

	pendingTrade *bus.Message
	pendingBook  *bus.Message
	skipped      int
}

// NewRepublisher opens the configured files. The symbol carries the scales
// used to parse decimal fields.
func NewRepublisher(cfg Config, sym schema.Symbol) (*Republisher, error) {
	var tradeFiles, bookFiles []string
	for _, path := range cfg.Files {
		name := filepath.Base(path)
		switch {
		case strings.Contains(name, "trades"):
			tradeFiles = append(tradeFiles, path)
		case strings.Contains(name, "bookTicker"), strings.Contains(name, "bookticker"):
			bookFiles = append(bookFiles, path)
		default:
			return nil, fmt.Errorf("replay: cannot classify file %s", path)
		}
	}
	if len(tradeFiles) == 0 && len(bookFiles) == 0 {
		return nil, fmt.Errorf("replay: no input files")
	}
	return &Republisher{
		sym:    sym,
		trades: &lineScanner{files: tradeFiles},
		books:  &lineScanner{files: bookFiles},
	}, nil
}

// Next returns the earliest pending tick across both streams.
func (r *Republisher) Next(ctx context.Context) (bus.Message, error) {
	if err := ctx.Err(); err != nil {
		return bus.Message{}, err
	}
	if err := r.fillTrade(); err != nil {
		return bus.Message{}, err
	}
	if err := r.fillBook(); err != nil {
		return bus.Message{}, err
	}

	switch {
	case r.pendingTrade == nil && r.pendingBook == nil:
		if r.skipped > 0 {
			logs.Warnf("replay finished, skipped %d malformed lines", r.skipped)
		}
		return bus.Message{}, io.EOF
	case r.pendingBook == nil,
		r.pendingTrade != nil && r.pendingTrade.Header.TsEvent < r.pendingBook.Header.TsEvent:
		msg := *r.pendingTrade
		r.pendingTrade = nil
		return msg, nil
	default:
		msg := *r.pendingBook
		r.pendingBook = nil
		return msg, nil
	}
}

// Close releases the open file handles.
func (r *Republisher) Close() error {
	r.trades.close()
	r.books.close()
	return nil
}

func (r *Republisher) fillTrade() error {
	for r.pendingTrade == nil {
		line, ok, err := r.trades.next()
		if err != nil {
			return fmt.Errorf("replay trades: %w", err)
		}
		if !ok {
			return nil
		}
		trade, ts, err := parseTradeLine(line, r.sym)
		if err != nil {
			r.skipped++
			continue
		}
		r.pendingTrade = &bus.Message{
			Header:  schema.EventHeader{Topic: schema.TopicTrade, TsEvent: ts, TsRecv: ts},
			Payload: trade,
		}
	}
	return nil
}

func (r *Republisher) fillBook() error {
	for r.pendingBook == nil {
		line, ok, err := r.books.next()
		if err != nil {
			return fmt.Errorf("replay bookticker: %w", err)
		}
		if !ok {
			return nil
		}
		book, ts, err := parseBookLine(line, r.sym)
		if err != nil {
			r.skipped++
			continue
		}
		r.pendingBook = &bus.Message{
			Header:  schema.EventHeader{Topic: schema.TopicBookTicker, TsEvent: ts, TsRecv: ts},
			Payload: book,
		}
	}
	return nil
}

// lineScanner reads the configured files in order, one line at a time.
type lineScanner struct {
	files   []string
	idx     int
	scanner *bufio.Scanner
	closers []io.Closer
	done    bool
}

func (s *lineScanner) next() (string, bool, error) {
	for {
		if s.done {
			return "", false, nil
		}
		if s.scanner == nil {
			if s.idx >= len(s.files) {
				s.done = true
				s.close()
				return "", false, nil
			}
			if err := s.open(s.files[s.idx]); err != nil {
				return "", false, err
			}
			s.idx++
		}
		if s.scanner.Scan() {
			return s.scanner.Text(), true, nil
		}
		if err := s.scanner.Err(); err != nil {
			return "", false, err
		}
		s.scanner = nil
		s.close()
	}
}

func (s *lineScanner) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, f)

	if filepath.Ext(path) != ".zip" {
		s.scanner = newScanner(f)
		return nil
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	archive, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("open zip %s: %w", path, err)
	}
	if len(archive.File) != 1 {
		return fmt.Errorf("zip %s holds %d files, want 1", path, len(archive.File))
	}
	rc, err := archive.File[0].Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", path, err)
	}
	s.closers = append(s.closers, rc)
	s.scanner = newScanner(rc)
	return nil
}

func (s *lineScanner) close() {
	for _, c := range s.closers {
		c.Close()
	}
	s.closers = nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return sc
}
