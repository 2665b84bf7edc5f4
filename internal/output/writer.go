// Package output appends transcription segments to daily markdown files.
package output

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/errors"
	"github.com/erikh/hoover/internal/logging"
	"github.com/erikh/hoover/internal/stt"
)

// trailingWordCount bounds the dedup memory: overlapping capture windows
// repeat at most a few seconds of speech across a boundary.
const trailingWordCount = 20

// Writer routes segments into <dir>/<YYYY-MM-DD>.md, emitting a day header
// per file and optional minute headings, and suppresses text repeated from
// the previous segment's tail by the window overlap.
type Writer struct {
	dir        string
	timestamps bool

	currentDate string // YYYY-MM-DD of the last written segment
	lastMinute  string // HH:MM of the last emitted minute heading
	// trailingWords holds the last words written, lowercased, for overlap
	// deduplication.
	trailingWords []string

	log *slog.Logger
}

// NewWriter creates the output directory and the writer.
func NewWriter(cfg *conf.OutputConfig) (*Writer, error) {
	dir := conf.ExpandPath(cfg.Directory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("output").
			Category(errors.CategoryOutput).
			Context("dir", dir).
			Build()
	}

	return &Writer{
		dir:        dir,
		timestamps: cfg.Timestamps,
		log:        logging.ForService("output"),
	}, nil
}

// WriteSegment appends one segment, tagged with the speaker when known.
func (w *Writer) WriteSegment(segment *stt.Segment, speaker string) error {
	local := segment.Timestamp.Local()
	date := local.Format("2006-01-02")
	minute := local.Format("15:04")
	path := filepath.Join(w.dir, date+".md")

	if date != w.currentDate {
		w.currentDate = date
		w.lastMinute = ""
		w.trailingWords = nil
		if err := w.writeDayHeader(path, local); err != nil {
			return err
		}
	}

	text := w.deduplicateOverlap(segment.Text)
	if text == "" {
		return nil
	}

	var entry strings.Builder
	if w.timestamps && minute != w.lastMinute {
		fmt.Fprintf(&entry, "## %s\n\n", minute)
		w.lastMinute = minute
	}
	if speaker != "" {
		fmt.Fprintf(&entry, "**%s:** %s\n", speaker, text)
	} else {
		entry.WriteString(text + "\n")
	}

	if err := w.appendEntry(path, entry.String()); err != nil {
		return err
	}

	w.rememberTrailingWords(text)
	w.log.Debug("wrote segment", "path", path, "words", len(strings.Fields(text)))
	return nil
}

// writeDayHeader creates the daily file with its header. A file that already
// exists is being resumed and keeps its header.
func (w *Writer) writeDayHeader(path string, local time.Time) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	header := fmt.Sprintf("# %s\n\n", local.Format("Monday, January 2, 2006"))
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return errors.New(err).
			Component("output").
			Category(errors.CategoryOutput).
			Context("path", path).
			Build()
	}
	return nil
}

// appendEntry appends atomically in create-or-append mode; daily files are
// never truncated.
func (w *Writer) appendEntry(path, entry string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.New(err).
			Component("output").
			Category(errors.CategoryOutput).
			Context("path", path).
			Build()
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return errors.New(err).
			Component("output").
			Category(errors.CategoryOutput).
			Context("path", path).
			Build()
	}
	return nil
}

// rememberTrailingWords keeps the last words of the written text, lowercased.
func (w *Writer) rememberTrailingWords(text string) {
	words := strings.Fields(text)
	if len(words) > trailingWordCount {
		words = words[len(words)-trailingWordCount:]
	}

	w.trailingWords = make([]string, len(words))
	for i, word := range words {
		w.trailingWords[i] = strings.ToLower(word)
	}
}

// deduplicateOverlap removes the longest prefix of the new text that repeats
// the tail of the previously written text.
func (w *Writer) deduplicateOverlap(text string) string {
	if len(w.trailingWords) == 0 {
		return text
	}

	newWords := strings.Fields(text)
	if len(newWords) == 0 {
		return ""
	}

	maxOverlap := len(w.trailingWords)
	if len(newWords) < maxOverlap {
		maxOverlap = len(newWords)
	}

	best := 0
	for k := 1; k <= maxOverlap; k++ {
		if tailMatchesPrefix(w.trailingWords, newWords, k) {
			best = k
		}
	}

	if best == 0 {
		return text
	}
	return strings.Join(newWords[best:], " ")
}

func tailMatchesPrefix(trailing []string, newWords []string, k int) bool {
	tail := trailing[len(trailing)-k:]
	for i := 0; i < k; i++ {
		if tail[i] != strings.ToLower(newWords[i]) {
			return false
		}
	}
	return true
}
