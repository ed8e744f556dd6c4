// Package batch reads a line-oriented file as numbered batches, a few at a time.
package batch

import (
	"bufio"
	"io"
	"os"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
)

const maxLineBytes = 4 * 1024 * 1024

type Line struct {
	// Number is the absolute 1-based line number in the file.
	Number int
	Text   string
}

type Batch struct {
	ID    int
	Lines []Line
}

// Group is at most width batches read together.
type Group []Batch

// Reader yields groups until the file is exhausted. It cannot be rewound.
type Reader struct {
	f       *os.File
	sc      *bufio.Scanner
	size    int
	width   int
	nextID  int
	done    bool
	scanned int
}

func Open(path string, size, width int) (*Reader, error) {
	if size <= 0 {
		return nil, domain.Invalid("batch.size", "must be positive, got %d", size)
	}
	if width <= 0 {
		return nil, domain.Invalid("batch.concurrent_batches", "must be positive, got %d", width)
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.NotFoundError{Kind: "file", ID: path}
	}
	if err != nil {
		return nil, errors.Wrap(err, "open batch input")
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	return &Reader{f: f, sc: sc, size: size, width: width, nextID: 1}, nil
}

// Next returns the next group, or io.EOF once every line has been handed out.
// The last batch may be short; an empty file yields io.EOF straight away.
func (r *Reader) Next() (Group, error) {
	if r.done {
		return nil, io.EOF
	}

	var g Group
	for len(g) < r.width {
		b := Batch{ID: r.nextID}
		for len(b.Lines) < r.size && r.sc.Scan() {
			r.scanned++
			b.Lines = append(b.Lines, Line{
				Number: (b.ID-1)*r.size + len(b.Lines) + 1,
				Text:   r.sc.Text(),
			})
		}
		if err := r.sc.Err(); err != nil {
			r.done = true
			return g, errors.Wrapf(err, "read line %d", r.scanned+1)
		}
		if len(b.Lines) == 0 {
			r.done = true
			break
		}
		g = append(g, b)
		r.nextID++
		if len(b.Lines) < r.size {
			r.done = true
			break
		}
	}

	if len(g) == 0 {
		return nil, io.EOF
	}
	return g, nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}
