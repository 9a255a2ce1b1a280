// Package dump reads LIGGGHTS/LAMMPS custom dump files and extracts
// charge throw trajectories from them.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	markerTimestep  = "ITEM: TIMESTEP"
	markerNumAtoms  = "ITEM: NUMBER OF ATOMS"
	markerBoxBounds = "ITEM: BOX BOUNDS"
	markerAtoms     = "ITEM: ATOMS"

	boxBoundLines = 3
	maxLineBytes  = 1 << 20
	// maxPrealloc caps allocation driven by the declared atom count.
	maxPrealloc = 1 << 16
)

// Atom is the planar state of one particle in a frame.
type Atom struct {
	ID    int64
	X     float64
	Y     float64
	Speed float64
}

// Frame is one parsed dump snapshot. Atoms keep file order with unique ids;
// a repeated id keeps its first position and its last values.
type Frame struct {
	Timestep int64
	Atoms    []Atom
}

// FrameError reports a malformed frame. The parser has already moved past it,
// so the caller may keep calling Next.
type FrameError struct {
	Line     int
	Timestep int64 // -1 when the timestep itself could not be read
	Reason   string
	Err      error
}

func (e *FrameError) Error() string {
	msg := fmt.Sprintf("dump line %d: %s", e.Line, e.Reason)
	if e.Timestep >= 0 {
		msg = fmt.Sprintf("dump line %d (timestep %d): %s", e.Line, e.Timestep, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// columns holds field positions of the values read from each atom line.
type columns struct {
	id, x, y, vx, vy int
	width            int
}

// defaultColumns is the "id x y z vx vy vz" layout written by the generated deck.
var defaultColumns = columns{id: 0, x: 1, y: 2, vx: 4, vy: 5, width: 6}

// Parser streams frames from a dump.
type Parser struct {
	sc      *bufio.Scanner
	line    int
	pending *string
	done    bool
}

// NewParser returns a parser reading from r.
func NewParser(r io.Reader) *Parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Parser{sc: sc}
}

// Next returns the next frame. It returns io.EOF when no frames remain,
// a *FrameError for a malformed frame, and any other error when reading fails.
func (p *Parser) Next() (Frame, error) {
	if p.done {
		return Frame{}, io.EOF
	}

	// Seek to the next frame start.
	for {
		text, err := p.readLine()
		if err != nil {
			return Frame{}, err
		}
		if isMarker(text, markerTimestep) {
			break
		}
	}

	frame := Frame{Timestep: -1}
	ts, err := p.readInt()
	if err != nil {
		return Frame{}, p.frameError(frame, "invalid timestep", err)
	}
	frame.Timestep = ts

	if err := p.expect(markerNumAtoms); err != nil {
		return Frame{}, p.frameError(frame, "missing atom count marker", err)
	}
	count, err := p.readInt()
	if err != nil {
		return Frame{}, p.frameError(frame, "invalid atom count", err)
	}
	if count < 0 {
		return Frame{}, p.frameError(frame, fmt.Sprintf("negative atom count %d", count), nil)
	}

	if err := p.expect(markerBoxBounds); err != nil {
		return Frame{}, p.frameError(frame, "missing box bounds", err)
	}
	for i := 0; i < boxBoundLines; i++ {
		if _, err := p.frameLine(); err != nil {
			return Frame{}, p.frameError(frame, "truncated box bounds", err)
		}
	}

	header, err := p.frameLine()
	if err != nil {
		return Frame{}, p.frameError(frame, "missing atoms header", err)
	}
	if !isMarker(header, markerAtoms) {
		return Frame{}, p.frameError(frame, fmt.Sprintf("expected %q, got %q", markerAtoms, header), nil)
	}
	cols, err := parseColumns(strings.Fields(strings.TrimPrefix(strings.TrimSpace(header), markerAtoms)))
	if err != nil {
		return Frame{}, p.frameError(frame, "unusable atoms header", err)
	}

	hint := min(count, maxPrealloc)
	frame.Atoms = make([]Atom, 0, hint)
	seen := make(map[int64]int, hint)
	for i := int64(0); i < count; i++ {
		text, err := p.frameLine()
		if err != nil {
			return Frame{}, p.frameError(frame, fmt.Sprintf("truncated after %d of %d atoms", i, count), err)
		}
		atom, err := parseAtom(text, cols)
		if err != nil {
			return Frame{}, p.frameError(frame, "malformed atom line", err)
		}
		if idx, ok := seen[atom.ID]; ok {
			frame.Atoms[idx] = atom
			continue
		}
		seen[atom.ID] = len(frame.Atoms)
		frame.Atoms = append(frame.Atoms, atom)
	}

	return frame, nil
}

var (
	errUnexpectedMarker = errors.New("unexpected frame start")
	errMissingColumn    = errors.New("missing column")
)

// readError is an I/O failure of the underlying reader, as opposed to a
// malformed frame.
type readError struct {
	err error
}

func (e *readError) Error() string { return "read dump: " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

// readLine returns the next line, replaying a line pushed back by frameLine.
func (p *Parser) readLine() (string, error) {
	if p.pending != nil {
		text := *p.pending
		p.pending = nil
		return text, nil
	}
	if !p.sc.Scan() {
		p.done = true
		if err := p.sc.Err(); err != nil {
			return "", &readError{err: err}
		}
		return "", io.EOF
	}
	p.line++
	return p.sc.Text(), nil
}

// frameLine reads a line that belongs to the current frame. A frame start
// here means the current frame was truncated; the line is kept for the next call.
func (p *Parser) frameLine() (string, error) {
	text, err := p.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	if isMarker(text, markerTimestep) {
		p.pending = &text
		return "", errUnexpectedMarker
	}
	return text, nil
}

func (p *Parser) readInt() (int64, error) {
	text, err := p.frameLine()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
}

func (p *Parser) expect(marker string) error {
	text, err := p.frameLine()
	if err != nil {
		return err
	}
	if !isMarker(text, marker) {
		return fmt.Errorf("got %q", text)
	}
	return nil
}

// frameError builds a FrameError. Reader failures pass through unchanged.
func (p *Parser) frameError(frame Frame, reason string, err error) error {
	var rerr *readError
	if errors.As(err, &rerr) {
		return err
	}
	return &FrameError{Line: p.line, Timestep: frame.Timestep, Reason: reason, Err: err}
}

func isMarker(text, marker string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), marker)
}

// parseColumns maps header names to positions. An empty header falls back
// to the default layout.
func parseColumns(names []string) (columns, error) {
	if len(names) == 0 {
		return defaultColumns, nil
	}
	pos := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	var cols columns
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{"id", &cols.id},
		{"x", &cols.x},
		{"y", &cols.y},
		{"vx", &cols.vx},
		{"vy", &cols.vy},
	} {
		i, ok := pos[c.name]
		if !ok {
			return columns{}, fmt.Errorf("%w %q", errMissingColumn, c.name)
		}
		*c.dst = i
		cols.width = max(cols.width, i+1)
	}
	return cols, nil
}

func parseAtom(text string, cols columns) (Atom, error) {
	fields := strings.Fields(text)
	if len(fields) < cols.width {
		return Atom{}, fmt.Errorf("%w: %d fields, need %d", errMissingColumn, len(fields), cols.width)
	}
	id, err := strconv.ParseInt(fields[cols.id], 10, 64)
	if err != nil {
		return Atom{}, err
	}
	var vals [4]float64
	for i, idx := range [4]int{cols.x, cols.y, cols.vx, cols.vy} {
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return Atom{}, err
		}
		vals[i] = v
	}
	return Atom{ID: id, X: vals[0], Y: vals[1], Speed: planarSpeed(vals[2], vals[3])}, nil
}
