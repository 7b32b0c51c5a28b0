// Package board implements the sticky-note interaction state machine: free
// dragging, resizing with a size floor, and a confirm-before-convert drop zone.
// It holds no notes itself; callers persist the effects it reports.
package board

import (
	"fmt"
	"math"
	"sync"

	"github.com/ophion/companion/internal/domain/entities"
)

// State of the interaction
type State string

const (
	StateIdle                 State = "IDLE"
	StateDragging             State = "DRAGGING"
	StateDroppedOnBoard       State = "DROPPED_ON_BOARD"
	StateDroppedInConvertZone State = "DROPPED_IN_CONVERT_ZONE"
	StateResizing             State = "RESIZING"
)

// Fallback note size when a note carries none
const (
	DefaultNoteWidth  = 250.0
	DefaultNoteHeight = 200.0
)

// MaxTitleLength is the rune count kept when a note becomes a task title
const MaxTitleLength = 50

// Point is a pointer position in board coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry describes the board and the resize floor
type Geometry struct {
	Height      float64
	ConvertZone float64
	MinWidth    float64
	MinHeight   float64
}

// DefaultGeometry is used when the client never reports its board size
func DefaultGeometry() Geometry {
	return Geometry{Height: 800, ConvertZone: 80, MinWidth: 200, MinHeight: 150}
}

// Effect is the note geometry after a pointer move
type Effect struct {
	NoteID     string  `json:"noteId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ZoneActive bool    `json:"zoneActive"`
}

// Outcome is reported when the pointer is released
type Outcome struct {
	Effect
	// Drop is DROPPED_ON_BOARD or DROPPED_IN_CONVERT_ZONE after a drag and
	// empty after a resize.
	Drop                 State `json:"drop,omitempty"`
	ConfirmationRequired bool  `json:"confirmationRequired"`
}

// Engine tracks one board's interaction. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	geo Geometry

	state  State
	noteID string
	offset Point
	start  Point
	startW float64
	startH float64
	cur    Effect

	pending string
}

// NewEngine creates an idle engine
func NewEngine(geo Geometry) *Engine {
	def := DefaultGeometry()
	if geo.Height <= 0 {
		geo.Height = def.Height
	}
	if geo.MinWidth <= 0 {
		geo.MinWidth = def.MinWidth
	}
	if geo.MinHeight <= 0 {
		geo.MinHeight = def.MinHeight
	}
	return &Engine{geo: geo, state: StateIdle}
}

// SetBoardHeight records the rendered board height. Non-positive values
// restore the default.
func (e *Engine) SetBoardHeight(h float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h <= 0 {
		h = DefaultGeometry().Height
	}
	e.geo.Height = h
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) ZoneActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateDragging && e.cur.ZoneActive
}

// PendingConversion returns the note awaiting confirmation, if any
func (e *Engine) PendingConversion() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending, e.pending != ""
}

// BeginDrag captures the pointer offset from the note's origin
func (e *Engine) BeginDrag(note entities.Note, pointer Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.canBegin(); err != nil {
		return err
	}

	e.state = StateDragging
	e.noteID = note.ID
	e.offset = Point{X: pointer.X - note.X, Y: pointer.Y - note.Y}
	e.cur = Effect{
		NoteID: note.ID,
		X:      note.X,
		Y:      note.Y,
		Width:  orDefault(note.Width, DefaultNoteWidth),
		Height: orDefault(note.Height, DefaultNoteHeight),
	}
	e.cur.ZoneActive = e.inZone(e.cur)
	return nil
}

// BeginResize captures the pointer and the note size at resize start
func (e *Engine) BeginResize(note entities.Note, pointer Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.canBegin(); err != nil {
		return err
	}

	e.state = StateResizing
	e.noteID = note.ID
	e.start = pointer
	e.startW = orDefault(note.Width, DefaultNoteWidth)
	e.startH = orDefault(note.Height, DefaultNoteHeight)
	e.cur = Effect{NoteID: note.ID, X: note.X, Y: note.Y, Width: e.startW, Height: e.startH}
	return nil
}

// Move applies a pointer position to the active drag or resize
func (e *Engine) Move(pointer Point) (Effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateDragging:
		e.cur.X = pointer.X - e.offset.X
		e.cur.Y = pointer.Y - e.offset.Y
		e.cur.ZoneActive = e.inZone(e.cur)
	case StateResizing:
		e.cur.Width = math.Max(e.geo.MinWidth, e.startW+(pointer.X-e.start.X))
		e.cur.Height = math.Max(e.geo.MinHeight, e.startH+(pointer.Y-e.start.Y))
	default:
		return Effect{}, fmt.Errorf("%w: move while %s", entities.ErrInvalidTransition, e.state)
	}
	return e.cur, nil
}

// Release ends the interaction. A drop in the convert zone leaves a pending
// conversion that must be confirmed or cancelled.
func (e *Engine) Release() (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := Outcome{Effect: e.cur}
	switch e.state {
	case StateDragging:
		if e.cur.ZoneActive {
			out.Drop = StateDroppedInConvertZone
			out.ConfirmationRequired = true
			e.pending = e.noteID
		} else {
			out.Drop = StateDroppedOnBoard
		}
	case StateResizing:
	default:
		return Outcome{}, fmt.Errorf("%w: release while %s", entities.ErrInvalidTransition, e.state)
	}

	e.state = StateIdle
	e.noteID = ""
	e.cur.ZoneActive = false
	return out, nil
}

// ConfirmConversion consumes the pending conversion and returns its note
func (e *Engine) ConfirmConversion() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == "" {
		return "", entities.ErrNoPendingConversion
	}
	id := e.pending
	e.pending = ""
	return id, nil
}

// CancelConversion discards the pending conversion
func (e *Engine) CancelConversion() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == "" {
		return entities.ErrNoPendingConversion
	}
	e.pending = ""
	return nil
}

func (e *Engine) canBegin() error {
	if e.state != StateIdle {
		return fmt.Errorf("%w: already %s", entities.ErrInvalidTransition, e.state)
	}
	if e.pending != "" {
		return fmt.Errorf("%w: conversion of %s awaits confirmation", entities.ErrInvalidTransition, e.pending)
	}
	return nil
}

func (e *Engine) inZone(fx Effect) bool {
	return fx.Y+fx.Height > e.geo.Height-e.geo.ConvertZone
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
