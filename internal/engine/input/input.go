// Package input turns SDL2 events into player commands.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Action is a player command.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionPauseResume
	ActionRestart
	ActionStepForward
	ActionReload
	ActionFullscreen
	ActionToggleCrossfade
	ActionSnapshot
)

// Event types for player use
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventDrop
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Action Action
	Width  int
	Height int
	Path   string // Dropped file or directory
}

// Keys maps scancodes to actions.
var Keys = map[sdl.Scancode]Action{
	sdl.SCANCODE_ESCAPE: ActionQuit,
	sdl.SCANCODE_Q:      ActionQuit,
	sdl.SCANCODE_SPACE:  ActionPauseResume,
	sdl.SCANCODE_HOME:   ActionRestart,
	sdl.SCANCODE_RIGHT:  ActionStepForward,
	sdl.SCANCODE_R:      ActionReload,
	sdl.SCANCODE_F:      ActionFullscreen,
	sdl.SCANCODE_C:      ActionToggleCrossfade,
	sdl.SCANCODE_S:      ActionSnapshot,
}

// Input handles all input processing.
type Input struct {
	events []Event
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events. It returns true if the player should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit, Action: ActionQuit})
			return true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
				continue
			}
			i.events = append(i.events, Event{
				Type:   EventKeyDown,
				Key:    e.Keysym.Scancode,
				Action: Keys[e.Keysym.Scancode],
			})

		case *sdl.DropEvent:
			if e.Type == sdl.DROPFILE && e.File != "" {
				i.events = append(i.events, Event{Type: EventDrop, Path: e.File})
			}
		}
	}

	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// Triggered reports whether action was requested this frame.
func (i *Input) Triggered(action Action) bool {
	for _, e := range i.events {
		if e.Action == action {
			return true
		}
	}
	return false
}
