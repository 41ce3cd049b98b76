package playback

import (
	"sync"

	"github.com/rs/zerolog"
)

// State is the playback state.
type State int

const (
	Paused State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// Media is the underlying player the loop starts and stops alongside the
// redraw schedule.
type Media interface {
	Play()
	Pause()
}

// Loop redraws on every scheduler tick while playing.
//
// Every tick checks the state under the same lock Pause takes, so once
// Pause returns no redraw is running and none will start. render must not
// call Play or Pause.
type Loop struct {
	transition sync.Mutex

	mu     sync.Mutex
	state  State
	sched  Scheduler
	media  Media
	render func()
	logger zerolog.Logger
}

// NewLoop creates a paused loop.
func NewLoop(sched Scheduler, media Media, render func(), logger zerolog.Logger) *Loop {
	return &Loop{
		sched:  sched,
		media:  media,
		render: render,
		logger: logger.With().Str("component", "playback").Logger(),
	}
}

// Play starts media playback and the redraw schedule.
func (l *Loop) Play() {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.Lock()
	if l.state == Playing {
		l.mu.Unlock()
		return
	}
	l.state = Playing
	l.mu.Unlock()

	l.media.Play()
	l.sched.Start(l.tick)
	l.logger.Debug().Msg("playing")
}

// Pause stops the redraw schedule and pauses media playback.
func (l *Loop) Pause() {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.Lock()
	if l.state == Paused {
		l.mu.Unlock()
		return
	}
	l.state = Paused
	l.mu.Unlock()

	l.sched.Stop()
	l.media.Pause()
	l.logger.Debug().Msg("paused")
}

// Toggle flips between playing and paused and returns the new state.
func (l *Loop) Toggle() State {
	if l.State() == Playing {
		l.Pause()
		return Paused
	}
	l.Play()
	return Playing
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Playing {
		return
	}
	l.render()
}
