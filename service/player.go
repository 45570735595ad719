package service

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"macrostudio/models"
)

// Playback pacing
const (
	stepInterval = 500 * time.Millisecond // wait after any non-delay step
	minDelay     = 100 * time.Millisecond // floor for DELAY steps
	holdWindow   = 200 * time.Millisecond // how long a momentary press stays lit
	scrollWindow = 300 * time.Millisecond
)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The player never sleeps; it only arms timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FrameSink receives every visual state change. Publish is called with the
// player's lock held and must not block or call back into the player.
type FrameSink interface {
	Publish(frame models.PlaybackFrame)
}

// Player replays one action list against a virtual keyboard and mouse,
// publishing which keys and buttons are lit at each moment.
//
// All state changes happen under mu. Each run has a generation number; a timer
// armed during run N does nothing once the generation has moved on, and every
// armed timer is stopped when the run ends.
type Player struct {
	mu    sync.Mutex
	clock Clock
	sink  FrameSink

	status  models.PlaybackStatus
	actions []models.Action
	current int
	keys    map[string]bool
	buttons map[string]bool
	scroll  models.ScrollDirection

	generation uint64
	timerSeq   uint64
	timers     map[uint64]Timer
}

// NewPlayer creates an idle player. A nil clock uses real time; a nil sink
// discards frames.
func NewPlayer(clock Clock, sink FrameSink) *Player {
	if clock == nil {
		clock = realClock{}
	}
	return &Player{
		clock:   clock,
		sink:    sink,
		status:  models.PlaybackIdle,
		current: -1,
		keys:    make(map[string]bool),
		buttons: make(map[string]bool),
		timers:  make(map[uint64]Timer),
	}
}

// Start begins replaying a private copy of actions. It returns false and does
// nothing if a run is already in progress.
func (p *Player) Start(actions []models.Action) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == models.PlaybackRunning {
		return false
	}

	p.cancelTimersLocked()
	p.actions = append([]models.Action(nil), actions...)
	p.clearStateLocked()
	p.status = models.PlaybackRunning

	log.Printf("▶️ Playback started (%d actions)", len(p.actions))
	p.runStepLocked(0)
	return true
}

// Stop cancels the run. Lit keys and buttons stay as they are; only the scroll
// indicator is cleared.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked(models.PlaybackIdle)
}

// Reset stops the run and clears every piece of visual state.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked(models.PlaybackIdle)
	p.clearStateLocked()
	p.publishLocked()
}

// Close releases all timers. The player can still be started again.
func (p *Player) Close() {
	p.Reset()
}

// IsPlaying reports whether a run is in progress.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status == models.PlaybackRunning
}

// Frame returns the current visual state.
func (p *Player) Frame() models.PlaybackFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameLocked()
}

// Attach hands the current frame to fn while no step can run, so a subscriber
// that registers inside fn sees every later frame and misses none in between.
func (p *Player) Attach(fn func(models.PlaybackFrame)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.frameLocked())
}

func (p *Player) runStepLocked(i int) {
	if p.status != models.PlaybackRunning {
		return
	}
	if i >= len(p.actions) {
		p.haltLocked(models.PlaybackFinished)
		log.Printf("⏹️ Playback finished")
		return
	}

	p.current = i
	p.scroll = models.ScrollNone
	wait := stepInterval

	switch s := p.actions[i].Step().(type) {
	case models.KeyStep:
		p.pressLocked(p.keys, CanonicalKeyLabel(s.Key), s.State)
	case models.ClickStep:
		p.pressLocked(p.buttons, string(s.Button), s.State)
	case models.ScrollStep:
		if s.Amount != 0 {
			p.scroll = models.ScrollUp
			if s.Amount < 0 {
				p.scroll = models.ScrollDown
			}
			p.scheduleLocked(scrollWindow, func() {
				p.scroll = models.ScrollNone
				p.publishLocked()
			})
		}
	case models.DelayStep:
		wait = max(minDelay, millis(s.Duration))
	case models.MoveStep:
		// not rendered
	}

	p.publishLocked()
	p.scheduleLocked(wait, func() {
		p.runStepLocked(i + 1)
	})
}

func (p *Player) pressLocked(set map[string]bool, label string, state models.ActionState) {
	if label == "" {
		return
	}
	switch state {
	case models.StateDown:
		set[label] = true
	case models.StateUp:
		delete(set, label)
	default:
		set[label] = true
		p.scheduleLocked(holdWindow, func() {
			delete(set, label)
			p.publishLocked()
		})
	}
}

// scheduleLocked arms a timer owned by the current run. The callback runs
// with mu held, and only if the run is still the current one.
func (p *Player) scheduleLocked(d time.Duration, fn func()) {
	gen := p.generation
	p.timerSeq++
	id := p.timerSeq
	p.timers[id] = p.clock.AfterFunc(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.timers, id)
		if gen != p.generation {
			return
		}
		fn()
	})
}

func (p *Player) haltLocked(status models.PlaybackStatus) {
	p.cancelTimersLocked()
	p.status = status
	p.scroll = models.ScrollNone
	p.publishLocked()
}

func (p *Player) cancelTimersLocked() {
	p.generation++
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}

func (p *Player) clearStateLocked() {
	p.current = -1
	p.scroll = models.ScrollNone
	clear(p.keys)
	clear(p.buttons)
}

func (p *Player) publishLocked() {
	if p.sink == nil {
		return
	}
	p.sink.Publish(p.frameLocked())
}

func (p *Player) frameLocked() models.PlaybackFrame {
	return models.PlaybackFrame{
		Type:          "playback",
		Status:        p.status,
		Current:       p.current,
		ActiveKeys:    sortedKeys(p.keys),
		ActiveButtons: sortedKeys(p.buttons),
		Scroll:        p.scroll,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// millis converts a step duration, saturating instead of wrapping past the
// largest representable time.Duration.
func millis(ms int) time.Duration {
	const limit = math.MaxInt64 / int64(time.Millisecond)
	if int64(ms) > limit {
		return time.Duration(limit) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
