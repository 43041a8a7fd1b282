// Package session tracks what each page of an assistant session is doing:
// one request state machine per page and the voice conversation.
package session

import (
	"context"
	"errors"
	"sync"

	"gwgp-assistant-backend/internal/metrics"
)

// ErrBusy rejects a submission while another one is in flight.
var ErrBusy = errors.New("a request is already in progress")

type State string

const (
	Idle       State = "idle"
	Listening  State = "listening"
	Submitting State = "submitting"
	Succeeded  State = "succeeded"
	Failed     State = "failed"
)

// Terminal reports whether s ends a submission.
func (s State) Terminal() bool { return s == Succeeded || s == Failed }

// Page names one interaction surface.
type Page string

const (
	PageAsk    Page = "ask"
	PageImage  Page = "image"
	PageSpeech Page = "speech"
	PageVideo  Page = "video"
	PageNews   Page = "news"
	PageSearch Page = "search"
	PageVoice  Page = "voice"
)

// Event is one state change. Err is set on Failed.
type Event struct {
	Page  Page
	State State
	Err   error
}

type subscriber struct {
	id int
	fn func(Event)
}

// Machine runs Idle -> Submitting -> {Succeeded, Failed} -> Idle, plus
// Idle -> Listening -> Submitting for pages fed by speech recognition.
// Succeeded and Failed are reported as events; the stored state moves on
// to Idle in the same step so a new submission is never lost.
type Machine struct {
	page Page

	mu     sync.Mutex
	state  State
	last   State
	subs   []subscriber
	nextID int
}

func NewMachine(page Page) *Machine {
	return &Machine{page: page, state: Idle}
}

func (m *Machine) Page() Page { return m.page }

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastOutcome is Succeeded or Failed for the latest finished submission,
// or empty before the first one.
func (m *Machine) LastOutcome() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Busy reports whether a submission is in flight.
func (m *Machine) Busy() bool { return m.State() == Submitting }

// Subscribe registers fn for every later event. Handlers run outside the
// machine lock, in registration order, on the goroutine that caused the
// transition.
func (m *Machine) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// StartListening moves Idle to Listening and reports whether it did.
// It is a no-op when already listening and fails with ErrBusy while
// submitting.
func (m *Machine) StartListening() (started bool, err error) {
	m.mu.Lock()
	switch m.state {
	case Listening:
		m.mu.Unlock()
		return false, nil
	case Submitting:
		m.mu.Unlock()
		return false, ErrBusy
	}
	m.state = Listening
	subs := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(subs, Event{Page: m.page, State: Listening})
	return true, nil
}

// StopListening returns to Idle after a recognition error or the end of
// input. It does nothing unless the machine is listening.
func (m *Machine) StopListening() {
	m.mu.Lock()
	if m.state != Listening {
		m.mu.Unlock()
		return
	}
	m.state = Idle
	subs := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(subs, Event{Page: m.page, State: Idle})
}

// Submit runs fn as this page's single in-flight request. A submission
// made while one is running returns ErrBusy without calling fn. Every
// accepted submission produces exactly one Succeeded or Failed event.
func (m *Machine) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if m.state == Submitting {
		m.mu.Unlock()
		metrics.BusyRejections.WithLabelValues(string(m.page)).Inc()
		return ErrBusy
	}
	m.state = Submitting
	subs := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(subs, Event{Page: m.page, State: Submitting})

	err := m.run(ctx, fn)

	outcome := Succeeded
	if err != nil {
		outcome = Failed
	}
	m.mu.Lock()
	m.state = Idle
	m.last = outcome
	subs = m.snapshotLocked()
	m.mu.Unlock()

	m.emit(subs, Event{Page: m.page, State: outcome, Err: err})
	m.emit(subs, Event{Page: m.page, State: Idle})
	return err
}

func (m *Machine) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.state = Idle
			m.last = Failed
			m.mu.Unlock()
			panic(r)
		}
	}()
	return fn(ctx)
}

func (m *Machine) snapshotLocked() []subscriber {
	return append([]subscriber(nil), m.subs...)
}

func (m *Machine) emit(subs []subscriber, ev Event) {
	for _, s := range subs {
		s.fn(ev)
	}
}
