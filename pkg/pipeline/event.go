package pipeline

import (
	"sync"
	"time"

	"github.com/teslashibe/go-sightline/pkg/engine"
)

// EventType distinguishes results from lane state changes.
type EventType int

const (
	EventResult EventType = iota
	EventState
)

// Event is delivered to subscribers.
type Event struct {
	Type   EventType
	Lane   Lane
	Result engine.Result // EventResult only
	Seq    uint64        // EventResult only
	State  State         // EventState only
	Err    error         // EventState only, cause of Failed or Disabled
	At     time.Time
}

type listeners struct {
	mu     sync.RWMutex
	nextID int
	fns    map[int]func(Event)
}

func (l *listeners) add(fn func(Event)) func() {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[int]func(Event))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) emit(ev Event) {
	l.mu.RLock()
	fns := make([]func(Event), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
