package cartsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned in Reject mode while another mutation of the same cart is in flight.
var ErrBusy = errors.New("cart update already in progress")

type Mode string

const (
	Reject Mode = "reject"
	Queue  Mode = "queue"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Reject, Queue:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown cart mutation mode %q", s)
}

// Gate allows one in-flight mutation per cart key.
type Gate struct {
	mode  Mode
	mx    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem   *semaphore.Weighted
	users int
}

func NewGate(mode Mode) *Gate {
	return &Gate{
		mode:  mode,
		slots: make(map[string]*slot),
	}
}

// Do runs fn while holding the slot for key.
func (g *Gate) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	s := g.acquireSlot(key)
	defer g.releaseSlot(key)

	if g.mode == Queue {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	} else if !s.sem.TryAcquire(1) {
		return ErrBusy
	}
	defer s.sem.Release(1)

	return fn(ctx)
}

func (g *Gate) acquireSlot(key string) *slot {
	g.mx.Lock()
	defer g.mx.Unlock()

	s, ok := g.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		g.slots[key] = s
	}
	s.users++
	return s
}

func (g *Gate) releaseSlot(key string) {
	g.mx.Lock()
	defer g.mx.Unlock()

	s := g.slots[key]
	s.users--
	if s.users == 0 {
		delete(g.slots, key)
	}
}
