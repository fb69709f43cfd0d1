package controllers

import (
	"sync"

	"github.com/drstein77/storefront/internal/notify"
)

// flashes keeps notifications raised before a redirect until the next page render.
type flashes struct {
	mx      sync.Mutex
	pending map[string]notify.Notifications
}

func newFlashes() *flashes {
	return &flashes{pending: make(map[string]notify.Notifications)}
}

func (f *flashes) push(id string, n notify.Notification) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.pending[id] = append(f.pending[id], n)
}

func (f *flashes) pop(id string) notify.Notifications {
	f.mx.Lock()
	defer f.mx.Unlock()
	n := f.pending[id]
	delete(f.pending, id)
	return n
}

func (f *flashes) drop(id string) {
	f.mx.Lock()
	defer f.mx.Unlock()
	delete(f.pending, id)
}
