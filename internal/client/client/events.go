package client

import (
	"sync"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
)

// dispatcher delivers auth changes to listeners in emission order on its own
// goroutine, so a caller that triggers a change never observes it inline.
type dispatcher struct {
	mu        sync.Mutex
	listeners map[int]func(models.AuthChange)
	nextID    int

	queue     chan models.AuthChange
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		listeners: make(map[int]func(models.AuthChange)),
		queue:     make(chan models.AuthChange, 64),
		done:      make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *dispatcher) subscribe(fn func(models.AuthChange)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) emit(ch models.AuthChange) {
	select {
	case d.queue <- ch:
	case <-d.done:
	}
}

func (d *dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case ch := <-d.queue:
			d.deliver(ch)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) deliver(ch models.AuthChange) {
	d.mu.Lock()
	fns := make([]func(models.AuthChange), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}

func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
