package instance

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"medrunner-portal/internal/event"
)

// Probe decides whether this instance was first among those sharing a bus.
// An instance is first until another one answers its probe.
type Probe struct {
	id  string
	bus event.Bus

	mu    sync.RWMutex
	first bool
	stop  func()
}

func NewProbe(bus event.Bus) *Probe {
	return &Probe{id: uuid.NewString(), bus: bus, first: true}
}

func (p *Probe) ID() string {
	return p.id
}

// Start announces this instance and answers probes from later ones.
func (p *Probe) Start() {
	events, unsubscribe := p.bus.Subscribe(event.TypeInstanceProbe, event.TypeInstanceExists)

	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		unsubscribe()
		return
	}
	p.stop = unsubscribe
	p.mu.Unlock()

	go p.listen(events)
	p.publish(event.TypeInstanceProbe, nil)
}

func (p *Probe) Close() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (p *Probe) IsFirst() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.first
}

func (p *Probe) listen(events <-chan event.Event) {
	for e := range events {
		if e.ActorID == p.id {
			continue
		}

		switch e.Type {
		case event.TypeInstanceProbe:
			p.publish(event.TypeInstanceExists, e.ActorID)
		case event.TypeInstanceExists:
			if target, _ := e.Payload.(string); target != p.id {
				continue
			}
			p.mu.Lock()
			wasFirst := p.first
			p.first = false
			p.mu.Unlock()
			if wasFirst {
				slog.Info("another instance is running", "instance", p.id, "other", e.ActorID)
			}
		}
	}
}

func (p *Probe) publish(t event.Type, payload any) {
	e := event.New(t, payload)
	e.ActorID = p.id
	p.bus.Publish(e)
}
