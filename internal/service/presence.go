package service

import (
	"sync"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

// Presence tracks the bot's connection lifecycle: initializing until the
// first session establishment, ready while connected, offline after an
// authentication failure.
type Presence struct {
	mu        sync.Mutex
	state     domain.Availability
	announced bool
}

func NewPresence() *Presence {
	return &Presence{state: domain.AvailabilityInitializing}
}

// MarkReady reports whether this is the first ready transition, which
// gates the one-time owner notification.
func (p *Presence) MarkReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = domain.AvailabilityReady
	if p.announced {
		return false
	}
	p.announced = true
	return true
}

func (p *Presence) MarkOffline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = domain.AvailabilityOffline
}

func (p *Presence) State() domain.Availability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Presence) Online() bool {
	return p.State() == domain.AvailabilityReady
}
