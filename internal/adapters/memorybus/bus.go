package memorybus

import (
	"sync"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

type subscriber struct {
	ch    chan ports.Event
	match func(ports.Event) bool
}

type Bus struct {
	mu     sync.Mutex
	subs   map[chan ports.Event]subscriber
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[chan ports.Event]subscriber)}
}

func (b *Bus) Publish(evt ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch, sub := range b.subs {
		if sub.match != nil && !sub.match(evt) {
			continue
		}
		select {
		case ch <- evt:
		default:
			// abonné trop lent : l'événement est perdu pour lui
		}
	}
}

func (b *Bus) Subscribe(match func(ports.Event) bool) (<-chan ports.Event, func()) {
	ch := make(chan ports.Event, 64)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = subscriber{ch: ch, match: match}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Close ferme tous les abonnements ; les Publish suivants sont ignorés.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan ports.Event]subscriber{}
}

// ForUser renvoie un filtre limité aux événements d'un utilisateur.
func ForUser(userID string) func(ports.Event) bool {
	return func(evt ports.Event) bool { return evt.UserID == userID }
}
