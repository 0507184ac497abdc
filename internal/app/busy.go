package app

import "sync"

// BusyGate n'autorise qu'une mutation à la fois par clé (l'utilisateur).
// Une seconde demande pendant qu'une première est en cours échoue
// immédiatement (code busy, cause ErrBusy), comme un bouton désactivé côté interface.
type BusyGate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewBusyGate() *BusyGate {
	return &BusyGate{busy: map[string]struct{}{}}
}

func (g *BusyGate) TryAcquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return nil, Coded(CodeBusy, "a previous change to your library is still being saved", ErrBusy)
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, nil
}

func (g *BusyGate) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}

// Do exécute fn sous la garde de la clé.
func (g *BusyGate) Do(key string, fn func() error) error {
	if g == nil {
		return fn()
	}
	release, err := g.TryAcquire(key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
