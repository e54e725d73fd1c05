package bridge

import (
	"errors"
	"sync"
)

var ErrContentLoaded = errors.New("bridge: presentation content already loaded")

// World is the global scope of one presentation context, as the preload sees
// it before any page script runs.
type World interface {
	// ExposeInMainWorld installs a frozen object carrying api's methods under
	// the global name. Exposing the same name again is a no-op. It fails with
	// ErrContentLoaded once page content has started.
	ExposeInMainWorld(name string, api API) error
}

// Preload installs api under WorldKey. Engines run it before any page script.
func Preload(w World, api API) error {
	return w.ExposeInMainWorld(WorldKey, api)
}

// Scope tracks what has been exposed into one presentation context and whether
// page content has started. Engines embed it to implement World.
type Scope struct {
	mu      sync.Mutex
	exposed map[string]struct{}
	loaded  bool
}

// Claim reports whether name still needs installing and records it as
// installed.
func (s *Scope) Claim(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return false, ErrContentLoaded
	}
	if s.exposed == nil {
		s.exposed = make(map[string]struct{})
	}
	if _, ok := s.exposed[name]; ok {
		return false, nil
	}
	s.exposed[name] = struct{}{}
	return true, nil
}

// Release forgets a claim whose installation failed.
func (s *Scope) Release(name string) {
	s.mu.Lock()
	delete(s.exposed, name)
	s.mu.Unlock()
}

// MarkLoaded closes the preload phase.
func (s *Scope) MarkLoaded() {
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
}

func (s *Scope) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
