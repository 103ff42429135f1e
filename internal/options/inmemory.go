package options

import "sync"

// InMemorySource is a Source backed by a map. Set replaces a name's bundle
// and notifies subscribers, which lets the registry evict stale executors.
type InMemorySource struct {
	mu      sync.RWMutex
	byName  map[string]*FactoryOptions
	subs    map[uint64]func(name string)
	nextSub uint64
}

func NewInMemorySource() *InMemorySource {
	return &InMemorySource{
		byName: make(map[string]*FactoryOptions),
		subs:   make(map[uint64]func(string)),
	}
}

// Options returns the stored bundle for name, or an empty bundle.
func (s *InMemorySource) Options(name string) (*FactoryOptions, error) {
	s.mu.RLock()
	opts := s.byName[name]
	s.mu.RUnlock()
	if opts == nil {
		return &FactoryOptions{}, nil
	}
	return opts, nil
}

// Set stores opts under name and fires change notifications.
func (s *InMemorySource) Set(name string, opts *FactoryOptions) {
	s.mu.Lock()
	s.byName[name] = opts
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(name)
	}
}

// Subscribe implements Notifier.
func (s *InMemorySource) Subscribe(fn func(name string)) (stop func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
