package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/signspeak/pkg/provider/classifier"
	"github.com/MrWong99/signspeak/pkg/provider/frames"
	"github.com/MrWong99/signspeak/pkg/provider/hands"
)

// ErrProviderNotRegistered is returned when no factory carries the name of
// a provider entry.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is the set of factories of one provider kind.
type factories[T any] struct {
	kind   string
	byName map[string]Factory[T]
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, byName: make(map[string]Factory[T])}
}

func (f factories[T]) build(mu *sync.RWMutex, entry ProviderEntry) (T, error) {
	mu.RLock()
	factory, ok := f.byName[entry.Name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		return p, fmt.Errorf("config: %s provider %q: %w", f.kind, entry.Name, err)
	}
	return p, nil
}

// Registry resolves [ProviderEntry] names to provider constructors, one
// namespace per provider kind. Registering a name again replaces it. Safe
// for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	frames     factories[frames.Extractor]
	hands      factories[hands.Detector]
	classifier factories[classifier.Classifier]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		frames:     newFactories[frames.Extractor]("frames"),
		hands:      newFactories[hands.Detector]("hands"),
		classifier: newFactories[classifier.Classifier]("classifier"),
	}
}

func (r *Registry) RegisterFrames(name string, f Factory[frames.Extractor]) {
	r.mu.Lock()
	r.frames.byName[name] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterHands(name string, f Factory[hands.Detector]) {
	r.mu.Lock()
	r.hands.byName[name] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterClassifier(name string, f Factory[classifier.Classifier]) {
	r.mu.Lock()
	r.classifier.byName[name] = f
	r.mu.Unlock()
}

// CreateFrames builds the frame extractor named by entry.
func (r *Registry) CreateFrames(entry ProviderEntry) (frames.Extractor, error) {
	return r.frames.build(&r.mu, entry)
}

// CreateHands builds the hand detector named by entry.
func (r *Registry) CreateHands(entry ProviderEntry) (hands.Detector, error) {
	return r.hands.build(&r.mu, entry)
}

// CreateClassifier builds the letter classifier named by entry.
func (r *Registry) CreateClassifier(entry ProviderEntry) (classifier.Classifier, error) {
	return r.classifier.build(&r.mu, entry)
}

// Names returns the sorted names registered for kind: "frames", "hands" or
// "classifier". Unknown kinds have none.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.frames.kind:
		return slices.Sorted(maps.Keys(r.frames.byName))
	case r.hands.kind:
		return slices.Sorted(maps.Keys(r.hands.byName))
	case r.classifier.kind:
		return slices.Sorted(maps.Keys(r.classifier.byName))
	}
	return nil
}
