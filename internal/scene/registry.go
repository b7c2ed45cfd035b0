package scene

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the scene layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store persists scene definitions.
type Store interface {
	SaveScene(ctx context.Context, s *Scene, position int) error
	DeleteScene(ctx context.Context, name string) error
	LoadScenes(ctx context.Context) ([]*Scene, error)
}

// Registry holds the hub's scenes as an ordered collection. Saving a
// scene under an existing name replaces its definition in place,
// keeping its position; new names append.
//
// All public methods are thread-safe; returned scenes are deep copies.
type Registry struct {
	mu     sync.RWMutex
	scenes []*Scene
	store  Store
	logger Logger
}

// NewRegistry creates a scene registry. The store may be nil, in which
// case nothing is persisted.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, logger: noopLogger{}}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// LoadFromStore restores persisted scenes. Called once at startup.
func (r *Registry) LoadFromStore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	scenes, err := r.store.LoadScenes(ctx)
	if err != nil {
		return fmt.Errorf("loading scenes: %w", err)
	}

	r.mu.Lock()
	r.scenes = scenes
	r.mu.Unlock()

	r.logger.Info("scenes restored", "count", len(scenes))
	return nil
}

// Save validates and stores a scene, replacing any existing scene with
// the same name in place.
func (r *Registry) Save(ctx context.Context, s *Scene) error {
	if err := validate(s); err != nil {
		return err
	}

	r.mu.Lock()
	position := -1
	for i, existing := range r.scenes {
		if existing.Name == s.Name {
			r.scenes[i] = s.DeepCopy()
			position = i
			break
		}
	}
	if position < 0 {
		r.scenes = append(r.scenes, s.DeepCopy())
		position = len(r.scenes) - 1
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveScene(ctx, s, position); err != nil {
			r.logger.Error("persisting scene", "name", s.Name, "error", err)
		}
	}
	r.logger.Debug("scene saved", "name", s.Name, "actions", len(s.Actions))
	return nil
}

// Delete removes a scene by name.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	found := false
	for i, s := range r.scenes {
		if s.Name == name {
			r.scenes = append(r.scenes[:i], r.scenes[i+1:]...)
			found = true
			break
		}
	}
	r.mu.Unlock()

	if !found {
		return fmt.Errorf("scene %q: %w", name, ErrNotFound)
	}
	if r.store != nil {
		if err := r.store.DeleteScene(ctx, name); err != nil {
			r.logger.Error("deleting scene record", "name", name, "error", err)
		}
	}
	return nil
}

// Get returns a deep copy of the named scene.
func (r *Registry) Get(name string) (*Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.scenes {
		if s.Name == name {
			return s.DeepCopy(), nil
		}
	}
	return nil, fmt.Errorf("scene %q: %w", name, ErrNotFound)
}

// All returns deep copies of every scene in order.
func (r *Registry) All() []*Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scenes := make([]*Scene, len(r.scenes))
	for i, s := range r.scenes {
		scenes[i] = s.DeepCopy()
	}
	return scenes
}

func validate(s *Scene) error {
	if s.Name == "" || len(s.Name) > NameLen {
		return fmt.Errorf("scene name %q: %w", s.Name, ErrBadParam)
	}
	if len(s.Actions) == 0 || len(s.Actions) > MaxActions {
		return fmt.Errorf("scene %q: %d actions: %w", s.Name, len(s.Actions), ErrBadParam)
	}
	for i, a := range s.Actions {
		if len(a.Acts) == 0 || len(a.Acts) > MaxActs {
			return fmt.Errorf("scene %q action %d: %d acts: %w", s.Name, i, len(a.Acts), ErrBadParam)
		}
	}
	return nil
}
