package mashete

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"mashetes/repository"
	"mashetes/todo"
)

// ErrRegistryFull is returned when mounting a new instance would exceed the registry limit.
var ErrRegistryFull = errors.New("too many mounted mashetes")

// Registry keeps the mounted to-do widget instances of the server.
type Registry struct {
	repo     repository.Repository
	basePath string
	logger   *log.Logger

	mu    sync.Mutex
	limit int
	todos map[string]*entry
}

// entry is a registered instance. ready is closed once its first Mount returned.
type entry struct {
	app     *TodoApp
	ready   chan struct{}
	initErr error
}

// NewRegistry creates a registry mounting widgets under basePath (e.g. "/mashetes/todo").
func NewRegistry(repo repository.Repository, basePath string, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{repo: repo, basePath: basePath, logger: logger, todos: map[string]*entry{}}
}

// SetLimit caps the number of mounted instances. Zero or less disables the cap.
func (r *Registry) SetLimit(n int) {
	r.mu.Lock()
	r.limit = n
	r.mu.Unlock()
}

// Todo returns the mounted instance id, mounting it on first use. A failed
// initial load still mounts the widget; the error is shown by it and returned
// to the callers that mounted or waited for that load. Callers racing on a
// first mount wait for it without blocking other ids.
func (r *Registry) Todo(ctx context.Context, id string, config map[string]any) (*TodoApp, error) {
	r.mu.Lock()
	if e, ok := r.todos[id]; ok {
		r.mu.Unlock()
		select {
		case <-e.ready:
			return e.app, nil
		default:
		}
		select {
		case <-e.ready:
			return e.app, e.initErr
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if limit := r.limit; limit > 0 && len(r.todos) >= limit {
		r.mu.Unlock()
		r.logger.WithFields(log.Fields{"mashete": id, "limit": limit}).Warn("mashete limit reached")
		return nil, ErrRegistryFull
	}
	e := &entry{
		app:   NewTodoApp(id, r.basePath+"/"+id, config, r.repo.Of(todo.Sandbox), r.logger),
		ready: make(chan struct{}),
	}
	r.todos[id] = e
	r.mu.Unlock()

	r.logger.WithField("mashete", id).Info("todo mashete mounted")
	e.initErr = e.app.Mount(ctx)
	close(e.ready)
	return e.app, e.initErr
}

// Lookup returns a mounted instance without mounting it.
func (r *Registry) Lookup(id string) (*TodoApp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.todos[id]
	if !ok {
		return nil, false
	}
	return e.app, true
}

// Len returns the number of mounted instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.todos)
}

// Unmount disposes of instance id. It reports whether the instance was mounted.
func (r *Registry) Unmount(id string) bool {
	r.mu.Lock()
	e, ok := r.todos[id]
	delete(r.todos, id)
	r.mu.Unlock()
	if ok {
		e.app.Close()
		r.logger.WithField("mashete", id).Info("todo mashete unmounted")
	}
	return ok
}

// Close disposes of every mounted instance.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.todos
	r.todos = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range entries {
		e.app.Close()
	}
}
