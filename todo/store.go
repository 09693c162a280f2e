package todo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"mashetes/dispatcher"
	"mashetes/domain"
	"mashetes/repository"
)

const (
	// Sandbox is the repository partition owned by the to-do widget.
	Sandbox = "com.foo.bar.TodoMashete"
	// DocType discriminates task documents inside the sandbox.
	DocType = "TodoMashete.Task"
)

// ErrEmptyTask is returned when a new task has no name.
var ErrEmptyTask = errors.New("task name is empty")

// Store owns the task snapshot of one widget tree. Every mutation goes through
// the repository and is followed by a full reload; nothing is patched locally.
type Store struct {
	bus    *dispatcher.Dispatcher
	repo   repository.Accessor
	logger *log.Logger

	mu      sync.RWMutex
	tasks   []domain.Task
	issued  uint64
	applied uint64

	listeners []registration
}

type registration struct {
	name string
	l    *dispatcher.Listener
}

// NewStore creates a store and registers its action handlers on bus.
func NewStore(bus *dispatcher.Dispatcher, repo repository.Accessor, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Store{bus: bus, repo: repo, logger: logger, tasks: []domain.Task{}}
	s.handle(domain.SaveNewTask, s.onSaveNewTask)
	s.handle(domain.DeleteDoneTasks, s.onDeleteDone)
	s.handle(domain.ChangeTaskState, s.onChangeTaskState)
	return s
}

func (s *Store) handle(name string, fn dispatcher.Handler) {
	s.listeners = append(s.listeners, registration{name: name, l: s.bus.On(name, fn)})
}

// Close unregisters the store's handlers.
func (s *Store) Close() {
	for _, r := range s.listeners {
		s.bus.Off(r.name, r.l)
	}
	s.listeners = nil
}

// Init loads the tasks of this widget and announces the change.
func (s *Store) Init(ctx context.Context) error {
	return s.reload(ctx)
}

// AllTasks returns a copy of the current snapshot.
func (s *Store) AllTasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) reload(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	docs, err := s.repo.Search(ctx, repository.Filter{"docType": DocType})
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	tasks := make([]domain.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, taskFromDocument(doc))
	}

	s.mu.Lock()
	if applied := s.applied; seq < applied {
		s.mu.Unlock()
		s.logger.WithFields(log.Fields{"seq": seq, "applied": applied}).Debug("discarding stale reload")
		return nil
	}
	s.tasks = tasks
	s.applied = seq
	s.mu.Unlock()

	s.logger.WithField("tasks", len(tasks)).Debug("tasks changed")
	return s.bus.Trigger(ctx, domain.TasksChanged, nil)
}

func (s *Store) onSaveNewTask(ctx context.Context, a domain.Action) error {
	p, ok := a.Payload.(domain.SaveNewTaskPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", a.Payload)
	}
	id, err := s.repo.Save(ctx, taskDocument(domain.Task{Name: p.Text, DocType: DocType}))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	if err := s.bus.Trigger(ctx, domain.TasksAdded, domain.TasksAddedPayload{ID: id}); err != nil {
		return err
	}
	return s.reload(ctx)
}

func (s *Store) onDeleteDone(ctx context.Context, _ domain.Action) error {
	n, err := s.repo.RemoveSelection(ctx, repository.Filter{"docType": DocType, "done": true})
	if err != nil {
		return fmt.Errorf("delete done tasks: %w", err)
	}
	s.logger.WithField("removed", n).Debug("done tasks deleted")
	return s.reload(ctx)
}

func (s *Store) onChangeTaskState(ctx context.Context, a domain.Action) error {
	p, ok := a.Payload.(domain.ChangeTaskStatePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", a.Payload)
	}
	s.logger.WithFields(log.Fields{"task": p.ID, "done": p.Done}).Debug("set task state")
	doc := repository.Document{repository.IDKey: p.ID, "docType": DocType, "done": p.Done}
	if _, err := s.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("change task %s: %w", p.ID, err)
	}
	return s.reload(ctx)
}
