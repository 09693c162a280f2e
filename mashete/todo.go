package mashete

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"mashetes/dispatcher"
	"mashetes/domain"
	"mashetes/repository"
	"mashetes/todo"
)

var (
	// ErrUnknownTask is returned when an item action targets a task the view does not show.
	ErrUnknownTask = errors.New("unknown task")
	// ErrUnmounted is returned by actions on a widget that was closed.
	ErrUnmounted = errors.New("mashete unmounted")
)

// TaskItem renders one task and owns its local done flag.
type TaskItem struct {
	actions todo.Actions

	mu   sync.Mutex
	task domain.Task
	done bool
}

func newTaskItem(actions todo.Actions, task domain.Task) *TaskItem {
	return &TaskItem{actions: actions, task: task, done: task.Done}
}

// Done reports the locally displayed state.
func (i *TaskItem) Done() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done
}

// Toggle flips the displayed state right away and asks the store to persist it.
// On failure the displayed state falls back to the last value seen in the store.
func (i *TaskItem) Toggle(ctx context.Context) error {
	i.mu.Lock()
	id, next := i.task.ID, !i.done
	i.done = next
	i.mu.Unlock()

	if err := i.actions.ChangeTaskState(ctx, id, next); err != nil {
		i.mu.Lock()
		i.done = i.task.Done
		i.mu.Unlock()
		return err
	}
	return nil
}

func (i *TaskItem) sync(task domain.Task) {
	i.mu.Lock()
	i.task = task
	i.done = task.Done
	i.mu.Unlock()
}

type itemView struct {
	Base  string
	ID    string
	Name  string
	Class string
}

func (i *TaskItem) view(base string) itemView {
	i.mu.Lock()
	defer i.mu.Unlock()
	class := "label label-default"
	if i.done {
		class = "label label-success"
	}
	return itemView{Base: base, ID: i.task.ID, Name: i.task.Name, Class: class}
}

// NewTaskForm owns the text of the task being typed.
type NewTaskForm struct {
	bus     *dispatcher.Dispatcher
	actions todo.Actions

	mu       sync.Mutex
	text     string
	listener *dispatcher.Listener
}

func newTaskForm(bus *dispatcher.Dispatcher, actions todo.Actions) *NewTaskForm {
	return &NewTaskForm{bus: bus, actions: actions}
}

// Mount starts clearing the text whenever the store confirms a new task.
func (f *NewTaskForm) Mount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener != nil {
		return
	}
	f.listener = f.bus.On(domain.TasksAdded, f.clear)
}

func (f *NewTaskForm) Unmount() {
	f.mu.Lock()
	l := f.listener
	f.listener = nil
	f.mu.Unlock()
	f.bus.Off(domain.TasksAdded, l)
}

func (f *NewTaskForm) clear(ctx context.Context, _ domain.Action) error {
	f.mu.Lock()
	f.text = ""
	f.mu.Unlock()
	return nil
}

func (f *NewTaskForm) SetText(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

func (f *NewTaskForm) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

// Submit saves the current text as a new task. The text is kept until the store confirms.
func (f *NewTaskForm) Submit(ctx context.Context) error {
	return f.actions.SaveNewTask(ctx, f.Text())
}

func (f *NewTaskForm) DeleteDone(ctx context.Context) error {
	return f.actions.DeleteDone(ctx)
}

// TodoApp is the to-do widget shell. It owns one widget tree: its dispatcher,
// its store and the components rendering the store's snapshot.
type TodoApp struct {
	id     string
	base   string
	config map[string]any
	logger *log.Logger

	bus     *dispatcher.Dispatcher
	store   *todo.Store
	actions todo.Actions
	form    *NewTaskForm

	mu       sync.Mutex
	items    []*TaskItem
	byID     map[string]*TaskItem
	lastErr  error
	stale    bool
	closed   bool
	listener *dispatcher.Listener
	watchers map[chan struct{}]struct{}
}

// NewTodoApp builds the widget tree for one to-do widget instance.
func NewTodoApp(id, base string, config map[string]any, acc repository.Accessor, logger *log.Logger) *TodoApp {
	if logger == nil {
		logger = log.StandardLogger()
	}
	bus := dispatcher.New(logger)
	actions := todo.NewActions(bus)
	return &TodoApp{
		id:       id,
		base:     base,
		config:   config,
		logger:   logger,
		bus:      bus,
		store:    todo.NewStore(bus, acc, logger),
		actions:  actions,
		form:     newTaskForm(bus, actions),
		byID:     map[string]*TaskItem{},
		watchers: map[chan struct{}]struct{}{},
	}
}

func (a *TodoApp) ID() string { return a.id }

// Bus exposes the widget tree's dispatcher.
func (a *TodoApp) Bus() *dispatcher.Dispatcher { return a.bus }

// Form exposes the new-task form component.
func (a *TodoApp) Form() *NewTaskForm { return a.form }

// Mount subscribes the shell and its form, then loads the store.
func (a *TodoApp) Mount(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrUnmounted
	}
	if a.listener == nil {
		a.listener = a.bus.On(domain.TasksChanged, a.reloadTasks)
	}
	a.stale = true
	a.mu.Unlock()
	a.form.Mount()
	return a.record(a.store.Init(ctx))
}

// Refresh retries loading the store when no load succeeded since Mount.
func (a *TodoApp) Refresh(ctx context.Context) error {
	a.mu.Lock()
	closed, stale := a.closed, a.stale
	a.mu.Unlock()
	switch {
	case closed:
		return ErrUnmounted
	case !stale:
		return nil
	}
	a.logger.WithField("mashete", a.id).Info("retrying initial load")
	return a.record(a.store.Init(ctx))
}

// Unmount removes every listener registered by Mount.
func (a *TodoApp) Unmount() {
	a.mu.Lock()
	l := a.listener
	a.listener = nil
	a.mu.Unlock()
	a.bus.Off(domain.TasksChanged, l)
	a.form.Unmount()
}

// Close disposes of the widget tree. The bus is closed first so that actions
// racing with Close fail with ErrUnmounted instead of reaching the repository.
func (a *TodoApp) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.bus.Close()
	a.Unmount()
	a.store.Close()
	a.mu.Lock()
	for ch := range a.watchers {
		close(ch)
		delete(a.watchers, ch)
	}
	a.mu.Unlock()
}

func (a *TodoApp) reloadTasks(ctx context.Context, _ domain.Action) error {
	tasks := a.store.AllTasks()
	a.mu.Lock()
	items := make([]*TaskItem, 0, len(tasks))
	byID := make(map[string]*TaskItem, len(tasks))
	for _, t := range tasks {
		item, ok := a.byID[t.ID]
		if ok {
			item.sync(t)
		} else {
			item = newTaskItem(a.actions, t)
		}
		items = append(items, item)
		byID[t.ID] = item
	}
	a.items, a.byID = items, byID
	a.stale = false
	for ch := range a.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	a.mu.Unlock()
	a.logger.WithFields(log.Fields{"mashete": a.id, "tasks": len(items)}).Debug("re-render tasks")
	return nil
}

// Tasks returns the tasks currently displayed, with their local done state.
func (a *TodoApp) Tasks() []domain.Task {
	a.mu.Lock()
	items := append([]*TaskItem(nil), a.items...)
	a.mu.Unlock()
	out := make([]domain.Task, 0, len(items))
	for _, item := range items {
		item.mu.Lock()
		t := item.task
		t.Done = item.done
		item.mu.Unlock()
		out = append(out, t)
	}
	return out
}

// Err returns the error of the last action, if it failed.
func (a *TodoApp) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *TodoApp) record(err error) error {
	if errors.Is(err, dispatcher.ErrClosed) {
		return ErrUnmounted
	}
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
	if err != nil {
		a.logger.WithField("mashete", a.id).WithError(err).Warn("todo action failed")
	}
	return err
}

// AddTask types text into the form and submits it.
func (a *TodoApp) AddTask(ctx context.Context, text string) error {
	if a.isClosed() {
		return ErrUnmounted
	}
	a.form.SetText(text)
	return a.record(a.form.Submit(ctx))
}

func (a *TodoApp) DeleteDone(ctx context.Context) error {
	if a.isClosed() {
		return ErrUnmounted
	}
	return a.record(a.form.DeleteDone(ctx))
}

// Toggle flips the state of the displayed task id.
func (a *TodoApp) Toggle(ctx context.Context, id string) error {
	a.mu.Lock()
	item, closed := a.byID[id], a.closed
	a.mu.Unlock()
	if closed {
		return ErrUnmounted
	}
	if item == nil {
		return a.record(fmt.Errorf("%w: %s", ErrUnknownTask, id))
	}
	return a.record(item.Toggle(ctx))
}

func (a *TodoApp) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Watch returns a channel signalled after every re-render, and a function to stop watching.
func (a *TodoApp) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	a.watchers[ch] = struct{}{}
	a.mu.Unlock()
	return ch, func() {
		a.mu.Lock()
		if _, ok := a.watchers[ch]; ok {
			delete(a.watchers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
}

type todoView struct {
	Base  string
	Text  string
	Error string
	Items []itemView
}

func (a *TodoApp) view() todoView {
	a.mu.Lock()
	items := append([]*TaskItem(nil), a.items...)
	v := todoView{Base: a.base}
	if a.lastErr != nil {
		v.Error = a.lastErr.Error()
	}
	a.mu.Unlock()
	v.Text = a.form.Text()
	for _, item := range items {
		v.Items = append(v.Items, item.view(a.base))
	}
	return v
}

func (a *TodoApp) chrome() Chrome {
	return Chrome{ID: a.id, Title: "Todo list", Config: a.config}
}

// Render writes the whole widget.
func (a *TodoApp) Render(w io.Writer) error {
	return renderIn(w, a.chrome(), "todo", a.view())
}

// RenderList writes only the task list, used by the change stream.
func (a *TodoApp) RenderList(w io.Writer) error {
	return templates.ExecuteTemplate(w, "task-list", a.view())
}
