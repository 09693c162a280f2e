package todo

import (
	"context"
	"strings"

	"mashetes/dispatcher"
	"mashetes/domain"
)

// Actions are the entry points views use to ask the store for changes.
type Actions struct {
	bus *dispatcher.Dispatcher
}

func NewActions(bus *dispatcher.Dispatcher) Actions {
	return Actions{bus: bus}
}

func (a Actions) SaveNewTask(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTask
	}
	return a.bus.Trigger(ctx, domain.SaveNewTask, domain.SaveNewTaskPayload{Text: text})
}

func (a Actions) DeleteDone(ctx context.Context) error {
	return a.bus.Trigger(ctx, domain.DeleteDoneTasks, struct{}{})
}

func (a Actions) ChangeTaskState(ctx context.Context, id string, done bool) error {
	return a.bus.Trigger(ctx, domain.ChangeTaskState, domain.ChangeTaskStatePayload{ID: id, Done: done})
}
