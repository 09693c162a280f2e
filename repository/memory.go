package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps sandboxes in process memory. It is used for local runs and tests.
type Memory struct {
	mu        sync.Mutex
	sandboxes map[string][]Document
}

func NewMemory() *Memory {
	return &Memory{sandboxes: make(map[string][]Document)}
}

func (m *Memory) Of(sandbox string) Accessor {
	return &memoryAccessor{repo: m, sandbox: sandbox}
}

type memoryAccessor struct {
	repo    *Memory
	sandbox string
}

func (a *memoryAccessor) Search(ctx context.Context, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	out := []Document{}
	for _, doc := range a.repo.sandboxes[a.sandbox] {
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (a *memoryAccessor) Save(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	docs := a.repo.sandboxes[a.sandbox]
	id := doc.ID()
	if id == "" {
		stored := doc.Clone()
		stored[IDKey] = uuid.NewString()
		a.repo.sandboxes[a.sandbox] = append(docs, stored)
		return stored.ID(), nil
	}
	for i, cur := range docs {
		if cur.ID() != id {
			continue
		}
		merged := cur.Clone()
		for k, v := range doc {
			merged[k] = v
		}
		docs[i] = merged
		return id, nil
	}
	return "", ErrNotFound
}

func (a *memoryAccessor) RemoveSelection(ctx context.Context, filter Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	docs := a.repo.sandboxes[a.sandbox]
	kept := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if !filter.Matches(doc) {
			kept = append(kept, doc)
		}
	}
	a.repo.sandboxes[a.sandbox] = kept
	return len(docs) - len(kept), nil
}
