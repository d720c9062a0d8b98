package project

import (
	"sync"

	"github.com/google/uuid"
)

// Locks serializes workflow runs per project. The version-history append is a
// read-modify-write against externally persisted state, so two concurrent
// runs for the same project must not interleave; runs for different projects
// proceed in parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the project's mutex and returns the unlock function.
func (l *Locks) Lock(projectID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
