package worker

import (
	"context"
	"sort"

	"dublab/internal/models"

	"github.com/google/uuid"
)

// WorkflowProcessor runs one localization workflow for a dequeued job.
type WorkflowProcessor interface {
	Name() string
	Process(ctx context.Context, projectID uuid.UUID, msg models.JobMessage) error
}

// ProcessorRegistry holds all registered workflow processors.
type ProcessorRegistry struct {
	processors map[string]WorkflowProcessor
}

// NewProcessorRegistry creates a new registry.
func NewProcessorRegistry() *ProcessorRegistry {
	return &ProcessorRegistry{processors: make(map[string]WorkflowProcessor)}
}

// Register adds a processor to the registry.
func (r *ProcessorRegistry) Register(p WorkflowProcessor) {
	if p == nil {
		return
	}
	r.processors[p.Name()] = p
}

// Get retrieves a processor by name.
func (r *ProcessorRegistry) Get(name string) (WorkflowProcessor, bool) {
	p, ok := r.processors[name]
	return p, ok
}

// Names returns registered workflow names sorted alphabetically.
func (r *ProcessorRegistry) Names() []string {
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
