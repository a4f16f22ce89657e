package lifecycle

import "context"

// Phase orders shutdown hooks. Lower phases finish before higher ones start.
type Phase int

const (
	// PhaseIngress stops accepting work: polling, HTTP, child processes.
	PhaseIngress Phase = iota
	// PhaseResources releases what in-flight work depended on.
	PhaseResources
)

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
