// Package registry implements the Delivery Registry: the request_id ->
// Delivery Task table that makes stop_speek possible (spec.md §3, §4.5).
package registry

import (
	"speechpool/concurrentmap"
	"speechpool/delivery"
)

// Registry maps request ids to their in-flight Delivery Task. Entries
// are removed exactly once, either by the task deregistering itself on
// termination or by an explicit Stop.
type Registry struct {
	tasks *concurrentmap.Map[int64, *delivery.Task]
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tasks: concurrentmap.New[int64, *delivery.Task]()}
}

// Register stores task under its RequestID and wires task.Deregister
// so the task removes its own entry on termination.
func (r *Registry) Register(task *delivery.Task) {
	task.Deregister = func() { r.tasks.Del(task.RequestID) }
	r.tasks.Set(task.RequestID, task)
}

// Stop cancels and removes the task registered under id. It returns
// false if id is unknown, including when the delivery has already
// terminated and deregistered itself — stop is idempotent by
// construction (spec.md P5, §4.5 "stop").
func (r *Registry) Stop(id int64) bool {
	task, ok := r.tasks.GetAndDel(id)
	if !ok {
		return false
	}
	task.Cancel()
	return true
}

// Len returns the number of deliveries currently registered.
func (r *Registry) Len() int {
	return r.tasks.Len()
}
