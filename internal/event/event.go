// Package event is the channel to the host front end. Emission is
// fire-and-forget: nothing in the lifecycle engine waits on, or fails
// because of, an event delivery.
package event

import (
	"context"
	"log/slog"
)

// KernelUpdateDetected names the event raised when the running kernel
// no longer matches the one the drivers were built against.
const KernelUpdateDetected = "kernel_update_detected"

// Event is a named notification with its payload.
type Event struct {
	Name      string `json:"name"`
	OldKernel string `json:"old_kernel,omitempty"`
	NewKernel string `json:"new_kernel,omitempty"`
}

// KernelUpdate builds the kernel-mismatch notification.
func KernelUpdate(oldKernel, newKernel string) Event {
	return Event{Name: KernelUpdateDetected, OldKernel: oldKernel, NewKernel: newKernel}
}

// Emitter delivers events to the host. Implementations swallow and log
// delivery failures rather than surfacing them.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// LogEmitter writes events to the structured log. It is the fallback
// when no message bus is configured.
type LogEmitter struct {
	Log *slog.Logger
}

func (e *LogEmitter) Emit(_ context.Context, ev Event) {
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("event", "name", ev.Name, "old_kernel", ev.OldKernel, "new_kernel", ev.NewKernel)
}
