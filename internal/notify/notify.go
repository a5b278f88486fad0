// Package notify carries user-facing notices (progress, informational
// messages, errors) alongside a request, the same way the logger is carried.
package notify

import (
	"context"
	"fmt"
	"sync"
)

type Kind string

const (
	KindProgress Kind = "progress"
	KindInfo     Kind = "info"
	KindSuccess  Kind = "success"
	KindWarning  Kind = "warning"
	KindError    Kind = "error"
)

type Event struct {
	Kind     Kind    `json:"kind"`
	Message  string  `json:"message,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type contextKey struct{}

var discard = NotifierFunc(func(Event) {})

func NewContext(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, contextKey{}, n)
}

func FromContextOrDiscard(ctx context.Context) Notifier {
	if v, ok := ctx.Value(contextKey{}).(Notifier); ok {
		return v
	}
	return discard
}

// Progress reports done out of total as a fraction in [0,1].
func Progress(ctx context.Context, done, total int) {
	if total <= 0 {
		return
	}
	FromContextOrDiscard(ctx).Notify(Event{Kind: KindProgress, Progress: float64(done) / float64(total)})
}

func Info(ctx context.Context, format string, args ...any) {
	send(ctx, KindInfo, format, args...)
}

func Success(ctx context.Context, format string, args ...any) {
	send(ctx, KindSuccess, format, args...)
}

func Warning(ctx context.Context, format string, args ...any) {
	send(ctx, KindWarning, format, args...)
}

func Error(ctx context.Context, err error) {
	FromContextOrDiscard(ctx).Notify(Event{Kind: KindError, Message: err.Error()})
}

func send(ctx context.Context, kind Kind, format string, args ...any) {
	FromContextOrDiscard(ctx).Notify(Event{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Recorder keeps every event in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
