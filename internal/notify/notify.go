// Package notify delivers transient, user-visible notifications (toasts).
package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level
	Message string
}

// Notifier shows a notification to the user. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to a Notifier.
type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

func Success(n Notifier, msg string) {
	n.Notify(Notification{Level: LevelSuccess, Message: msg})
}

func Error(n Notifier, msg string) {
	n.Notify(Notification{Level: LevelError, Message: msg})
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelError
	}
	l.Logger.Log(context.Background(), level, n.Message, slog.String("notification", string(n.Level)))
}

// Multi delivers each notification to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(n Notification) {
		for _, nt := range notifiers {
			nt.Notify(n)
		}
	})
}

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

func (r *Recorder) Errors() []string {
	return r.messages(LevelError)
}

func (r *Recorder) Successes() []string {
	return r.messages(LevelSuccess)
}

func (r *Recorder) messages(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.list {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}
