// Package domain orchestrates the request lifecycle on top of the repository,
// the escalation registry and the event dispatcher.
package domain

import (
	"context"
	"sync"
	"time"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/repository"

	"go.uber.org/zap"
)

// SettingsProvider serves and replaces the active notification settings.
type SettingsProvider interface {
	Current() *entities.NotificationSettings
	Save(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error)
	Reload(ctx context.Context) (*entities.NotificationSettings, error)
}

// Registry tracks open requests for escalation.
type Registry interface {
	Register(req entities.Request)
	Update(req entities.Request)
	Unregister(id string)
}

// Emitter accepts lifecycle events without blocking.
type Emitter interface {
	Enqueue(ev entities.Event) bool
}

// Usecase struct implements all usecase interfaces.
type Usecase struct {
	ctx      context.Context
	log      *zap.SugaredLogger
	repo     repository.Repository
	settings SettingsProvider
	registry Registry
	events   Emitter
	timeout  time.Duration
	now      func() time.Time
	locks    *keyedMutex
}

// New constructs a new usecase layer with its dependencies.
func New(
	log *zap.SugaredLogger,
	ctx context.Context,
	repo repository.Repository,
	settings SettingsProvider,
	registry Registry,
	events Emitter,
	timeout time.Duration,
) *Usecase {
	return &Usecase{
		ctx:      ctx,
		log:      log.Named("usecase"),
		repo:     repo,
		settings: settings,
		registry: registry,
		events:   events,
		timeout:  timeout,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// keyedMutex serializes work per request id. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
