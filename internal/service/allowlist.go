package service

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/ports"
)

// AllowList is the in-memory set of group JIDs permitted to use the bot.
// Every mutation persists a sorted snapshot through the repository while
// still holding the lock, so the file never lags the set. Persistence
// failures are logged and never reach the chat.
type AllowList struct {
	logger *slog.Logger
	repo   ports.AllowedGroupsRepository

	mu     sync.Mutex
	groups map[string]struct{}
}

func NewAllowList(logger *slog.Logger, repo ports.AllowedGroupsRepository) *AllowList {
	return &AllowList{
		logger: logger,
		repo:   repo,
		groups: make(map[string]struct{}),
	}
}

func (a *AllowList) Load() error {
	groups, err := a.repo.Load()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, group := range groups {
		a.groups[group] = struct{}{}
	}
	return nil
}

// Add reports whether the group was newly added.
func (a *AllowList) Add(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.groups[id]; ok {
		return false
	}
	a.groups[id] = struct{}{}
	a.persistLocked()
	return true
}

// Remove reports whether the group was present.
func (a *AllowList) Remove(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.groups[id]; !ok {
		return false
	}
	delete(a.groups, id)
	a.persistLocked()
	return true
}

func (a *AllowList) Contains(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.groups[id]
	return ok
}

func (a *AllowList) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *AllowList) Snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Flush persists the current set, for graceful shutdown.
func (a *AllowList) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.persistLocked()
}

func (a *AllowList) snapshotLocked() []string {
	out := make([]string, 0, len(a.groups))
	for group := range a.groups {
		out = append(out, group)
	}
	sort.Strings(out)
	return out
}

func (a *AllowList) persistLocked() {
	if err := a.repo.Save(a.snapshotLocked()); err != nil {
		a.logger.Error("persist allowed groups failed", "error", err)
	}
}
