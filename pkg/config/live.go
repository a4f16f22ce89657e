package config

import (
	"slices"
	"sync"
)

// Live holds the settings that may change while the bot runs.
type Live struct {
	mu         sync.RWMutex
	adminIDs   []int64
	supportURL string
}

// NewLive seeds live settings from the loaded configuration.
func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.Update(cfg.Admin.IDs(), cfg.Admin.SupportURL)
	return l
}

// Update swaps the admin list and support URL. An empty URL keeps the current one.
func (l *Live) Update(adminIDs []int64, supportURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.adminIDs = slices.Clone(adminIDs)
	if supportURL != "" {
		l.supportURL = supportURL
	}
}

func (l *Live) SupportURL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supportURL
}

func (l *Live) AdminIDs() []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.adminIDs)
}

func (l *Live) IsAdmin(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.adminIDs, id)
}
