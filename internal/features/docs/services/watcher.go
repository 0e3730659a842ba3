package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"the-keep/internal/core"
)

const (
	// Roots are re-checked on a timer as well as on filesystem events.
	recheckInterval = 30 * time.Second
	// Minimum gap between repeated alerts for a mount that stays down.
	alertInterval = 30 * time.Minute
	// Upper bound on a single alert delivery.
	alertTimeout = 15 * time.Second
)

// AlertSender delivers mount availability alerts. Implemented by the
// mailer; nil disables alerting.
type AlertSender interface {
	SendMountAlert(ctx context.Context, mount, root string, available bool) error
}

// WatcherService tracks whether each mount's root directory still exists.
// It watches the parent directories with fsnotify for fast reaction and
// re-stats every root periodically in case events are missed.
type WatcherService struct {
	logger *core.Logger
	mounts []core.MountConfig
	alerts AlertSender

	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}

	mu        sync.RWMutex
	available map[string]bool
	lastAlert map[string]time.Time
}

// NewWatcherService creates a watcher for the given mounts.
func NewWatcherService(logger *core.Logger, mounts []core.MountConfig, alerts AlertSender) *WatcherService {
	return &WatcherService{
		logger:    logger,
		mounts:    mounts,
		alerts:    alerts,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		available: make(map[string]bool),
		lastAlert: make(map[string]time.Time),
	}
}

// Start records the initial state of every root and launches the watch loop.
func (s *WatcherService) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	s.watcher = watcher

	// Watch each root's parent so removal and re-creation of the root
	// itself are visible.
	parents := make(map[string]bool)
	for _, mount := range s.mounts {
		parent := filepath.Dir(filepath.Clean(mount.Root))
		if parents[parent] {
			continue
		}
		if err := watcher.Add(parent); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", parent, err)
		}
		parents[parent] = true
	}

	s.mu.Lock()
	for _, mount := range s.mounts {
		s.available[mount.Name] = rootAvailable(mount.Root)
	}
	s.mu.Unlock()

	go s.run()

	s.logger.Info("Mount watcher started", "mounts", len(s.mounts), "watched_dirs", len(parents))
	return nil
}

// Stop halts the watch loop.
func (s *WatcherService) Stop(ctx context.Context) error {
	close(s.done)

	select {
	case <-s.stopped:
	case <-ctx.Done():
		return fmt.Errorf("watcher shutdown interrupted: %w", ctx.Err())
	}

	return s.watcher.Close()
}

// Available reports the last known state of a mount's root.
func (s *WatcherService) Available(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available[name]
}

// Status returns a snapshot of all mount states.
func (s *WatcherService) Status() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make(map[string]bool, len(s.available))
	for name, available := range s.available {
		status[name] = available
	}
	return status
}

func (s *WatcherService) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(recheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("Filesystem watcher error", "error", err)
		case <-ticker.C:
			s.checkAllMounts()
		}
	}
}

// handleEvent re-checks any mount whose root the event touched.
func (s *WatcherService) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	name := filepath.Clean(event.Name)
	for _, mount := range s.mounts {
		if filepath.Clean(mount.Root) == name {
			s.checkMount(mount)
		}
	}
}

func (s *WatcherService) checkAllMounts() {
	for _, mount := range s.mounts {
		s.checkMount(mount)
	}
}

func (s *WatcherService) checkMount(mount core.MountConfig) {
	s.updateStatus(mount, rootAvailable(mount.Root))
}

func rootAvailable(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

// updateStatus records the new state and sends alerts on transitions. A
// mount that stays down is re-alerted at most once per alertInterval.
func (s *WatcherService) updateStatus(mount core.MountConfig, available bool) {
	s.mu.Lock()
	previous := s.available[mount.Name]
	s.available[mount.Name] = available

	shouldAlert := false
	switch {
	case previous && !available:
		s.logger.Warn("Mount root became unavailable", "mount", mount.Name, "root", mount.Root)
		shouldAlert = true
	case !previous && available:
		s.logger.Info("Mount root recovered", "mount", mount.Name, "root", mount.Root)
		shouldAlert = true
	case !previous && !available:
		shouldAlert = time.Since(s.lastAlert[mount.Name]) > alertInterval
	}

	if shouldAlert {
		s.lastAlert[mount.Name] = time.Now()
	}
	s.mu.Unlock()

	if shouldAlert && s.alerts != nil {
		go s.sendAlert(mount, available)
	}
}

func (s *WatcherService) sendAlert(mount core.MountConfig, available bool) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	if err := s.alerts.SendMountAlert(ctx, mount.Name, mount.Root, available); err != nil {
		s.logger.Error("Failed to send mount alert", "mount", mount.Name, "error", err)
		return
	}

	s.logger.Info("Sent mount alert", "mount", mount.Name, "available", available)
}
