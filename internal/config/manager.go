package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

// Manager holds the current config and optionally watches the file for
// changes. Daemon mode uses it so edits take effect on the next scheduled
// run without a restart; one-shot mode only ever calls Load once.
type Manager struct {
	path string
	log  logx.Logger

	mu   sync.RWMutex
	cfg  *Config
	subs []chan *Config
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

// SetLogger swaps the manager's logger. The manager is typically created
// before the configured logger exists, so daemon mode installs the real one
// here before calling Watch.
func (m *Manager) SetLogger(log logx.Logger) {
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
}

func (m *Manager) logger() logx.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.log
}

func (m *Manager) Load() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Subscribe(buffer int) <-chan *Config {
	ch := make(chan *Config, buffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) publish(cfg *Config) {
	m.mu.RLock()
	subs := append([]chan *Config{}, m.subs...)
	m.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
			// drop if slow subscriber
		}
	}
}

// Watch blocks until ctx is done, republishing the config whenever the file
// changes. Invalid edits are ignored; the last good config stays current.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, m.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events:
			if ev.Name == filepath.Join(dir, file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			}
		case err := <-w.Errors:
			m.logger().Warn("config watcher error", logx.Err(err))
		}
	}
}

// reload re-reads the file and publishes the result to subscribers. A bad
// edit keeps the last good config current.
func (m *Manager) reload() {
	cfg, err := m.Load()
	if err != nil {
		m.logger().Warn("config reload failed, keeping previous config",
			logx.String("path", m.path), logx.Err(err))
		return
	}
	m.publish(cfg)
}
