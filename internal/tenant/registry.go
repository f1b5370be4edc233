// Package tenant maps API keys to tenant identifiers from a YAML keys file
// that is reloaded whenever it changes on disk.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/model"
)

// ErrUnknownKey is returned when an API key maps to no tenant.
var ErrUnknownKey = errors.New("tenant: unknown api key")

type keysFile struct {
	Keys map[string]string `yaml:"keys"`
}

// Registry resolves API keys to tenants. The zero path disables key
// resolution entirely.
type Registry struct {
	path string

	mu   sync.RWMutex
	keys map[string]string

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRegistry loads path. An empty path yields a registry with no keys.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, keys: map[string]string{}, stopCh: make(chan struct{})}
	if path == "" {
		return r, nil
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the keys file. Entries naming an invalid tenant are
// skipped with a warning. On error the previous keys stay in effect.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("tenant: read keys file: %w", err)
	}
	var f keysFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("tenant: parse keys file: %w", err)
	}

	keys := make(map[string]string, len(f.Keys))
	for key, t := range f.Keys {
		if key == "" {
			continue
		}
		if err := logstore.ValidateTenant(t); err != nil {
			log.Warn().Str("tenant", t).Msg("tenant: skipping key for invalid tenant")
			continue
		}
		keys[key] = t
	}

	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()
	log.Info().Int("keys", len(keys)).Str("path", r.path).Msg("tenant: keys loaded")
	return nil
}

// Resolve returns the tenant owning apiKey.
func (r *Registry) Resolve(apiKey string) (string, error) {
	r.mu.RLock()
	t, ok := r.keys[apiKey]
	r.mu.RUnlock()
	if !ok || apiKey == "" {
		return "", ErrUnknownKey
	}
	return t, nil
}

// TenantFor picks the tenant of a keyed request. An API key wins over an
// explicit app ID, and a request carrying neither goes to the default
// tenant.
func (r *Registry) TenantFor(appID, apiKey string) (string, error) {
	if apiKey != "" {
		return r.Resolve(apiKey)
	}
	if appID == "" {
		return model.DefaultTenant, nil
	}
	if err := logstore.ValidateTenant(appID); err != nil {
		return "", err
	}
	return appID, nil
}

// Known reports whether t owns a loaded key or is the default tenant.
func (r *Registry) Known(t string) bool {
	if t == model.DefaultTenant {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, owner := range r.keys {
		if owner == t {
			return true
		}
	}
	return false
}

// Len returns the number of loaded keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Watch reloads the keys file on every write, create or rename in its
// directory until ctx is cancelled or Close is called. The directory is
// watched so editors that replace the file keep working.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tenant: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("tenant: watch keys dir: %w", err)
	}
	r.watcher = watcher

	r.wg.Add(1)
	go r.watchLoop(ctx)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context) {
	defer r.wg.Done()
	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := r.Reload(); err != nil {
				log.Warn().Err(err).Msg("tenant: reload failed, keeping previous keys")
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("tenant: watcher error")
		}
	}
}

// Close stops watching. Safe to call more than once.
func (r *Registry) Close() error {
	var err error
	r.once.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
		if r.watcher != nil {
			err = r.watcher.Close()
		}
	})
	return err
}
