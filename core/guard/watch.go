package guard

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

const reloadDebounce = 100 * time.Millisecond

// PolicyStore holds the live policy: the base policy overlaid with an optional YAML file.
type PolicyStore struct {
	mu     sync.RWMutex
	policy Policy
	base   Policy
	path   string
	log    core.Logger
}

// NewPolicyStore loads path over base. An empty path serves base unchanged.
func NewPolicyStore(base Policy, path string, log core.Logger) (*PolicyStore, error) {
	if log == nil {
		log = core.NopLogger{}
	}
	s := &PolicyStore{policy: base, base: base, path: path, log: log}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if path != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PolicyStore) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Reload re-reads the policy file. An invalid file leaves the current policy in place.
func (s *PolicyStore) Reload() error {
	p, err := LoadPolicy(s.path, s.base)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return nil
}

// Watch reloads the policy whenever its file changes, until ctx is done.
// The parent directory is watched so that editors replacing the file are seen.
func (s *PolicyStore) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating policy watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return errors.Wrap(err, "watching policy directory")
	}
	name := filepath.Clean(s.path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)

		case <-debounce:
			debounce = nil
			if err := s.Reload(); err != nil {
				s.log.Error("reloading guard policy", err, map[string]interface{}{"path": s.path})
				continue
			}
			s.log.Info("guard policy reloaded", map[string]interface{}{"path": s.path})

		case wErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("policy watcher error", wErr)
		}
	}
}
