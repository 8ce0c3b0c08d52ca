// Package inmem keeps the portal's live sessions in memory.
// Sessions do not survive a restart; users sign in again.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

type sessionTable struct {
	sync.RWMutex
	table map[string]*session.Session
}

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository() session.Repository {
	return &sessionRepository{db: &sessionTable{table: make(map[string]*session.Session)}}
}

func (repo *sessionRepository) Save(s *session.Session) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[s.ID] = s
	return nil
}

func (repo *sessionRepository) Get(id string) (*session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

// Delete closes and forgets the session.
func (repo *sessionRepository) Delete(id string) error {
	repo.db.Lock()
	s, ok := repo.db.table[id]
	delete(repo.db.table, id)
	repo.db.Unlock()

	if !ok {
		return session.ErrNotFound
	}
	s.Close()
	return nil
}

func (repo *sessionRepository) Sweep(idle time.Duration) int {
	cutoff := core.NowFunc().Add(-idle)

	repo.db.Lock()
	var expired []*session.Session
	for id, s := range repo.db.table {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(repo.db.table, id)
		}
	}
	repo.db.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

func (repo *sessionRepository) Count() int {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.table)
}

// RunSweeper sweeps repo every interval until ctx is done.
func RunSweeper(ctx context.Context, repo session.Repository, interval, idle time.Duration, log core.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := repo.Sweep(idle); n > 0 {
				log.Info("swept idle sessions", map[string]interface{}{"count": n})
			}
		}
	}
}
