package briefing

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"reg-briefing/internal/domain"
)

// runRegistry хранит статусы запусков с ограничением по размеру и времени жизни.
type runRegistry struct {
	mu   sync.Mutex
	runs *expirable.LRU[string, domain.RunStatus]
}

func newRunRegistry(size int, ttl time.Duration) *runRegistry {
	if size <= 0 {
		size = 500
	}
	return &runRegistry{runs: expirable.NewLRU[string, domain.RunStatus](size, nil, ttl)}
}

func (r *runRegistry) put(status domain.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs.Add(status.RunID, status)
}

func (r *runRegistry) get(id string) (domain.RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs.Get(id)
}

// advance применяет изменение к статусу, если оно не откатывает стадию назад
// и запуск ещё не завершён.
func (r *runRegistry) advance(id string, at time.Time, mutate func(*domain.RunStatus)) (domain.RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.runs.Get(id)
	if !ok || current.State.Terminal() {
		return current, false
	}
	next := current
	mutate(&next)
	if next.State.Rank() < current.State.Rank() {
		return current, false
	}
	next.RunID = current.RunID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = at
	r.runs.Add(id, next)
	return next, true
}
