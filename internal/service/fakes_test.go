package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/apexam/assess-backend/internal/model"
	"github.com/apexam/assess-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeClock pins time for lifecycle tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory SessionStore and ResultStore. Missing rows are
// reported as pgx.ErrNoRows, matching the production repositories.
type fakeStore struct {
	mu       sync.Mutex
	clock    Clock
	sessions map[uuid.UUID]*model.Session
	results  map[uuid.UUID]*model.Result
	order    []uuid.UUID // session insertion order, oldest first

	housekeepingCalls int
}

func newFakeStore(clock Clock) *fakeStore {
	return &fakeStore{
		clock:    clock,
		sessions: make(map[uuid.UUID]*model.Session),
		results:  make(map[uuid.UUID]*model.Result),
	}
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	if s.ExpiresAt != nil {
		e := *s.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

func cloneResult(r *model.Result) *model.Result {
	c := *r
	return &c
}

func (f *fakeStore) Create(ctx context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = f.clock.Now()
	s.UpdatedAt = s.CreatedAt
	f.sessions[s.ID] = cloneSession(s)
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(s), nil
}

func (f *fakeStore) GetLatestByStudent(ctx context.Context, studentID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		if s, ok := f.sessions[f.order[i]]; ok && s.StudentID == studentID {
			return cloneSession(s), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetActiveByStudent(ctx context.Context, studentID string, now time.Time) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		s, ok := f.sessions[f.order[i]]
		if !ok || s.StudentID != studentID || s.Status != model.SessionStatusActive {
			continue
		}
		if s.ExpiresAt == nil || s.ExpiresAt.After(now) {
			return cloneSession(s), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	s.Status = status
	s.UpdatedAt = f.clock.Now()
	return true, nil
}

func (f *fakeStore) Touch(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.UpdatedAt = f.clock.Now()
	}
	return nil
}

func (f *fakeStore) ExpireActiveByStudent(ctx context.Context, studentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.StudentID == studentID && s.Status == model.SessionStatusActive {
			s.Status = model.SessionStatusExpired
			s.UpdatedAt = f.clock.Now()
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.Status == model.SessionStatusActive && s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			s.Status = model.SessionStatusExpired
			s.UpdatedAt = f.clock.Now()
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkAbandoned(ctx context.Context, now, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.Status == model.SessionStatusActive &&
			s.UpdatedAt.Before(cutoff) &&
			(s.ExpiresAt == nil || s.ExpiresAt.After(now)) {
			s.Status = model.SessionStatusExpired
			s.UpdatedAt = f.clock.Now()
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deletedSessions, deletedResults int64
	for id, s := range f.sessions {
		if s.Status == model.SessionStatusActive || !s.UpdatedAt.Before(cutoff) {
			continue
		}
		for rid, r := range f.results {
			if r.SessionID == id {
				delete(f.results, rid)
				deletedResults++
			}
		}
		delete(f.sessions, id)
		deletedSessions++
	}
	return deletedSessions, deletedResults, nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return false, nil
	}
	for rid, r := range f.results {
		if r.SessionID == id {
			delete(f.results, rid)
		}
	}
	delete(f.sessions, id)
	return true, nil
}

func (f *fakeStore) Counts(ctx context.Context, now, abandonCutoff time.Time) (*repository.SessionCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &repository.SessionCounts{Results: int64(len(f.results))}
	for _, s := range f.sessions {
		c.Total++
		switch {
		case s.Status == model.SessionStatusCompleted:
			c.Completed++
		case s.Status == model.SessionStatusCancelled:
			c.Cancelled++
		case s.Status == model.SessionStatusExpired:
			c.Expired++
		case s.ExpiresAt != nil && !s.ExpiresAt.After(now):
			c.Expired++
		default:
			c.Active++
			if s.UpdatedAt.Before(abandonCutoff) {
				c.Abandoned++
			}
		}
	}
	return c, nil
}

func (f *fakeStore) Housekeeping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.housekeepingCalls++
	return nil
}

// ResultStore implementation.

func (f *fakeStore) CreateResult(ctx context.Context, r *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = f.clock.Now()
	r.UpdatedAt = r.CreatedAt
	f.results[r.ID] = cloneResult(r)
	return nil
}

func (f *fakeStore) GetResultByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneResult(r), nil
}

func (f *fakeStore) UpdateResult(ctx context.Context, r *model.Result) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.results[r.ID]
	if !ok {
		return false, nil
	}
	existing.Response = r.Response
	existing.Score = r.Score
	existing.TimeSpentSeconds = r.TimeSpentSeconds
	existing.UpdatedAt = f.clock.Now()
	return true, nil
}

func (f *fakeStore) DeleteResult(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.results[id]; !ok {
		return false, nil
	}
	delete(f.results, id)
	return true, nil
}

func (f *fakeStore) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Result
	for _, r := range f.results {
		if r.SessionID == sessionID {
			out = append(out, *cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.results {
		if r.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// resultStoreAdapter exposes fakeStore's result methods under the ResultStore
// method names.
type resultStoreAdapter struct{ *fakeStore }

func (a resultStoreAdapter) Create(ctx context.Context, r *model.Result) error {
	return a.CreateResult(ctx, r)
}

func (a resultStoreAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	return a.GetResultByID(ctx, id)
}

func (a resultStoreAdapter) Update(ctx context.Context, r *model.Result) (bool, error) {
	return a.UpdateResult(ctx, r)
}

func (a resultStoreAdapter) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return a.DeleteResult(ctx, id)
}

// fakeCache records cache traffic without a real redis.
type fakeCache struct {
	mu            sync.Mutex
	active        map[string]*model.Session
	invalidations []string
	sweeps        []SweepStats
	stats         *repository.SessionCounts
}

func newFakeCache() *fakeCache {
	return &fakeCache{active: make(map[string]*model.Session)}
}

func (c *fakeCache) GetActiveSession(ctx context.Context, studentID string) (*model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.active[studentID]
	if !ok {
		return nil, false
	}
	return cloneSession(s), true
}

func (c *fakeCache) SetActiveSession(ctx context.Context, s *model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[s.StudentID] = cloneSession(s)
}

func (c *fakeCache) InvalidateStudent(ctx context.Context, studentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, studentID)
	c.invalidations = append(c.invalidations, studentID)
}

func (c *fakeCache) SetStats(ctx context.Context, counts *repository.SessionCounts) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = counts
}

func (c *fakeCache) PublishSweep(ctx context.Context, stats SweepStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps = append(c.sweeps, stats)
}

func (c *fakeCache) sweepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sweeps)
}
