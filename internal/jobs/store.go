package jobs

import (
	"sort"
	"sync"
	"time"

	"montage/internal/pkg/errors"
)

// Store is a concurrency-safe job registry. The map lock is only held to
// find or add an entry; each entry has its own lock for reads and the
// read-modify-write in Update.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu  sync.RWMutex
	job Job
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Insert adds a job. Inserting an existing ID is a conflict.
func (s *Store) Insert(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[job.ID]; ok {
		return errors.Newf(errors.CodeConflict, "job already exists: %s", job.ID)
	}
	s.entries[job.ID] = &entry{job: job}
	return nil
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (Job, bool) {
	e := s.lookup(id)
	if e == nil {
		return Job{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.job, true
}

type ListFilter struct {
	Status Status
	Limit  int
}

// List returns job copies, newest first.
func (s *Store) List(f ListFilter) []Job {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Job, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		j := e.job
		e.mu.RUnlock()
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, j)
	}

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Update applies fn to a copy of the job and commits the result if the
// status change is allowed. Progress never moves backwards, is clamped to
// [0,100] and is forced to 100 on completion.
func (s *Store) Update(id string, fn func(*Job)) (Job, error) {
	e := s.lookup(id)
	if e == nil {
		return Job{}, errors.NotFound("job", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.job
	next := cur
	fn(&next)

	if !next.Status.Valid() || !canMove(cur.Status, next.Status) {
		return cur, errors.Newf(errors.CodeConflict, "job %s: invalid transition %s -> %s", id, cur.Status, next.Status).
			WithField("from", string(cur.Status)).
			WithField("to", string(next.Status))
	}

	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.Progress = max(min(next.Progress, 100), cur.Progress, 0)
	if next.Status == StatusCompleted {
		next.Progress = 100
	}
	next.UpdatedAt = time.Now().UTC()

	e.job = next
	return next, nil
}

// MarkRunning moves a pending job to running.
func (s *Store) MarkRunning(id string) (Job, error) {
	return s.Update(id, func(j *Job) { j.Status = StatusRunning })
}

// SetProgress records a progress observation for a running job.
func (s *Store) SetProgress(id string, progress int) (Job, error) {
	return s.Update(id, func(j *Job) { j.Progress = progress })
}

// Complete marks a job finished with its artifact at outputPath.
func (s *Store) Complete(id, outputPath, objectKey string) (Job, error) {
	return s.Update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.OutputPath = outputPath
		j.ObjectKey = objectKey
		j.Error = ""
	})
}

// Fail marks a job failed with msg. Progress keeps its last value.
func (s *Store) Fail(id, msg string) (Job, error) {
	return s.Update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = msg
	})
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}
