package db

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type memoryState struct {
	lastID map[string]int64

	coworkers    map[int64]*Coworker
	messages     map[int64]*Message
	cronJobs     map[int64]*CronJob
	cronHistory  map[int64]*CronHistory
	cronRequests map[int64]*CronRequest
	tasks        map[int64]*Task
	taskHistory  map[int64]*TaskHistory
}

func newMemoryState() *memoryState {
	return &memoryState{
		lastID:       make(map[string]int64),
		coworkers:    make(map[int64]*Coworker),
		messages:     make(map[int64]*Message),
		cronJobs:     make(map[int64]*CronJob),
		cronHistory:  make(map[int64]*CronHistory),
		cronRequests: make(map[int64]*CronRequest),
		tasks:        make(map[int64]*Task),
		taskHistory:  make(map[int64]*TaskHistory),
	}
}

func (st *memoryState) clone() *memoryState {
	return &memoryState{
		lastID:       cloneMap(st.lastID, func(v int64) int64 { return v }),
		coworkers:    cloneMap(st.coworkers, copyCoworker),
		messages:     cloneMap(st.messages, ptrCopy[Message]),
		cronJobs:     cloneMap(st.cronJobs, copyCronJob),
		cronHistory:  cloneMap(st.cronHistory, copyCronHistory),
		cronRequests: cloneMap(st.cronRequests, copyCronRequest),
		tasks:        cloneMap(st.tasks, copyTask),
		taskHistory:  cloneMap(st.taskHistory, copyTaskHistory),
	}
}

func (st *memoryState) nextID(table string) int64 {
	st.lastID[table]++
	return st.lastID[table]
}

// MemoryStore is an in-process Store for tests and throwaway sessions.
// All records are copied on the way in and out.
type MemoryStore struct {
	mu    *sync.RWMutex
	state *memoryState
	// inTx is set on the Store handed to a RunAtomic callback, which
	// already holds the write lock
	inTx bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.RWMutex{}, state: newMemoryState()}
}

func (s *MemoryStore) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunAtomic holds the write lock for the duration of fn and restores the
// previous state if fn fails.
func (s *MemoryStore) RunAtomic(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	scoped := &MemoryStore{mu: s.mu, state: s.state, inTx: true}
	if err := fn(scoped); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// Coworkers

func (s *MemoryStore) CreateCoworker(_ context.Context, c *Coworker) error {
	defer s.lock()()
	for _, existing := range s.state.coworkers {
		if existing.Name == c.Name {
			return fmt.Errorf("coworker %q: %w", c.Name, ErrAlreadyExists)
		}
	}
	c.ID = s.state.nextID("coworkers")
	s.state.coworkers[c.ID] = copyCoworker(c)
	return nil
}

func (s *MemoryStore) GetCoworker(_ context.Context, name string) (*Coworker, error) {
	defer s.rlock()()
	c := s.findCoworker(name)
	if c == nil {
		return nil, fmt.Errorf("coworker %q: %w", name, ErrNotFound)
	}
	return copyCoworker(c), nil
}

func (s *MemoryStore) CoworkerExists(_ context.Context, name string) (bool, error) {
	defer s.rlock()()
	return s.findCoworker(name) != nil, nil
}

func (s *MemoryStore) ListCoworkers(_ context.Context) ([]*Coworker, error) {
	defer s.rlock()()
	out := collect(s.state.coworkers, nil, copyCoworker)
	slices.SortFunc(out, func(a, b *Coworker) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *MemoryStore) UpdateCoworkerStatus(_ context.Context, name string, status *string) error {
	defer s.lock()()
	c := s.findCoworker(name)
	if c == nil {
		return fmt.Errorf("coworker %q: %w", name, ErrNotFound)
	}
	c.Status = ptrCopy(status)
	return nil
}

func (s *MemoryStore) DeleteCoworker(_ context.Context, id int64) error {
	defer s.lock()()
	if _, ok := s.state.coworkers[id]; !ok {
		return fmt.Errorf("delete coworker %d: %w", id, ErrNotFound)
	}
	delete(s.state.coworkers, id)
	return nil
}

func (s *MemoryStore) findCoworker(name string) *Coworker {
	for _, c := range s.state.coworkers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Messages

func (s *MemoryStore) CreateMessage(_ context.Context, m *Message) error {
	defer s.lock()()
	m.ID = s.state.nextID("messages")
	stored := *m
	stored.CreatedAt = m.CreatedAt.UTC()
	s.state.messages[m.ID] = &stored
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, filter MessageFilter) ([]*Message, error) {
	defer s.rlock()()
	out := collect(s.state.messages, func(m *Message) bool {
		if filter.Sender != nil && m.Sender != *filter.Sender {
			return false
		}
		if filter.Recipient != nil && m.Recipient != *filter.Recipient {
			return false
		}
		return !filter.UnreadOnly || !m.Read
	}, ptrCopy[Message])
	slices.SortFunc(out, func(a, b *Message) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) MarkMessageRead(_ context.Context, id int64) error {
	defer s.lock()()
	m, ok := s.state.messages[id]
	if !ok {
		return fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	m.Read = true
	return nil
}

func (s *MemoryStore) DeleteMessagesForCoworker(_ context.Context, name string) (int64, error) {
	defer s.lock()()
	return deleteWhere(s.state.messages, func(m *Message) bool {
		return m.Sender == name || m.Recipient == name
	}), nil
}

// Cron jobs

func (s *MemoryStore) CreateCronJob(_ context.Context, job *CronJob) error {
	defer s.lock()()
	for _, existing := range s.state.cronJobs {
		if existing.Name == job.Name && existing.Coworker == job.Coworker {
			return fmt.Errorf("cron job %q for %q: %w", job.Name, job.Coworker, ErrAlreadyExists)
		}
	}
	job.ID = s.state.nextID("cron_jobs")
	s.state.cronJobs[job.ID] = copyCronJob(job)
	return nil
}

func (s *MemoryStore) GetCronJob(_ context.Context, id int64) (*CronJob, error) {
	defer s.rlock()()
	job, ok := s.state.cronJobs[id]
	if !ok {
		return nil, fmt.Errorf("cron job %d: %w", id, ErrNotFound)
	}
	return copyCronJob(job), nil
}

func (s *MemoryStore) CronJobExists(_ context.Context, name, coworker string) (bool, error) {
	defer s.rlock()()
	for _, job := range s.state.cronJobs {
		if job.Name == name && job.Coworker == coworker {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListCronJobs(_ context.Context) ([]*CronJob, error) {
	defer s.rlock()()
	return sortedByID(collect(s.state.cronJobs, nil, copyCronJob), func(j *CronJob) int64 { return j.ID }), nil
}

func (s *MemoryStore) ListCronJobsForCoworker(_ context.Context, coworker string) ([]*CronJob, error) {
	defer s.rlock()()
	out := collect(s.state.cronJobs, func(j *CronJob) bool { return j.Coworker == coworker }, copyCronJob)
	return sortedByID(out, func(j *CronJob) int64 { return j.ID }), nil
}

func (s *MemoryStore) SetCronJobEnabled(_ context.Context, id int64, enabled bool) error {
	defer s.lock()()
	job, ok := s.state.cronJobs[id]
	if !ok {
		return fmt.Errorf("cron job %d: %w", id, ErrNotFound)
	}
	job.Enabled = enabled
	return nil
}

func (s *MemoryStore) SetCronJobLastRun(_ context.Context, id int64, at time.Time) error {
	defer s.lock()()
	job, ok := s.state.cronJobs[id]
	if !ok {
		return fmt.Errorf("cron job %d: %w", id, ErrNotFound)
	}
	at = at.UTC()
	job.LastRun = &at
	return nil
}

func (s *MemoryStore) DeleteCronJob(_ context.Context, id int64) error {
	defer s.lock()()
	if _, ok := s.state.cronJobs[id]; !ok {
		return fmt.Errorf("cron job %d: %w", id, ErrNotFound)
	}
	delete(s.state.cronJobs, id)
	deleteWhere(s.state.cronHistory, func(h *CronHistory) bool { return h.CronJobID == id })
	return nil
}

func (s *MemoryStore) DeleteCronJobsForCoworker(_ context.Context, coworker string) (int64, error) {
	defer s.lock()()
	var removed []int64
	for id, job := range s.state.cronJobs {
		if job.Coworker == coworker {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.state.cronJobs, id)
		deleteWhere(s.state.cronHistory, func(h *CronHistory) bool { return h.CronJobID == id })
	}
	return int64(len(removed)), nil
}

// Cron history

func (s *MemoryStore) AppendCronHistory(_ context.Context, entry *CronHistory) error {
	defer s.lock()()
	if _, ok := s.state.cronJobs[entry.CronJobID]; !ok {
		return fmt.Errorf("cron job %d: %w", entry.CronJobID, ErrNotFound)
	}
	entry.ID = s.state.nextID("cron_history")
	s.state.cronHistory[entry.ID] = copyCronHistory(entry)
	return nil
}

func (s *MemoryStore) ListCronHistory(_ context.Context, jobID int64, limit int) ([]*CronHistory, error) {
	defer s.rlock()()
	out := collect(s.state.cronHistory, func(h *CronHistory) bool { return h.CronJobID == jobID }, copyCronHistory)
	slices.SortFunc(out, func(a, b *CronHistory) int {
		return newestFirst(a.ExecutedAt, b.ExecutedAt, a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cron requests

func (s *MemoryStore) CreateCronRequest(_ context.Context, req *CronRequest) error {
	defer s.lock()()
	req.ID = s.state.nextID("cron_requests")
	s.state.cronRequests[req.ID] = copyCronRequest(req)
	return nil
}

func (s *MemoryStore) GetCronRequest(_ context.Context, id int64) (*CronRequest, error) {
	defer s.rlock()()
	req, ok := s.state.cronRequests[id]
	if !ok {
		return nil, fmt.Errorf("cron request %d: %w", id, ErrNotFound)
	}
	return copyCronRequest(req), nil
}

func (s *MemoryStore) ListCronRequests(_ context.Context, filter CronRequestFilter) ([]*CronRequest, error) {
	defer s.rlock()()
	out := collect(s.state.cronRequests, func(r *CronRequest) bool {
		if filter.Status != nil && r.Status != *filter.Status {
			return false
		}
		return filter.Coworker == nil || r.Coworker == *filter.Coworker
	}, copyCronRequest)
	slices.SortFunc(out, func(a, b *CronRequest) int {
		return newestFirst(a.RequestedAt, b.RequestedAt, a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) UpdateCronRequestStatus(_ context.Context, id int64, status CronRequestStatus, reviewer string, notes *string, at time.Time) error {
	defer s.lock()()
	req, ok := s.state.cronRequests[id]
	if !ok {
		return fmt.Errorf("cron request %d: %w", id, ErrNotFound)
	}
	if req.Status != CronRequestPending {
		return fmt.Errorf("cron request %d: status is already %s: %w", id, req.Status, ErrInvalidState)
	}
	at = at.UTC()
	req.Status = status
	req.ReviewedAt = &at
	req.ReviewedBy = &reviewer
	req.ReviewerNotes = ptrCopy(notes)
	return nil
}

func (s *MemoryStore) DeleteCronRequest(_ context.Context, id int64) error {
	defer s.lock()()
	if _, ok := s.state.cronRequests[id]; !ok {
		return fmt.Errorf("cron request %d: %w", id, ErrNotFound)
	}
	delete(s.state.cronRequests, id)
	return nil
}

func (s *MemoryStore) DeleteCronRequestsForCoworker(_ context.Context, coworker string) (int64, error) {
	defer s.lock()()
	return deleteWhere(s.state.cronRequests, func(r *CronRequest) bool { return r.Coworker == coworker }), nil
}

// Tasks

func (s *MemoryStore) CreateTask(_ context.Context, task *Task) error {
	defer s.lock()()
	task.ID = s.state.nextID("tasks")
	s.state.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (*Task, error) {
	defer s.rlock()()
	task, ok := s.state.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return copyTask(task), nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, task *Task) error {
	defer s.lock()()
	existing, ok := s.state.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %d: %w", task.ID, ErrNotFound)
	}
	updated := copyTask(task)
	updated.CreatedAt = existing.CreatedAt
	s.state.tasks[task.ID] = updated
	return nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id int64) error {
	defer s.lock()()
	if _, ok := s.state.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	delete(s.state.tasks, id)
	deleteWhere(s.state.taskHistory, func(h *TaskHistory) bool { return h.TaskID == id })
	return nil
}

func (s *MemoryStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	return s.SearchTasks(ctx, "", filter)
}

func (s *MemoryStore) SearchTasks(_ context.Context, query string, filter TaskFilter) ([]*Task, error) {
	defer s.rlock()()
	out := collect(s.state.tasks, func(t *Task) bool {
		if filter.Assignee != nil && (t.Assignee == nil || *t.Assignee != *filter.Assignee) {
			return false
		}
		if filter.Column != nil && t.Column != *filter.Column {
			return false
		}
		return matchesQuery(t, query)
	}, copyTask)
	return sortedByID(out, func(t *Task) int64 { return t.ID }), nil
}

func (s *MemoryStore) CountTasksByColumn(_ context.Context) (map[Column]int, error) {
	defer s.rlock()()
	counts := make(map[Column]int)
	for _, t := range s.state.tasks {
		counts[t.Column]++
	}
	return counts, nil
}

// Task history

func (s *MemoryStore) AppendTaskHistory(_ context.Context, entry *TaskHistory) error {
	defer s.lock()()
	if _, ok := s.state.tasks[entry.TaskID]; !ok {
		return fmt.Errorf("task %d: %w", entry.TaskID, ErrNotFound)
	}
	entry.ID = s.state.nextID("task_history")
	s.state.taskHistory[entry.ID] = copyTaskHistory(entry)
	return nil
}

func (s *MemoryStore) ListTaskHistory(_ context.Context, taskID int64) ([]*TaskHistory, error) {
	defer s.rlock()()
	out := collect(s.state.taskHistory, func(h *TaskHistory) bool { return h.TaskID == taskID }, copyTaskHistory)
	slices.SortFunc(out, func(a, b *TaskHistory) int {
		if c := a.MovedAt.Compare(b.MovedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// helpers

func ptrCopy[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyCoworker(c *Coworker) *Coworker {
	out := *c
	out.Status = ptrCopy(c.Status)
	out.CreatedAt = c.CreatedAt.UTC()
	return &out
}

func copyCronJob(j *CronJob) *CronJob {
	out := *j
	out.Timezone = ptrCopy(j.Timezone)
	out.CreatedAt = j.CreatedAt.UTC()
	out.LastRun = utcPtr(j.LastRun)
	return &out
}

func copyCronHistory(h *CronHistory) *CronHistory {
	out := *h
	out.ExecutedAt = h.ExecutedAt.UTC()
	out.ErrorMessage = ptrCopy(h.ErrorMessage)
	return &out
}

func copyCronRequest(r *CronRequest) *CronRequest {
	out := *r
	out.Timezone = ptrCopy(r.Timezone)
	out.RequestedAt = r.RequestedAt.UTC()
	out.ReviewedAt = utcPtr(r.ReviewedAt)
	out.ReviewedBy = ptrCopy(r.ReviewedBy)
	out.ReviewerNotes = ptrCopy(r.ReviewerNotes)
	return &out
}

func copyTask(t *Task) *Task {
	out := *t
	out.Assignee = ptrCopy(t.Assignee)
	out.Dependencies = slices.Clone(t.Dependencies)
	if out.Dependencies == nil {
		out.Dependencies = []int64{}
	}
	out.CreatedAt = t.CreatedAt.UTC()
	out.UpdatedAt = t.UpdatedAt.UTC()
	return &out
}

func copyTaskHistory(h *TaskHistory) *TaskHistory {
	out := *h
	out.FromColumn = ptrCopy(h.FromColumn)
	out.MovedAt = h.MovedAt.UTC()
	return &out
}

func cloneMap[K comparable, V any](m map[K]V, copyFn func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = copyFn(v)
	}
	return out
}

// collect copies the values of m that satisfy keep (all when keep is nil)
func collect[T any](m map[int64]*T, keep func(*T) bool, copyFn func(*T) *T) []*T {
	var out []*T
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, copyFn(v))
		}
	}
	return out
}

func deleteWhere[T any](m map[int64]*T, match func(*T) bool) int64 {
	var n int64
	for id, v := range m {
		if match(v) {
			delete(m, id)
			n++
		}
	}
	return n
}

func sortedByID[T any](items []*T, id func(*T) int64) []*T {
	slices.SortFunc(items, func(a, b *T) int { return cmp.Compare(id(a), id(b)) })
	return items
}

func newestFirst(a, b time.Time, aID, bID int64) int {
	if c := b.Compare(a); c != 0 {
		return c
	}
	return cmp.Compare(bID, aID)
}
