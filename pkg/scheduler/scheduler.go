package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const (
	defaultLockTTL      = 50 * time.Second
	defaultSyncInterval = time.Minute
)

// WorkflowSource lists the workflows that carry a cron schedule.
type WorkflowSource interface {
	ListScheduledWorkflows(ctx context.Context) ([]*types.Workflow, error)
}

// Runner executes one scheduled workflow.
type Runner interface {
	RunWorkflow(ctx context.Context, w *types.Workflow) error
}

// Locker guards a tick so only one replica fires it. Nil in local mode.
type Locker interface {
	Acquire(ctx context.Context, key string, opts common.RedisLockOptions) error
}

type entry struct {
	id       cron.EntryID
	schedule string
	workflow *types.Workflow
}

// Entry describes a registered workflow and its next fire time.
type Entry struct {
	WorkflowID string    `json:"workflow_id"`
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	Next       time.Time `json:"next"`
	Prev       time.Time `json:"prev,omitempty"`
}

// Scheduler fires saved workflows on their cron schedules
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	config types.SchedulerConfig

	cron   *cron.Cron
	source WorkflowSource
	runner Runner
	lock   Locker
	now    func() time.Time

	syncInterval time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. lock may be nil when running without Redis.
func NewScheduler(ctx context.Context, config types.SchedulerConfig, source WorkflowSource, runner Runner, lock Locker) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)

	return &Scheduler{
		ctx:          ctx,
		cancel:       cancel,
		config:       config,
		cron:         cron.New(cron.WithLocation(time.UTC)),
		source:       source,
		runner:       runner,
		lock:         lock,
		now:          time.Now,
		syncInterval: defaultSyncInterval,
		entries:      make(map[string]*entry),
	}
}

// Start loads the scheduled workflows and begins firing them
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Sync(s.ctx); err != nil {
		log.Error().Err(err).Msg("failed to load scheduled workflows")
	}

	s.cron.Start()

	s.wg.Add(1)
	go s.syncLoop()

	log.Info().Int("workflows", s.Len()).Msg("scheduler started")
	return nil
}

// Stop halts the cron driver and waits for running ticks
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(s.ctx); err != nil {
				log.Warn().Err(err).Msg("scheduled workflow sync failed")
			}
		}
	}
}

// Sync reconciles cron entries with the stored workflows. New and changed
// schedules are (re)registered; removed or deactivated ones are dropped.
func (s *Scheduler) Sync(ctx context.Context) error {
	workflows, err := s.source.ListScheduledWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(workflows))
	for _, w := range workflows {
		if !w.IsActive || w.Schedule == "" {
			continue
		}
		seen[w.ID] = true

		if cur, ok := s.entries[w.ID]; ok {
			if cur.schedule == w.Schedule {
				cur.workflow = w
				continue
			}
			s.cron.Remove(cur.id)
			delete(s.entries, w.ID)
		}

		if _, err := cron.ParseStandard(w.Schedule); err != nil {
			log.Warn().Err(err).Str("workflow_id", w.ID).Str("schedule", w.Schedule).Msg("invalid workflow schedule")
			continue
		}

		e := &entry{schedule: w.Schedule, workflow: w}
		id, err := s.cron.AddFunc(w.Schedule, func() { s.fire(e) })
		if err != nil {
			log.Warn().Err(err).Str("workflow_id", w.ID).Msg("failed to register workflow schedule")
			continue
		}
		e.id = id
		s.entries[w.ID] = e

		log.Info().Str("workflow_id", w.ID).Str("schedule", w.Schedule).Msg("workflow scheduled")
	}

	for id, e := range s.entries {
		if !seen[id] {
			s.cron.Remove(e.id)
			delete(s.entries, id)
			log.Info().Str("workflow_id", id).Msg("workflow unscheduled")
		}
	}
	return nil
}

func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	w := e.workflow
	s.mu.Unlock()

	s.Fire(s.ctx, w)
}

// Fire runs w once for the current minute. Replicas that lose the tick lock
// skip the run; the lock is left to expire so late replicas skip too.
func (s *Scheduler) Fire(ctx context.Context, w *types.Workflow) bool {
	if s.lock != nil {
		ttl := s.config.LockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		key := common.Keys.WorkflowTickLock(w.ID, s.now().Unix()/60)

		err := s.lock.Acquire(ctx, key, common.RedisLockOptions{TtlS: int(ttl.Seconds())})
		if errors.Is(err, common.ErrLockNotObtained) {
			log.Debug().Str("workflow_id", w.ID).Msg("tick owned by another replica")
			return false
		}
		if err != nil {
			log.Error().Err(err).Str("workflow_id", w.ID).Msg("failed to acquire tick lock")
			return false
		}
	}

	start := s.now()
	if err := s.runner.RunWorkflow(ctx, w); err != nil {
		log.Error().Err(err).Str("workflow_id", w.ID).Str("user_id", w.UserID).Msg("scheduled workflow failed")
		return true
	}

	log.Info().
		Str("workflow_id", w.ID).
		Str("user_id", w.UserID).
		Dur("duration", s.now().Sub(start)).
		Msg("scheduled workflow completed")
	return true
}

// Entries lists the registered workflows ordered by next fire time
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, Entry{
			WorkflowID: id,
			Name:       e.workflow.Name,
			Schedule:   e.schedule,
			Next:       ce.Next,
			Prev:       ce.Prev,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].WorkflowID < out[j].WorkflowID
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
