package engine

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"giveabot/lib/clock"
	"giveabot/lib/sl"
)

// Scheduler arms at most one timer per giveaway: a priority queue of
// (fire time, giveaway id) drained by a single dispatcher goroutine.
// Timer handles are transient; the durable end times live in the store
// and the engine rebuilds the queue on startup.
type Scheduler struct {
	log   *slog.Logger
	clock clock.Clock
	fire  func(id int64)

	mu      sync.Mutex
	queue   timerQueue
	pending map[int64]*timerEntry

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

type timerEntry struct {
	id    int64
	at    time.Time
	index int
}

func NewScheduler(clk clock.Clock, log *slog.Logger, fire func(id int64)) *Scheduler {
	return &Scheduler{
		log:     log.With(sl.Module("scheduler")),
		clock:   clk,
		fire:    fire,
		pending: make(map[int64]*timerEntry),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Schedule arms (or re-arms) the timer for a giveaway.
func (s *Scheduler) Schedule(id int64, at time.Time) {
	s.mu.Lock()
	if e, ok := s.pending[id]; ok {
		e.at = at
		heap.Fix(&s.queue, e.index)
	} else {
		e = &timerEntry{id: id, at: at}
		s.pending[id] = e
		heap.Push(&s.queue, e)
	}
	s.mu.Unlock()

	s.log.Debug("timer armed", sl.GiveawayId(id), slog.Time("fire_at", at))
	s.notify()
}

// Cancel disarms a pending timer. Best-effort: a timer that already fired
// is harmless because termination is idempotent.
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if ok {
		heap.Remove(&s.queue, e.index)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("timer cancelled", sl.GiveawayId(id))
		s.notify()
	}
}

func (s *Scheduler) Run() {
	go s.loop()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		now := s.clock.Now()

		s.mu.Lock()
		var due []int64
		for s.queue.Len() > 0 && !s.queue[0].at.After(now) {
			e := heap.Pop(&s.queue).(*timerEntry)
			delete(s.pending, e.id)
			due = append(due, e.id)
		}
		var waitCh <-chan time.Time
		if s.queue.Len() > 0 {
			waitCh = s.clock.After(s.queue[0].at.Sub(now))
		}
		s.mu.Unlock()

		if len(due) > 0 {
			for _, id := range due {
				s.fire(id)
			}
			continue
		}

		select {
		case <-waitCh:
		case <-s.wake:
		case <-s.stop:
			return
		}
	}
}

// timerQueue is a min-heap on fire time.
type timerQueue []*timerEntry

func (q timerQueue) Len() int            { return len(q) }
func (q timerQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q timerQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *timerQueue) Push(x interface{}) { e := x.(*timerEntry); e.index = len(*q); *q = append(*q, e) }
func (q *timerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
