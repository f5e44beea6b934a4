// Package engine runs the giveaway lifecycle: durable state transitions
// through the snapshot store, timer scheduling with restart recovery,
// participant de-duplication, and idempotent termination with uniform
// winner selection.
//
// Concurrency model: one mutex serializes every mutating operation
// (registries plus store write-through). Outward chat-platform calls go
// through the Notifier strictly after the lock is released; their failure
// never rolls back a committed state change. Terminate is the only point
// of genuine contention (armed timer vs manual command) and is resolved
// by an atomic remove-if-present on the active registry, so exactly one
// caller selects a winner and archives.
package engine

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"giveabot/entity"
	"giveabot/internal/store"
	"giveabot/lib/clock"
	"giveabot/lib/sl"
)

// Reason tells the announcement layer why a giveaway ended.
type Reason string

const (
	ReasonAutomatic     Reason = "automatic"
	ReasonManual        Reason = "manual"
	ReasonOfflineExpiry Reason = "offline_expiry"
)

type JoinOutcome int

const (
	Joined JoinOutcome = iota
	AlreadyJoined
	GiveawayNotFound
)

type JoinResult struct {
	Outcome JoinOutcome
	Count   int
}

// Result describes a completed termination. WinnerId is zero when the
// giveaway ended with no participants.
type Result struct {
	Giveaway     entity.Giveaway
	Participants int
	WinnerId     int64
	Reason       Reason
}

// Notifier is the chat-platform collaborator: announcement edits and
// winner-name resolution. Calls are best-effort and happen outside the
// engine lock.
type Notifier interface {
	AnnounceResult(res Result)
}

type Engine struct {
	log      *slog.Logger
	store    *store.Store
	clock    clock.Clock
	sched    *Scheduler
	notifier Notifier
	pick     func(n int) int

	mu      sync.Mutex
	active  map[int64]*entity.Giveaway
	members map[int64]map[int64]struct{}
}

func New(st *store.Store, log *slog.Logger, clk clock.Clock) *Engine {
	e := &Engine{
		log:     log.With(sl.Module("engine")),
		store:   st,
		clock:   clk,
		pick:    rand.Intn,
		active:  make(map[int64]*entity.Giveaway),
		members: make(map[int64]map[int64]struct{}),
	}
	e.sched = NewScheduler(clk, log, e.onTimer)

	// Rebuild the in-memory registries from the snapshot. Timer handles
	// are not durable; Recover re-arms them.
	for _, g := range st.ActiveGiveaways() {
		stored := g
		e.active[g.Id] = &stored
		set := make(map[int64]struct{})
		for _, p := range st.Participants(g.Id) {
			set[p.UserId] = struct{}{}
		}
		e.members[g.Id] = set
	}
	return e
}

// SetNotifier connects the chat platform layer. Without one, terminations
// still commit; only announcements are skipped.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

func (e *Engine) Start() {
	e.sched.Run()
}

func (e *Engine) Stop() {
	e.sched.Stop()
}

// Recover walks the persisted active giveaways: overdue ones are
// terminated immediately with the offline-expiry variant, the rest get
// their timers re-armed. Must run before any command is served.
func (e *Engine) Recover() {
	now := e.clock.Now()

	e.mu.Lock()
	var overdue []int64
	for id, g := range e.active {
		switch {
		case g.Overdue(now):
			overdue = append(overdue, id)
		case g.EndTime != nil:
			e.sched.Schedule(id, *g.EndTime)
			e.log.Info("timer restored",
				sl.GiveawayId(id),
				slog.Duration("remaining", g.Remaining(now)),
			)
		default:
			e.log.Info("unbounded giveaway restored", sl.GiveawayId(id))
		}
	}
	e.mu.Unlock()

	sort.Slice(overdue, func(i, j int) bool { return overdue[i] < overdue[j] })
	for _, id := range overdue {
		e.log.Info("giveaway expired while offline, ending now", sl.GiveawayId(id))
		e.Terminate(id, ReasonOfflineExpiry)
	}
}

// CreateGiveaway commits a new giveaway and, when time-bounded, arms its
// timer. The caller provides id, chat, and the draft fields; the engine
// stamps timing and status. A persistence failure keeps the in-memory
// state authoritative and is returned for logging.
func (e *Engine) CreateGiveaway(g *entity.Giveaway) error {
	now := e.clock.Now()
	g.CreatedAt = now
	g.Status = entity.StatusActive
	if g.Duration > 0 {
		end := now.Add(time.Duration(g.Duration) * time.Minute)
		g.EndTime = &end
	} else {
		g.EndTime = nil
	}

	e.mu.Lock()
	stored := *g
	e.active[g.Id] = &stored
	e.members[g.Id] = make(map[int64]struct{})
	err := e.store.AddGiveaway(g)
	e.mu.Unlock()

	if err != nil {
		e.log.Error("persisting new giveaway", sl.GiveawayId(g.Id), sl.Err(err))
	}
	if g.EndTime != nil {
		e.sched.Schedule(g.Id, *g.EndTime)
	}
	e.log.Info("giveaway created",
		sl.GiveawayId(g.Id),
		slog.String("title", g.Title),
		slog.Int("duration_min", g.Duration),
	)
	return err
}

// Join registers a user for a giveaway exactly once. A duplicate returns
// AlreadyJoined and leaves both registry and store untouched.
func (e *Engine) Join(giveawayId, userId int64, name string) JoinResult {
	e.mu.Lock()
	set, ok := e.members[giveawayId]
	if !ok {
		e.mu.Unlock()
		return JoinResult{Outcome: GiveawayNotFound}
	}
	if _, dup := set[userId]; dup {
		count := len(set)
		e.mu.Unlock()
		return JoinResult{Outcome: AlreadyJoined, Count: count}
	}
	set[userId] = struct{}{}
	count := len(set)
	_, err := e.store.AddParticipant(giveawayId, userId, name)
	e.mu.Unlock()

	if err != nil {
		e.log.Error("persisting participant",
			sl.GiveawayId(giveawayId),
			slog.Int64("user_id", userId),
			sl.Err(err),
		)
	}
	return JoinResult{Outcome: Joined, Count: count}
}

// Terminate moves a giveaway from Active to Completed: exactly one caller
// wins the remove-if-present race, selects a winner, archives, and
// triggers the announcement; a concurrent second caller observes absence
// and no-ops with ok=false.
func (e *Engine) Terminate(id int64, reason Reason) (Result, bool) {
	opId := uuid.NewString()[:8]

	e.mu.Lock()
	g, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		e.log.Debug("terminate on non-active giveaway, no-op",
			sl.GiveawayId(id),
			slog.String("op", opId),
		)
		return Result{}, false
	}
	delete(e.active, id)
	set := e.members[id]
	delete(e.members, id)

	res := Result{
		Giveaway:     *g,
		Participants: len(set),
		Reason:       reason,
	}
	if len(set) > 0 {
		ids := make([]int64, 0, len(set))
		for userId := range set {
			ids = append(ids, userId)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		res.WinnerId = ids[e.pick(len(ids))]

		if err := e.store.RecordWinner(res.WinnerId, g.Title); err != nil {
			e.log.Error("recording winner", sl.GiveawayId(id), sl.Err(err))
		}
	}
	if _, err := e.store.MoveGiveawayToCompleted(id); err != nil {
		e.log.Error("archiving giveaway", sl.GiveawayId(id), sl.Err(err))
	}
	e.mu.Unlock()

	e.sched.Cancel(id)

	e.log.Info("giveaway terminated",
		sl.GiveawayId(id),
		slog.String("op", opId),
		slog.String("reason", string(reason)),
		slog.Int("participants", res.Participants),
		slog.Int64("winner_id", res.WinnerId),
	)

	if e.notifier != nil {
		e.notifier.AnnounceResult(res)
	}
	return res, true
}

func (e *Engine) onTimer(id int64) {
	if _, ok := e.Terminate(id, ReasonAutomatic); !ok {
		e.log.Debug("timer fired for already-terminated giveaway", sl.GiveawayId(id))
	}
}

// --- Read accessors for the bot and the dashboard ---

// Actives returns the active giveaways ordered by creation time.
func (e *Engine) Actives() []entity.Giveaway {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]entity.Giveaway, 0, len(e.active))
	for _, g := range e.active {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (e *Engine) IsActive(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[id]
	return ok
}

// ParticipantCount is O(1) against the in-memory registry.
func (e *Engine) ParticipantCount(id int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.members[id])
}
