package bot

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"giveabot/entity"
	"giveabot/lib/clock"
)

// FlowState is the step a user's giveaway creation dialogue is waiting on.
type FlowState int

const (
	StateIdle FlowState = iota
	StateWaitTitle
	StateWaitGift
	StateWaitDuration
	StateWaitCustomDuration
	StateWaitPlace
	StateWaitInfo
)

// DurationCustom is the ChooseDuration sentinel for "ask for a number".
const DurationCustom = -1

var (
	ErrNoFlow      = errors.New("no active creation flow")
	ErrBadState    = errors.New("input not expected in this state")
	ErrBadDuration = errors.New("duration must be a positive number of minutes")
)

type flow struct {
	state   FlowState
	draft   entity.Giveaway
	touched time.Time
}

// Conversations tracks per-user giveaway creation dialogues. Each flow
// consumes one text input per state; the duration step is driven by the
// inline keyboard instead. Flows idle longer than the TTL are dropped on
// next access, so an abandoned dialogue never blocks a new /create.
type Conversations struct {
	clock clock.Clock
	ttl   time.Duration

	mu    sync.Mutex
	flows map[int64]*flow
}

func NewConversations(clk clock.Clock, ttl time.Duration) *Conversations {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Conversations{
		clock: clk,
		ttl:   ttl,
		flows: make(map[int64]*flow),
	}
}

// Begin starts (or restarts) the creation dialogue for a user.
func (c *Conversations) Begin(userId int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flows[userId] = &flow{state: StateWaitTitle, touched: c.clock.Now()}
}

// Active reports whether the user has a live flow.
func (c *Conversations) Active(userId int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(userId) != nil
}

// State returns the current step of the user's flow.
func (c *Conversations) State(userId int64) FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.get(userId)
	if f == nil {
		return StateIdle
	}
	return f.state
}

// Advance feeds one text input into the flow. It returns done=true with
// the finished draft after the final step; the flow entry is cleared at
// that point. Rejected input (bad custom duration) keeps the state.
func (c *Conversations) Advance(userId int64, text string) (entity.Giveaway, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.get(userId)
	if f == nil {
		return entity.Giveaway{}, false, ErrNoFlow
	}
	f.touched = c.clock.Now()

	switch f.state {
	case StateWaitTitle:
		f.draft.Title = text
		f.state = StateWaitGift
	case StateWaitGift:
		f.draft.Gift = text
		f.state = StateWaitDuration
	case StateWaitDuration:
		// duration comes through ChooseDuration, not free text
		return entity.Giveaway{}, false, ErrBadState
	case StateWaitCustomDuration:
		minutes, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || minutes <= 0 {
			return entity.Giveaway{}, false, ErrBadDuration
		}
		f.draft.Duration = minutes
		f.state = StateWaitPlace
	case StateWaitPlace:
		f.draft.Place = text
		f.state = StateWaitInfo
	case StateWaitInfo:
		f.draft.Info = text
		draft := f.draft
		delete(c.flows, userId)
		return draft, true, nil
	default:
		return entity.Giveaway{}, false, ErrNoFlow
	}
	return entity.Giveaway{}, false, nil
}

// ChooseDuration handles the inline keyboard pick. minutes==DurationCustom
// switches to the numeric input step; 0 means unlimited.
func (c *Conversations) ChooseDuration(userId int64, minutes int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.get(userId)
	if f == nil {
		return ErrNoFlow
	}
	if f.state != StateWaitDuration {
		return ErrBadState
	}
	f.touched = c.clock.Now()

	if minutes == DurationCustom {
		f.state = StateWaitCustomDuration
		return nil
	}
	if minutes < 0 {
		return ErrBadDuration
	}
	f.draft.Duration = minutes
	f.state = StateWaitPlace
	return nil
}

// Cancel drops the user's flow if any.
func (c *Conversations) Cancel(userId int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flows, userId)
}

// get returns the user's flow, expiring it first when stale.
// Caller holds the mutex.
func (c *Conversations) get(userId int64) *flow {
	f, ok := c.flows[userId]
	if !ok {
		return nil
	}
	if c.clock.Now().Sub(f.touched) > c.ttl {
		delete(c.flows, userId)
		return nil
	}
	return f
}
