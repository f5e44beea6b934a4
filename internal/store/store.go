// Package store is the durable snapshot store: one JSON document holding
// every persisted entity, written whole on each mutation. Saves go through
// a side-by-side temporary file and an atomic rename, so a crash at any
// point leaves the previous durable state intact. A file that fails to
// parse on startup is renamed aside with a timestamp suffix and the store
// reinitializes with defaults; startup never aborts on corruption.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"giveabot/entity"
	"giveabot/lib/clock"
	"giveabot/lib/sl"
)

const (
	maxWinnersHistory     = 100
	maxCompletedGiveaways = 50
)

type SystemStats struct {
	TotalGiveawaysCreated int       `json:"total_giveaways_created"`
	TotalParticipants     int       `json:"total_participants"`
	UptimeStart           time.Time `json:"uptime_start"`
}

// Snapshot is the single persisted document. Maps are keyed by decimal
// string ids to keep the on-disk layout stable.
type Snapshot struct {
	ActiveGiveaways    map[string]*entity.Giveaway     `json:"active_giveaways"`
	Participants       map[string][]entity.Participant `json:"participants"`
	CompletedGiveaways []entity.CompletedGiveaway      `json:"completed_giveaways"`
	UserStats          map[string]*entity.UserStats    `json:"user_stats"`
	WinnersHistory     []entity.WinnerRecord           `json:"winners_history"`
	UserKeys           map[string]*entity.AccessKey    `json:"user_keys"`
	SystemStats        SystemStats                     `json:"system_stats"`
	LastUpdated        time.Time                       `json:"last_updated"`
}

// Analytics is the read-only aggregate the dashboard consumes.
type Analytics struct {
	TotalUsers          int       `json:"total_users"`
	ActiveGiveaways     int       `json:"active_giveaways"`
	CompletedGiveaways  int       `json:"completed_giveaways"`
	TotalParticipations int       `json:"total_participations"`
	TotalWins           int       `json:"total_wins"`
	ActiveKeys          int       `json:"active_keys"`
	UptimeStart         time.Time `json:"uptime_start"`
}

// Store owns the snapshot. Every mutating method holds mu for the whole
// load-mutate-save sequence; a failed save keeps the in-memory state as
// the temporary authoritative copy and the next successful save reconciles.
type Store struct {
	log   *slog.Logger
	clock clock.Clock
	path  string

	mu   sync.Mutex
	data *Snapshot
}

func Open(path string, log *slog.Logger, clk clock.Clock) (*Store, error) {
	s := &Store{
		log:   log.With(sl.Module("store")),
		clock: clk,
		path:  path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	content, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Info("snapshot file not found, initializing", slog.String("path", s.path))
		return s.initialize()
	case err != nil:
		return fmt.Errorf("reading snapshot: %w", err)
	}

	if len(content) == 0 {
		s.log.Warn("snapshot file is empty, initializing", slog.String("path", s.path))
		return s.initialize()
	}

	var snap Snapshot
	if err = json.Unmarshal(content, &snap); err != nil {
		backup := fmt.Sprintf("%s.backup_%d", s.path, s.clock.Now().Unix())
		s.log.Error("snapshot unreadable, keeping it aside",
			slog.String("backup", backup),
			sl.Err(err),
		)
		if err = os.Rename(s.path, backup); err != nil {
			return fmt.Errorf("moving corrupted snapshot aside: %w", err)
		}
		return s.initialize()
	}

	s.data = &snap
	s.normalize()
	s.log.Info("snapshot loaded",
		slog.Int("active_giveaways", len(s.data.ActiveGiveaways)),
		slog.Int("users", len(s.data.UserStats)),
	)
	return nil
}

func (s *Store) initialize() error {
	s.data = &Snapshot{
		ActiveGiveaways:    make(map[string]*entity.Giveaway),
		Participants:       make(map[string][]entity.Participant),
		CompletedGiveaways: []entity.CompletedGiveaway{},
		UserStats:          make(map[string]*entity.UserStats),
		WinnersHistory:     []entity.WinnerRecord{},
		UserKeys:           make(map[string]*entity.AccessKey),
		SystemStats:        SystemStats{UptimeStart: s.clock.Now()},
	}
	return s.save()
}

// normalize backfills nil collections after decoding an older snapshot.
func (s *Store) normalize() {
	if s.data.ActiveGiveaways == nil {
		s.data.ActiveGiveaways = make(map[string]*entity.Giveaway)
	}
	if s.data.Participants == nil {
		s.data.Participants = make(map[string][]entity.Participant)
	}
	if s.data.UserStats == nil {
		s.data.UserStats = make(map[string]*entity.UserStats)
	}
	if s.data.UserKeys == nil {
		s.data.UserKeys = make(map[string]*entity.AccessKey)
	}
	if s.data.SystemStats.UptimeStart.IsZero() {
		s.data.SystemStats.UptimeStart = s.clock.Now()
	}
}

// save writes the whole document to a temporary file and renames it over
// the primary location. Callers must hold mu.
func (s *Store) save() error {
	s.data.LastUpdated = s.clock.Now()

	content, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, content, 0644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// touchStats updates the lazily created per-user aggregate. Callers must
// hold mu.
func (s *Store) touchStats(userId int64, name string) *entity.UserStats {
	key := idKey(userId)
	stats, ok := s.data.UserStats[key]
	if !ok {
		stats = &entity.UserStats{FirstJoin: s.clock.Now()}
		s.data.UserStats[key] = stats
	}
	if name != "" {
		stats.Name = name
	}
	stats.LastActivity = s.clock.Now()
	return stats
}

// AddGiveaway registers a new active giveaway with an empty participant
// list and bumps the created counter.
func (s *Store) AddGiveaway(g *entity.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(g.Id)
	stored := *g
	stored.Status = entity.StatusActive
	s.data.ActiveGiveaways[key] = &stored
	s.data.Participants[key] = []entity.Participant{}
	s.data.SystemStats.TotalGiveawaysCreated++

	return s.save()
}

// AddParticipant appends a participant unless the user already joined.
// A duplicate returns false and leaves the document untouched.
func (s *Store) AddParticipant(giveawayId, userId int64, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(giveawayId)
	for _, p := range s.data.Participants[key] {
		if p.UserId == userId {
			return false, nil
		}
	}

	s.data.Participants[key] = append(s.data.Participants[key], entity.Participant{
		UserId:   userId,
		UserName: name,
		JoinedAt: s.clock.Now(),
	})
	s.touchStats(userId, name).TotalParticipations++
	s.data.SystemStats.TotalParticipants++

	return true, s.save()
}

// RecordWinner appends to the winner history (capped) and increments the
// winner's stats.
func (s *Store) RecordWinner(userId int64, giveawayTitle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchStats(userId, "").TotalWins++

	s.data.WinnersHistory = append(s.data.WinnersHistory, entity.WinnerRecord{
		UserId:        userId,
		GiveawayTitle: giveawayTitle,
		WonAt:         s.clock.Now(),
	})
	if n := len(s.data.WinnersHistory); n > maxWinnersHistory {
		s.data.WinnersHistory = s.data.WinnersHistory[n-maxWinnersHistory:]
	}

	return s.save()
}

// MoveGiveawayToCompleted archives an active giveaway together with its
// final participant list and removes it from the active set. Returns nil
// without error when the giveaway is not active (already completed).
func (s *Store) MoveGiveawayToCompleted(giveawayId int64) (*entity.CompletedGiveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(giveawayId)
	g, ok := s.data.ActiveGiveaways[key]
	if !ok {
		return nil, nil
	}

	completed := entity.CompletedGiveaway{
		Giveaway:     *g,
		Participants: append([]entity.Participant{}, s.data.Participants[key]...),
		CompletedAt:  s.clock.Now(),
	}
	completed.Status = entity.StatusCompleted

	s.data.CompletedGiveaways = append(s.data.CompletedGiveaways, completed)
	if n := len(s.data.CompletedGiveaways); n > maxCompletedGiveaways {
		s.data.CompletedGiveaways = s.data.CompletedGiveaways[n-maxCompletedGiveaways:]
	}

	delete(s.data.ActiveGiveaways, key)
	delete(s.data.Participants, key)

	return &completed, s.save()
}

// --- Access keys ---

// IssueKey stores a key for the user, replacing any existing one.
func (s *Store) IssueKey(userId int64, key *entity.AccessKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *key
	s.data.UserKeys[idKey(userId)] = &stored
	return s.save()
}

// KeyByUser returns a copy of the user's key, expired or not.
func (s *Store) KeyByUser(userId int64) (entity.AccessKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.data.UserKeys[idKey(userId)]
	if !ok {
		return entity.AccessKey{}, false
	}
	return *k, true
}

// MarkKeyInactive flips the active flag off, persisting the lazy expiry
// observed during validation.
func (s *Store) MarkKeyInactive(userId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.data.UserKeys[idKey(userId)]
	if !ok || !k.Active {
		return nil
	}
	k.Active = false
	return s.save()
}

// DeleteKey removes the user's key outright.
func (s *Store) DeleteKey(userId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userId)
	if _, ok := s.data.UserKeys[key]; !ok {
		return nil
	}
	delete(s.data.UserKeys, key)
	return s.save()
}

// FindKeyByToken scans for an active, unexpired key with the given token.
func (s *Store) FindKeyByToken(token string) (int64, entity.AccessKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for owner, k := range s.data.UserKeys {
		if k.Key == token && k.Valid(now) {
			id, err := strconv.ParseInt(owner, 10, 64)
			if err != nil {
				continue
			}
			return id, *k, true
		}
	}
	return 0, entity.AccessKey{}, false
}

// TransferKey moves a key record to a new owner: the presenting user gets
// the record with their display name, the original owner's entry is
// deleted outright.
func (s *Store) TransferKey(fromId, toId int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.data.UserKeys[idKey(fromId)]
	if !ok {
		return fmt.Errorf("key owner %d not found", fromId)
	}
	moved := *k
	moved.UserName = name
	s.data.UserKeys[idKey(toId)] = &moved
	delete(s.data.UserKeys, idKey(fromId))
	return s.save()
}

// SweepExpiredKeys deletes every key past its expiry, independent of the
// lazy marking done on validation. Returns the number removed.
func (s *Store) SweepExpiredKeys() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for owner, k := range s.data.UserKeys {
		if k.Expired(now) {
			delete(s.data.UserKeys, owner)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save()
}

// --- Read-only accessors (copies only; reporting cannot mutate state) ---

// ActiveGiveaways returns active giveaways ordered by creation time.
func (s *Store) ActiveGiveaways() []entity.Giveaway {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Giveaway, 0, len(s.data.ActiveGiveaways))
	for _, g := range s.data.ActiveGiveaways {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Giveaway(id int64) (entity.Giveaway, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.data.ActiveGiveaways[idKey(id)]
	if !ok {
		return entity.Giveaway{}, false
	}
	return *g, true
}

func (s *Store) Participants(giveawayId int64) []entity.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.Participant{}, s.data.Participants[idKey(giveawayId)]...)
}

func (s *Store) ParticipantCount(giveawayId int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data.Participants[idKey(giveawayId)])
}

func (s *Store) Stats(userId int64) (entity.UserStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.data.UserStats[idKey(userId)]
	if !ok {
		return entity.UserStats{}, false
	}
	return *st, true
}

func (s *Store) AllStats() map[int64]entity.UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]entity.UserStats, len(s.data.UserStats))
	for key, st := range s.data.UserStats {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = *st
	}
	return out
}

func (s *Store) AllKeys() map[int64]entity.AccessKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]entity.AccessKey, len(s.data.UserKeys))
	for key, k := range s.data.UserKeys {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = *k
	}
	return out
}

func (s *Store) CompletedGiveaways() []entity.CompletedGiveaway {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.CompletedGiveaway{}, s.data.CompletedGiveaways...)
}

func (s *Store) WinnersHistory() []entity.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.WinnerRecord{}, s.data.WinnersHistory...)
}

func (s *Store) Analytics() Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Analytics{
		TotalUsers:         len(s.data.UserStats),
		ActiveGiveaways:    len(s.data.ActiveGiveaways),
		CompletedGiveaways: len(s.data.CompletedGiveaways),
		UptimeStart:        s.data.SystemStats.UptimeStart,
	}
	for _, st := range s.data.UserStats {
		a.TotalParticipations += st.TotalParticipations
		a.TotalWins += st.TotalWins
	}
	now := s.clock.Now()
	for _, k := range s.data.UserKeys {
		if k.Valid(now) {
			a.ActiveKeys++
		}
	}
	return a
}
