package resolution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// In-memory fakes for the store and collaborator interfaces. They are
// deliberately small: enough behavior for pipeline tests, with switchable
// failure injection for the fail-closed paths.

var errUnavailable = errors.New("collaborator unavailable")

type memRuleStore struct {
	mu    sync.RWMutex
	rules map[string]*DealerRule
	fail  bool
}

func newMemRuleStore() *memRuleStore {
	return &memRuleStore{rules: make(map[string]*DealerRule)}
}

func (s *memRuleStore) Create(ctx context.Context, rule *DealerRule) error {
	if s.fail {
		return errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *memRuleStore) Update(ctx context.Context, rule *DealerRule) error {
	return s.Create(ctx, rule)
}

func (s *memRuleStore) GetByID(ctx context.Context, dealerID, id string) (*DealerRule, error) {
	if s.fail {
		return nil, errUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok || rule.DealerID != dealerID {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (s *memRuleStore) ListByDealer(ctx context.Context, dealerID, module string) ([]*DealerRule, error) {
	if s.fail {
		return nil, errUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DealerRule
	for _, rule := range s.rules {
		if rule.DealerID != dealerID {
			continue
		}
		if module != "" && rule.Module != module {
			continue
		}
		cp := *rule
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memRuleStore) ListByEvent(ctx context.Context, dealerID, module, event string) ([]*DealerRule, error) {
	if s.fail {
		return nil, errUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DealerRule
	for _, rule := range s.rules {
		if rule.DealerID == dealerID && rule.Module == module && rule.Event == event {
			cp := *rule
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]*NotificationPreference
	fail  bool
}

func newMemPreferenceStore() *memPreferenceStore {
	return &memPreferenceStore{prefs: make(map[string]*NotificationPreference)}
}

func prefKey(userID, dealerID, module string) string {
	return userID + "|" + dealerID + "|" + module
}

func (s *memPreferenceStore) Get(ctx context.Context, userID, dealerID, module string) (*NotificationPreference, error) {
	if s.fail {
		return nil, errUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pref, ok := s.prefs[prefKey(userID, dealerID, module)]
	if !ok {
		return nil, nil
	}
	cp := *pref
	return &cp, nil
}

func (s *memPreferenceStore) Upsert(ctx context.Context, pref *NotificationPreference) error {
	if s.fail {
		return errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pref
	s.prefs[prefKey(pref.UserID, pref.DealerID, pref.Module)] = &cp
	return nil
}

type stubMembership struct {
	members  map[string][]Member  // dealerID → members
	byRole   map[string][]string  // role → user ids
	failAll  bool
	failRole map[string]bool
}

func newStubMembership() *stubMembership {
	return &stubMembership{
		members:  make(map[string][]Member),
		byRole:   make(map[string][]string),
		failRole: make(map[string]bool),
	}
}

func (s *stubMembership) ListActiveMembers(ctx context.Context, dealerID string) ([]Member, error) {
	if s.failAll {
		return nil, errUnavailable
	}
	return s.members[dealerID], nil
}

func (s *stubMembership) MembersWithRole(ctx context.Context, dealerID, role string) ([]string, error) {
	if s.failAll || s.failRole[role] {
		return nil, errUnavailable
	}
	return s.byRole[role], nil
}

type stubFollowers struct {
	followers map[string][]string // entityType/entityID → user ids
	fail      bool
}

func newStubFollowers() *stubFollowers {
	return &stubFollowers{followers: make(map[string][]string)}
}

func (s *stubFollowers) FollowersOf(ctx context.Context, entityType, entityID string) ([]string, error) {
	if s.fail {
		return nil, errUnavailable
	}
	return s.followers[entityType+"/"+entityID], nil
}

// memLedger implements DeliveryLedger with per-key timestamp lists and a
// mutex, giving the same atomic check-and-reserve contract as the Redis
// implementation.
type memLedger struct {
	mu    sync.Mutex
	sends map[DeliveryKey][]time.Time
	fail  bool
}

func newMemLedger() *memLedger {
	return &memLedger{sends: make(map[DeliveryKey][]time.Time)}
}

func (l *memLedger) RecordSend(ctx context.Context, key DeliveryKey, at time.Time) error {
	if l.fail {
		return errUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sends[key] = append(l.sends[key], at)
	return nil
}

func (l *memLedger) CountSince(ctx context.Context, key DeliveryKey, since time.Time) (int, error) {
	if l.fail {
		return 0, errUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(key, since), nil
}

func (l *memLedger) countLocked(key DeliveryKey, since time.Time) int {
	n := 0
	for _, at := range l.sends[key] {
		if at.After(since) {
			n++
		}
	}
	return n
}

func (l *memLedger) Reserve(ctx context.Context, key DeliveryKey, maxPerHour, maxPerDay int, at time.Time) (bool, error) {
	if l.fail {
		return false, errUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if maxPerHour > 0 && l.countLocked(key, at.Add(-time.Hour)) >= maxPerHour {
		return false, nil
	}
	if maxPerDay > 0 && l.countLocked(key, at.Add(-24*time.Hour)) >= maxPerDay {
		return false, nil
	}
	l.sends[key] = append(l.sends[key], at)
	return true, nil
}

type memResolutionStore struct {
	mu     sync.Mutex
	logs   map[string]*ResolutionLog
	nextID int
	fail   bool
}

func newMemResolutionStore() *memResolutionStore {
	return &memResolutionStore{logs: make(map[string]*ResolutionLog)}
}

func (s *memResolutionStore) Create(ctx context.Context, log *ResolutionLog) error {
	if s.fail {
		return errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	log.ID = fmt.Sprintf("log-%d", s.nextID)
	log.CreatedAt = time.Now()
	log.UpdatedAt = log.CreatedAt
	cp := *log
	s.logs[log.ID] = &cp
	return nil
}

func (s *memResolutionStore) GetByID(ctx context.Context, id string) (*ResolutionLog, error) {
	if s.fail {
		return nil, errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok {
		return nil, nil
	}
	cp := *log
	return &cp, nil
}

func (s *memResolutionStore) UpdateStatus(ctx context.Context, id string, status ResolutionStatus, errMsg string) error {
	if s.fail {
		return errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok := s.logs[id]; ok {
		log.Status = status
		log.ErrorMessage = errMsg
		log.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memResolutionStore) RecordOutcome(ctx context.Context, id string, status ResolutionStatus, recipients []*ResolvedRecipient) error {
	if s.fail {
		return errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok := s.logs[id]; ok {
		now := time.Now()
		log.Status = status
		log.Recipients = recipients
		log.RecipientCount = len(recipients)
		log.UpdatedAt = now
		log.ResolvedAt = &now
	}
	return nil
}

func (s *memResolutionStore) List(ctx context.Context, filter ListFilter) ([]*ResolutionLog, int, error) {
	if s.fail {
		return nil, 0, errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ResolutionLog
	for _, log := range s.logs {
		if filter.Status != "" && string(log.Status) != filter.Status {
			continue
		}
		cp := *log
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *memResolutionStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*ResolutionLog, error) {
	if s.fail {
		return nil, errUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ResolutionLog
	for _, log := range s.logs {
		if len(out) >= limit {
			break
		}
		if (log.Status == StatusQueued || log.Status == StatusProcessing) && log.UpdatedAt.Before(olderThan) {
			cp := *log
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stubEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
	fail     bool
}

func (e *stubEnqueuer) EnqueueResolveEvent(logID string) error {
	if e.fail {
		return errUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueued = append(e.enqueued, logID)
	return nil
}
