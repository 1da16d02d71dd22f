package hub

import (
	"sync"
	"time"
)

// DefaultTypingTTL is the inactivity window after which a typing indicator
// expires without an explicit stop.
const DefaultTypingTTL = 3 * time.Second

type typingKey struct {
	conversationID string
	userID         string
}

type typingState struct {
	timer     *time.Timer
	partnerID string
}

// TypingCoordinator holds ephemeral per-(conversation, user) typing state.
// Every state carries an expiry timer: if no refresh arrives within the TTL,
// the coordinator synthesizes a stop through onExpire. This covers clients
// that crash or lose connectivity mid-type without ever sending typing:stop.
type TypingCoordinator struct {
	ttl      time.Duration
	onExpire func(userID, conversationID, partnerID string)

	mu     sync.Mutex
	states map[typingKey]*typingState
}

// NewTypingCoordinator constructs a coordinator. onExpire runs outside the
// coordinator's lock when a typing window lapses; ttl must be positive.
func NewTypingCoordinator(ttl time.Duration, onExpire func(userID, conversationID, partnerID string)) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingCoordinator{
		ttl:      ttl,
		onExpire: onExpire,
		states:   make(map[typingKey]*typingState),
	}
}

// Start upserts the typing state with a refreshed expiry window.
func (t *TypingCoordinator) Start(userID, conversationID, partnerID string) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.states[key]; ok {
		existing.timer.Stop()
	}
	state := &typingState{partnerID: partnerID}
	state.timer = time.AfterFunc(t.ttl, func() {
		t.expire(key, state)
	})
	t.states[key] = state
}

// Stop removes the typing state. It returns the partner recorded at Start and
// whether any state existed; stopping an absent state is a no-op so expiry
// and explicit stop never double-fire.
func (t *TypingCoordinator) Stop(userID, conversationID string) (partnerID string, existed bool) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[key]
	if !ok {
		return "", false
	}
	state.timer.Stop()
	delete(t.states, key)
	return state.partnerID, true
}

// ActiveCount returns the number of live typing indicators.
func (t *TypingCoordinator) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// Shutdown stops all timers without firing onExpire.
func (t *TypingCoordinator) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, state := range t.states {
		state.timer.Stop()
		delete(t.states, key)
	}
}

func (t *TypingCoordinator) expire(key typingKey, fired *typingState) {
	t.mu.Lock()
	current, ok := t.states[key]
	if !ok || current != fired {
		// A refresh replaced this state after the timer fired; ignore.
		t.mu.Unlock()
		return
	}
	delete(t.states, key)
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(key.userID, key.conversationID, fired.partnerID)
	}
}
