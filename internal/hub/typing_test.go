package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu    sync.Mutex
	fired []string // "userID/conversationID/partnerID"
}

func (e *expiryRecorder) record(userID, conversationID, partnerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fired = append(e.fired, userID+"/"+conversationID+"/"+partnerID)
}

func (e *expiryRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fired)
}

func TestTypingCoordinator_ExplicitStop(t *testing.T) {
	rec := &expiryRecorder{}
	tc := NewTypingCoordinator(time.Minute, rec.record)
	defer tc.Shutdown()

	tc.Start("alice", "conv-1", "bob")
	assert.Equal(t, 1, tc.ActiveCount())

	partnerID, existed := tc.Stop("alice", "conv-1")
	require.True(t, existed)
	assert.Equal(t, "bob", partnerID, "stop must return the partner recorded at start")
	assert.Equal(t, 0, tc.ActiveCount())
	assert.Equal(t, 0, rec.count(), "explicit stop must not fire expiry")
}

func TestTypingCoordinator_StopWithoutStart(t *testing.T) {
	tc := NewTypingCoordinator(time.Minute, nil)
	defer tc.Shutdown()

	_, existed := tc.Stop("alice", "conv-1")
	assert.False(t, existed, "stopping absent state is a no-op")
}

func TestTypingCoordinator_AutoExpiry(t *testing.T) {
	rec := &expiryRecorder{}
	tc := NewTypingCoordinator(30*time.Millisecond, rec.record)
	defer tc.Shutdown()

	tc.Start("alice", "conv-1", "bob")

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond, "expiry must synthesize the missing stop")
	assert.Equal(t, []string{"alice/conv-1/bob"}, rec.fired)
	assert.Equal(t, 0, tc.ActiveCount())

	// The state is gone, an explicit stop afterwards must find nothing.
	_, existed := tc.Stop("alice", "conv-1")
	assert.False(t, existed, "expiry and explicit stop must never double-fire")
}

func TestTypingCoordinator_RefreshExtendsWindow(t *testing.T) {
	rec := &expiryRecorder{}
	tc := NewTypingCoordinator(60*time.Millisecond, rec.record)
	defer tc.Shutdown()

	tc.Start("alice", "conv-1", "bob")
	time.Sleep(35 * time.Millisecond)
	tc.Start("alice", "conv-1", "bob")
	time.Sleep(35 * time.Millisecond)

	// 70ms after the first start but only 35ms after the refresh.
	assert.Equal(t, 0, rec.count(), "refresh must reset the expiry window")
	assert.Equal(t, 1, tc.ActiveCount())

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestTypingCoordinator_IndependentConversations(t *testing.T) {
	tc := NewTypingCoordinator(time.Minute, nil)
	defer tc.Shutdown()

	tc.Start("alice", "conv-1", "bob")
	tc.Start("alice", "conv-2", "carol")
	assert.Equal(t, 2, tc.ActiveCount())

	partnerID, existed := tc.Stop("alice", "conv-2")
	require.True(t, existed)
	assert.Equal(t, "carol", partnerID)
	assert.Equal(t, 1, tc.ActiveCount(), "stopping one conversation must not touch the other")
}

func TestTypingCoordinator_ShutdownSuppressesExpiry(t *testing.T) {
	rec := &expiryRecorder{}
	tc := NewTypingCoordinator(20*time.Millisecond, rec.record)

	tc.Start("alice", "conv-1", "bob")
	tc.Shutdown()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count(), "shutdown must cancel pending expirations")
	assert.Equal(t, 0, tc.ActiveCount())
}
