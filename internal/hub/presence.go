package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

const presenceShards = 32

type presenceBucket struct {
	sync.RWMutex
	users map[string]map[string]struct{} // userID -> live connection ids
}

// Registry tracks which users currently have live connections. A user is
// online iff their connection set is non-empty. State is sharded by userID so
// connect/disconnect bursts for different users never contend on one lock,
// while operations on the same user are serialized by the shard lock.
type Registry struct {
	shards [presenceShards]*presenceBucket
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &presenceBucket{users: make(map[string]map[string]struct{})}
	}
	return r
}

func (r *Registry) shard(userID string) *presenceBucket {
	if userID == "" {
		return r.shards[0]
	}
	h := sha1.Sum([]byte(userID))
	return r.shards[binary.BigEndian.Uint32(h[:4])%presenceShards]
}

// Register adds a connection to the user's set and reports whether the user
// just transitioned to online (first live connection). Registering a
// connection that is already present is a no-op.
func (r *Registry) Register(userID, connID string) (wentOnline bool) {
	b := r.shard(userID)
	b.Lock()
	defer b.Unlock()

	set, ok := b.users[userID]
	if !ok {
		set = make(map[string]struct{})
		b.users[userID] = set
	}
	wasEmpty := len(set) == 0
	set[connID] = struct{}{}
	return wasEmpty
}

// Deregister removes a connection from the user's set and reports whether the
// user just transitioned to offline (last connection gone). Removing an
// unknown user or connection is a no-op, never an error: disconnect handling
// must tolerate duplicate and out-of-order notifications.
func (r *Registry) Deregister(userID, connID string) (wentOffline bool) {
	b := r.shard(userID)
	b.Lock()
	defer b.Unlock()

	set, ok := b.users[userID]
	if !ok {
		return false
	}
	if _, present := set[connID]; !present {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(b.users, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	b := r.shard(userID)
	b.RLock()
	defer b.RUnlock()
	return len(b.users[userID]) > 0
}

// LiveConnections returns the user's live connection ids. Unknown users yield
// an empty slice, never an error.
func (r *Registry) LiveConnections(userID string) []string {
	b := r.shard(userID)
	b.RLock()
	defer b.RUnlock()

	set := b.users[userID]
	conns := make([]string, 0, len(set))
	for id := range set {
		conns = append(conns, id)
	}
	return conns
}

// OnlineUsers snapshots every user with at least one live connection. Sent to
// newly joined connections to seed their presence state.
func (r *Registry) OnlineUsers() []string {
	var users []string
	for _, b := range r.shards {
		b.RLock()
		for userID, set := range b.users {
			if len(set) > 0 {
				users = append(users, userID)
			}
		}
		b.RUnlock()
	}
	return users
}

// OnlineCount returns the number of online users.
func (r *Registry) OnlineCount() int {
	count := 0
	for _, b := range r.shards {
		b.RLock()
		count += len(b.users)
		b.RUnlock()
	}
	return count
}
