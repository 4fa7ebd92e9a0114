package relay

import (
	"sort"
	"sync"
)

// Registry tracks registered users by connection address. The lock is only
// held for map access, never across I/O.
type Registry struct {
	mu    sync.Mutex
	users map[string]User
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]User)}
}

func (r *Registry) Register(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Addr] = u
}

// Deregister removes the user registered for addr, if any.
func (r *Registry) Deregister(addr string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[addr]
	delete(r.users, addr)
	return u, ok
}

func (r *Registry) Lookup(addr string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[addr]
	return u, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Snapshot returns the users ordered by join time.
func (r *Registry) Snapshot() []User {
	r.mu.Lock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.Unlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinTime.Equal(users[j].JoinTime) {
			return users[i].Addr < users[j].Addr
		}
		return users[i].JoinTime.Before(users[j].JoinTime)
	})
	return users
}
