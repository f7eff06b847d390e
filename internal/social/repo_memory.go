package social

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory relationship store useful for tests and early
// development. Follows are directional; a mutual match needs both directions.
type MemoryRepo struct {
	mu      sync.Mutex
	follows map[[2]string]struct{} // follower -> followee
	blocks  map[[2]string]struct{} // blocker -> blocked
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		follows: map[[2]string]struct{}{},
		blocks:  map[[2]string]struct{}{},
	}
}

func (r *MemoryRepo) Follow(follower, followee string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.follows[[2]string{follower, followee}] = struct{}{}
}

func (r *MemoryRepo) Block(blocker, blocked string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[[2]string{blocker, blocked}] = struct{}{}
}

func (r *MemoryRepo) MutualFollow(ctx context.Context, payerID, earnerID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	_, a := r.follows[[2]string{payerID, earnerID}]
	_, b := r.follows[[2]string{earnerID, payerID}]
	return a && b, nil
}

func (r *MemoryRepo) EitherBlocked(ctx context.Context, payerID, earnerID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	_, a := r.blocks[[2]string{payerID, earnerID}]
	_, b := r.blocks[[2]string{earnerID, payerID}]
	return a || b, nil
}
