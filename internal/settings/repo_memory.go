package settings

import (
	"context"
	"sync"
)

// MemoryRepo holds the singleton RateConfig in memory. Useful for tests and
// early development; all fields start unset, as on a fresh deployment.
type MemoryRepo struct {
	mu  sync.Mutex
	cfg RateConfig
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Get(ctx context.Context) (RateConfig, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg, nil
}

func (r *MemoryRepo) Put(ctx context.Context, cfg RateConfig) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	return nil
}
