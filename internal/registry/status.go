package registry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Entity kinds reported in Status and the smp_entities metric
const (
	KindServiceGroup       = "servicegroup"
	KindRedirect           = "redirect"
	KindServiceInformation = "serviceinformation"
	KindBusinessCard       = "businesscard"
)

// Status is a health snapshot of the registry
type Status struct {
	Backend     string `yaml:"backend"`
	Initialized bool   `yaml:"initialized"`
	InitError   string `yaml:"initError,omitempty"`
	// KeyMaterialValid is false without a keystore or after a failed warmup
	KeyMaterialValid  bool           `yaml:"keyMaterialValid"`
	Inconsistencies   int            `yaml:"inconsistencies"`
	LastInconsistency *Inconsistency `yaml:"lastInconsistency,omitempty"`
	// Entities counts stored entities by kind; empty unless initialized
	Entities map[string]int `yaml:"entities,omitempty"`
}

// Healthy reports whether the registry is usable and consistent with the SML
func (s Status) Healthy() bool {
	return s.Initialized && s.InitError == "" && s.Inconsistencies == 0
}

// Status initializes the registry if needed and reports its state. Entity
// counts are also published as metrics.
func (r *Registry) Status(ctx context.Context) (Status, error) {
	r.mu.Lock()
	initErr := r.initLocked(ctx)
	st := Status{Initialized: r.initialized}
	if r.provider != nil {
		st.Backend = r.provider.Backend()
	}
	sg, rd, si, bc := r.serviceGroups, r.redirects, r.serviceInformation, r.businessCards
	r.mu.Unlock()

	st.Inconsistencies, st.LastInconsistency = r.incons.snapshot()
	if r.keys != nil {
		st.KeyMaterialValid = r.keys.Valid()
	}
	if initErr != nil {
		st.InitError = initErr.Error()
		return st, nil
	}

	counters := []struct {
		kind  string
		count func(context.Context) (int, error)
	}{
		{KindServiceGroup, sg.Count},
		{KindRedirect, rd.Count},
		{KindServiceInformation, si.Count},
		{KindBusinessCard, bc.Count},
	}
	counts := make([]int, len(counters))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range counters {
		g.Go(func() error {
			n, err := c.count(gctx)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return st, err
	}

	st.Entities = make(map[string]int, len(counters))
	for i, c := range counters {
		st.Entities[c.kind] = counts[i]
		r.metrics.SetEntities(c.kind, counts[i])
	}
	return st, nil
}
