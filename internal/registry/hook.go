package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PiccoloProcione/supersmp/internal/metrics"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Inconsistency records a failed compensation
type Inconsistency struct {
	// Op is the operation whose compensation failed: "create", "delete" or "delete-restore"
	Op            string    `yaml:"op"`
	ParticipantID string    `yaml:"participantId"`
	Error         string    `yaml:"error"`
	At            time.Time `yaml:"at"`
}

// instrumentedHook measures directory calls
type instrumentedHook struct {
	next    smp.RegistrationHook
	metrics *metrics.Metrics
}

var _ smp.RegistrationHook = (*instrumentedHook)(nil)

func newInstrumentedHook(next smp.RegistrationHook, m *metrics.Metrics) *instrumentedHook {
	return &instrumentedHook{next: next, metrics: m}
}

func (h *instrumentedHook) CreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	start := time.Now()
	err := h.next.CreateServiceGroup(ctx, pid)
	h.metrics.ObserveDirectoryCall(smp.OpCreate, start, err)
	return err
}

func (h *instrumentedHook) UndoCreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	start := time.Now()
	err := h.next.UndoCreateServiceGroup(ctx, pid)
	h.metrics.ObserveDirectoryCall(smp.OpUndoCreate, start, err)
	return err
}

func (h *instrumentedHook) DeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	start := time.Now()
	err := h.next.DeleteServiceGroup(ctx, pid)
	h.metrics.ObserveDirectoryCall(smp.OpDelete, start, err)
	return err
}

func (h *instrumentedHook) UndoDeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	start := time.Now()
	err := h.next.UndoDeleteServiceGroup(ctx, pid)
	h.metrics.ObserveDirectoryCall(smp.OpUndoDelete, start, err)
	return err
}

// inconsistencyLog counts every *smp.InconsistencyError a service group
// operation returned and keeps the last one.
type inconsistencyLog struct {
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.Mutex
	count int
	last  *Inconsistency
}

func newInconsistencyLog(m *metrics.Metrics) *inconsistencyLog {
	return &inconsistencyLog{metrics: m, now: time.Now}
}

// observe records err if it reports an inconsistency. A directory undo that
// fails after a failed local restore yields one nested error; it is counted once.
func (l *inconsistencyLog) observe(err error) {
	var inc *smp.InconsistencyError
	if !errors.As(err, &inc) {
		return
	}
	l.metrics.IncrementInconsistencies()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.last = &Inconsistency{
		Op:            inc.Op,
		ParticipantID: inc.ParticipantID.URIEncoded(),
		Error:         inc.Error(),
		At:            l.now(),
	}
}

func (l *inconsistencyLog) snapshot() (int, *Inconsistency) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return l.count, nil
	}
	last := *l.last
	return l.count, &last
}

// instrumentedServiceGroups counts service group mutations and records
// the inconsistencies they report
type instrumentedServiceGroups struct {
	smp.ServiceGroupManager
	metrics         *metrics.Metrics
	inconsistencies *inconsistencyLog
}

func (s *instrumentedServiceGroups) Create(ctx context.Context, ownerID string, pid identifier.ParticipantID, ext extension.Extension) (*smp.ServiceGroup, error) {
	sg, err := s.ServiceGroupManager.Create(ctx, ownerID, pid, ext)
	s.metrics.ObserveServiceGroupOperation(smp.OpCreate, err)
	s.inconsistencies.observe(err)
	return sg, err
}

func (s *instrumentedServiceGroups) Update(ctx context.Context, id, ownerID string, ext extension.Extension) (smp.Change, error) {
	change, err := s.ServiceGroupManager.Update(ctx, id, ownerID, ext)
	s.metrics.ObserveServiceGroupOperation(smp.OpUpdate, err)
	return change, err
}

func (s *instrumentedServiceGroups) Delete(ctx context.Context, pid identifier.ParticipantID) (smp.Change, error) {
	change, err := s.ServiceGroupManager.Delete(ctx, pid)
	s.metrics.ObserveServiceGroupOperation(smp.OpDelete, err)
	s.inconsistencies.observe(err)
	return change, err
}
