package incidents

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/store"
	"github.com/kiranshivaraju/crashbot/pkg/models"
)

// --- Mocks ---

type mockStore struct {
	mu sync.Mutex

	revs      []*models.Revision
	listErr   error
	filters   []store.RevisionFilter
	open      []*models.Revision
	openErr   error
	nextID    int64
	createErr error
	appendErr error
	created   []*models.Revision
	appended  []*models.Revision
}

func (m *mockStore) ListLatestRevisions(_ context.Context, filter store.RevisionFilter) ([]*models.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Revision
	for _, r := range m.revs {
		if !filter.IncludeInvalid && r.Status == models.StatusInvalid {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) ListOpenIncidents(_ context.Context) ([]*models.Revision, error) {
	return m.open, m.openErr
}

func (m *mockStore) CreateIncident(_ context.Context, rev *models.Revision) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.created = append(m.created, rev)
	return m.nextID, nil
}

func (m *mockStore) AppendRevision(_ context.Context, rev *models.Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, rev)
	return nil
}

// mapResolver resolves ids from a fixed table and falls back like the real resolver.
type mapResolver struct {
	names    map[string]string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (m *mapResolver) DisplayName(_ context.Context, userID *string) string {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if userID == nil || *userID == "" {
		return "Not assigned"
	}
	if name, ok := m.names[*userID]; ok {
		return name
	}
	return "Not assigned"
}

type mockSink struct {
	mu      sync.Mutex
	topics  []string
	channel string
	err     error
}

func (m *mockSink) SetTopic(_ context.Context, channel, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channel = channel
	if m.err != nil {
		return m.err
	}
	m.topics = append(m.topics, topic)
	return nil
}

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func strPtr(s string) *string { return &s }

var baseTime = time.Date(2022, 7, 19, 12, 0, 0, 0, time.UTC)

func rev(id int64, n int, status models.Status, sev models.Severity, reportedOffset time.Duration) *models.Revision {
	return &models.Revision{
		ID:             id,
		RevisionNumber: n,
		ModifiedBy:     "U_MOD",
		ReportedAt:     baseTime.Add(reportedOffset),
		Status:         status,
		Severity:       sev,
		Title:          "title",
		Description:    "description",
		Point:          strPtr("U_POINT"),
		Contact:        nil,
	}
}
