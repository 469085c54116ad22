package incidents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/store"
	"github.com/kiranshivaraju/crashbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProjector(s *mockStore) *Projector {
	names := &mapResolver{names: map[string]string{"U_POINT": "Pat Point", "U_MOD": "Mo Dified"}}
	return NewProjector(s, names, 4)
}

func TestCurrentIncidents_EmptyStore(t *testing.T) {
	p := newTestProjector(&mockStore{})

	got, err := p.CurrentIncidents(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got.Open)
	assert.NotNil(t, got.Closed)
	assert.Empty(t, got.Open)
	assert.Empty(t, got.Closed)
}

func TestCurrentIncidents_StoreErrorPropagates(t *testing.T) {
	p := newTestProjector(&mockStore{listErr: errors.New("connection refused")})

	_, err := p.CurrentIncidents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCurrentIncidents_ExcludesInvalidAndAsksStoreToo(t *testing.T) {
	s := &mockStore{revs: []*models.Revision{
		rev(1, 0, models.StatusOpen, models.Sev2, 0),
		rev(2, 0, models.StatusInvalid, models.Sev1, 0),
		rev(3, 0, models.StatusClosed, models.Sev3, 0),
	}}
	p := newTestProjector(s)

	got, err := p.CurrentIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, s.filters, 1)
	assert.False(t, s.filters[0].IncludeInvalid)

	for _, v := range append(got.Open, got.Closed...) {
		assert.NotEqual(t, models.StatusInvalid, v.Status)
	}
	assert.Len(t, got.Open, 1)
	assert.Len(t, got.Closed, 1)
}

func TestCurrentIncidents_OnlyLatestRevisionPerID(t *testing.T) {
	s := &mockStore{revs: []*models.Revision{
		rev(1, 0, models.StatusOpen, models.Sev3, 0),
		rev(1, 2, models.StatusClosed, models.Sev3, 0),
		rev(1, 1, models.StatusOpen, models.Sev1, 0),
		rev(2, 0, models.StatusOpen, models.Sev4, 0),
	}}
	p := newTestProjector(s)

	got, err := p.CurrentIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Open, 1)
	assert.Equal(t, int64(2), got.Open[0].ID)
	require.Len(t, got.Closed, 1)
	assert.Equal(t, int64(1), got.Closed[0].ID)
	assert.Equal(t, 2, got.Closed[0].RevisionNumber)
}

func TestCurrentIncidents_Ordering(t *testing.T) {
	s := &mockStore{revs: []*models.Revision{
		rev(1, 0, models.StatusOpen, models.Sev3, 0),
		rev(2, 0, models.StatusOpen, models.Sev1, 2*time.Hour),
		rev(3, 0, models.StatusOpen, models.Sev1, time.Hour),
		rev(4, 0, models.StatusOpen, "garbage", 5*time.Hour),
		rev(5, 0, models.StatusClosed, models.Sev1, time.Hour),
		rev(6, 0, models.StatusClosed, models.Sev5, 3*time.Hour),
		rev(7, 0, models.StatusClosed, models.Sev2, 2*time.Hour),
	}}
	p := newTestProjector(s)

	got, err := p.CurrentIncidents(context.Background())
	require.NoError(t, err)

	var openIDs, closedIDs []int64
	for _, v := range got.Open {
		openIDs = append(openIDs, v.ID)
	}
	for _, v := range got.Closed {
		closedIDs = append(closedIDs, v.ID)
	}
	// Malformed severity ranks 0, ahead of sev-1.
	assert.Equal(t, []int64{4, 3, 2, 1}, openIDs)
	assert.Equal(t, []int64{6, 7, 5}, closedIDs)

	for i := 1; i < len(got.Open); i++ {
		a, b := got.Open[i-1], got.Open[i]
		require.LessOrEqual(t, a.Severity.Rank(), b.Severity.Rank())
		if a.Severity.Rank() == b.Severity.Rank() {
			assert.False(t, b.ReportedAt.Before(a.ReportedAt))
		}
	}
	for i := 1; i < len(got.Closed); i++ {
		assert.False(t, got.Closed[i].ReportedAt.After(got.Closed[i-1].ReportedAt))
	}
}

func TestCurrentIncidents_ResolvesNames(t *testing.T) {
	r := rev(1, 0, models.StatusOpen, models.Sev2, 0)
	r.Contact = strPtr("U_UNKNOWN")
	p := newTestProjector(&mockStore{revs: []*models.Revision{r}})

	got, err := p.CurrentIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Open, 1)
	assert.Equal(t, "Pat Point", got.Open[0].Point)
	assert.Equal(t, "Not assigned", got.Open[0].Contact)
	assert.Equal(t, "Mo Dified", got.Open[0].ModifiedBy)
}

func TestCurrentIncidents_BoundedConcurrency(t *testing.T) {
	var revs []*models.Revision
	for i := int64(1); i <= 10; i++ {
		revs = append(revs, rev(i, 0, models.StatusOpen, models.Sev2, 0))
	}
	names := &mapResolver{delay: 5 * time.Millisecond}
	p := NewProjector(&mockStore{revs: revs}, names, 3)

	got, err := p.CurrentIncidents(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Open, 10)
	assert.LessOrEqual(t, names.peak.Load(), int32(3))
	assert.Greater(t, names.peak.Load(), int32(1))
}

func TestMenu_IncludesInvalidInGroupOrder(t *testing.T) {
	s := &mockStore{revs: []*models.Revision{
		rev(1, 0, models.StatusInvalid, models.Sev1, 0),
		rev(2, 0, models.StatusClosed, models.Sev2, 0),
		rev(3, 0, models.StatusOpen, models.Sev4, 0),
		rev(4, 0, models.StatusOpen, models.Sev1, time.Hour),
		rev(5, 0, models.StatusClosed, models.Sev2, time.Hour),
	}}
	s.revs[2].Title = "db down"
	p := newTestProjector(s)

	opts, err := p.Menu(context.Background())
	require.NoError(t, err)
	require.Len(t, s.filters, 1)
	assert.Equal(t, store.RevisionFilter{IncludeInvalid: true}, s.filters[0])

	var values []string
	for _, o := range opts {
		values = append(values, o.Value)
	}
	assert.Equal(t, []string{"4", "3", "5", "2", "1"}, values)
	assert.Equal(t, "🚨 DCL-3 db down", opts[1].Label)
	assert.Equal(t, "✅ DCL-5 title", opts[2].Label)
	assert.Equal(t, "🚫 DCL-1 title", opts[4].Label)
}

func TestMenu_Empty(t *testing.T) {
	opts, err := newTestProjector(&mockStore{}).Menu(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestMenu_StoreError(t *testing.T) {
	_, err := newTestProjector(&mockStore{listErr: errors.New("boom")}).Menu(context.Background())
	assert.Error(t, err)
}

func TestLatestPerID(t *testing.T) {
	revs := []*models.Revision{
		rev(2, 0, models.StatusOpen, models.Sev1, 0),
		rev(1, 1, models.StatusOpen, models.Sev1, 0),
		nil,
		rev(2, 3, models.StatusInvalid, models.Sev1, 0),
		rev(1, 0, models.StatusOpen, models.Sev1, 0),
	}

	got := LatestPerID(revs, false)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, 1, got[0].RevisionNumber)

	all := LatestPerID(revs, true)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID)
	assert.Equal(t, 3, all[0].RevisionNumber)

	// Idempotent.
	assert.Equal(t, all, LatestPerID(all, true))
}

func TestSortOpen_Stable(t *testing.T) {
	views := []models.IncidentView{
		{ID: 1, Severity: models.Sev2, ReportedAt: baseTime},
		{ID: 2, Severity: models.Sev2, ReportedAt: baseTime},
		{ID: 3, Severity: models.Sev1, ReportedAt: baseTime},
	}
	SortOpen(views)
	assert.Equal(t, int64(3), views[0].ID)
	assert.Equal(t, int64(1), views[1].ID)
	assert.Equal(t, int64(2), views[2].ID)
}
