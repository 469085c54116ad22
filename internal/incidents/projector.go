// Package incidents reconstructs current incident state from the revision log
// and derives the listing, menu and channel-topic projections from it.
package incidents

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/kiranshivaraju/crashbot/internal/store"
	"github.com/kiranshivaraju/crashbot/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/kiranshivaraju/crashbot/internal/incidents"

// RevisionReader is the read side of the revision store.
type RevisionReader interface {
	ListLatestRevisions(ctx context.Context, filter store.RevisionFilter) ([]*models.Revision, error)
}

// NameResolver turns a user id into a display name. It must not fail.
type NameResolver interface {
	DisplayName(ctx context.Context, userID *string) string
}

// MenuOption is one entry of the incident picker shown by the update command.
type MenuOption struct {
	Label string
	Value string
}

// Projector builds name-resolved views of the current incidents.
type Projector struct {
	store          RevisionReader
	names          NameResolver
	maxConcurrency int
	tracer         trace.Tracer
}

// NewProjector creates a Projector. maxConcurrency bounds the number of
// in-flight name lookups; values below 1 mean unbounded.
func NewProjector(s RevisionReader, names NameResolver, maxConcurrency int) *Projector {
	return &Projector{
		store:          s,
		names:          names,
		maxConcurrency: maxConcurrency,
		tracer:         otel.Tracer(tracerName),
	}
}

// CurrentIncidents returns the latest revision of every open and closed incident
// with user fields resolved to display names. Open incidents are ordered by
// SortOpen, closed ones by SortByReportedDesc. Both lists are non-nil.
func (p *Projector) CurrentIncidents(ctx context.Context) (*models.Incidents, error) {
	ctx, span := p.tracer.Start(ctx, "incidents.CurrentIncidents")
	defer span.End()

	revs, err := p.store.ListLatestRevisions(ctx, store.RevisionFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list latest revisions")
		return nil, fmt.Errorf("list latest revisions: %w", err)
	}
	current := LatestPerID(revs, false)
	span.SetAttributes(attribute.Int("incidents.count", len(current)))

	views := p.resolve(ctx, current)

	out := &models.Incidents{
		Open:   []models.IncidentView{},
		Closed: []models.IncidentView{},
	}
	for _, v := range views {
		switch v.Status {
		case models.StatusOpen:
			out.Open = append(out.Open, v)
		case models.StatusClosed:
			out.Closed = append(out.Closed, v)
		}
	}
	SortOpen(out.Open)
	SortByReportedDesc(out.Closed)
	return out, nil
}

// resolve fills point, contact and modified_by of every row concurrently and
// waits for all lookups to settle.
func (p *Projector) resolve(ctx context.Context, revs []*models.Revision) []models.IncidentView {
	views := make([]models.IncidentView, len(revs))
	var g errgroup.Group
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}

	for i, r := range revs {
		views[i] = models.NewIncidentView(r)
		v := &views[i]
		g.Go(func() error {
			v.Point = p.names.DisplayName(ctx, r.Point)
			return nil
		})
		g.Go(func() error {
			v.Contact = p.names.DisplayName(ctx, r.Contact)
			return nil
		})
		g.Go(func() error {
			v.ModifiedBy = p.names.DisplayName(ctx, &r.ModifiedBy)
			return nil
		})
	}
	// The closures never return an error; Wait only joins them.
	_ = g.Wait()
	return views
}

// Menu lists every incident, including invalid ones, as picker options:
// open incidents first (SortOpen), then closed, then invalid, the latter two
// most recently reported first.
func (p *Projector) Menu(ctx context.Context) ([]MenuOption, error) {
	revs, err := p.store.ListLatestRevisions(ctx, store.RevisionFilter{IncludeInvalid: true})
	if err != nil {
		return nil, fmt.Errorf("list latest revisions: %w", err)
	}

	var open, closed, invalid []models.IncidentView
	for _, r := range LatestPerID(revs, true) {
		v := models.NewIncidentView(r)
		switch r.Status {
		case models.StatusOpen:
			open = append(open, v)
		case models.StatusClosed:
			closed = append(closed, v)
		default:
			invalid = append(invalid, v)
		}
	}
	SortOpen(open)
	SortByReportedDesc(closed)
	SortByReportedDesc(invalid)

	options := make([]MenuOption, 0, len(open)+len(closed)+len(invalid))
	for _, group := range [][]models.IncidentView{open, closed, invalid} {
		for _, v := range group {
			options = append(options, MenuOption{
				Label: fmt.Sprintf("%s DCL-%d %s", v.Status.Emoji(), v.ID, v.Title),
				Value: strconv.FormatInt(v.ID, 10),
			})
		}
	}
	return options, nil
}

// LatestPerID keeps only the highest revision of each incident id, in order of
// first appearance. Incidents whose latest revision is invalid are dropped
// unless includeInvalid is set.
func LatestPerID(revs []*models.Revision, includeInvalid bool) []*models.Revision {
	latest := make(map[int64]*models.Revision, len(revs))
	order := make([]int64, 0, len(revs))
	for _, r := range revs {
		if r == nil {
			continue
		}
		cur, ok := latest[r.ID]
		if !ok {
			order = append(order, r.ID)
		}
		if !ok || r.RevisionNumber > cur.RevisionNumber {
			latest[r.ID] = r
		}
	}

	out := make([]*models.Revision, 0, len(order))
	for _, id := range order {
		r := latest[id]
		if !includeInvalid && r.Status == models.StatusInvalid {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortOpen orders incidents by severity rank ascending, then by reported_at
// ascending. The sort is stable.
func SortOpen(views []models.IncidentView) {
	slices.SortStableFunc(views, func(a, b models.IncidentView) int {
		if c := cmp.Compare(a.Severity.Rank(), b.Severity.Rank()); c != 0 {
			return c
		}
		return a.ReportedAt.Compare(b.ReportedAt)
	})
}

// SortByReportedDesc orders incidents most recently reported first. The sort is stable.
func SortByReportedDesc(views []models.IncidentView) {
	slices.SortStableFunc(views, func(a, b models.IncidentView) int {
		return b.ReportedAt.Compare(a.ReportedAt)
	})
}
