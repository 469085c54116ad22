package incidents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/crashbot/pkg/models"
)

// RevisionWriter is the write side of the revision store.
type RevisionWriter interface {
	CreateIncident(ctx context.Context, rev *models.Revision) (int64, error)
	AppendRevision(ctx context.Context, rev *models.Revision) error
}

// Trigger schedules a background topic refresh.
type Trigger interface {
	Trigger()
}

// CreateInput is a new incident as submitted by a user.
type CreateInput struct {
	Actor       string
	Severity    models.Severity
	Title       string
	Description string
	Point       *string
	Contact     *string
	ReportedAt  time.Time
}

// UpdateInput is a new revision of an existing incident. PriorRevision is the
// revision number the user started editing from.
type UpdateInput struct {
	ID            int64
	PriorRevision int
	Actor         string
	Status        models.Status
	Severity      models.Severity
	Title         string
	Description   string
	Point         *string
	Contact       *string
	ReportedAt    time.Time
	ClosedAt      *time.Time
	RCALink       string
}

// Recorder appends incident revisions and schedules a topic refresh after each
// successful write.
type Recorder struct {
	store   RevisionWriter
	trigger Trigger
	now     func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(s RevisionWriter, t Trigger) *Recorder {
	return &Recorder{store: s, trigger: t, now: time.Now}
}

// Create stores revision 0 of a new open incident and returns it with the
// assigned id.
func (r *Recorder) Create(ctx context.Context, in CreateInput) (*models.Revision, error) {
	rev := &models.Revision{
		RevisionNumber: 0,
		ModifiedBy:     in.Actor,
		ModifiedAt:     r.now().UTC(),
		ReportedAt:     in.ReportedAt,
		Status:         models.StatusOpen,
		Severity:       in.Severity,
		Title:          in.Title,
		Description:    in.Description,
		Point:          in.Point,
		Contact:        in.Contact,
	}

	id, err := r.store.CreateIncident(ctx, rev)
	if err != nil {
		return nil, fmt.Errorf("creating incident: %w", err)
	}
	rev.ID = id

	slog.Info("incident created", "incident_id", id, "severity", rev.Severity, "actor", in.Actor)
	r.trigger.Trigger()
	return rev, nil
}

// Update appends revision PriorRevision+1. A closed status without a closing
// time is closed now. An empty RCA link is stored as null.
func (r *Recorder) Update(ctx context.Context, in UpdateInput) (*models.Revision, error) {
	now := r.now().UTC()

	closedAt := in.ClosedAt
	if in.Status == models.StatusClosed && closedAt == nil {
		closedAt = &now
	}
	var rca *string
	if in.RCALink != "" {
		link := in.RCALink
		rca = &link
	}

	rev := &models.Revision{
		ID:             in.ID,
		RevisionNumber: in.PriorRevision + 1,
		ModifiedBy:     in.Actor,
		ModifiedAt:     now,
		ReportedAt:     in.ReportedAt,
		ClosedAt:       closedAt,
		Status:         in.Status,
		Severity:       in.Severity,
		Title:          in.Title,
		Description:    in.Description,
		Point:          in.Point,
		Contact:        in.Contact,
		RCALink:        rca,
	}

	if err := r.store.AppendRevision(ctx, rev); err != nil {
		return nil, fmt.Errorf("updating incident %d: %w", in.ID, err)
	}

	slog.Info("incident updated",
		"incident_id", rev.ID,
		"revision_number", rev.RevisionNumber,
		"status", rev.Status,
		"actor", in.Actor,
	)
	r.trigger.Trigger()
	return rev, nil
}
