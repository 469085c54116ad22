package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/crashbot/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ErrRevisionConflict is returned when a revision with the same incident id and
// revision number already exists, i.e. another update won the race.
var ErrRevisionConflict = errors.New("incident revision already exists")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	ListLatestRevisions(ctx context.Context, filter RevisionFilter) ([]*models.Revision, error)
	GetLatestRevision(ctx context.Context, id int64) (*models.Revision, error)
	ListOpenIncidents(ctx context.Context) ([]*models.Revision, error)

	CreateIncident(ctx context.Context, rev *models.Revision) (int64, error)
	AppendRevision(ctx context.Context, rev *models.Revision) error
}

// RevisionFilter narrows ListLatestRevisions.
type RevisionFilter struct {
	// IncludeInvalid keeps incidents whose latest revision is marked invalid.
	IncludeInvalid bool
}
