// Package models contains shared data models used across the crashbot codebase.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Severity is the incident severity tier, sev-1 (most severe) through sev-5.
type Severity string

const (
	Sev1 Severity = "sev-1"
	Sev2 Severity = "sev-2"
	Sev3 Severity = "sev-3"
	Sev4 Severity = "sev-4"
	Sev5 Severity = "sev-5"
)

// Severities lists every tier in rank order.
var Severities = []Severity{Sev1, Sev2, Sev3, Sev4, Sev5}

const severityPrefix = "sev-"

// Rank returns the numeric suffix of the severity, 1 being the most severe.
// Malformed values rank 0 and therefore sort ahead of sev-1.
func (s Severity) Rank() int {
	if !strings.HasPrefix(string(s), severityPrefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(s), severityPrefix))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Valid reports whether s is one of the five known tiers.
func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

var severityEmoji = map[Severity]string{
	Sev1: "1️⃣",
	Sev2: "2️⃣",
	Sev3: "3️⃣",
	Sev4: "4️⃣",
	Sev5: "5️⃣",
}

// Emoji returns the keycap glyph shown for the tier, or "" for unknown values.
func (s Severity) Emoji() string {
	return severityEmoji[s]
}

// Status is the lifecycle state of an incident.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusInvalid Status = "invalid"
)

// Statuses lists every status in menu order.
var Statuses = []Status{StatusOpen, StatusClosed, StatusInvalid}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed || s == StatusInvalid
}

// Emoji returns the glyph used to flag the status in incident pickers.
func (s Status) Emoji() string {
	switch s {
	case StatusOpen:
		return "🚨"
	case StatusClosed:
		return "✅"
	case StatusInvalid:
		return "🚫"
	default:
		return ""
	}
}

// Revision is one immutable snapshot of an incident. All revisions of an
// incident share ID; the one with the highest RevisionNumber is its current state.
type Revision struct {
	ID             int64      `db:"id"              json:"id"`
	RevisionNumber int        `db:"revision_number" json:"revision_number"`
	ModifiedBy     string     `db:"modified_by"     json:"modified_by"`
	ModifiedAt     time.Time  `db:"modified_at"     json:"modified_at"`
	ReportedAt     time.Time  `db:"reported_at"     json:"reported_at"`
	ClosedAt       *time.Time `db:"closed_at"       json:"closed_at"`
	Status         Status     `db:"status"          json:"status"`
	Severity       Severity   `db:"severity"        json:"severity"`
	Title          string     `db:"title"           json:"title"`
	Description    string     `db:"description"     json:"description"`
	Point          *string    `db:"point"           json:"point"`
	Contact        *string    `db:"contact"         json:"contact"`
	RCALink        *string    `db:"rca_link"        json:"rca_link"`
}

// IncidentView is the current revision of an incident with its user fields
// replaced by display names. It is computed on every read and never stored.
type IncidentView struct {
	ID             int64      `json:"id"`
	RevisionNumber int        `json:"revision_number"`
	ModifiedBy     string     `json:"modified_by"`
	ModifiedAt     time.Time  `json:"modified_at"`
	ReportedAt     time.Time  `json:"reported_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	Status         Status     `json:"status"`
	Severity       Severity   `json:"severity"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Point          string     `json:"point"`
	Contact        string     `json:"contact"`
	RCALink        *string    `json:"rca_link"`
}

// NewIncidentView copies the non-identity fields of r. User fields are left
// empty for the caller to resolve.
func NewIncidentView(r *Revision) IncidentView {
	return IncidentView{
		ID:             r.ID,
		RevisionNumber: r.RevisionNumber,
		ModifiedAt:     r.ModifiedAt,
		ReportedAt:     r.ReportedAt,
		ClosedAt:       r.ClosedAt,
		Status:         r.Status,
		Severity:       r.Severity,
		Title:          r.Title,
		Description:    r.Description,
		RCALink:        r.RCALink,
	}
}

// Incidents is the public listing: current open and closed incidents.
type Incidents struct {
	Open   []IncidentView `json:"open"`
	Closed []IncidentView `json:"closed"`
}
