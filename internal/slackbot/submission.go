package slackbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/incidents"
	"github.com/kiranshivaraju/crashbot/pkg/models"
	"github.com/slack-go/slack"
)

// ErrInvalidSubmission is returned when a modal submission is missing a
// required value or carries one outside its domain.
var ErrInvalidSubmission = errors.New("invalid submission")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSubmission, fmt.Sprintf(format, args...))
}

type formValues map[string]map[string]slack.BlockAction

func (v formValues) get(field string) (slack.BlockAction, bool) {
	block, ok := v[field]
	if !ok {
		return slack.BlockAction{}, false
	}
	action, ok := block[field]
	return action, ok
}

func (v formValues) text(field string) string {
	a, _ := v.get(field)
	return strings.TrimSpace(a.Value)
}

func (v formValues) option(field string) string {
	a, _ := v.get(field)
	return a.SelectedOption.Value
}

func (v formValues) user(field string) *string {
	a, _ := v.get(field)
	if a.SelectedUser == "" {
		return nil
	}
	u := a.SelectedUser
	return &u
}

func (v formValues) datetime(field string) *time.Time {
	a, _ := v.get(field)
	if a.SelectedDateTime == 0 {
		return nil
	}
	t := time.Unix(a.SelectedDateTime, 0).UTC()
	return &t
}

func stateValues(view slack.View) formValues {
	if view.State == nil {
		return formValues{}
	}
	return formValues(view.State.Values)
}

// common holds the fields shared by both forms.
type common struct {
	severity    models.Severity
	reportedAt  time.Time
	point       *string
	contact     *string
	title       string
	description string
}

func parseCommon(values formValues) (common, error) {
	c := common{
		severity:    models.Severity(values.option(fieldSeverity)),
		point:       values.user(fieldPoint),
		contact:     values.user(fieldContact),
		title:       values.text(fieldTitle),
		description: values.text(fieldDescription),
	}
	if !c.severity.Valid() {
		return c, invalid("unknown severity %q", c.severity)
	}
	reported := values.datetime(fieldReportedAt)
	if reported == nil {
		return c, invalid("report date and time is required")
	}
	c.reportedAt = *reported
	if c.title == "" {
		return c, invalid("title is required")
	}
	if n := len([]rune(c.title)); n > maxTitleLen {
		return c, invalid("title is %d characters, limit is %d", n, maxTitleLen)
	}
	if n := len([]rune(c.description)); n > maxDescriptionLen {
		return c, invalid("description is %d characters, limit is %d", n, maxDescriptionLen)
	}
	return c, nil
}

// ParseCreate reads a create modal submission.
func ParseCreate(view slack.View, actor string) (incidents.CreateInput, error) {
	c, err := parseCommon(stateValues(view))
	if err != nil {
		return incidents.CreateInput{}, err
	}
	return incidents.CreateInput{
		Actor:       actor,
		Severity:    c.severity,
		Title:       c.title,
		Description: c.description,
		Point:       c.point,
		Contact:     c.contact,
		ReportedAt:  c.reportedAt,
	}, nil
}

// ParseUpdate reads an update modal submission. The incident id and the
// revision the form was loaded from come from private_metadata.
func ParseUpdate(view slack.View, actor string) (incidents.UpdateInput, error) {
	if view.PrivateMetadata == "" {
		return incidents.UpdateInput{}, invalid("no incident selected")
	}
	var meta incidentMetadata
	if err := json.Unmarshal([]byte(view.PrivateMetadata), &meta); err != nil {
		return incidents.UpdateInput{}, invalid("malformed metadata: %v", err)
	}

	values := stateValues(view)
	c, err := parseCommon(values)
	if err != nil {
		return incidents.UpdateInput{}, err
	}
	status := models.Status(values.option(fieldStatus))
	if !status.Valid() {
		return incidents.UpdateInput{}, invalid("unknown status %q", status)
	}
	rca := values.text(fieldRCALink)
	if n := len([]rune(rca)); n > maxRCALinkLen {
		return incidents.UpdateInput{}, invalid("RCA link is %d characters, limit is %d", n, maxRCALinkLen)
	}

	return incidents.UpdateInput{
		ID:            meta.ID,
		PriorRevision: meta.RevisionNumber,
		Actor:         actor,
		Status:        status,
		Severity:      c.severity,
		Title:         c.title,
		Description:   c.description,
		Point:         c.point,
		Contact:       c.contact,
		ReportedAt:    c.reportedAt,
		ClosedAt:      values.datetime(fieldClosedAt),
		RCALink:       rca,
	}, nil
}
