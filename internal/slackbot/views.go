package slackbot

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/incidents"
	"github.com/kiranshivaraju/crashbot/pkg/models"
	"github.com/slack-go/slack"
)

// Callback, block and action identifiers shared by the modals and the
// submission parser. Every input uses the same string as block and action id.
const (
	callbackCreate = "create"
	callbackUpdate = "update"

	actionLoadedIncidents = "loaded_incidents"

	fieldSeverity     = "severity"
	fieldReportedAt   = "report_date_time"
	fieldClosedAt     = "resolution_date_time"
	fieldPoint        = "point"
	fieldContact      = "contact"
	fieldTitle        = "title"
	fieldDescription  = "description"
	fieldStatus       = "status"
	fieldRCALink      = "rca_link"
	maxTitleLen       = 65
	maxDescriptionLen = 2000
	maxRCALinkLen     = 75
)

var severityDescriptions = map[models.Severity]string{
	models.Sev1: "Critical, impacting 50% of users",
	models.Sev2: "Critical, impacting some users",
	models.Sev3: "Stability or minor user impact",
	models.Sev4: "Minor issue",
	models.Sev5: "Cosmetics issue",
}

// incidentMetadata identifies the revision an update form was loaded from.
type incidentMetadata struct {
	ID             int64 `json:"id"`
	RevisionNumber int   `json:"revision_number"`
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func plainEmoji(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func severityLabel(s models.Severity) string {
	return strings.ToUpper(string(s))
}

func statusLabel(s models.Status) string {
	if s == "" {
		return ""
	}
	return s.Emoji() + " " + strings.ToUpper(string(s[:1])) + string(s[1:])
}

func severityOption(s models.Severity) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(string(s), plain(severityLabel(s)), plain(severityDescriptions[s]))
}

func statusOption(s models.Status) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(string(s), plainEmoji(statusLabel(s)), nil)
}

// incidentForm holds the values an incident modal is pre-filled with.
type incidentForm struct {
	Severity    models.Severity
	ReportedAt  time.Time
	Point       *string
	Contact     *string
	Title       string
	Description string

	// Update only.
	Status   models.Status
	ClosedAt *time.Time
	RCALink  *string
}

// CreateModal is the form opened by the create command.
func CreateModal(now time.Time) slack.ModalViewRequest {
	return incidentModal(callbackCreate, "Create an incident", "Create", incidentForm{
		Severity:   models.Sev1,
		ReportedAt: now,
	})
}

// PickerModal lists the incidents the update command can edit.
func PickerModal(options []incidents.MenuOption) slack.ModalViewRequest {
	opts := make([]*slack.OptionBlockObject, 0, len(options))
	for _, o := range options {
		opts = append(opts, slack.NewOptionBlockObject(o.Value, plainEmoji(o.Label), nil))
	}
	picker := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select an incident"), actionLoadedIncidents, opts...)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: callbackUpdate,
		Title:      plain("Update an incident"),
		Submit:     plain("Update"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewActionBlock(actionLoadedIncidents, picker),
		}},
	}
}

// UpdateModal is the update form pre-filled from the latest revision of an
// incident. The revision it was built from travels in private_metadata.
func UpdateModal(rev *models.Revision) (slack.ModalViewRequest, error) {
	view := incidentModal(callbackUpdate, "Update an incident", "Update", incidentForm{
		Severity:    rev.Severity,
		ReportedAt:  rev.ReportedAt,
		Point:       rev.Point,
		Contact:     rev.Contact,
		Title:       rev.Title,
		Description: rev.Description,
		Status:      rev.Status,
		ClosedAt:    rev.ClosedAt,
		RCALink:     rev.RCALink,
	})

	meta, err := json.Marshal(incidentMetadata{ID: rev.ID, RevisionNumber: rev.RevisionNumber})
	if err != nil {
		return slack.ModalViewRequest{}, err
	}
	view.PrivateMetadata = string(meta)
	return view, nil
}

func incidentModal(callbackID, title, submit string, f incidentForm) slack.ModalViewRequest {
	sevOpts := make([]*slack.OptionBlockObject, 0, len(models.Severities))
	for _, s := range models.Severities {
		sevOpts = append(sevOpts, severityOption(s))
	}
	severity := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, fieldSeverity, sevOpts...)
	if f.Severity.Valid() {
		severity.InitialOption = severityOption(f.Severity)
	}

	reported := slack.NewDateTimePickerBlockElement(fieldReportedAt)
	reported.InitialDateTime = f.ReportedAt.Unix()

	point := userSelect(fieldPoint, "Select user as point", f.Point)
	contact := userSelect(fieldContact, "Select user as contact", f.Contact)

	titleInput := slack.NewPlainTextInputBlockElement(plain("Summary of the incident"), fieldTitle)
	titleInput.InitialValue = f.Title
	titleInput.MaxLength = maxTitleLen

	descInput := slack.NewPlainTextInputBlockElement(plain("Describe the incident and steps to reproduce"), fieldDescription)
	descInput.Multiline = true
	descInput.InitialValue = f.Description
	descInput.MaxLength = maxDescriptionLen

	blocks := []slack.Block{
		slack.NewSectionBlock(mrkdwn("Severity"), nil, slack.NewAccessory(severity), slack.SectionBlockOptionBlockID(fieldSeverity)),
		slack.NewInputBlock(fieldReportedAt, plain("Report date & time"), nil, reported),
	}
	if callbackID == callbackUpdate {
		closed := slack.NewDateTimePickerBlockElement(fieldClosedAt)
		if f.ClosedAt != nil {
			closed.InitialDateTime = f.ClosedAt.Unix()
		}
		closedBlock := slack.NewInputBlock(fieldClosedAt, plain("Resolution date & time"), nil, closed)
		closedBlock.Optional = f.Status != models.StatusClosed
		blocks = append(blocks, closedBlock)
	}
	blocks = append(blocks,
		slack.NewSectionBlock(mrkdwn("Point"), nil, slack.NewAccessory(point), slack.SectionBlockOptionBlockID(fieldPoint)),
		slack.NewSectionBlock(mrkdwn("Contact"), nil, slack.NewAccessory(contact), slack.SectionBlockOptionBlockID(fieldContact)),
		slack.NewInputBlock(fieldTitle, plain("Title"), nil, titleInput),
		slack.NewInputBlock(fieldDescription, plain("Description"), nil, descInput),
	)

	if callbackID == callbackUpdate {
		statusOpts := make([]*slack.OptionBlockObject, 0, len(models.Statuses))
		for _, s := range models.Statuses {
			statusOpts = append(statusOpts, statusOption(s))
		}
		status := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, fieldStatus, statusOpts...)
		if f.Status.Valid() {
			status.InitialOption = statusOption(f.Status)
		}

		rca := slack.NewPlainTextInputBlockElement(plain("Paste a link to the RCA"), fieldRCALink)
		rca.MaxLength = maxRCALinkLen
		if f.RCALink != nil {
			rca.InitialValue = *f.RCALink
		}
		rcaBlock := slack.NewInputBlock(fieldRCALink, plain("RCA Link"), nil, rca)
		rcaBlock.Optional = true

		blocks = append(blocks,
			slack.NewSectionBlock(mrkdwn("Status"), nil, slack.NewAccessory(status), slack.SectionBlockOptionBlockID(fieldStatus)),
			rcaBlock,
		)
	}

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: callbackID,
		Title:      plain(title),
		Submit:     plain(submit),
		Blocks:     slack.Blocks{BlockSet: blocks},
	}
}

func userSelect(actionID, placeholder string, initial *string) *slack.SelectBlockElement {
	el := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, plain(placeholder), actionID)
	if initial != nil {
		el.InitialUser = *initial
	}
	return el
}
