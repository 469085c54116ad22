package slackbot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/identity"
	"github.com/kiranshivaraju/crashbot/pkg/models"
)

// Timestamps are shown in UTC with minute precision.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + ":00hs"
}

// CreatedMessage confirms a new incident to the channel and the submitter.
func CreatedMessage(rev *models.Revision) string {
	var b strings.Builder
	b.WriteString("Incident created successfully with the following data:\n\n")
	fmt.Fprintf(&b, "*Id:* DCL-%d\n", rev.ID)
	fmt.Fprintf(&b, "*Severity:* %s\n", severityLabel(rev.Severity))
	fmt.Fprintf(&b, "*Report date and time:* %s\n", formatTime(rev.ReportedAt))
	fmt.Fprintf(&b, "*Point:* %s\n", identity.MentionFor(rev.Point))
	fmt.Fprintf(&b, "*Contact:* %s\n", identity.MentionFor(rev.Contact))
	fmt.Fprintf(&b, "*Title:* %s\n", rev.Title)
	fmt.Fprintf(&b, "*Description:* %s\n", rev.Description)
	return b.String()
}

// UpdatedMessage confirms a new revision. Resolution time and RCA link are
// listed only when set.
func UpdatedMessage(rev *models.Revision) string {
	var b strings.Builder
	b.WriteString("Incident updated successfully with the following data:\n\n")
	fmt.Fprintf(&b, "*Id:* DCL-%d\n", rev.ID)
	fmt.Fprintf(&b, "*Severity:* %s\n", severityLabel(rev.Severity))
	fmt.Fprintf(&b, "*Report date and time:* %s\n", formatTime(rev.ReportedAt))
	if rev.ClosedAt != nil {
		fmt.Fprintf(&b, "*Resolution date and time:* %s\n", formatTime(*rev.ClosedAt))
	}
	fmt.Fprintf(&b, "*Point:* %s\n", identity.MentionFor(rev.Point))
	fmt.Fprintf(&b, "*Contact:* %s\n", identity.MentionFor(rev.Contact))
	fmt.Fprintf(&b, "*Title:* %s\n", rev.Title)
	fmt.Fprintf(&b, "*Description:* %s\n", rev.Description)
	fmt.Fprintf(&b, "*Status:* %s\n", statusLabel(rev.Status))
	if rev.RCALink != nil {
		fmt.Fprintf(&b, "*RCA link:* %s\n", *rev.RCALink)
	}
	return b.String()
}

// NoIncidentsMessage is sent when the update command finds nothing to edit.
func NoIncidentsMessage(createCommand string) string {
	return fmt.Sprintf("There are no incidents! Create one using `%s`", createCommand)
}

// ConflictMessage is sent when someone else updated the incident after the
// form was loaded.
func ConflictMessage(id int64, updateCommand string) string {
	return fmt.Sprintf("DCL-%d was updated by someone else while you were editing it. Run `%s` to load the latest version and try again.", id, updateCommand)
}

// RejectedMessage explains why a submission was not saved. Only validation
// failures are shown verbatim; anything else gets SaveFailedMessage.
func RejectedMessage(err error) string {
	if !errors.Is(err, ErrInvalidSubmission) {
		return SaveFailedMessage
	}
	return fmt.Sprintf("Your incident was not saved: %v", err)
}

// SaveFailedMessage is sent when a valid submission could not be stored.
const SaveFailedMessage = "Your incident could not be saved right now. Please try again in a moment."
