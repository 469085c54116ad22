package slackbot

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/crashbot/internal/incidents"
	"github.com/kiranshivaraju/crashbot/internal/store"
	"github.com/kiranshivaraju/crashbot/pkg/models"
	"github.com/slack-go/slack"
)

// --- Mocks ---

type postedMessage struct {
	Channel string
	Text    string
}

type openedView struct {
	TriggerID string
	View      slack.ModalViewRequest
}

type updatedView struct {
	View   slack.ModalViewRequest
	Hash   string
	ViewID string
}

type mockSlackAPI struct {
	mu sync.Mutex

	opened  []openedView
	updated []updatedView
	posted  []postedMessage
	openErr error
	postErr error
}

func (m *mockSlackAPI) OpenViewContext(_ context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, openedView{TriggerID: triggerID, View: view})
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &slack.ViewResponse{}, nil
}

func (m *mockSlackAPI) UpdateViewContext(_ context.Context, view slack.ModalViewRequest, _, hash, viewID string) (*slack.ViewResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, updatedView{View: view, Hash: hash, ViewID: viewID})
	return &slack.ViewResponse{}, nil
}

func (m *mockSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, postedMessage{Channel: channelID, Text: values.Get("text")})
	return channelID, "1", m.postErr
}

type mockMenu struct {
	options []incidents.MenuOption
	err     error
}

func (m *mockMenu) Menu(_ context.Context) ([]incidents.MenuOption, error) {
	return m.options, m.err
}

type mockRevisions struct {
	revs map[int64]*models.Revision
}

func (m *mockRevisions) GetLatestRevision(_ context.Context, id int64) (*models.Revision, error) {
	r, ok := m.revs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

type mockRecorder struct {
	mu sync.Mutex

	creates   []incidents.CreateInput
	updates   []incidents.UpdateInput
	nextID    int64
	createErr error
	updateErr error
}

func (m *mockRecorder) Create(_ context.Context, in incidents.CreateInput) (*models.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates = append(m.creates, in)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Revision{
		ID:          m.nextID,
		ModifiedBy:  in.Actor,
		ReportedAt:  in.ReportedAt,
		Status:      models.StatusOpen,
		Severity:    in.Severity,
		Title:       in.Title,
		Description: in.Description,
		Point:       in.Point,
		Contact:     in.Contact,
	}, nil
}

func (m *mockRecorder) Update(_ context.Context, in incidents.UpdateInput) (*models.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, in)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	rev := &models.Revision{
		ID:             in.ID,
		RevisionNumber: in.PriorRevision + 1,
		ModifiedBy:     in.Actor,
		ReportedAt:     in.ReportedAt,
		ClosedAt:       in.ClosedAt,
		Status:         in.Status,
		Severity:       in.Severity,
		Title:          in.Title,
		Description:    in.Description,
		Point:          in.Point,
		Contact:        in.Contact,
	}
	if in.RCALink != "" {
		link := in.RCALink
		rev.RCALink = &link
	}
	return rev, nil
}

// --- Helpers ---

func strPtr(s string) *string { return &s }

// submittedView builds a view whose state holds the given field values.
func submittedView(callbackID string, fields map[string]slack.BlockAction) slack.View {
	values := make(map[string]map[string]slack.BlockAction, len(fields))
	for k, v := range fields {
		values[k] = map[string]slack.BlockAction{k: v}
	}
	return slack.View{
		CallbackID: callbackID,
		State:      &slack.ViewState{Values: values},
	}
}

func createFields(reportedUnix int64) map[string]slack.BlockAction {
	return map[string]slack.BlockAction{
		fieldSeverity:    {SelectedOption: slack.OptionBlockObject{Value: "sev-2"}},
		fieldReportedAt:  {SelectedDateTime: reportedUnix},
		fieldPoint:       {SelectedUser: "U1"},
		fieldContact:     {},
		fieldTitle:       {Value: "  Checkout down  "},
		fieldDescription: {Value: "500s on /pay"},
	}
}

func updateFields(reportedUnix int64, status string) map[string]slack.BlockAction {
	f := createFields(reportedUnix)
	f[fieldStatus] = slack.BlockAction{SelectedOption: slack.OptionBlockObject{Value: status}}
	f[fieldClosedAt] = slack.BlockAction{}
	f[fieldRCALink] = slack.BlockAction{Value: ""}
	return f
}
