// Package slackbot serves the incident commands and modals over a Slack
// socket-mode connection.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/config"
	"github.com/kiranshivaraju/crashbot/internal/incidents"
	"github.com/kiranshivaraju/crashbot/internal/store"
	"github.com/kiranshivaraju/crashbot/pkg/models"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const handlerTimeout = 30 * time.Second

// SlackAPI is the subset of the Web API the bot calls. *slack.Client satisfies it.
type SlackAPI interface {
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	UpdateViewContext(ctx context.Context, view slack.ModalViewRequest, externalID, hash, viewID string) (*slack.ViewResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// MenuSource lists the incidents offered by the update command.
type MenuSource interface {
	Menu(ctx context.Context) ([]incidents.MenuOption, error)
}

// RevisionGetter loads the current revision of one incident.
type RevisionGetter interface {
	GetLatestRevision(ctx context.Context, id int64) (*models.Revision, error)
}

// IncidentRecorder persists submitted incidents.
type IncidentRecorder interface {
	Create(ctx context.Context, in incidents.CreateInput) (*models.Revision, error)
	Update(ctx context.Context, in incidents.UpdateInput) (*models.Revision, error)
}

// Bot routes slash commands and modal interactions.
type Bot struct {
	api       SlackAPI
	menu      MenuSource
	revisions RevisionGetter
	recorder  IncidentRecorder
	cfg       config.SlackConfig
	now       func() time.Time
}

// New creates a Bot.
func New(api SlackAPI, menu MenuSource, revisions RevisionGetter, recorder IncidentRecorder, cfg config.SlackConfig) *Bot {
	return &Bot{
		api:       api,
		menu:      menu,
		revisions: revisions,
		recorder:  recorder,
		cfg:       cfg,
		now:       time.Now,
	}
}

// NewSocketMode wraps client in a socket-mode connection that logs through slog.
func NewSocketMode(client *slack.Client) *socketmode.Client {
	return socketmode.New(client,
		socketmode.OptionLog(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug)),
	)
}

// Run consumes socket-mode events until ctx is cancelled or the connection
// fails. Each event is handled in its own goroutine; Run waits for in-flight
// handlers before returning.
func (b *Bot) Run(ctx context.Context, sm *socketmode.Client) error {
	runErr := make(chan error, 1)
	go func() { runErr <- sm.RunContext(ctx) }()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("socket mode: %w", err)
		case evt := <-sm.Events:
			ack := func() {
				if evt.Request != nil {
					sm.Ack(*evt.Request)
				}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
				defer cancel()
				b.HandleEvent(hctx, evt, ack)
			}()
		}
	}
}

// HandleEvent dispatches one socket-mode event. ack is called exactly once for
// events that carry a request, before any slow work.
func (b *Bot) HandleEvent(ctx context.Context, evt socketmode.Event, ack func()) {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("panic handling slack event",
				"event_type", evt.Type,
				"error", err,
				"stack", string(debug.Stack()),
			)
		}
	}()

	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("connecting to slack")
	case socketmode.EventTypeConnected:
		slog.Info("connected to slack")
	case socketmode.EventTypeConnectionError:
		slog.Warn("slack connection error", "data", evt.Data)
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			ack()
			slog.Warn("unexpected slash command payload", "type", fmt.Sprintf("%T", evt.Data))
			return
		}
		b.HandleSlashCommand(ctx, cmd, ack)
	case socketmode.EventTypeInteractive:
		cb, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			ack()
			slog.Warn("unexpected interaction payload", "type", fmt.Sprintf("%T", evt.Data))
			return
		}
		b.HandleInteraction(ctx, cb, ack)
	default:
		if evt.Request != nil {
			ack()
		}
	}
}

// HandleSlashCommand serves the create and update commands.
func (b *Bot) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand, ack func()) {
	ack()

	switch cmd.Command {
	case b.cfg.CreateCommand:
		if _, err := b.api.OpenViewContext(ctx, cmd.TriggerID, CreateModal(b.now())); err != nil {
			slog.Error("opening create modal", "user_id", cmd.UserID, "error", err)
		}
	case b.cfg.UpdateCommand:
		b.openPicker(ctx, cmd)
	default:
		slog.Warn("unknown slash command", "command", cmd.Command, "user_id", cmd.UserID)
	}
}

func (b *Bot) openPicker(ctx context.Context, cmd slack.SlashCommand) {
	options, err := b.menu.Menu(ctx)
	if err != nil {
		slog.Error("loading incident menu", "user_id", cmd.UserID, "error", err)
		return
	}
	if len(options) == 0 {
		b.post(ctx, cmd.UserID, NoIncidentsMessage(b.cfg.CreateCommand))
		return
	}
	if _, err := b.api.OpenViewContext(ctx, cmd.TriggerID, PickerModal(options)); err != nil {
		slog.Error("opening update modal", "user_id", cmd.UserID, "error", err)
	}
}

// HandleInteraction serves incident selection and modal submissions.
func (b *Bot) HandleInteraction(ctx context.Context, cb slack.InteractionCallback, ack func()) {
	ack()

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		for _, a := range cb.ActionCallback.BlockActions {
			if a != nil && a.ActionID == actionLoadedIncidents {
				b.loadIncident(ctx, cb, a.SelectedOption.Value)
			}
		}
	case slack.InteractionTypeViewSubmission:
		switch cb.View.CallbackID {
		case callbackCreate:
			b.submitCreate(ctx, cb)
		case callbackUpdate:
			b.submitUpdate(ctx, cb)
		default:
			slog.Warn("unknown view submission", "callback_id", cb.View.CallbackID)
		}
	}
}

func (b *Bot) loadIncident(ctx context.Context, cb slack.InteractionCallback, value string) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("malformed incident selection", "value", value, "user_id", cb.User.ID)
		return
	}
	logger := slog.With("incident_id", id, "user_id", cb.User.ID)

	rev, err := b.revisions.GetLatestRevision(ctx, id)
	if err != nil {
		logger.Error("loading incident", "error", err)
		return
	}
	view, err := UpdateModal(rev)
	if err != nil {
		logger.Error("building update modal", "error", err)
		return
	}
	if _, err := b.api.UpdateViewContext(ctx, view, "", cb.View.Hash, cb.View.ID); err != nil {
		logger.Error("updating modal", "error", err)
	}
}

func (b *Bot) submitCreate(ctx context.Context, cb slack.InteractionCallback) {
	user := cb.User.ID
	logger := slog.With("callback_id", callbackCreate, "user_id", user)

	in, err := ParseCreate(cb.View, user)
	if err != nil {
		logger.Warn("rejected submission", "error", err)
		b.post(ctx, user, RejectedMessage(err))
		return
	}
	rev, err := b.recorder.Create(ctx, in)
	if err != nil {
		logger.Error("creating incident", "error", err)
		b.post(ctx, user, RejectedMessage(err))
		return
	}
	b.announce(ctx, user, CreatedMessage(rev))
}

func (b *Bot) submitUpdate(ctx context.Context, cb slack.InteractionCallback) {
	user := cb.User.ID
	logger := slog.With("callback_id", callbackUpdate, "user_id", user)

	in, err := ParseUpdate(cb.View, user)
	if err != nil {
		logger.Warn("rejected submission", "error", err)
		b.post(ctx, user, RejectedMessage(err))
		return
	}
	logger = logger.With("incident_id", in.ID)

	rev, err := b.recorder.Update(ctx, in)
	switch {
	case errors.Is(err, store.ErrRevisionConflict):
		logger.Warn("stale update", "prior_revision", in.PriorRevision)
		b.post(ctx, user, ConflictMessage(in.ID, b.cfg.UpdateCommand))
		return
	case err != nil:
		logger.Error("updating incident", "error", err)
		b.post(ctx, user, RejectedMessage(err))
		return
	}
	b.announce(ctx, user, UpdatedMessage(rev))
}

// announce posts msg to the announce channel and to the submitter.
func (b *Bot) announce(ctx context.Context, user, msg string) {
	b.post(ctx, b.cfg.AnnounceChannel, msg)
	b.post(ctx, user, msg)
}

func (b *Bot) post(ctx context.Context, channel, msg string) {
	if _, _, err := b.api.PostMessageContext(ctx, channel, slack.MsgOptionText(msg, false)); err != nil {
		slog.Error("posting message", "channel", channel, "error", err)
	}
}
