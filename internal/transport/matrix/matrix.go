// Package matrix adapts a Matrix account to the chat transport.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"spacebot/internal/runtime/supervisor"
	"spacebot/internal/storage"
	"spacebot/internal/transport"
	logx "spacebot/pkg/logx"
)

type Config struct {
	// Homeserver may be empty when UserID carries a server name.
	Homeserver string
	UserID     string
	Password   string
	DeviceName string
}

type Adapter struct {
	cfg Config
	log logx.Logger
	kv  storage.Store // nil disables session persistence

	cli *mautrix.Client

	out     atomic.Value // chan<- transport.Event
	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	droppedEvents uint64
}

var _ transport.Adapter = (*Adapter)(nil)

func New(cfg Config, kv storage.Store, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("matrix username is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, kv: kv}
	var nilOut chan<- transport.Event
	a.out.Store(nilOut)
	return a, nil
}

// Connect resolves the homeserver and restores or creates a session. It must
// succeed before Start.
func (a *Adapter) Connect(ctx context.Context) error {
	user := id.UserID(a.cfg.UserID)
	hs, err := a.homeserver(ctx, user)
	if err != nil {
		return err
	}

	if a.kv != nil {
		sess, ok, err := loadSession(ctx, a.kv)
		if err != nil {
			return fmt.Errorf("load matrix session: %w", err)
		}
		if ok && sess.UserID == user.String() {
			cli, err := mautrix.NewClient(sess.Homeserver, id.UserID(sess.UserID), sess.AccessToken)
			if err != nil {
				return err
			}
			cli.DeviceID = id.DeviceID(sess.DeviceID)
			_, err = cli.Whoami(ctx)
			switch {
			case err == nil:
				a.log.Info("restored matrix session", logx.String("device_id", sess.DeviceID))
				a.setClient(cli)
				return nil
			case !tokenRejected(err):
				// Keep the session; the homeserver may only be unreachable for now.
				return fmt.Errorf("verify matrix session: %w", err)
			}
			a.log.Warn("stored matrix session rejected; logging in again", logx.Err(err))
			clearSession(ctx, a.kv)
		}
	}

	cli, err := mautrix.NewClient(hs, "", "")
	if err != nil {
		return err
	}
	localpart := a.cfg.UserID
	if lp, _, err := user.Parse(); err == nil {
		localpart = lp
	}
	resp, err := cli.Login(ctx, &mautrix.ReqLogin{
		Type:                     mautrix.AuthTypePassword,
		Identifier:               mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: localpart},
		Password:                 a.cfg.Password,
		InitialDeviceDisplayName: a.cfg.DeviceName,
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}
	a.log.Info("logged in to matrix", logx.String("user_id", resp.UserID.String()), logx.String("device_id", string(resp.DeviceID)))
	if a.kv != nil {
		err := saveSession(ctx, a.kv, Session{
			Homeserver:  hs,
			UserID:      resp.UserID.String(),
			DeviceID:    string(resp.DeviceID),
			AccessToken: resp.AccessToken,
		})
		if err != nil {
			a.log.Warn("failed to persist matrix session", logx.Err(err))
		}
	}
	a.setClient(cli)
	return nil
}

// tokenRejected reports whether the homeserver refused the access token
// itself, as opposed to failing for transport reasons.
func tokenRejected(err error) bool {
	if errors.Is(err, mautrix.MUnknownToken) || errors.Is(err, mautrix.MMissingToken) {
		return true
	}
	var httpErr mautrix.HTTPError
	return errors.As(err, &httpErr) && httpErr.Response != nil && httpErr.Response.StatusCode == http.StatusUnauthorized
}

func (a *Adapter) homeserver(ctx context.Context, user id.UserID) (string, error) {
	if a.cfg.Homeserver != "" {
		return a.cfg.Homeserver, nil
	}
	_, server, err := user.Parse()
	if err != nil || server == "" {
		return "", fmt.Errorf("matrix homeserver not set and %q has no server name", user)
	}
	wk, err := mautrix.DiscoverClientAPI(ctx, server)
	if err != nil {
		return "", fmt.Errorf("discover homeserver for %s: %w", server, err)
	}
	if wk == nil || wk.Homeserver.BaseURL == "" {
		return "https://" + server, nil
	}
	a.log.Debug("discovered homeserver", logx.String("server", server), logx.String("base_url", wk.Homeserver.BaseURL))
	return wk.Homeserver.BaseURL, nil
}

func (a *Adapter) setClient(cli *mautrix.Client) {
	if a.kv != nil {
		cli.Store = syncStore{kv: a.kv}
	}
	syncer, ok := cli.Syncer.(mautrix.ExtensibleSyncer)
	if !ok {
		a.cli = cli
		return
	}
	// Skip history from the very first sync.
	syncer.OnSync(cli.DontProcessOldEvents)
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		if ev, ok := classifyMember(evt); ok {
			a.emit(ev)
		}
	})
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if ev, ok := classifyMessage(evt); ok {
			a.emit(ev)
		}
	})
	a.cli = cli
}

func classifyMember(evt *event.Event) (transport.Event, bool) {
	if evt == nil || evt.StateKey == nil {
		return transport.Event{}, false
	}
	if evt.Content.AsMember().Membership != event.MembershipInvite {
		return transport.Event{}, false
	}
	return transport.Event{
		Kind:    transport.EventInvite,
		Room:    evt.RoomID.String(),
		ID:      evt.ID.String(),
		Sender:  evt.Sender.String(),
		Invitee: evt.GetStateKey(),
	}, true
}

func classifyMessage(evt *event.Event) (transport.Event, bool) {
	if evt == nil {
		return transport.Event{}, false
	}
	msg := evt.Content.AsMessage()
	if msg.MsgType != event.MsgText {
		return transport.Event{}, false
	}
	return transport.Event{
		Kind:   transport.EventMessage,
		Room:   evt.RoomID.String(),
		ID:     evt.ID.String(),
		Sender: evt.Sender.String(),
		Text:   msg.Body,
	}, true
}

func (a *Adapter) emit(ev transport.Event) {
	out, _ := a.out.Load().(chan<- transport.Event)
	if out == nil {
		return
	}
	select {
	case out <- ev:
	default:
		atomic.AddUint64(&a.droppedEvents, 1)
	}
}

func (a *Adapter) Self() string {
	if a.cli == nil {
		return a.cfg.UserID
	}
	return a.cli.UserID.String()
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Event) error {
	if a.cli == nil {
		return errors.New("matrix: Start called before Connect")
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "matrix.adapter"))),
		supervisor.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("events.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDrops(cap(out))
				return
			case <-ticker.C:
				a.reportDrops(cap(out))
			}
		}
	})
	sup.GoRestart("matrix.sync", func(c context.Context) error {
		a.log.Info("sync started")
		err := a.cli.SyncWithContext(c)
		if c.Err() != nil {
			return nil
		}
		return err
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	return nil
}

func (a *Adapter) reportDrops(capacity int) {
	if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
		a.log.Warn("incoming events dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- transport.Event
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	a.cli.StopSync()
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("matrix stop error", logx.Err(err))
	}
	return nil
}

func content(msg transport.Message) *event.MessageEventContent {
	if msg.Markdown {
		c := format.RenderMarkdown(msg.Body, true, false)
		return &c
	}
	return &event.MessageEventContent{MsgType: event.MsgText, Body: msg.Body}
}

func (a *Adapter) Send(ctx context.Context, room string, msg transport.Message) error {
	_, err := a.cli.SendMessageEvent(ctx, id.RoomID(room), event.EventMessage, content(msg))
	return err
}

func (a *Adapter) Reply(ctx context.Context, room string, to transport.Event, msg transport.Message) error {
	c := content(msg)
	c.SetReply(&event.Event{ID: id.EventID(to.ID), RoomID: id.RoomID(room), Sender: id.UserID(to.Sender)})
	_, err := a.cli.SendMessageEvent(ctx, id.RoomID(room), event.EventMessage, c)
	return err
}

func (a *Adapter) MarkRead(ctx context.Context, room, eventID string) error {
	return a.cli.MarkRead(ctx, id.RoomID(room), id.EventID(eventID))
}

func (a *Adapter) AcceptInvite(ctx context.Context, room string) error {
	_, err := a.cli.JoinRoomByID(ctx, id.RoomID(room))
	return err
}
