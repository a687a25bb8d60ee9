package echoapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core/messaging"
	"github.com/shulesoft/shule/core/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // auth is JWT-based
}

type (
	// wsCommand is a client->server frame.
	wsCommand struct {
		Action    string `json:"action"` // open | send | close
		ContactID string `json:"contact_id,omitempty"`
		Content   string `json:"content,omitempty"`
	}

	// wsFrame is a server->client frame.
	wsFrame struct {
		Type      string              `json:"type"` // history | event | error
		ContactID string              `json:"contact_id,omitempty"`
		Messages  []messaging.Message `json:"messages,omitempty"`
		Event     *messaging.Event    `json:"event,omitempty"`
		Error     string              `json:"error,omitempty"`
	}
)

// conversationWS runs a live conversation session over a websocket.
// All conversation switches and event deliveries are serialized in a single
// goroutine, so a slow history fetch for a previous contact can never land
// after a newer conversation was opened.
func (api *messagingApi) conversationWS(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	store := session.NewStore(api.accountSvc, api.logger)
	store.Start(ctx.Request().Context(), claims.Subject)
	defer store.Close()

	if store.Current().State != session.StateAuthenticated {
		return errUnauthorized
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	defer func() { _ = conn.Close() }()

	sess := &wsSession{
		accountID: claims.Subject,
		svc:       api.svc,
		conn:      conn,
	}
	sess.run(ctx)
	return nil
}

type wsSession struct {
	accountID string
	svc       messaging.Service
	conn      *websocket.Conn

	contactID string
	sub       *messaging.Subscription
}

func (s *wsSession) run(ctx echo.Context) {
	defer s.closeConversation()

	commands := make(chan wsCommand)
	readErr := make(chan error, 1)
	go func() {
		for {
			var cmd wsCommand
			if err := s.conn.ReadJSON(&cmd); err != nil {
				readErr <- err
				return
			}
			commands <- cmd
		}
	}()

	for {
		// the subscription channel is nil until a conversation opens;
		// a nil channel never fires in select
		var events <-chan messaging.Event
		if s.sub != nil {
			events = s.sub.C
		}

		select {
		case cmd := <-commands:
			if done := s.handle(ctx, cmd); done {
				return
			}
		case evt, ok := <-events:
			if !ok {
				s.sub = nil
				continue
			}
			s.deliver(ctx, evt)
		case <-readErr:
			return
		}
	}
}

func (s *wsSession) handle(ctx echo.Context, cmd wsCommand) (done bool) {
	switch cmd.Action {
	case "open":
		s.openConversation(ctx, cmd.ContactID)
	case "send":
		// the sent message comes back through the event stream; it is
		// never echoed directly, so both sides render it exactly once
		if _, err := s.svc.Send(ctx.Request().Context(), s.accountID, cmd.ContactID, cmd.Content); err != nil {
			s.writeError(ctx, err)
		}
	case "close":
		s.closeConversation()
	default:
		s.writeError(ctx, errors.Errorf("unknown action %q", cmd.Action))
	}
	return false
}

func (s *wsSession) openConversation(ctx echo.Context, contactID string) {
	s.closeConversation()

	history, sub, err := s.svc.OpenConversation(ctx.Request().Context(), s.accountID, contactID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.contactID = contactID
	s.sub = sub

	if history == nil {
		history = []messaging.Message{}
	}
	s.write(ctx, wsFrame{Type: "history", ContactID: contactID, Messages: history})
}

func (s *wsSession) deliver(ctx echo.Context, evt messaging.Event) {
	// an incoming message in the open conversation is read on arrival
	if evt.Type == messaging.EventInsert && evt.New != nil && evt.New.ReceiverID == s.accountID {
		if err := s.svc.MarkRead(ctx.Request().Context(), s.accountID, evt.New.SenderID); err != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "marking conversation read"))
		}
	}
	s.write(ctx, wsFrame{Type: "event", ContactID: s.contactID, Event: &evt})
}

func (s *wsSession) closeConversation() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.contactID = ""
}

func (s *wsSession) write(ctx echo.Context, frame wsFrame) {
	if err := s.conn.WriteJSON(frame); err != nil {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "writing frame"))
	}
}

func (s *wsSession) writeError(ctx echo.Context, err error) {
	s.write(ctx, wsFrame{Type: "error", Error: errors.Cause(err).Error()})
}
