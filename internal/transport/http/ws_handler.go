package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-ranking-service/internal/app"
)

type WSHandler struct {
	service  *app.QuizService
	identity IdentityFunc
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, identity IdentityFunc) *WSHandler {
	if identity == nil {
		identity = HeaderIdentity
	}
	return &WSHandler{
		service:  service,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and plays one quiz session over the connection.
// The session starts on connect and is abandoned if the client leaves before it completes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := h.identity(r)
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or user identity", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// the session outlives a cancelled request only through its completion hook
	ctx := context.WithoutCancel(r.Context())

	session, err := h.service.StartSession(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	handle := session.ID()
	defer func() {
		if _, completed := session.Completion(); !completed {
			h.service.Abandon(ctx, handle)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	completionDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// unblock the reader; Close is safe alongside ReadJSON
				_ = conn.Close()
				return
			}
		}
	}()

	// finished, submitted and timed out sessions all report here exactly once
	go func() {
		defer close(completionDone)
		select {
		case <-session.Done():
			c, _ := session.Completion()
			select {
			case send <- outboundMessage[any]{Type: "completed", Payload: c}:
			case <-writerDone:
			case <-closeSignals:
			}
		case <-closeSignals:
		}
	}()

	if enqueue(send, writerDone, outboundMessage[any]{Type: "started", Payload: session.Snapshot()}) {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			msg, ok := h.handle(ctx, handle, inbound)
			if ok && !enqueue(send, writerDone, msg) {
				break
			}
		}
	}

	close(closeSignals)
	<-completionDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer. It reports false once the writer has stopped, so a
// failed connection never blocks the reader on a full buffer.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// handle applies one client command. It reports false when nothing has to be sent back,
// which is the case when the command completed the session.
func (h *WSHandler) handle(ctx context.Context, handle string, inbound inboundMessage) (outboundMessage[any], bool) {
	fail := func(err error) (outboundMessage[any], bool) {
		return outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}, true
	}

	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid select payload"}}, true
		}
		if err := h.service.SelectOption(ctx, handle, payload.Option); err != nil {
			return fail(err)
		}
		session, err := h.service.Session(ctx, handle)
		if err != nil {
			return fail(err)
		}
		return outboundMessage[any]{Type: "question", Payload: session.Snapshot()}, true
	case "advance":
		snapshot, completion, err := h.service.Advance(ctx, handle)
		if err != nil {
			return fail(err)
		}
		if completion != nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "question", Payload: snapshot}, true
	case "retreat":
		snapshot, err := h.service.Retreat(ctx, handle)
		if err != nil {
			return fail(err)
		}
		return outboundMessage[any]{Type: "question", Payload: snapshot}, true
	case "submit":
		if _, err := h.service.SubmitNow(ctx, handle); err != nil {
			return fail(err)
		}
		return outboundMessage[any]{}, false
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}, true
	}
}
