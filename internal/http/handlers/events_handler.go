// Event HTTP handler.
//
//   - POST /events    (deliver one chat message to the bot)
//
// A gateway posts every message it receives. The message is dispatched with
// a per-request recording sender, and the replies the bot composed are
// returned in the response for the gateway to deliver. Deliveries carrying
// an Idempotency-Key header, or a message id, are de-duplicated: a repeat is
// answered from the event log with the original body and never dispatched
// again.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/bot"
	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/http/middleware"
	"github.com/tbourn/go-group-bot/internal/transport"
)

// EventRequest is the JSON payload of one inbound chat message.
type EventRequest struct {
	MessageID      int64  `json:"message_id"`
	Text           string `json:"text"`
	SenderID       int64  `json:"sender_id" binding:"required,gt=0"`
	SenderNickname string `json:"sender_nickname"`
	// GroupID is zero or absent for private messages.
	GroupID int64 `json:"group_id" binding:"gte=0"`
}

// EventResponse reports how the bot handled a message.
type EventResponse struct {
	RequestID string `json:"request_id"`
	// Command is the matched command, empty when nothing matched.
	Command  string `json:"command,omitempty"`
	Executed bool   `json:"executed"`
	// Error is set when a middleware or the handler failed.
	Error    string            `json:"error,omitempty"`
	Messages []domain.Outbound `json:"messages"`
}

// eventKey returns the de-duplication key: the validated Idempotency-Key
// header, else one derived from the message id. Messages without either are
// never de-duplicated.
func eventKey(c *gin.Context, req EventRequest) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	if req.MessageID != 0 {
		return fmt.Sprintf("msg:%d:%d:%d", req.GroupID, req.SenderID, req.MessageID)
	}
	return ""
}

// PostEvent dispatches one chat message and returns the replies.
//
// Responses:
//
//	200 EventResponse (Idempotent-Replay: true when served from the log)
//	400 bad_request
//	500 event_failed
func (h *Handlers) PostEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid event body")
		return
	}

	ctx := c.Request.Context()
	key := eventKey(c, req)
	if key != "" && h.events != nil {
		ev, err := h.events.Get(ctx, key, time.Now().UTC())
		switch {
		case err == nil:
			h.replay(c, ev)
			return
		case !h.events.IsNotFound(err):
			fail(c, http.StatusInternalServerError, ErrCodeEventFailed, err.Error())
			return
		}
	}

	rid := middleware.RequestIDFrom(c)
	rec := transport.NewRecorder()
	dctx := transport.WithSender(bot.WithRequestID(ctx, rid), rec)

	out := h.bot.Dispatch(dctx, domain.Inbound{
		MessageID:      req.MessageID,
		Text:           req.Text,
		SenderID:       req.SenderID,
		SenderNickname: req.SenderNickname,
		GroupID:        req.GroupID,
	})

	resp := EventResponse{
		RequestID: out.RequestID,
		Command:   out.Command,
		Executed:  out.Executed,
		Messages:  rec.Messages(),
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Outbound{}
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}

	if key == "" || h.events == nil {
		ok(c, http.StatusOK, resp)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEventFailed, err.Error())
		return
	}
	err = h.events.Save(ctx, &domain.ProcessedEvent{
		Key:       key,
		RequestID: out.RequestID,
		GroupID:   req.GroupID,
		SenderID:  req.SenderID,
		Command:   out.Command,
		Response:  body,
	})
	switch {
	case err == nil:
	case h.events.IsDuplicate(err):
		// A concurrent delivery won the race; answer with its body.
		if ev, gerr := h.events.Get(ctx, key, time.Now().UTC()); gerr == nil {
			h.replay(c, ev)
			return
		}
	default:
		// The dispatch already happened; report it rather than fail.
		middleware.LoggerFrom(c).Warn().Err(err).Str("event_key", key).Msg("event log save failed")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *Handlers) replay(c *gin.Context, ev *domain.ProcessedEvent) {
	middleware.MarkReplay(c)
	middleware.LoggerFrom(c).Debug().
		Str("event_key", ev.Key).
		Str("original_request_id", ev.RequestID).
		Msg("event replayed")
	c.Data(http.StatusOK, "application/json; charset=utf-8", ev.Response)
}
