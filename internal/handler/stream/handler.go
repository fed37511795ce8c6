package stream

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/model/chat"
	chatService "github.com/moodcine/backend/internal/service/chat"
	"github.com/moodcine/backend/pkg/utils"
)

// EventDone closes every stream and carries the submission result.
const EventDone = "done"

// EventError closes a stream whose submission did not run.
const EventError = "error"

const busyMessage = "a message is already being processed"

// Handler renders a submission as Server-Sent Events while it runs.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	if session.Busy() {
		utils.RespondError(w, http.StatusConflict, busyMessage)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The session calls the sink from a single goroutine, so writes need no locking.
	sink := chatService.EventFunc(func(e chat.Event) {
		if err := utils.SendSSEEvent(w, flusher, string(e.Type), e); err != nil {
			logging.Debug().Err(err).Str("session", sessionID).Msg("[stream] client went away")
		}
	})

	result, err := h.chatSvc.Submit(r.Context(), sessionID, message, sink)
	finish(w, flusher, sessionID, result, err)
}

// finish writes the closing event. Headers are already sent, so a submission that lost
// the race for the session after the busy check is reported as an error event.
func finish(w http.ResponseWriter, flusher http.Flusher, sessionID string, result chatService.Result, err error) {
	switch {
	case err != nil:
		logging.Warn().Err(err).Str("session", sessionID).Msg("[stream] submission failed")
		_ = utils.SendSSEEvent(w, flusher, EventError, map[string]string{"error": err.Error()})
	case result.Outcome == chatService.OutcomeBusy:
		_ = utils.SendSSEEvent(w, flusher, EventError, map[string]string{"error": busyMessage})
	default:
		_ = utils.SendSSEEvent(w, flusher, EventDone, result)
	}
}
