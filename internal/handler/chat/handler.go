package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/model/chat"
	chatService "github.com/moodcine/backend/internal/service/chat"
	"github.com/moodcine/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	validate *validator.Validate
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type sessionResponse struct {
	chat.Snapshot
	Greeting string `json:"greeting"`
}

type submitRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

type submitResponse struct {
	chatService.Result
	Events []chat.Event `json:"events"`
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/{sessionID}", h.handleGetSession)
	r.Delete("/{sessionID}", h.handleDeleteSession)
	r.Get("/{sessionID}/transcript", h.handleTranscript)
	r.Post("/{sessionID}/messages", h.handleSubmit)
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{
		Snapshot: session.Snapshot(),
		Greeting: chatService.Greeting,
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleSubmit runs one turn and answers with everything the session rendered.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload submitRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "text is too long")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	recorder := chatService.NewRecorder()
	result, err := h.chatSvc.Submit(r.Context(), sessionID, payload.Text, recorder)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if result.Outcome == chatService.OutcomeBusy {
		utils.RespondError(w, http.StatusConflict, "a message is already being processed")
		return
	}

	logging.Debug().Str("session", sessionID).Str("outcome", string(result.Outcome)).Msg("[chat] submission handled")
	utils.RespondJSON(w, http.StatusOK, submitResponse{Result: result, Events: recorder.Events()})
}

func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
