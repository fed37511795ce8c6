// Package classify serves the classifier endpoint contract: POST /chat, GET /stats and GET /top10.
package classify

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/model/recommend"
	"github.com/moodcine/backend/pkg/utils"
)

// Engine answers classifier requests and keeps the rankings.
type Engine interface {
	Handle(ctx context.Context, req chat.ClassifyRequest) (chat.ClassifyResponse, error)
	Stats() []recommend.EmotionStat
	Top10() []recommend.MovieStat
}

// Handler 分类接口处理器
type Handler struct {
	engine   Engine
	validate *validator.Validate
}

// New creates the handler.
func New(engine Engine) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes 注册分类接口路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/stats", h.handleStats)
	r.Get("/top10", h.handleTop10)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ClassifyRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := h.engine.Handle(r.Context(), req)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	logging.Debug().Str("session", req.SessionID).Bool("chat", req.IsChat()).Bool("final", resp.Final).
		Msg("[classify] request handled")
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) handleTop10(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.engine.Top10())
}

func validationMessage(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
	return "invalid request"
}
