package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/intervu-app/intervu/config"
	"github.com/intervu-app/intervu/internal/interview"
	"github.com/intervu-app/intervu/internal/store"
	"github.com/intervu-app/intervu/internal/telemetry"
	"github.com/intervu-app/intervu/models"
	"github.com/intervu-app/intervu/provider"
)

// InterviewsHandler exposes the four state-machine operations plus the
// history endpoints.
type InterviewsHandler struct {
	Store    *store.Store
	Registry *interview.Registry

	// Snapshots, when set, lets interrupted interviews be revived after
	// a restart.
	Snapshots interview.SnapshotStore
	LLM       provider.Provider
	Config    *config.Config
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger
}

func (h *InterviewsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.start)
	g.POST("/:id/answer", h.answer)
	g.POST("/:id/next", h.advance)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *InterviewsHandler) start(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req StartInterviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	itype, err := models.ParseInterviewType(req.InterviewType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	model := req.Model
	if model == "" {
		model = h.Config.LLM.DefaultModel
	}
	if !h.Config.LLM.ModelAllowed(model) {
		return echo.NewHTTPError(http.StatusBadRequest, "model not in allowed list")
	}

	cfg := models.InterviewConfig{
		JobTitle:      req.JobTitle,
		InterviewType: itype,
		QuestionCount: req.QuestionCount,
		Model:         model,
	}

	eng := interview.NewEngine(h.LLM, userID, h.Logger, interview.WithMetrics(h.Metrics))
	question, err := eng.Start(c.Request().Context(), cfg)
	if err != nil {
		return domainHTTPError(err)
	}
	h.Registry.Put(eng)

	return c.JSON(http.StatusCreated, QuestionResponse{
		SessionID: eng.ID(),
		Question:  question,
		Turn:      1,
		Total:     cfg.QuestionCount,
	})
}

func (h *InterviewsHandler) answer(c echo.Context) error {
	eng, err := h.engineFor(c)
	if err != nil {
		return err
	}
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	feedback, err := eng.SubmitAnswer(c.Request().Context(), req.Answer)
	if err != nil {
		return domainHTTPError(err)
	}
	sess := eng.Session()
	return c.JSON(http.StatusOK, FeedbackResponse{
		SessionID: eng.ID(),
		Feedback:  feedback,
		Turn:      len(sess.Turns),
		Total:     sess.Config.QuestionCount,
	})
}

func (h *InterviewsHandler) advance(c echo.Context) error {
	eng, err := h.engineFor(c)
	if err != nil {
		return err
	}

	// a session still in the registry despite being completed was never
	// persisted; a retried advance re-attempts the save instead of 409ing
	if sess := eng.Session(); sess.Status == models.StatusCompleted {
		return h.persistCompleted(c, eng, sess)
	}

	sess, err := eng.Advance(c.Request().Context())
	if err != nil {
		return domainHTTPError(err)
	}

	if sess.Status == models.StatusCompleted {
		return h.persistCompleted(c, eng, *sess)
	}

	return c.JSON(http.StatusOK, AdvanceResponse{
		SessionID: sess.ID,
		Question:  sess.Turns[len(sess.Turns)-1].Question,
		Turn:      len(sess.Turns),
		Total:     sess.Config.QuestionCount,
	})
}

// persistCompleted saves a finished session and drops it from the
// registry. On failure the engine stays registered so the save can be
// retried; the transcript is never lost to a transient storage error.
func (h *InterviewsHandler) persistCompleted(c echo.Context, eng *interview.Engine, sess models.Session) error {
	if err := h.Store.SaveSession(c.Request().Context(), sess); err != nil {
		h.Logger.Error("saving completed session failed",
			zap.String("session_id", sess.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "session completed but could not be saved")
	}
	h.Registry.Remove(eng.ID())
	return c.JSON(http.StatusOK, AdvanceResponse{
		SessionID:  sess.ID,
		Completed:  true,
		Evaluation: sess.Evaluation,
	})
}

func (h *InterviewsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)

	var f store.ListFilter
	if v := c.QueryParam("type"); v != "" {
		itype, err := models.ParseInterviewType(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.InterviewType = itype
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339")
		}
		f.To = &t
	}
	if v := c.QueryParam("min_score"); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "min_score must be a number")
		}
		f.MinScore = &s
	}

	items, err := h.Store.ListSessions(c.Request().Context(), userID, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.SessionSummary{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *InterviewsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("id")

	// an interview still being driven lives in the registry, not the store
	eng, err := h.Registry.Get(id)
	if err != nil {
		eng, err = h.restore(c, id)
	}
	if err == nil {
		sess := eng.Session()
		if sess.UserID != userID {
			return echo.NewHTTPError(http.StatusNotFound, "no such session")
		}
		return c.JSON(http.StatusOK, sess)
	}

	sess, err := h.Store.GetSession(c.Request().Context(), id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no such session")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *InterviewsHandler) engineFor(c echo.Context) (*interview.Engine, error) {
	userID := c.Get("user_id").(string)
	id := c.Param("id")
	eng, err := h.Registry.Get(id)
	if err != nil {
		eng, err = h.restore(c, id)
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no such active session")
	}
	if eng.Session().UserID != userID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no such active session")
	}
	return eng, nil
}

// restore revives an interrupted in-progress interview from its snapshot
// and re-registers it, so answering can continue after a restart.
func (h *InterviewsHandler) restore(c echo.Context, id string) (*interview.Engine, error) {
	if h.Snapshots == nil {
		return nil, interview.ErrSessionNotFound
	}
	// completed snapshots are revived too: they exist only when the final
	// save never succeeded, and a retried advance finishes the persistence
	sess, ok, err := h.Snapshots.Load(c.Request().Context(), id)
	if err != nil || !ok {
		return nil, interview.ErrSessionNotFound
	}
	h.Logger.Info("session restored from snapshot", zap.String("session_id", id))
	eng := interview.RestoreEngine(h.LLM, sess, h.Logger, interview.WithMetrics(h.Metrics))
	// GetOrPut: a concurrent request may have revived the same snapshot
	return h.Registry.GetOrPut(eng), nil
}

// domainHTTPError maps engine and gateway failures onto HTTP statuses.
func domainHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, interview.ErrInvalidConfig), errors.Is(err, interview.ErrEmptyAnswer):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, interview.ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, provider.ErrAuth):
		return echo.NewHTTPError(http.StatusBadGateway, "completion provider rejected our credentials; check server configuration")
	case errors.Is(err, provider.ErrRateLimited), errors.Is(err, provider.ErrUpstreamUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "completion provider unavailable, try again")
	case errors.Is(err, provider.ErrInvalidResponse):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
