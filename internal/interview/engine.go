package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intervu-app/intervu/internal/telemetry"
	"github.com/intervu-app/intervu/models"
	"github.com/intervu-app/intervu/provider"
)

// State names the phases of a session's lifecycle.
type State string

const (
	StateConfiguring     State = "configuring"
	StateAwaitingAnswer  State = "awaiting_answer"
	StateShowingFeedback State = "showing_feedback"
	StateCompleted       State = "completed"
)

// FeedbackUnavailable is recorded on a turn when feedback generation
// failed. The answer itself is never dropped.
const FeedbackUnavailable = "Feedback unavailable for this answer."

// Engine drives a single interview session through
// configuring -> awaiting_answer -> showing_feedback -> ... -> completed.
// All operations are safe for concurrent use; at most one gateway call is
// outstanding per session, so a doubled submit or advance can never
// duplicate a turn.
type Engine struct {
	llm     provider.Provider
	logger  *zap.Logger
	metrics *telemetry.Metrics

	// onUpdate, when set, receives a copy of the session after every
	// successful transition. Used for best-effort snapshotting.
	onUpdate func(models.Session)

	mu      sync.Mutex
	busy    bool
	state   State
	session models.Session

	now func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMetrics wires gateway and session counters.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithUpdateHook registers a callback invoked with a session copy after
// each successful transition.
func WithUpdateHook(fn func(models.Session)) EngineOption {
	return func(e *Engine) { e.onUpdate = fn }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine for a not-yet-started session owned by
// userID (may be empty for anonymous terminal runs).
func NewEngine(llm provider.Provider, userID string, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		llm:    llm,
		logger: logger,
		state:  StateConfiguring,
		now:    time.Now,
		session: models.Session{
			ID:     uuid.NewString(),
			UserID: userID,
			Status: models.StatusInProgress,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewNop()
	}
	e.logger = e.logger.With(zap.String("session_id", e.session.ID))
	return e
}

// RestoreEngine rebuilds an engine from a snapshotted session, deriving
// the lifecycle state from the transcript. Used to revive interrupted
// interviews after a restart.
func RestoreEngine(llm provider.Provider, sess models.Session, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		llm:     llm,
		logger:  logger,
		state:   stateOf(sess),
		now:     time.Now,
		session: sess,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewNop()
	}
	e.logger = e.logger.With(zap.String("session_id", e.session.ID))
	return e
}

// stateOf derives the lifecycle state a snapshot was taken in. Snapshots
// are only written after successful transitions, so the last turn is
// either unanswered or carries feedback.
func stateOf(sess models.Session) State {
	if sess.Status == models.StatusCompleted {
		return StateCompleted
	}
	if len(sess.Turns) == 0 {
		return StateConfiguring
	}
	if sess.Turns[len(sess.Turns)-1].Feedback != "" {
		return StateShowingFeedback
	}
	return StateAwaitingAnswer
}

// ID returns the session id.
func (e *Engine) ID() string { return e.session.ID }

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a deep copy of the session for persistence or display.
func (e *Engine) Session() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() models.Session {
	s := e.session
	s.Turns = append([]models.Turn(nil), e.session.Turns...)
	if e.session.Evaluation != nil {
		ev := *e.session.Evaluation
		s.Evaluation = &ev
	}
	return s
}

// Start validates the configuration and requests the first question. On
// gateway failure the session stays in configuring so Start can be retried.
func (e *Engine) Start(ctx context.Context, cfg models.InterviewConfig) (string, error) {
	if err := validateConfig(cfg); err != nil {
		return "", err
	}
	if err := e.begin(StateConfiguring); err != nil {
		return "", err
	}

	question, err := e.complete(ctx, cfg, nil, KindNextQuestion)
	if err != nil {
		e.end(StateConfiguring, nil)
		return "", err
	}

	e.metrics.SessionStarted()
	now := e.now()
	e.end(StateAwaitingAnswer, func() {
		e.session.Config = cfg
		e.session.Turns = append(e.session.Turns, models.Turn{Question: question})
		e.session.CreatedAt = now
		e.session.UpdatedAt = now
	})
	return question, nil
}

// SubmitAnswer records the answer on the current turn and requests
// feedback. The answer is preserved even when feedback generation fails;
// the turn then carries FeedbackUnavailable instead.
func (e *Engine) SubmitAnswer(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	if err := e.begin(StateAwaitingAnswer); err != nil {
		return "", err
	}

	e.mu.Lock()
	cfg := e.session.Config
	turns := append([]models.Turn(nil), e.session.Turns...)
	turns[len(turns)-1].Answer = text
	e.mu.Unlock()

	feedback, err := e.complete(ctx, cfg, turns, KindAnswerFeedback)
	if err != nil {
		e.logger.Warn("feedback generation failed, keeping answer", zap.Error(err))
		feedback = FeedbackUnavailable
	}

	e.end(StateShowingFeedback, func() {
		cur := &e.session.Turns[len(e.session.Turns)-1]
		cur.Answer = text
		cur.Feedback = feedback
		e.session.UpdatedAt = e.now()
	})
	return feedback, nil
}

// Advance moves past the feedback view: it either asks the next question
// or, once all questions are answered, produces the final evaluation and
// completes the session. Gateway failures leave the session showing
// feedback so Advance can be retried without duplicating turns.
func (e *Engine) Advance(ctx context.Context) (*models.Session, error) {
	if err := e.begin(StateShowingFeedback); err != nil {
		return nil, err
	}

	e.mu.Lock()
	cfg := e.session.Config
	turns := append([]models.Turn(nil), e.session.Turns...)
	e.mu.Unlock()

	if len(turns) < cfg.QuestionCount {
		question, err := e.complete(ctx, cfg, turns, KindNextQuestion)
		if err != nil {
			e.end(StateShowingFeedback, nil)
			return nil, err
		}
		e.end(StateAwaitingAnswer, func() {
			e.session.Turns = append(e.session.Turns, models.Turn{Question: question})
			e.session.UpdatedAt = e.now()
		})
		s := e.Session()
		return &s, nil
	}

	report, err := e.complete(ctx, cfg, turns, KindFinalReport)
	if err != nil {
		e.end(StateShowingFeedback, nil)
		return nil, err
	}

	eval, outcome := ParseEvaluation(report)
	if outcome == ParsedNone {
		e.logger.Warn("final report unparsable, completing with ungraded score",
			zap.Error(ErrUnparsableEvaluation))
	}

	e.metrics.SessionCompleted()
	e.end(StateCompleted, func() {
		e.session.Status = models.StatusCompleted
		e.session.Evaluation = &eval
		e.session.UpdatedAt = e.now()
	})
	s := e.Session()
	return &s, nil
}

// begin checks the state and claims the single in-flight slot.
func (e *Engine) begin(want State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return fmt.Errorf("%w: a request is already in flight", ErrInvalidState)
	}
	if e.state != want {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, e.state)
	}
	e.busy = true
	return nil
}

// end releases the in-flight slot, applies the transition and notifies
// the update hook.
func (e *Engine) end(next State, apply func()) {
	e.mu.Lock()
	e.busy = false
	changed := apply != nil
	if apply != nil {
		apply()
	}
	e.state = next
	var snap models.Session
	if changed && e.onUpdate != nil {
		snap = e.snapshotLocked()
	}
	e.mu.Unlock()

	if changed && e.onUpdate != nil {
		e.onUpdate(snap)
	}
}

// complete performs one logged, measured gateway call.
func (e *Engine) complete(ctx context.Context, cfg models.InterviewConfig, turns []models.Turn, kind PromptKind) (string, error) {
	messages := BuildMessages(cfg, turns, kind)
	e.logger.Info("requesting completion",
		zap.String("kind", string(kind)),
		zap.String("model", cfg.Model),
		zap.Int("turns", len(turns)))

	start := e.now()
	text, err := e.llm.Complete(ctx, cfg.Model, messages)
	e.metrics.ObserveLLMRequest(string(kind), e.now().Sub(start), err)
	if err != nil {
		e.logger.Warn("completion failed", zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}
	return text, nil
}

func validateConfig(cfg models.InterviewConfig) error {
	if strings.TrimSpace(cfg.JobTitle) == "" {
		return fmt.Errorf("%w: job title must not be empty", ErrInvalidConfig)
	}
	if _, err := models.ParseInterviewType(string(cfg.InterviewType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	ok := false
	for _, n := range models.AllowedQuestionCounts {
		if cfg.QuestionCount == n {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: question count must be one of %v", ErrInvalidConfig, models.AllowedQuestionCounts)
	}
	return nil
}
