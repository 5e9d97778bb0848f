package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/intervu-app/intervu/models"
)

// ErrNotFound is returned when a session id has no persisted record.
var ErrNotFound = errors.New("session not found")

// Store persists whole interview sessions in Postgres. Sessions are
// written as one document per id (config columns plus JSONB turns and
// evaluation); there are no partial updates.
type Store struct {
	DB *sql.DB
}

// New wraps an existing connection.
func New(db *sql.DB) *Store { return &Store{DB: db} }

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// CreateUser inserts a user account. Unique-violation handling is the
// caller's concern (pq.Error code 23505).
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2)`, email, hash)
	return err
}

// GetUserByEmail returns the user id and password hash for login checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// SaveSession writes the session whole, overwriting any previous record
// with the same id.
func (s *Store) SaveSession(ctx context.Context, sess models.Session) error {
	turns, err := json.Marshal(sess.Turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	var evaluation []byte
	var score sql.NullFloat64
	if sess.Evaluation != nil {
		if evaluation, err = json.Marshal(sess.Evaluation); err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}
		if sess.Evaluation.Graded() {
			score = sql.NullFloat64{Float64: sess.Evaluation.OverallScore, Valid: true}
		}
	}
	var userID sql.NullString
	if sess.UserID != "" {
		userID = sql.NullString{String: sess.UserID, Valid: true}
	}

	_, err = s.DB.ExecContext(ctx, `
INSERT INTO interview_sessions (id, user_id, job_title, interview_type, question_count, model, status, turns, evaluation, overall_score, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  turns = EXCLUDED.turns,
  evaluation = EXCLUDED.evaluation,
  overall_score = EXCLUDED.overall_score,
  updated_at = EXCLUDED.updated_at
`,
		sess.ID, userID, sess.Config.JobTitle, string(sess.Config.InterviewType),
		sess.Config.QuestionCount, sess.Config.Model, string(sess.Status),
		turns, evaluation, score, sess.CreatedAt, sess.UpdatedAt)
	return err
}

// GetSession loads a persisted session by id. A non-empty userID scopes
// the lookup to that owner. Unknown ids yield ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id, userID string) (models.Session, error) {
	query := `SELECT id, COALESCE(user_id::text, ''), job_title, interview_type, question_count, model, status, turns, evaluation, created_at, updated_at
FROM interview_sessions WHERE id=$1`
	args := []interface{}{id}
	if userID != "" {
		query += ` AND user_id=$2`
		args = append(args, userID)
	}

	var (
		sess       models.Session
		turns      []byte
		evaluation []byte
	)
	err := s.DB.QueryRowContext(ctx, query, args...).Scan(
		&sess.ID, &sess.UserID, &sess.Config.JobTitle, &sess.Config.InterviewType,
		&sess.Config.QuestionCount, &sess.Config.Model, &sess.Status,
		&turns, &evaluation, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	if err := json.Unmarshal(turns, &sess.Turns); err != nil {
		return models.Session{}, fmt.Errorf("unmarshal turns: %w", err)
	}
	if len(evaluation) > 0 {
		var eval models.FinalEvaluation
		if err := json.Unmarshal(evaluation, &eval); err != nil {
			return models.Session{}, fmt.Errorf("unmarshal evaluation: %w", err)
		}
		sess.Evaluation = &eval
	}
	return sess, nil
}

// ListFilter narrows the history listing. Nil/zero fields are ignored.
type ListFilter struct {
	From          *time.Time
	To            *time.Time
	InterviewType models.InterviewType
	MinScore      *float64
}

// ListSessions returns the history rows for a user, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string, f ListFilter) ([]models.SessionSummary, error) {
	var (
		where = []string{"user_id=$1"}
		args  = []interface{}{userID}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	if f.InterviewType != "" {
		add("interview_type = $%d", string(f.InterviewType))
	}
	if f.MinScore != nil {
		add("overall_score >= $%d", *f.MinScore)
	}

	query := `SELECT id, job_title, interview_type, question_count, model, status, overall_score, created_at
FROM interview_sessions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		var (
			sum   models.SessionSummary
			score sql.NullFloat64
		)
		if err := rows.Scan(&sum.ID, &sum.JobTitle, &sum.InterviewType, &sum.QuestionCount,
			&sum.Model, &sum.Status, &score, &sum.CreatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			sum.OverallScore = &v
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
