package models

import (
	"fmt"
	"time"
)

// InterviewType selects the style of questions the interviewer asks.
type InterviewType string

const (
	InterviewGeneral    InterviewType = "general"
	InterviewTechnical  InterviewType = "technical"
	InterviewBehavioral InterviewType = "behavioral"
)

// ParseInterviewType maps user-facing names onto an InterviewType.
func ParseInterviewType(s string) (InterviewType, error) {
	switch InterviewType(s) {
	case InterviewGeneral, InterviewTechnical, InterviewBehavioral:
		return InterviewType(s), nil
	}
	return "", fmt.Errorf("unknown interview type: %q", s)
}

// SessionStatus tracks the lifecycle of a session. Transitions only go
// in_progress -> completed, never back.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// AllowedQuestionCounts enumerates the interview lengths a user can pick.
var AllowedQuestionCounts = []int{3, 5, 7}

// InterviewConfig is fixed at session start and never mutated afterwards.
type InterviewConfig struct {
	JobTitle      string        `json:"job_title"`
	InterviewType InterviewType `json:"interview_type"`
	QuestionCount int           `json:"question_count"`
	Model         string        `json:"model"`
}

// Turn is one question/answer/feedback triple. Answer and Feedback stay
// empty until the candidate has answered and the coach has responded.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// UngradedScore marks an evaluation whose score could not be extracted
// from the model output.
const UngradedScore = -1

// FinalEvaluation is the structured report produced when a session
// completes. OverallScore is UngradedScore when the model's report could
// not be parsed; Notes then explains why.
type FinalEvaluation struct {
	OverallScore    float64  `json:"overall_score"`
	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// Graded reports whether the evaluation carries a real score.
func (e FinalEvaluation) Graded() bool { return e.OverallScore >= 0 }

// Session is one complete interview attempt. Turns are append-only while
// the session is in progress; Evaluation is set exactly when the session
// completes.
type Session struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id,omitempty"`
	Config     InterviewConfig  `json:"config"`
	Turns      []Turn           `json:"turns"`
	Status     SessionStatus    `json:"status"`
	Evaluation *FinalEvaluation `json:"evaluation,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// SessionSummary is the listing row for the history view.
type SessionSummary struct {
	ID            string        `json:"id"`
	JobTitle      string        `json:"job_title"`
	InterviewType InterviewType `json:"interview_type"`
	QuestionCount int           `json:"question_count"`
	Model         string        `json:"model"`
	Status        SessionStatus `json:"status"`
	OverallScore  *float64      `json:"overall_score,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
