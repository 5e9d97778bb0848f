package server

import "github.com/intervu-app/intervu/models"

// AuthRequest is the signup/login payload.
type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the signed JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// StartInterviewRequest configures a new session.
type StartInterviewRequest struct {
	JobTitle      string `json:"job_title"`
	InterviewType string `json:"interview_type"`
	QuestionCount int    `json:"question_count"`
	Model         string `json:"model,omitempty"`
}

// QuestionResponse returns the question the candidate should answer next.
type QuestionResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Turn      int    `json:"turn"`
	Total     int    `json:"total"`
}

// AnswerRequest submits the candidate's answer for the current question.
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// FeedbackResponse returns the coach's feedback on the latest answer.
type FeedbackResponse struct {
	SessionID string `json:"session_id"`
	Feedback  string `json:"feedback"`
	Turn      int    `json:"turn"`
	Total     int    `json:"total"`
}

// AdvanceResponse is either the next question or the completed session
// with its final evaluation.
type AdvanceResponse struct {
	SessionID  string                  `json:"session_id"`
	Completed  bool                    `json:"completed"`
	Question   string                  `json:"question,omitempty"`
	Turn       int                     `json:"turn,omitempty"`
	Total      int                     `json:"total,omitempty"`
	Evaluation *models.FinalEvaluation `json:"evaluation,omitempty"`
}
