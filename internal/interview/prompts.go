package interview

import (
	"fmt"
	"strings"

	"github.com/intervu-app/intervu/models"
	"github.com/intervu-app/intervu/provider"
)

// PromptKind selects which instruction the model receives.
type PromptKind string

const (
	KindNextQuestion   PromptKind = "next_question"
	KindAnswerFeedback PromptKind = "answer_feedback"
	KindFinalReport    PromptKind = "final_report"
)

// Markers of the tagged block the final-report prompt asks the model to
// emit. The evaluation parser looks for exactly these labels.
const (
	reportScoreLabel           = "SCORE:"
	reportStrengthsLabel       = "STRENGTHS:"
	reportWeaknessesLabel      = "WEAKNESSES:"
	reportRecommendationsLabel = "RECOMMENDATIONS:"
)

// BuildMessages constructs the conversation sent to the completion API for
// the given request kind. It is a pure function of its inputs: identical
// config, turns and kind always produce identical messages.
func BuildMessages(cfg models.InterviewConfig, turns []models.Turn, kind PromptKind) []provider.Message {
	switch kind {
	case KindAnswerFeedback:
		return feedbackMessages(turns)
	case KindFinalReport:
		return finalReportMessages(cfg, turns)
	default:
		return nextQuestionMessages(cfg, turns)
	}
}

func nextQuestionMessages(cfg models.InterviewConfig, turns []models.Turn) []provider.Message {
	var system strings.Builder
	fmt.Fprintf(&system, "You are an expert interviewer for a %s position. ", cfg.JobTitle)
	fmt.Fprintf(&system, "You will conduct a mock interview with a total of %d questions. ", cfg.QuestionCount)
	system.WriteString("Ask one concise, relevant interview question at a time. ")
	system.WriteString("Do not number your questions. ")
	system.WriteString("Base your next question on the candidate's previous answers.")

	switch cfg.InterviewType {
	case models.InterviewTechnical:
		system.WriteString(" This is a technical interview. ")
		system.WriteString("Ask a technical question related to the job, testing their knowledge and problem-solving skills.")
	case models.InterviewBehavioral:
		system.WriteString(" This is a behavioral interview. ")
		system.WriteString("Ask a behavioral question that the candidate should answer using the STAR method. ")
		system.WriteString("Start your question with 'Tell me about a time when...' or 'Describe a situation where...'")
	default:
		system.WriteString(" This is a general interview. Ask a common, non-technical question.")
	}

	messages := []provider.Message{{Role: provider.RoleSystem, Content: system.String()}}
	answered := 0
	for _, t := range turns {
		if t.Answer == "" {
			continue
		}
		messages = append(messages,
			provider.Message{Role: provider.RoleAssistant, Content: t.Question},
			provider.Message{Role: provider.RoleUser, Content: t.Answer},
		)
		answered++
	}
	if answered == 0 {
		messages = append(messages, provider.Message{Role: provider.RoleUser, Content: "Please ask me the first question."})
	} else {
		messages = append(messages, provider.Message{Role: provider.RoleUser, Content: "Please ask me the next question."})
	}
	return messages
}

// feedbackMessages builds the coaching prompt for the most recent answered
// turn. It deliberately excludes earlier turns so feedback stays focused.
func feedbackMessages(turns []models.Turn) []provider.Message {
	var last models.Turn
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Answer != "" {
			last = turns[i]
			break
		}
	}

	system := "You are an expert interview coach. " +
		"Provide 2-3 bullet points of constructive, concise feedback on the candidate's answer to the interview question. " +
		"Focus on what they did well and how they could improve."

	return []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: fmt.Sprintf("Question: %s\n\nAnswer: %s", last.Question, last.Answer)},
	}
}

func finalReportMessages(cfg models.InterviewConfig, turns []models.Turn) []provider.Message {
	system := fmt.Sprintf("You are an expert hiring manager for a %s position. "+
		"Your task is to provide a final, overall evaluation of the candidate's performance "+
		"based on the following interview transcript.", cfg.JobTitle)

	var transcript strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&transcript, "Question %d: %s\nAnswer %d: %s\n\n", i+1, t.Question, i+1, t.Answer)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Here is the interview transcript:\n\n%s", transcript.String())
	user.WriteString("Respond with exactly the following sections, each starting on its own line:\n")
	user.WriteString(reportScoreLabel + " <overall score from 0 to 10>\n")
	user.WriteString(reportStrengthsLabel + "\n- <strength>\n")
	user.WriteString(reportWeaknessesLabel + "\n- <area for improvement>\n")
	user.WriteString(reportRecommendationsLabel + "\n- <concrete recommendation>\n")
	user.WriteString("Do not include any other text outside these sections.")

	return []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: user.String()},
	}
}
