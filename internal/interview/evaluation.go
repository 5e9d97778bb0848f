package interview

import (
	"strconv"
	"strings"

	"github.com/intervu-app/intervu/models"
)

// ParseOutcome tags how much of the model's final report survived parsing.
type ParseOutcome int

const (
	// ParsedFull means score and all three list sections were found.
	ParsedFull ParseOutcome = iota
	// ParsedPartial means a score was found but one or more sections were
	// missing; they default to empty.
	ParsedPartial
	// ParsedNone means no score could be extracted; the evaluation carries
	// the sentinel ungraded score and the raw text in the notes.
	ParsedNone
)

// ParseEvaluation leniently parses the tagged report the final-report
// prompt asks for. Unknown lines are ignored; missing sections default to
// empty rather than failing the whole report.
func ParseEvaluation(text string) (models.FinalEvaluation, ParseOutcome) {
	eval := models.FinalEvaluation{OverallScore: models.UngradedScore}

	var (
		section   string
		haveScore bool
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, reportScoreLabel):
			if v, ok := parseScore(line[len(reportScoreLabel):]); ok {
				eval.OverallScore = v
				haveScore = true
			}
			section = ""
		case strings.HasPrefix(upper, reportStrengthsLabel):
			section = reportStrengthsLabel
		case strings.HasPrefix(upper, reportWeaknessesLabel):
			section = reportWeaknessesLabel
		case strings.HasPrefix(upper, reportRecommendationsLabel):
			section = reportRecommendationsLabel
		default:
			item := strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
			if item == "" {
				continue
			}
			switch section {
			case reportStrengthsLabel:
				eval.Strengths = append(eval.Strengths, item)
			case reportWeaknessesLabel:
				eval.Weaknesses = append(eval.Weaknesses, item)
			case reportRecommendationsLabel:
				eval.Recommendations = append(eval.Recommendations, item)
			}
		}
	}

	if !haveScore {
		eval.OverallScore = models.UngradedScore
		eval.Notes = "automated grading failed: no score found in the model's report"
		return eval, ParsedNone
	}
	if len(eval.Strengths) == 0 || len(eval.Weaknesses) == 0 || len(eval.Recommendations) == 0 {
		return eval, ParsedPartial
	}
	return eval, ParsedFull
}

// parseScore accepts "8", "8.5", "8/10" and "8 out of 10" style values.
func parseScore(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "/ "); i > 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
