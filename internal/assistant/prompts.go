package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/captionlabs/livecap-core/internal/notes"
)

// SessionSummary is the structured analysis produced for a saved session.
type SessionSummary struct {
	Summary          string   `json:"summary"`
	KeyPoints        []string `json:"keyPoints"`
	SuggestedSubject string   `json:"suggestedSubject"`
	Topics           []string `json:"topics"`
}

// StudyGuide holds exam-prep material derived from a session transcript.
type StudyGuide struct {
	Questions    []string `json:"questions"`
	ReviewPoints []string `json:"reviewPoints"`
}

func summaryPrompt(rawText string, durationMinutes int) string {
	return fmt.Sprintf(`You are an AI study assistant helping students organize their lecture notes. Analyze the following transcript from a %d-minute session and provide:

1. A concise 2-3 sentence summary suitable for quick review
2. 5-7 key bullet points highlighting the most important concepts
3. The most likely academic subject (choose from: Computer Science, Mathematics, Physics, Chemistry, Biology, History, English, Psychology, Economics, Engineering, or Other)
4. 3-5 main topics covered

Transcript:
"""
%s
"""

Respond in JSON format:
{
  "summary": "your summary here",
  "keyPoints": ["point 1", "point 2", ...],
  "suggestedSubject": "subject name",
  "topics": ["topic 1", "topic 2", ...]
}`, durationMinutes, rawText)
}

func studyGuidePrompt(rawText, subject string) string {
	return fmt.Sprintf(`Based on this %s lecture transcript, generate:
1. 5 important review questions that test understanding of the material
2. 5 key points students should review before an exam

Transcript:
"""
%s
"""

Respond in JSON format:
{
  "questions": ["question 1", "question 2", ...],
  "reviewPoints": ["point 1", "point 2", ...]
}`, subject, rawText)
}

const transcriptExcerptLen = 500

func chatPrompt(userMessage string, sessions []notes.CaptureSession) string {
	var ctx strings.Builder
	for _, session := range sessions {
		fmt.Fprintf(&ctx, "\n**Lecture: %s (%s)**\n", session.Subject, session.Timestamp.Format("2006-01-02"))
		fmt.Fprintf(&ctx, "Duration: %d minutes\n", session.Duration)
		if session.Summary != "" {
			fmt.Fprintf(&ctx, "Summary: %s\n", session.Summary)
		}
		if len(session.KeyPoints) > 0 {
			fmt.Fprintf(&ctx, "Key Points: %s\n", strings.Join(session.KeyPoints, ", "))
		}
		if len(session.Topics) > 0 {
			fmt.Fprintf(&ctx, "Topics: %s\n", strings.Join(session.Topics, ", "))
		}
		excerpt := session.RawText
		if len(excerpt) > transcriptExcerptLen {
			excerpt = excerpt[:transcriptExcerptLen]
		}
		fmt.Fprintf(&ctx, "Transcript: %s...\n---", excerpt)
	}
	lectureContext := ctx.String()
	if lectureContext == "" {
		lectureContext = "No lecture notes saved yet."
	}

	return fmt.Sprintf(`You are a helpful study assistant for a student. You have access to their lecture notes and recordings.

Available Lecture Notes:
%s

Student Question: %s

Provide a helpful, conversational response. If the student asks about assignments, deadlines, or specific topics mentioned in lectures, reference the lecture notes above. If they ask about something not in the notes, politely let them know and offer to help with what you do know.

Keep responses concise (2-3 paragraphs max) and friendly.`, lectureContext, userMessage)
}

// ExtractJSON pulls the first JSON object out of model output, tolerating
// surrounding prose or markdown fences.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return text[start : end+1], nil
}

// Summarize analyzes a session transcript and returns the structured summary.
func Summarize(ctx context.Context, gen Generator, rawText string, durationMinutes int) (SessionSummary, error) {
	text, err := collect(ctx, gen, Request{
		Prompt:      summaryPrompt(rawText, durationMinutes),
		MaxTokens:   2048,
		Temperature: 0.7,
	})
	if err != nil {
		return SessionSummary{}, err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return SessionSummary{}, err
	}
	var summary SessionSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return SessionSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	if summary.Summary == "" || len(summary.KeyPoints) == 0 || summary.SuggestedSubject == "" {
		return SessionSummary{}, fmt.Errorf("incomplete summary from model")
	}
	return summary, nil
}

// BuildStudyGuide derives review questions and points from a transcript.
func BuildStudyGuide(ctx context.Context, gen Generator, rawText, subject string) (StudyGuide, error) {
	text, err := collect(ctx, gen, Request{
		Prompt:    studyGuidePrompt(rawText, subject),
		MaxTokens: 2048,
	})
	if err != nil {
		return StudyGuide{}, err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return StudyGuide{}, err
	}
	var guide StudyGuide
	if err := json.Unmarshal([]byte(raw), &guide); err != nil {
		return StudyGuide{}, fmt.Errorf("decode study guide: %w", err)
	}
	return guide, nil
}
