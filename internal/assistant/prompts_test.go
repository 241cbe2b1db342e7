package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/captionlabs/livecap-core/internal/notes"
)

type cannedGenerator struct {
	reply string
	err   error
}

func (g *cannedGenerator) Generate(_ context.Context, req Request, consumer func(Chunk) error) error {
	if g.err != nil {
		return g.err
	}
	return consumer(Chunk{RequestID: req.RequestID, Content: g.reply})
}

func TestExtractJSON(t *testing.T) {
	raw, err := ExtractJSON("```json\n{\"summary\": \"ok\"}\n```")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if raw != `{"summary": "ok"}` {
		t.Fatalf("unexpected extraction: %q", raw)
	}

	if _, err := ExtractJSON("no json here"); err == nil {
		t.Fatal("expected error for missing JSON")
	}
}

func TestSummarizeParsesModelOutput(t *testing.T) {
	gen := &cannedGenerator{reply: `Here is your analysis:
{"summary": "A lecture on Big O.", "keyPoints": ["worst case", "scaling"], "suggestedSubject": "Computer Science", "topics": ["complexity"]}`}

	summary, err := Summarize(context.Background(), gen, "some transcript", 45)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.SuggestedSubject != "Computer Science" {
		t.Fatalf("unexpected subject %q", summary.SuggestedSubject)
	}
	if len(summary.KeyPoints) != 2 {
		t.Fatalf("unexpected key points %v", summary.KeyPoints)
	}
}

func TestSummarizeRejectsIncompleteOutput(t *testing.T) {
	gen := &cannedGenerator{reply: `{"summary": "", "keyPoints": [], "suggestedSubject": "", "topics": []}`}
	if _, err := Summarize(context.Background(), gen, "text", 10); err == nil {
		t.Fatal("expected error for incomplete summary")
	}
}

func TestSummarizePropagatesBackendError(t *testing.T) {
	gen := &cannedGenerator{err: errors.New("backend down")}
	if _, err := Summarize(context.Background(), gen, "text", 10); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestBuildStudyGuide(t *testing.T) {
	gen := &cannedGenerator{reply: `{"questions": ["what is O(n)?"], "reviewPoints": ["know the bounds"]}`}
	guide, err := BuildStudyGuide(context.Background(), gen, "transcript", "Computer Science")
	if err != nil {
		t.Fatalf("study guide: %v", err)
	}
	if len(guide.Questions) != 1 || len(guide.ReviewPoints) != 1 {
		t.Fatalf("unexpected guide: %+v", guide)
	}
}

func TestChatPromptIncludesSessionContext(t *testing.T) {
	sessions := []notes.CaptureSession{{
		ID:        "s1",
		Subject:   "Physics",
		Timestamp: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		Duration:  50,
		Summary:   "Newton's laws overview.",
		KeyPoints: []string{"F = ma"},
		Topics:    []string{"mechanics"},
		RawText:   strings.Repeat("force and motion ", 60),
	}}

	prompt := chatPrompt("what did we cover in physics?", sessions)
	if !strings.Contains(prompt, "Lecture: Physics (2026-02-10)") {
		t.Fatalf("missing lecture header:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Newton's laws overview.") {
		t.Fatal("missing summary in context")
	}
	if !strings.Contains(prompt, "Student Question: what did we cover in physics?") {
		t.Fatal("missing student question")
	}
	// long transcripts are excerpted
	if strings.Contains(prompt, strings.Repeat("force and motion ", 60)) {
		t.Fatal("transcript was not truncated")
	}
}

func TestChatPromptWithoutSessions(t *testing.T) {
	prompt := chatPrompt("hello", nil)
	if !strings.Contains(prompt, "No lecture notes saved yet.") {
		t.Fatal("expected empty-notes placeholder")
	}
}

func TestMockGeneratorAnswersSummaryPromptWithJSON(t *testing.T) {
	gen := NewMockGenerator()
	summary, err := Summarize(context.Background(), gen, "transcript", 30)
	if err != nil {
		t.Fatalf("summarize via mock: %v", err)
	}
	if summary.SuggestedSubject == "" {
		t.Fatal("mock summary missing subject")
	}
}
