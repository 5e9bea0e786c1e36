package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclaw/interview-server-go/internal/model"
)

// StartPrompt is sent as the candidate's first input to open the interview.
const StartPrompt = "ask a question"

const (
	interviewerTemperature = 0.5
	noMustHaveQuestions    = "None"
)

// Interviewer rebuilds the conversation from the stored session on every call,
// so no model state lives outside the session record.
type Interviewer struct {
	client *Client
	name   string
}

func NewInterviewer(client *Client, name string) *Interviewer {
	return &Interviewer{client: client, name: name}
}

func (i *Interviewer) Next(ctx context.Context, session *model.InterviewSession, candidateText string) (string, error) {
	messages := make([]Message, 0, len(session.History)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: i.systemPrompt(session)})
	for _, turn := range session.History {
		messages = append(messages, Message{Role: chatRole(turn.Speaker), Content: turn.Text})
	}
	messages = append(messages, Message{Role: RoleUser, Content: candidateText})

	question, err := i.client.Chat(ctx, ChatRequest{
		Messages:    messages,
		Temperature: interviewerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate question: %w", err)
	}
	return question, nil
}

func (i *Interviewer) systemPrompt(session *model.InterviewSession) string {
	return strings.NewReplacer(
		"{name}", i.name,
		"{role}", session.Role,
		"{description}", session.RoleDescription,
		"{guidelines}", session.Guidelines,
	).Replace(interviewerPrompt)
}

func chatRole(speaker model.Speaker) string {
	if speaker == model.SpeakerAssistant {
		return RoleAssistant
	}
	return RoleUser
}

type GuidelineWriter struct {
	client *Client
}

func NewGuidelineWriter(client *Client) *GuidelineWriter {
	return &GuidelineWriter{client: client}
}

func (g *GuidelineWriter) Guidelines(ctx context.Context, role, roleDescription, resume string, mustHave []string) (string, error) {
	mustHaveText := noMustHaveQuestions
	if len(mustHave) > 0 {
		mustHaveText = "- " + strings.Join(mustHave, "\n- ")
	}

	prompt := strings.NewReplacer(
		"{role}", role,
		"{description}", roleDescription,
		"{must_have_questions}", mustHaveText,
		"{resume}", resume,
	).Replace(guidelinesPrompt)

	guidelines, err := g.client.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("generate guidelines: %w", err)
	}
	return guidelines, nil
}

type Evaluator struct {
	client *Client
}

func NewEvaluator(client *Client) *Evaluator {
	return &Evaluator{client: client}
}

func (e *Evaluator) Score(ctx context.Context, history []model.Turn, role, roleDescription string) (string, error) {
	prompt := strings.NewReplacer(
		"{role}", role,
		"{description}", roleDescription,
		"{interview}", FormatTranscript(history),
	).Replace(evaluatorPrompt)

	evaluation, err := e.client.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("evaluate interview: %w", err)
	}
	return evaluation, nil
}

// FormatTranscript renders a history as one "Speaker: text" line per turn.
func FormatTranscript(history []model.Turn) string {
	var b strings.Builder
	for _, turn := range history {
		label := "Candidate"
		if turn.Speaker == model.SpeakerAssistant {
			label = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
