// Package summary turns a conversation into a structured consultation
// summary. Model output that cannot be decoded is replaced by a fixed
// fallback summary, so a summary is always produced.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/session"
)

const DefaultTurns = 20

type Highlights struct {
	PatientConcerns      string `json:"patient_concerns"`
	DoctorInquiry        string `json:"doctor_inquiry"`
	KeyObservations      string `json:"key_observations"`
	DoctorExplanation    string `json:"doctor_explanation"`
	RecommendationsGiven string `json:"recommendations_given"`
}

// Labeled returns the highlights in display order.
func (h Highlights) Labeled() [][2]string {
	return [][2]string{
		{"Patient Concerns", h.PatientConcerns},
		{"Doctor Inquiry", h.DoctorInquiry},
		{"Key Observations", h.KeyObservations},
		{"Doctor Explanation", h.DoctorExplanation},
		{"Recommendations Given", h.RecommendationsGiven},
	}
}

type Summary struct {
	SessionOverview         string     `json:"session_overview"`
	ConversationHighlights  Highlights `json:"conversation_highlights"`
	DoctorAssessment        string     `json:"doctor_assessment"`
	InvestigationsSuggested []string   `json:"investigations_suggested"`
	MedicationsTreatment    []string   `json:"medications_treatment"`
	ActionItems             []string   `json:"action_items"`
	AISummaryNote           string     `json:"ai_summary_note"`

	// Fallback is set when the model reply could not be used.
	Fallback bool `json:"-"`
}

var requiredKeys = []string{
	"session_overview",
	"conversation_highlights",
	"doctor_assessment",
	"investigations_suggested",
	"medications_treatment",
	"action_items",
	"ai_summary_note",
}

// FallbackSummary is returned whenever the model reply is unusable.
func FallbackSummary() *Summary {
	return &Summary{
		SessionOverview: "This consultation session covered the patient's health concerns and the doctor's professional recommendations.",
		ConversationHighlights: Highlights{
			PatientConcerns:      "Patient presented with general health concerns.",
			DoctorInquiry:        "Doctor asked standard diagnostic questions.",
			KeyObservations:      "No specific clinical observations documented.",
			DoctorExplanation:    "Doctor provided general guidance.",
			RecommendationsGiven: "Standard advice shared.",
		},
		DoctorAssessment:        "General assessment based on symptoms.",
		InvestigationsSuggested: []string{"No specific investigations mentioned"},
		MedicationsTreatment:    []string{"No specific medications discussed"},
		ActionItems:             []string{"Follow general medical advice"},
		AISummaryNote:           "This summary was auto-generated based on the input conversation.",
		Fallback:                true,
	}
}

const systemPrompt = "You are a medical documentation assistant."

const promptTemplate = `Please analyze the following patient-doctor conversation and generate a structured medical summary.

⚠️ IMPORTANT: Only return a valid JSON response. DO NOT include any explanation, markdown, or commentary. No ` + "```json" + ` or extra lines.

Format strictly as:

{
    "session_overview": "...",
    "conversation_highlights": {
        "patient_concerns": "...",
        "doctor_inquiry": "...",
        "key_observations": "...",
        "doctor_explanation": "...",
        "recommendations_given": "..."
    },
    "doctor_assessment": "...",
    "investigations_suggested": ["..."],
    "medications_treatment": ["..."],
    "action_items": ["..."],
    "ai_summary_note": "..."
}

If any section has no info, write: "No specific information discussed in this session".

CONVERSATION:
%s`

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

type Service struct {
	sessions session.Store
	gateway  llm.Gateway
	model    string
	turns    int
}

func NewService(sessions session.Store, gw llm.Gateway, model string, turns int) *Service {
	if model == "" {
		model = "gpt-4"
	}
	if turns <= 0 {
		turns = DefaultTurns
	}
	return &Service{sessions: sessions, gateway: gw, model: model, turns: turns}
}

// Summarize summarizes the most recent turns of a session. A session with
// no messages is reported as not found.
func (s *Service) Summarize(ctx context.Context, userID, sessionID string) (*Summary, error) {
	sess, err := s.sessions.Find(ctx, userID, sessionID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && len(sess.Messages) == 0) {
		return nil, apperr.NotFound("Session not found or has no messages.")
	}
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, m := range sess.LastMessages(s.turns) {
		if q := strings.TrimSpace(m.Question); q != "" {
			fmt.Fprintf(&b, "User: %s\n", q)
		}
		if a := strings.TrimSpace(m.Answer); a != "" {
			fmt.Fprintf(&b, "AI: %s\n\n", a)
		}
	}
	return s.SummarizeText(ctx, b.String()), nil
}

// SummarizeText summarizes a raw transcript.
func (s *Service) SummarizeText(ctx context.Context, transcript string) *Summary {
	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, transcript)},
		},
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		slog.Error("summary request failed, using fallback", "error", err)
		return FallbackSummary()
	}

	sum, err := Decode(resp.Content)
	if err != nil {
		slog.Error("summary reply unusable, using fallback", "error", err)
		return FallbackSummary()
	}
	return sum
}

// Decode reads the first-to-last brace span of reply as a Summary. Every
// top-level key must be present.
func Decode(reply string) (*Summary, error) {
	raw := jsonObject.FindString(strings.TrimSpace(reply))
	if raw == "" {
		return nil, errors.New("no JSON object in reply")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return nil, fmt.Errorf("summary missing %q", k)
		}
	}

	var sum Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &sum, nil
}
