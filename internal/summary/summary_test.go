package summary

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/llm/llmtest"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/session"
)

const validReply = `Here you go:
{
  "session_overview": "Follow-up on migraines.",
  "conversation_highlights": {
    "patient_concerns": "Headaches twice a week.",
    "doctor_inquiry": "Asked about triggers.",
    "key_observations": "Worse with screen time.",
    "doctor_explanation": "Likely tension-type.",
    "recommendations_given": "Hydration and breaks."
  },
  "doctor_assessment": "Tension headache.",
  "investigations_suggested": ["Eye exam"],
  "medications_treatment": ["Ibuprofen 200mg as needed"],
  "action_items": ["Keep a headache diary", "Return in 4 weeks"],
  "ai_summary_note": "Generated from chat."
}
Thanks!`

func TestDecode(t *testing.T) {
	sum, err := Decode(validReply)
	require.NoError(t, err)
	assert.Equal(t, "Follow-up on migraines.", sum.SessionOverview)
	assert.Equal(t, "Likely tension-type.", sum.ConversationHighlights.DoctorExplanation)
	assert.Equal(t, []string{"Keep a headache diary", "Return in 4 weeks"}, sum.ActionItems)
	assert.False(t, sum.Fallback)
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"no object":    "I cannot summarize this.",
		"broken json":  `{"session_overview": "x",}`,
		"missing keys": `{"session_overview": "x"}`,
		"wrong types":  `{"session_overview": 1, "conversation_highlights": {}, "doctor_assessment": "", "investigations_suggested": [], "medications_treatment": [], "action_items": [], "ai_summary_note": ""}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(reply)
			assert.Error(t, err)
		})
	}
}

func seeded(t *testing.T, n int) *session.MemoryStore {
	t.Helper()
	store := session.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Ensure(ctx, "u1", "s1")
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, store.AppendMessage(ctx, "u1", "s1", models.ChatMessage{
			Question: fmt.Sprintf(" q%02d ", i),
			Answer:   fmt.Sprintf("a%02d", i),
		}))
	}
	return store
}

func TestSummarizeUsesLastTurns(t *testing.T) {
	gw := llmtest.New().QueueChat(validReply)
	svc := NewService(seeded(t, 25), gw, "", 0)

	sum, err := svc.Summarize(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.False(t, sum.Fallback)

	require.Len(t, gw.ChatCalls, 1)
	req := gw.ChatCalls[0]
	assert.Equal(t, "gpt-4", req.Model)
	assert.Equal(t, "You are a medical documentation assistant.", req.Messages[0].Content)

	prompt := gw.Prompts()[0]
	assert.NotContains(t, prompt, "q04")
	assert.Contains(t, prompt, "CONVERSATION:\nUser: q05\nAI: a05\n\nUser: q06\n")
	assert.Contains(t, prompt, "User: q24\nAI: a24\n\n")
}

func TestSummarizeFallsBack(t *testing.T) {
	gw := llmtest.New().QueueChat("not json").QueueChatError(errors.New("503"))
	svc := NewService(seeded(t, 1), gw, "m", 20)

	for i := 0; i < 2; i++ {
		sum, err := svc.Summarize(context.Background(), "u1", "s1")
		require.NoError(t, err)
		assert.True(t, sum.Fallback)
		assert.Equal(t, FallbackSummary().SessionOverview, sum.SessionOverview)
	}
}

func TestSummarizeNotFound(t *testing.T) {
	svc := NewService(seeded(t, 0), llmtest.New(), "", 0)

	_, err := svc.Summarize(context.Background(), "u1", "s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Summarize(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSummarizeText(t *testing.T) {
	gw := llmtest.New().QueueChat(validReply)
	svc := NewService(session.NewMemoryStore(), gw, "", 0)

	sum := svc.SummarizeText(context.Background(), "Doctor: how are you?\nPatient: tired.")
	assert.Equal(t, "Tension headache.", sum.DoctorAssessment)
	assert.Contains(t, gw.Prompts()[0], "CONVERSATION:\nDoctor: how are you?\nPatient: tired.")
}
