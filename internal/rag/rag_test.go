package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/llm/llmtest"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/session"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

func collect(ch <-chan string) []string {
	var out []string
	for w := range ch {
		out = append(out, w)
	}
	return out
}

func addChunk(t *testing.T, idx *vectorstore.MemoryStore, id, text, user, sess string) {
	t.Helper()
	vecs, _ := llmtest.HashEmbedding([]string{text})
	err := idx.Add(context.Background(), []string{id}, []string{text},
		[]vectorstore.Metadata{{"doc_id": "d-" + sess, "user_id": user, "session_id": sess, "chunk_index": 0}},
		vecs)
	require.NoError(t, err)
}

func TestParseRanking(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		n     int
		want  []int
	}{
		{"mixed tokens", "2, x, 1, 99", 3, []int{1, 0}},
		{"limit", "1,2,3,4", 5, []int{0, 1, 2}},
		{"repeats", "3,3,1", 3, []int{2, 0}},
		{"zero dropped", " 0 , 2", 3, []int{1}},
		{"prose", "The best is 2. Then 1.", 3, nil},
		{"signed", "-1,+2", 3, nil},
		{"empty", "", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRanking(tt.reply, tt.n, 3))
		})
	}
}

func TestRerankPromptAndOrder(t *testing.T) {
	gw := llmtest.New().QueueChat("2, x, 1, 99")
	r := NewReranker(gw, "", 0)

	got, err := r.Rerank(context.Background(), "dose?", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)

	want := "Query: dose?\n\nBelow are retrieved text chunks:\n\n[1] a\n\n[2] b\n\n[3] c\n\nRank the most relevant chunks by numbers (comma-separated):"
	assert.Equal(t, []string{want}, gw.Prompts())
	assert.Equal(t, "gpt-4o", gw.ChatCalls[0].Model)
}

func TestRerankEmptyAndFailure(t *testing.T) {
	gw := llmtest.New()
	r := NewReranker(gw, "m", 3)

	got, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, gw.ChatCalls)

	gw.QueueChatError(errors.New("503"))
	_, err = r.Rerank(context.Background(), "q", []string{"a"})
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestRefinePrompt(t *testing.T) {
	gw := llmtest.New().QueueChat("  What is the dose of ibuprofen?  ")
	r := NewRefiner(gw, "m")

	history := []models.ChatMessage{
		{Question: "What drug?", Answer: "Ibuprofen."},
		{Question: "Why?", Answer: "For pain."},
	}
	got, err := r.Refine(context.Background(), "and the dose?", history)
	require.NoError(t, err)
	assert.Equal(t, "What is the dose of ibuprofen?", got)
	assert.Equal(t,
		"Refine the question based on previous conversation:\nUser: What drug?\nAI: Ibuprofen.\nUser: Why?\nAI: For pain.\nUser: and the dose?",
		gw.Prompts()[0])

	gw.QueueChat("x")
	_, err = r.Refine(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Refine the question based on previous conversation:\n\nUser: hi", gw.Prompts()[1])
}

func TestRefineFailure(t *testing.T) {
	gw := llmtest.New().QueueChatError(errors.New("timeout"))
	_, err := NewRefiner(gw, "").Refine(context.Background(), "q", nil)
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestRetrieveIsolatesSessions(t *testing.T) {
	idx := vectorstore.NewMemoryStore()
	addChunk(t, idx, "a1", "session A text", "u1", "A")
	addChunk(t, idx, "a2", "more session A text", "u1", "A")
	addChunk(t, idx, "b1", "session B text", "u1", "B")
	addChunk(t, idx, "x1", "other user text", "u2", "A")

	r := NewRetriever(idx, embedding.NewService(llmtest.New(), "m"), 0)
	docs, err := r.Retrieve(context.Background(), "u1", "A", "session text")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session A text", "more session A text"}, docs)

	none, err := r.Retrieve(context.Background(), "u1", "C", "anything")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAnswerPromptPlaceholders(t *testing.T) {
	p := AnswerPrompt("what now?", nil, nil)
	assert.True(t, strings.HasPrefix(p, "You are a helpful AI assistant."))
	assert.Contains(t, p, "📂 Previous Conversation:\nNo previous chats.\n")
	assert.Contains(t, p, "📄 Relevant Document Chunks:\nNo documents found.\n")
	assert.True(t, strings.HasSuffix(p, "❓ User Query:\nwhat now?"))

	p = AnswerPrompt("q", []string{"c1", "c2"}, []models.ChatMessage{{Question: "a", Answer: "b"}})
	assert.Contains(t, p, "User: a\nAI: b")
	assert.Contains(t, p, "c1\n\nc2")
}

func TestGenerateSplitsWords(t *testing.T) {
	parts := []string{"Hel", "lo wor", "ld  again", " tail"}
	gw := llmtest.New().QueueStream(parts...)
	g := NewGenerator(gw, "m", 0)

	words := collect(g.Generate(context.Background(), "q", nil, nil))
	assert.Equal(t, []string{"Hello ", "world ", " ", "again ", "tail"}, words)
	assert.Equal(t, strings.Join(parts, ""), strings.Join(words, ""))
}

func TestGenerateMidStreamFailure(t *testing.T) {
	gw := llmtest.New().QueueStreamFailure(errors.New("connection reset"), "partial answer ", "cut")
	g := NewGenerator(gw, "m", 0)

	words := collect(g.Generate(context.Background(), "q", nil, nil))
	assert.Equal(t, []string{"partial ", "answer ", "\n[Internal error: connection reset]"}, words)
}

func TestGenerateOpenFailure(t *testing.T) {
	gw := llmtest.New().QueueStreamOpenError(errors.New("401 unauthorized"))
	g := NewGenerator(gw, "m", 0)

	words := collect(g.Generate(context.Background(), "q", nil, nil))
	assert.Equal(t, []string{"\n[Internal error: 401 unauthorized]"}, words)
}

func TestGenerateStopsOnCancel(t *testing.T) {
	gw := llmtest.New().QueueStream("one two three four ")
	g := NewGenerator(gw, "m", DefaultPacing)

	ctx, cancel := context.WithCancel(context.Background())
	ch := g.Generate(ctx, "q", nil, nil)
	assert.Equal(t, "one ", <-ch)
	cancel()
	for range ch {
	}
}

type chatFixture struct {
	svc      *ChatService
	gw       *llmtest.Gateway
	sessions *session.MemoryStore
	index    *vectorstore.MemoryStore
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		gw:       llmtest.New(),
		sessions: session.NewMemoryStore(),
		index:    vectorstore.NewMemoryStore(),
	}
	_, err := f.sessions.Ensure(context.Background(), "u1", "s1")
	require.NoError(t, err)
	f.svc = NewChatService(f.sessions, f.index, embedding.NewService(f.gw, "m"), f.gw, "gpt-4o", config.RAGConfig{}, nil)
	return f
}

func (f *chatFixture) messages(t *testing.T) []models.ChatMessage {
	t.Helper()
	msgs, err := f.svc.History(context.Background(), "u1", "s1")
	require.NoError(t, err)
	return msgs
}

func TestAskStreamsAndRecordsOnce(t *testing.T) {
	f := newChatFixture(t)
	addChunk(t, f.index, "c1", "Take 200mg twice daily.", "u1", "s1")
	addChunk(t, f.index, "c2", "Unrelated notes.", "u1", "s2")

	f.gw.QueueChat("What is the ibuprofen dose?").
		QueueChat("1, 2").
		QueueStream("Take 200mg ", "twice daily.")

	ctx := context.Background()
	turn, err := f.svc.Ask(ctx, "u1", "s1", "dose?")
	require.NoError(t, err)
	assert.Equal(t, "What is the ibuprofen dose?", turn.RefinedQuestion)
	assert.Equal(t, []string{"Take 200mg twice daily."}, turn.Chunks)

	var emitted []string
	answer, err := f.svc.Stream(ctx, turn, func(w string) error {
		emitted = append(emitted, w)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Take 200mg twice daily.", answer)
	assert.Equal(t, answer, strings.Join(emitted, ""))

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "dose?", msgs[0].Question)
	assert.Equal(t, "What is the ibuprofen dose?", msgs[0].RefinedQuestion)
	assert.Equal(t, answer, msgs[0].Answer)
	assert.False(t, msgs[0].Timestamp.IsZero())

	require.Len(t, f.gw.StreamCalls, 1)
	prompt := f.gw.StreamCalls[0].Messages[0].Content
	assert.Contains(t, prompt, "Take 200mg twice daily.")
	assert.NotContains(t, prompt, "Unrelated notes.")
}

func TestAskEmptyRetrievalSkipsRerank(t *testing.T) {
	f := newChatFixture(t)
	f.gw.QueueChat("refined").QueueStream("I could not find that.")

	answer, err := f.svc.AskBlocking(context.Background(), "u1", "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, "I could not find that.", answer)
	assert.Len(t, f.gw.ChatCalls, 1)
	assert.Contains(t, f.gw.StreamCalls[0].Messages[0].Content, "No documents found.")
	assert.Len(t, f.messages(t), 1)
}

func TestAskUsesRecentHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, f.sessions.AppendMessage(ctx, "u1", "s1", models.ChatMessage{
			Question: "q" + string(rune('0'+i)),
			Answer:   "a" + string(rune('0'+i)),
		}))
	}
	f.gw.QueueChat("refined").QueueStream("ok")

	_, err := f.svc.AskBlocking(ctx, "u1", "s1", "next")
	require.NoError(t, err)

	refine := f.gw.Prompts()[0]
	assert.NotContains(t, refine, "User: q1\n")
	assert.Contains(t, refine, "User: q2\nAI: a2")
	assert.Contains(t, refine, "User: q6\nAI: a6")
	assert.Len(t, f.messages(t), 8)
}

func TestStreamAbandonedRecordsNothing(t *testing.T) {
	f := newChatFixture(t)
	f.gw.QueueChat("refined").QueueStream("a long answer that never finishes")

	turn, err := f.svc.Ask(context.Background(), "u1", "s1", "q")
	require.NoError(t, err)

	gone := errors.New("client disconnected")
	_, err = f.svc.Stream(context.Background(), turn, func(string) error { return gone })
	assert.ErrorIs(t, err, gone)
	assert.Empty(t, f.messages(t))
}

func TestStreamCancelledRecordsNothing(t *testing.T) {
	f := newChatFixture(t)
	f.gw.QueueChat("refined").QueueStream("one two three")

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := f.svc.Ask(ctx, "u1", "s1", "q")
	require.NoError(t, err)

	_, err = f.svc.Stream(ctx, turn, func(string) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.messages(t))
}

func TestStreamProviderFailureIsRecordedInline(t *testing.T) {
	f := newChatFixture(t)
	f.gw.QueueChat("refined").QueueStreamFailure(errors.New("overloaded"), "Partial ")

	answer, err := f.svc.AskBlocking(context.Background(), "u1", "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, "Partial \n[Internal error: overloaded]", answer)
	assert.Len(t, f.messages(t), 1)
}

func TestAskFailuresBeforeStreaming(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.Ask(context.Background(), "u1", "missing", "q")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.gw.QueueChatError(errors.New("quota"))
	_, err = f.svc.Ask(context.Background(), "u1", "s1", "q")
	assert.ErrorIs(t, err, apperr.ErrProvider)
	assert.Empty(t, f.gw.StreamCalls)
	assert.Empty(t, f.messages(t))
}

func TestDiscardReleasesGenerator(t *testing.T) {
	f := newChatFixture(t)
	f.gw.QueueChat("refined").QueueStream("never read")

	turn, err := f.svc.Ask(context.Background(), "u1", "s1", "q")
	require.NoError(t, err)
	turn.Discard()
	for range turn.words {
	}
	assert.Empty(t, f.messages(t))
}
