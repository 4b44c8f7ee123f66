// Package rag answers questions about a session's documents: refine the
// question, retrieve and rerank chunks, then stream the answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/session"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

const DefaultHistoryTurns = 5

type ChatService struct {
	sessions     session.Store
	refiner      *Refiner
	retriever    *Retriever
	reranker     *Reranker
	generator    *Generator
	historyTurns int
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewChatService(
	sessions session.Store,
	index vectorstore.Index,
	embedder embedding.Embedder,
	gw llm.Gateway,
	model string,
	cfg config.RAGConfig,
	m *metrics.Metrics,
) *ChatService {
	turns := cfg.HistoryTurns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	return &ChatService{
		sessions:     sessions,
		refiner:      NewRefiner(gw, model),
		retriever:    NewRetriever(index, embedder, cfg.CandidateK),
		reranker:     NewReranker(gw, model, cfg.RerankTopN),
		generator:    NewGenerator(gw, model, cfg.StreamPacing),
		historyTurns: turns,
		metrics:      m,
		now:          time.Now,
	}
}

// Turn is a question whose answer is ready to stream. It must be passed to
// Stream or released with Discard.
type Turn struct {
	UserID          string
	SessionID       string
	Question        string
	RefinedQuestion string
	Chunks          []string

	ctx    context.Context
	cancel context.CancelFunc
	words  <-chan string
}

// Discard stops generation without recording anything.
func (t *Turn) Discard() {
	t.cancel()
}

// Ask runs every stage that can fail before the first word is produced:
// session lookup, refinement, retrieval and reranking. Generation starts in
// the background and is consumed by Stream.
func (s *ChatService) Ask(ctx context.Context, userID, sessionID, question string) (*Turn, error) {
	sess, err := s.sessions.Find(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	history := sess.LastMessages(s.historyTurns)
	log := slog.With("user_id", userID, "session_id", sessionID)

	start := time.Now()
	refined, err := s.refiner.Refine(ctx, question, history)
	s.metrics.ObserveStage("refine", start, err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	candidates, err := s.retriever.Retrieve(ctx, userID, sessionID, refined)
	s.metrics.ObserveStage("retrieve", start, err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	top, err := s.reranker.Rerank(ctx, refined, candidates)
	s.metrics.ObserveStage("rerank", start, err)
	if err != nil {
		return nil, err
	}

	log.Debug("question prepared", "refined", refined, "candidates", len(candidates), "selected", len(top))

	genCtx, cancel := context.WithCancel(ctx)
	return &Turn{
		UserID:          userID,
		SessionID:       sessionID,
		Question:        question,
		RefinedQuestion: refined,
		Chunks:          top,
		ctx:             genCtx,
		cancel:          cancel,
		words:           s.generator.Generate(genCtx, refined, top, history),
	}, nil
}

// Stream forwards each word to emit (when non-nil) and returns the full
// answer. The turn is recorded in the session only if the answer was drained
// completely and neither ctx nor emit failed; otherwise nothing is stored.
func (s *ChatService) Stream(ctx context.Context, turn *Turn, emit func(string) error) (string, error) {
	defer turn.cancel()
	start := time.Now()

	var answer strings.Builder
	for w := range turn.words {
		answer.WriteString(w)
		s.metrics.StreamedWord()
		if emit == nil {
			continue
		}
		if err := emit(w); err != nil {
			s.metrics.ObserveStage("generate", start, err)
			return answer.String(), fmt.Errorf("write answer: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return answer.String(), err
	}
	if err := turn.ctx.Err(); err != nil {
		return answer.String(), err
	}
	s.metrics.ObserveStage("generate", start, nil)

	text := strings.TrimSpace(answer.String())
	msg := models.ChatMessage{
		Question:        turn.Question,
		RefinedQuestion: turn.RefinedQuestion,
		Answer:          text,
		Timestamp:       s.now().UTC(),
	}
	if err := s.sessions.AppendMessage(ctx, turn.UserID, turn.SessionID, msg); err != nil {
		return text, fmt.Errorf("record turn: %w", err)
	}
	return text, nil
}

// AskBlocking drains the whole answer before returning it.
func (s *ChatService) AskBlocking(ctx context.Context, userID, sessionID, question string) (string, error) {
	turn, err := s.Ask(ctx, userID, sessionID, question)
	if err != nil {
		return "", err
	}
	return s.Stream(ctx, turn, nil)
}

// History returns every recorded turn of a session, oldest first.
func (s *ChatService) History(ctx context.Context, userID, sessionID string) ([]models.ChatMessage, error) {
	sess, err := s.sessions.Find(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Messages == nil {
		return []models.ChatMessage{}, nil
	}
	return sess.Messages, nil
}
