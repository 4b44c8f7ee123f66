package models

import "time"

// ChatMessage is one completed question/answer turn. Messages are only
// appended once the full answer has been produced.
type ChatMessage struct {
	Question        string    `json:"question" bson:"question"`
	RefinedQuestion string    `json:"refined_question" bson:"refined_question"`
	Answer          string    `json:"answer" bson:"answer"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}

// Session is keyed by (SessionID, UserID). It owns its documents and an
// append-only message log.
type Session struct {
	SessionID string        `json:"session_id" bson:"session_id"`
	UserID    string        `json:"user_id" bson:"user_id"`
	Documents []Document    `json:"documents" bson:"documents"`
	Messages  []ChatMessage `json:"messages" bson:"messages"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

func (s *Session) HasDocument(docID string) bool {
	return s.Document(docID) != nil
}

func (s *Session) Document(docID string) *Document {
	for i := range s.Documents {
		if s.Documents[i].DocID == docID {
			return &s.Documents[i]
		}
	}
	return nil
}

// LastMessages returns at most n of the most recent messages, oldest first.
func (s *Session) LastMessages(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
