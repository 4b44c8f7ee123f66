package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/models"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find missing session", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + collectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewMongoStore(mt.DB).Find(context.Background(), "u1", "s1")
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
	})

	mt.Run("find decodes session", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + collectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "session_id", Value: "s1"},
			{Key: "user_id", Value: "u1"},
			{Key: "documents", Value: bson.A{bson.D{{Key: "doc_id", Value: "abc"}}}},
			{Key: "messages", Value: bson.A{bson.D{
				{Key: "question", Value: "q"},
				{Key: "refined_question", Value: "rq"},
				{Key: "answer", Value: "a"},
			}}},
		}))

		sess, err := NewMongoStore(mt.DB).Find(context.Background(), "u1", "s1")
		require.NoError(mt, err)
		assert.Equal(mt, "s1", sess.SessionID)
		assert.True(mt, sess.HasDocument("abc"))
		require.Len(mt, sess.Messages, 1)
		assert.Equal(mt, "rq", sess.Messages[0].RefinedQuestion)
	})

	mt.Run("append document reports duplicates", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		added, err := store.AppendDocument(context.Background(), "u1", "s1", models.Document{DocID: "abc"})
		require.NoError(mt, err)
		assert.True(mt, added)

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		added, err = store.AppendDocument(context.Background(), "u1", "s1", models.Document{DocID: "abc"})
		require.NoError(mt, err)
		assert.False(mt, added)
	})

	mt.Run("append message to missing session", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := NewMongoStore(mt.DB).AppendMessage(context.Background(), "u1", "s1", models.ChatMessage{Question: "q"})
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
	})

	mt.Run("count by user", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + collectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		n, err := NewMongoStore(mt.DB).CountByUser(context.Background(), "u1")
		require.NoError(mt, err)
		assert.EqualValues(mt, 3, n)
	})
}
