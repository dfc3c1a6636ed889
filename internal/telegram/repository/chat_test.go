package repository

import (
	"context"
	"errors"
	"testing"

	"ledger_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoChatRepositoryCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoChatRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		chat := &models.Chat{ChatID: -1001}
		if err := repo.Create(context.Background(), chat); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if chat.CreatedAt.IsZero() {
			t.Fatalf("expected created_at to be set")
		}
	})

	mt.Run("already started", func(mt *mtest.T) {
		repo := &MongoChatRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: chats index: chat_id_1",
		}))

		err := repo.Create(context.Background(), &models.Chat{ChatID: -1001})
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})
}
