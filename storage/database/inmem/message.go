package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/shulesoft/shule/core/messaging"
)

type messageRepository struct {
	messages *messageTable
}

func NewMessageRepository(db *DB) messaging.Repository {
	return &messageRepository{messages: db.message}
}

func (repo *messageRepository) CreateMessage(_ context.Context, msg messaging.Message) (messaging.Message, error) {
	repo.messages.mutex.Lock()
	defer repo.messages.mutex.Unlock()

	repo.messages.table[msg.ID] = &msg
	return msg, nil
}

func (repo *messageRepository) QueryConversation(_ context.Context, a, b string) ([]messaging.Message, error) {
	repo.messages.mutex.RLock()
	defer repo.messages.mutex.RUnlock()

	var msgs []messaging.Message
	for _, msg := range repo.messages.table {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			msgs = append(msgs, *msg)
		}
	}
	sortByCreation(msgs)
	return msgs, nil
}

func (repo *messageRepository) QueryInvolving(_ context.Context, accountID string) ([]messaging.Message, error) {
	repo.messages.mutex.RLock()
	defer repo.messages.mutex.RUnlock()

	var msgs []messaging.Message
	for _, msg := range repo.messages.table {
		if msg.SenderID == accountID || msg.ReceiverID == accountID {
			msgs = append(msgs, *msg)
		}
	}
	sortByCreation(msgs)
	return msgs, nil
}

func (repo *messageRepository) MarkConversationRead(_ context.Context, receiverID, senderID string, at time.Time) ([]messaging.Message, error) {
	repo.messages.mutex.Lock()
	defer repo.messages.mutex.Unlock()

	var updated []messaging.Message
	for _, msg := range repo.messages.table {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && !msg.IsRead {
			msg.IsRead = true
			readAt := at
			msg.ReadAt = &readAt
			updated = append(updated, *msg)
		}
	}
	sortByCreation(updated)
	return updated, nil
}

func sortByCreation(msgs []messaging.Message) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
}
