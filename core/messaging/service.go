package messaging

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

var (
	// errors
	ErrNotFound     = errors.New("message not found")
	ErrEmptyMessage = errors.New("message content is empty")
	ErrNoContact    = errors.New("no contact selected")
	ErrSelfMessage  = errors.New("cannot message yourself")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryConversation returns all messages between the unordered pair {a, b},
		// ascending by creation time.
		QueryConversation(ctx context.Context, a, b string) ([]Message, error)
		// QueryInvolving returns all messages sent or received by the account.
		QueryInvolving(ctx context.Context, accountID string) ([]Message, error)
		// MarkConversationRead flips all unread messages from senderID to receiverID
		// to read with ReadAt=at, and returns only the rows it actually updated.
		MarkConversationRead(ctx context.Context, receiverID, senderID string, at time.Time) ([]Message, error)
	}

	// Directory is the slice of the account service the messaging
	// subsystem needs: listing potential contacts.
	Directory interface {
		Query(ctx context.Context, filter *account.QueryFilter, ordering []core.DBOrdering) ([]account.Profile, error)
	}

	Service interface {
		Contacts(ctx context.Context, accountID string) ([]Contact, error)
		History(ctx context.Context, accountID, contactID string) ([]Message, error)
		// OpenConversation fetches the history, marks all unread messages from
		// contactID as read and opens a pair-scoped subscription.
		OpenConversation(ctx context.Context, accountID, contactID string) ([]Message, *Subscription, error)
		Send(ctx context.Context, senderID, receiverID, content string) (Message, error)
		MarkRead(ctx context.Context, receiverID, senderID string) error
		Broker() *Broker
	}

	service struct {
		repo      Repository
		directory Directory
		broker    *Broker
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, directory Directory, logger core.Logger) Service {
	return &service{
		repo:      repo,
		directory: directory,
		broker:    NewBroker(),
		logger:    logger,
	}
}

func (svc *service) Broker() *Broker { return svc.broker }

// Contacts lists every other profile with its conversation state:
// last message, unread count, whether any message was ever exchanged.
// Contacts with messages come first (most recent conversation on top),
// the rest follow alphabetically.
func (svc *service) Contacts(ctx context.Context, accountID string) ([]Contact, error) {
	profiles, err := svc.directory.Query(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}

	msgs, err := svc.repo.QueryInvolving(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}

	// group by counterpart
	byContact := make(map[string][]Message)
	for _, msg := range msgs {
		other := msg.SenderID
		if other == accountID {
			other = msg.ReceiverID
		}
		byContact[other] = append(byContact[other], msg)
	}

	contacts := make([]Contact, 0, len(profiles))
	for _, prof := range profiles {
		if prof.ID == accountID {
			continue
		}
		c := Contact{Profile: prof}
		for i := range byContact[prof.ID] {
			msg := byContact[prof.ID][i]
			if c.LastMessage == nil || msg.CreatedAt.After(c.LastMessage.CreatedAt) {
				c.LastMessage = &byContact[prof.ID][i]
				c.LastMessageAt = msg.CreatedAt
			}
			if msg.ReceiverID == accountID && !msg.IsRead {
				c.UnreadCount++
			}
			c.HasMessages = true
		}
		contacts = append(contacts, c)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		ci, cj := contacts[i], contacts[j]
		if ci.HasMessages != cj.HasMessages {
			return ci.HasMessages
		}
		if ci.HasMessages {
			return ci.LastMessageAt.After(cj.LastMessageAt)
		}
		return strings.ToLower(ci.Profile.FullName) < strings.ToLower(cj.Profile.FullName)
	})
	return contacts, nil
}

func (svc *service) History(ctx context.Context, accountID, contactID string) ([]Message, error) {
	return svc.repo.QueryConversation(ctx, accountID, contactID)
}

func (svc *service) OpenConversation(ctx context.Context, accountID, contactID string) ([]Message, *Subscription, error) {
	history, err := svc.History(ctx, accountID, contactID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetching history")
	}

	if err = svc.MarkRead(ctx, accountID, contactID); err != nil {
		// degraded: the conversation still opens, unread flags lag behind
		svc.logger.Error("marking conversation read", err)
	}
	for i := range history {
		if history[i].ReceiverID == accountID && !history[i].IsRead {
			history[i].IsRead = true
		}
	}

	sub := svc.broker.Subscribe(accountID, contactID)
	return history, sub, nil
}

// Send inserts the message and publishes an INSERT event. The caller must not
// append the message locally: both parties' views are fed by the event stream,
// which keeps a single source of truth and avoids double renders.
func (svc *service) Send(ctx context.Context, senderID, receiverID, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}
	if strings.TrimSpace(receiverID) == "" {
		return Message{}, ErrNoContact
	}
	if senderID == receiverID {
		return Message{}, ErrSelfMessage
	}

	msg := Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	msg, err := svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "inserting message")
	}

	svc.broker.Publish(Event{Type: EventInsert, New: &msg})
	return msg, nil
}

// MarkRead flips all unread messages from senderID to receiverID and publishes
// an UPDATE per affected row. Already-read messages are left alone, so a second
// pass is a no-op and ReadAt never moves.
func (svc *service) MarkRead(ctx context.Context, receiverID, senderID string) error {
	updated, err := svc.repo.MarkConversationRead(ctx, receiverID, senderID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "marking conversation read")
	}
	for i := range updated {
		svc.broker.Publish(Event{Type: EventUpdate, New: &updated[i]})
	}
	return nil
}
