package messaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/shulesoft/shule/core/account"
	"github.com/shulesoft/shule/core/messaging"
	emailsvc "github.com/shulesoft/shule/services/email"
	inmemdb "github.com/shulesoft/shule/storage/database/inmem"
	testutil "github.com/shulesoft/shule/tests"
)

func setup(t *testing.T) (account.Repository, messaging.Service) {
	t.Helper()
	conf := testutil.NewConfig()
	db := inmemdb.NewDB()
	accountRepo := inmemdb.NewAccountRepository(db)
	accountSvc := account.NewServiceMock(conf, accountRepo, emailsvc.NewConsoleServiceMock(conf))
	svc := messaging.NewService(inmemdb.NewMessageRepository(db), accountSvc, testutil.NewLogger())
	return accountRepo, svc
}

func expectEvent(t *testing.T, sub *messaging.Subscription, typ messaging.EventType) messaging.Event {
	t.Helper()
	select {
	case evt := <-sub.C:
		if evt.Type != typ {
			t.Fatalf("event type = %s, want %s", evt.Type, typ)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("expected a %s event", typ)
		return messaging.Event{}
	}
}

func expectNoEvent(t *testing.T, sub *messaging.Subscription) {
	t.Helper()
	select {
	case evt := <-sub.C:
		t.Fatalf("received %+v, want nothing", evt)
	default:
	}
}

func TestService_Contacts(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(t)

	me := testutil.CreateAccount(t, repo, "Me Moi", "me@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	zoe := testutil.CreateAccount(t, repo, "Zoe Kanku", "zoe@test.cd", "", account.RoleProfessor, account.SubRoleGuestLecturer, account.StatusActive)
	amy := testutil.CreateAccount(t, repo, "amy Tshala", "amy@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	bob := testutil.CreateAccount(t, repo, "Bob Mbuyi", "bob@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)

	// an older exchange with zoe, a fresh unread pair from bob
	if _, err := svc.Send(ctx, me.ID, zoe.ID, "hi zoe"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // distinct CreatedAt
	if _, err := svc.Send(ctx, bob.ID, me.ID, "yo"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.Send(ctx, bob.ID, me.ID, "you there?"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	contacts, err := svc.Contacts(ctx, me.ID)
	if err != nil {
		t.Fatalf("Contacts() failed: %v", err)
	}
	if len(contacts) != 3 {
		t.Fatalf("Contacts() returned %d contacts, want 3", len(contacts))
	}

	// messaged contacts first (latest conversation on top), then alphabetical
	wantOrder := []string{bob.ID, zoe.ID, amy.ID}
	for i, want := range wantOrder {
		if contacts[i].Profile.ID != want {
			t.Fatalf("contacts[%d] = %s, want %s", i, contacts[i].Profile.FullName, want)
		}
	}

	if contacts[0].UnreadCount != 2 {
		t.Errorf("bob unread = %d, want 2", contacts[0].UnreadCount)
	}
	if contacts[0].LastMessage == nil || contacts[0].LastMessage.Content != "you there?" {
		t.Error("bob last message should be the latest one")
	}
	if contacts[1].UnreadCount != 0 {
		t.Errorf("zoe unread = %d, want 0", contacts[1].UnreadCount)
	}
	if contacts[2].HasMessages {
		t.Error("amy should have no messages")
	}
}

func TestService_Send(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(t)

	me := testutil.CreateAccount(t, repo, "Me Moi", "me@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	bob := testutil.CreateAccount(t, repo, "Bob Mbuyi", "bob@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	eve := testutil.CreateAccount(t, repo, "Eve Nzuzi", "eve@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)

	pairSub := svc.Broker().Subscribe(me.ID, bob.ID)
	defer pairSub.Close()
	otherSub := svc.Broker().Subscribe(me.ID, eve.ID)
	defer otherSub.Close()

	if _, err := svc.Send(ctx, me.ID, bob.ID, "   "); err != messaging.ErrEmptyMessage {
		t.Errorf("Send() error = %v, want %v", err, messaging.ErrEmptyMessage)
	}
	if _, err := svc.Send(ctx, me.ID, "", "hello nobody"); err != messaging.ErrNoContact {
		t.Errorf("Send() error = %v, want %v", err, messaging.ErrNoContact)
	}
	if _, err := svc.Send(ctx, me.ID, me.ID, "note to self"); err != messaging.ErrSelfMessage {
		t.Errorf("Send() error = %v, want %v", err, messaging.ErrSelfMessage)
	}
	// no refusal inserted anything
	if history, _ := svc.History(ctx, me.ID, bob.ID); len(history) != 0 {
		t.Errorf("history has %d messages, want 0", len(history))
	}
	if history, _ := svc.History(ctx, me.ID, ""); len(history) != 0 {
		t.Error("a send without a receiver must not persist an orphan message")
	}
	expectNoEvent(t, pairSub)

	sent, err := svc.Send(ctx, me.ID, bob.ID, "hello")
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if sent.IsRead || sent.ReadAt != nil {
		t.Error("a fresh message must be unread")
	}

	evt := expectEvent(t, pairSub, messaging.EventInsert)
	if evt.New == nil || evt.New.ID != sent.ID {
		t.Errorf("event carries %+v, want the sent message", evt.New)
	}
	expectNoEvent(t, otherSub) // scoped to its own pair
}

func TestService_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(t)

	me := testutil.CreateAccount(t, repo, "Me Moi", "me@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	bob := testutil.CreateAccount(t, repo, "Bob Mbuyi", "bob@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)

	if _, err := svc.Send(ctx, bob.ID, me.ID, "yo"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	sub := svc.Broker().Subscribe(me.ID, bob.ID)
	defer sub.Close()

	if err := svc.MarkRead(ctx, me.ID, bob.ID); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	evt := expectEvent(t, sub, messaging.EventUpdate)
	if evt.New == nil || !evt.New.IsRead || evt.New.ReadAt == nil {
		t.Fatal("the UPDATE event must carry the read message")
	}
	readAt := *evt.New.ReadAt

	// a second pass is a no-op: nothing published, ReadAt untouched
	if err := svc.MarkRead(ctx, me.ID, bob.ID); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	expectNoEvent(t, sub)

	history, err := svc.History(ctx, me.ID, bob.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 || history[0].ReadAt == nil || !history[0].ReadAt.Equal(readAt) {
		t.Error("ReadAt must never move once set")
	}

	// the sender's own messages are untouched by the receiver's mark
	if _, err = svc.Send(ctx, me.ID, bob.ID, "hi"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	<-sub.C // drain the INSERT
	if err = svc.MarkRead(ctx, me.ID, bob.ID); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}
	expectNoEvent(t, sub)
}

func TestService_OpenConversation(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(t)

	me := testutil.CreateAccount(t, repo, "Me Moi", "me@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	bob := testutil.CreateAccount(t, repo, "Bob Mbuyi", "bob@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)

	if _, err := svc.Send(ctx, bob.ID, me.ID, "first"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.Send(ctx, me.ID, bob.ID, "second"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	history, sub, err := svc.OpenConversation(ctx, me.ID, bob.ID)
	if err != nil {
		t.Fatalf("OpenConversation() failed: %v", err)
	}
	defer sub.Close()

	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[0].Content != "first" || history[1].Content != "second" {
		t.Error("history must be ascending by creation time")
	}
	if !history[0].IsRead {
		t.Error("opening the conversation must mark incoming messages read")
	}

	// the subscription opens after the catch-up mark-read; only live traffic flows
	expectNoEvent(t, sub)

	if _, err = svc.Send(ctx, bob.ID, me.ID, "third"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	evt := expectEvent(t, sub, messaging.EventInsert)
	if evt.New == nil || evt.New.Content != "third" {
		t.Errorf("event carries %+v, want the live message", evt.New)
	}
}
