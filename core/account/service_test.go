package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
	emailsvc "github.com/shulesoft/shule/services/email"
	inmemdb "github.com/shulesoft/shule/storage/database/inmem"
	testutil "github.com/shulesoft/shule/tests"
)

func setup(t *testing.T) (*core.Config, account.Repository, account.Service) {
	t.Helper()
	conf := testutil.NewConfig()
	repo := inmemdb.NewAccountRepository(inmemdb.NewDB())
	svc := account.NewServiceMock(conf, repo, emailsvc.NewConsoleServiceMock(conf))
	emailsvc.ClearSentMessages()
	return conf, repo, svc
}

func newAccount(email, name string) account.NewAccount {
	return account.NewAccount{
		FullName:        name,
		Email:           email,
		Password:        "S3cret!pwd",
		PasswordConfirm: "S3cret!pwd",
		Role:            account.RoleStudent,
	}
}

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()
	_, repo, svc := setup(t)

	sub := svc.Events().Subscribe()
	defer sub.Close()

	prof, err := svc.SignUp(ctx, newAccount("jon@test.cd", "Jon Kabila"))
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if prof.Status != account.StatusActive {
		t.Errorf("SignUp() status = %s, want %s", prof.Status, account.StatusActive)
	}
	if prof.ApprovalStatus != "approved" {
		t.Errorf("SignUp() approvalStatus = %s, want approved", prof.ApprovalStatus)
	}

	// the identity exists and shares the profile's ID
	idt, err := repo.GetIdentity(ctx, account.GetFilter{Email: "jon@test.cd"})
	if err != nil {
		t.Fatalf("GetIdentity() failed: %v", err)
	}
	if idt.ID != prof.ID {
		t.Errorf("identity ID = %s, profile ID = %s; want equal", idt.ID, prof.ID)
	}

	// a SIGNED_UP event went out
	select {
	case evt := <-sub.C:
		if evt.Type != account.EventSignedUp {
			t.Errorf("event type = %s, want %s", evt.Type, account.EventSignedUp)
		}
		if evt.IdentityID != idt.ID {
			t.Errorf("event identityID = %s, want %s", evt.IdentityID, idt.ID)
		}
	case <-time.After(time.Second):
		t.Error("expected a SIGNED_UP event")
	}

	// a welcome mail went out
	if len(emailsvc.SentMessages) != 1 {
		t.Errorf("sent mails = %d, want 1", len(emailsvc.SentMessages))
	}

	// duplicate email is refused
	if err = svc.CheckEmailUniqueness("jon@test.cd"); err == nil {
		t.Error("CheckEmailUniqueness() expected an error for a taken email")
	}
}

func TestService_SignUp_pendingApproval(t *testing.T) {
	ctx := context.Background()
	conf, _, svc := setup(t)
	conf.Server.AutoActivateSignups = false

	prof, err := svc.SignUp(ctx, newAccount("jane@test.cd", "Jane Ilunga"))
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if prof.Status != account.StatusPendingApproval {
		t.Errorf("SignUp() status = %s, want %s", prof.Status, account.StatusPendingApproval)
	}
	if prof.ApprovalStatus != "pending" {
		t.Errorf("SignUp() approvalStatus = %s, want pending", prof.ApprovalStatus)
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	_, repo, svc := setup(t)

	created, err := svc.SignUp(ctx, newAccount("jon@test.cd", "Jon Kabila"))
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}

	idt, prof, err := svc.Authenticate(ctx, "Jon@Test.cd", "S3cret!pwd")
	if err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if prof == nil || prof.ID != created.ID {
		t.Fatal("Authenticate() returned the wrong profile")
	}
	if idt.LastLogin.IsZero() {
		t.Error("Authenticate() did not set lastLogin")
	}

	if _, _, err = svc.Authenticate(ctx, "jon@test.cd", "nope"); err != account.ErrInvalidPassword {
		t.Errorf("Authenticate() error = %v, want %v", err, account.ErrInvalidPassword)
	}
	if _, _, err = svc.Authenticate(ctx, "ghost@test.cd", "S3cret!pwd"); err != account.ErrNotFound {
		t.Errorf("Authenticate() error = %v, want %v", err, account.ErrNotFound)
	}

	// an identity without a profile authenticates into a degraded session
	orphan := account.Identity{Email: "orphan@test.cd", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	_ = orphan.SetPassword("S3cret!pwd")
	if _, err = repo.CreateIdentity(ctx, orphan); err != nil {
		t.Fatalf("CreateIdentity() failed: %v", err)
	}
	_, prof, err = svc.Authenticate(ctx, "orphan@test.cd", "S3cret!pwd")
	if err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if prof != nil {
		t.Error("Authenticate() expected a nil profile for an orphaned identity")
	}
}

func TestService_ApproveReject(t *testing.T) {
	ctx := context.Background()
	conf, repo, svc := setup(t)
	conf.Server.AutoActivateSignups = false

	pending, err := svc.SignUp(ctx, newAccount("jane@test.cd", "Jane Ilunga"))
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}

	prof, err := svc.Approve(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if prof.Status != account.StatusActive || prof.ApprovalStatus != "approved" {
		t.Errorf("Approve() = %s/%s, want active/approved", prof.Status, prof.ApprovalStatus)
	}

	// approving twice is refused
	if _, err = svc.Approve(ctx, pending.ID); err != account.ErrNotPending {
		t.Errorf("Approve() error = %v, want %v", err, account.ErrNotPending)
	}

	// reject deletes both profile and identity
	rejected, err := svc.SignUp(ctx, newAccount("bob@test.cd", "Bob Mbuyi"))
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if err = svc.Reject(ctx, rejected.ID); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	if _, err = repo.GetProfile(ctx, account.GetFilter{ID: rejected.ID}); err != account.ErrNotFound {
		t.Errorf("GetProfile() error = %v, want %v", err, account.ErrNotFound)
	}
	if _, err = repo.GetIdentity(ctx, account.GetFilter{ID: rejected.ID}); err != account.ErrNotFound {
		t.Errorf("GetIdentity() error = %v, want %v", err, account.ErrNotFound)
	}
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	conf, repo, svc := setup(t)

	if _, err := svc.SignUp(ctx, newAccount("jon@test.cd", "Jon Kabila")); err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	emailsvc.ClearSentMessages()

	if err := svc.RequestPasswordReset("jon@test.cd"); err != nil {
		t.Fatalf("RequestPasswordReset() failed: %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent mails = %d, want 1", len(emailsvc.SentMessages))
	}

	idt, err := repo.GetIdentity(ctx, account.GetFilter{Email: "jon@test.cd"})
	if err != nil {
		t.Fatalf("GetIdentity() failed: %v", err)
	}
	token, err := account.MakeToken(conf, idt)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	err = svc.ResetPassword(account.ResetPassword{
		Token:           token,
		UID:             account.EncodeUID(idt),
		Password:        "N3w!secret",
		PasswordConfirm: "N3w!secret",
	})
	if err != nil {
		t.Fatalf("ResetPassword() failed: %v", err)
	}

	if _, _, err = svc.Authenticate(ctx, "jon@test.cd", "N3w!secret"); err != nil {
		t.Errorf("Authenticate() with new password failed: %v", err)
	}

	// a bogus UID is refused
	err = svc.ResetPassword(account.ResetPassword{Token: token, UID: "???", Password: "N3w!secret", PasswordConfirm: "N3w!secret"})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("ResetPassword() error = %T, want *core.ValidationError", err)
	}
}
