package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

// Logger discards everything; it keeps test output clean.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (Logger) Enable(bool)                       {}
func (Logger) Debug(string, ...interface{})      {}
func (Logger) Info(string, ...interface{})       {}
func (Logger) Warn(string, ...interface{})       {}
func (Logger) Error(string, ...interface{})      {}
func (Logger) Fatal(msg string, _ ...interface{}) { panic(msg) }

// NewConfig returns a test configuration that never touches the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Shule",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Address: "noreply@localhost"},

		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      "8000",
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			AutoActivateSignups:       true,
		},
	}
}

// CreateAccount persists an Identity and its Profile directly through the repo.
func CreateAccount(
	t *testing.T,
	repo account.Repository,
	name, email, pwd string,
	role account.Role,
	subRole account.SubRole,
	status account.Status,
	createdAt ...time.Time,
) account.Profile {
	t.Helper()
	ctx := context.Background()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}

	idt := account.Identity{
		Email:     email,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := idt.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	idt, err := repo.CreateIdentity(ctx, idt)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}

	prof := account.Profile{
		ID:             idt.ID,
		Email:          email,
		FullName:       name,
		Role:           role,
		SubRole:        subRole,
		Status:         status,
		ApprovalStatus: "approved",
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	if status == account.StatusPendingApproval {
		prof.ApprovalStatus = "pending"
	}
	prof, err = repo.CreateProfile(ctx, prof)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return prof
}
