package account

import (
	"context"

	"github.com/shulesoft/shule/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that runs asynchronous work synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	return &serviceMock{
		service: service{
			conf:    conf,
			repo:    repo,
			mailSvc: mailSvc,
			events:  NewAuthBroadcaster(),
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(email string) error {
	idt, err := svc.GetIdentity(context.Background(), GetFilter{Email: email})
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(idt)
	return nil
}
