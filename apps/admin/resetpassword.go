package main

import (
	"context"
	"time"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	idt, err := cli.repo.GetIdentity(ctx, account.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err := idt.SetPassword(pwd); err != nil {
		return err
	}
	idt.UpdatedAt = time.Now().UTC()
	_, err = cli.repo.UpdateIdentity(ctx, idt)
	return err
}
