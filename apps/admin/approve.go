package main

import (
	"context"
	"time"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

func (cli *commandLine) approve(email string) error {
	ctx := context.Background()

	prof, err := cli.repo.GetProfile(ctx, account.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if prof.Status != account.StatusPendingApproval {
		return account.ErrNotPending
	}

	prof.Status = account.StatusActive
	prof.ApprovalStatus = "approved"
	prof.UpdatedAt = time.Now().UTC()
	_, err = cli.repo.UpdateProfile(ctx, prof)
	return err
}
