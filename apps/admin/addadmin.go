package main

import (
	"context"
	"time"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

// addAdmin creates a super admin account, or promotes an existing one.
func (cli *commandLine) addAdmin(email, name, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	now := time.Now().UTC()

	idt, err := cli.repo.GetIdentity(ctx, account.GetFilter{Email: email})
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		idt = account.Identity{
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = idt.SetPassword(pwd); err != nil {
			return err
		}
		if idt, err = cli.repo.CreateIdentity(ctx, idt); err != nil {
			return err
		}
	} else {
		if err = idt.SetPassword(pwd); err != nil {
			return err
		}
		idt.UpdatedAt = now
		if _, err = cli.repo.UpdateIdentity(ctx, idt); err != nil {
			return err
		}
	}

	prof, err := cli.repo.GetProfile(ctx, account.GetFilter{ID: idt.ID})
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		prof = account.Profile{
			ID:             idt.ID,
			Email:          email,
			FullName:       name,
			Role:           account.RoleAdmin,
			SubRole:        account.SubRoleSuperAdmin,
			Status:         account.StatusActive,
			ApprovalStatus: "approved",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, err = cli.repo.CreateProfile(ctx, prof)
		return err
	}

	prof.FullName = name
	prof.Role = account.RoleAdmin
	prof.SubRole = account.SubRoleSuperAdmin
	prof.Status = account.StatusActive
	prof.ApprovalStatus = "approved"
	prof.UpdatedAt = now
	_, err = cli.repo.UpdateProfile(ctx, prof)
	return err
}
