package account

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
)

var (
	// errors
	ErrNotFound        = errors.New("account not found")
	ErrEmailExists     = errors.New("an account with this email already exists")
	ErrNotPending      = errors.New("account is not pending approval")
	ErrInvalidPassword = errors.New("invalid password")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excluded []Profile) error

		CreateIdentity(ctx context.Context, idt Identity) (Identity, error)
		GetIdentity(ctx context.Context, filter GetFilter) (Identity, error)
		UpdateIdentity(ctx context.Context, idt Identity) (Identity, error)
		DeleteIdentitiesByID(ctx context.Context, ids []string) (int, error)

		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfile(ctx context.Context, filter GetFilter) (Profile, error)
		// QueryProfiles applies AND operation on available QueryFilter fields.
		QueryProfiles(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
		DeleteProfilesByID(ctx context.Context, ids []string) (int, error)
	}

	Service interface {
		SignUp(ctx context.Context, na NewAccount) (Profile, error)
		Authenticate(ctx context.Context, email, pwd string) (Identity, *Profile, error)
		SignOut(ctx context.Context, identityID string)
		GetIdentity(ctx context.Context, filter GetFilter) (Identity, error)
		GetProfile(ctx context.Context, filter GetFilter) (Profile, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Profile, error)
		Update(ctx context.Context, id string, up UpdateProfile) (Profile, error)
		Delete(ctx context.Context, ids ...string) error
		Approve(ctx context.Context, id string) (Profile, error)
		Reject(ctx context.Context, id string) error
		CheckEmailUniqueness(email string, excluded ...Profile) error
		RequestPasswordReset(email string) error
		ResetPassword(rp ResetPassword) error
		Events() *AuthBroadcaster
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
		events  *AuthBroadcaster
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
		events:  NewAuthBroadcaster(),
	}
}

func (svc *service) Events() *AuthBroadcaster { return svc.events }

func (svc *service) CheckEmailUniqueness(email string, excluded ...Profile) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excluded); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// SignUp creates the Identity first, then the Profile referencing it.
// A successfully created Identity is not rolled back if the Profile insert
// fails; the caller gets the error and the orphaned Identity stays behind.
// New profiles come up active when Server.AutoActivateSignups is set,
// pending approval otherwise.
func (svc *service) SignUp(ctx context.Context, na NewAccount) (Profile, error) {
	now := time.Now().UTC()

	idt := Identity{
		Email:     na.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := idt.SetPassword(na.Password); err != nil {
		return Profile{}, errors.Wrap(err, "hashing password")
	}
	idt, err := svc.repo.CreateIdentity(ctx, idt)
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating identity")
	}

	status := StatusPendingApproval
	approval := "pending"
	if svc.conf.Server.AutoActivateSignups {
		status = StatusActive
		approval = "approved"
	}

	prof := Profile{
		ID:             idt.ID,
		Email:          na.Email,
		FullName:       na.FullName,
		Role:           na.Role,
		SubRole:        na.SubRole,
		DepartmentID:   na.DepartmentID,
		Phone:          na.Phone,
		Status:         status,
		ApprovalStatus: approval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	prof, err = svc.repo.CreateProfile(ctx, prof)
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating profile")
	}

	svc.events.Publish(AuthEvent{Type: EventSignedUp, IdentityID: idt.ID})
	svc.sendWelcomeMail(prof)
	return prof, nil
}

// Authenticate checks the credentials and returns the Identity along with its
// Profile. A missing Profile is not an error: the identity is known and the
// caller must treat the session as degraded (no permissions).
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (Identity, *Profile, error) {
	idt, err := svc.repo.GetIdentity(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return Identity{}, nil, err
	}
	if err = idt.CheckPassword(pwd); err != nil {
		return Identity{}, nil, ErrInvalidPassword
	}

	idt.LastLogin = time.Now().UTC()
	if idt, err = svc.repo.UpdateIdentity(ctx, idt); err != nil {
		return Identity{}, nil, errors.Wrap(err, "setting lastLogin")
	}

	var prof *Profile
	if p, err := svc.repo.GetProfile(ctx, GetFilter{ID: idt.ID}); err == nil {
		prof = &p
	} else if errors.Cause(err) != ErrNotFound {
		return Identity{}, nil, errors.Wrap(err, "finding profile")
	}

	svc.events.Publish(AuthEvent{Type: EventSignedIn, IdentityID: idt.ID})
	return idt, prof, nil
}

// SignOut only notifies subscribers: tokens are stateless and expire on their own.
func (svc *service) SignOut(ctx context.Context, identityID string) {
	svc.events.Publish(AuthEvent{Type: EventSignedOut, IdentityID: identityID})
}

func (svc *service) GetIdentity(ctx context.Context, filter GetFilter) (Identity, error) {
	filter.Email = core.CleanString(filter.Email, true /* lower */)
	return svc.repo.GetIdentity(ctx, filter)
}

func (svc *service) GetProfile(ctx context.Context, filter GetFilter) (Profile, error) {
	filter.Email = core.CleanString(filter.Email, true /* lower */)
	return svc.repo.GetProfile(ctx, filter)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, filter, ordering)
}

// Update applies the provided fields on top of the stored Profile;
// omitted fields keep their current values.
func (svc *service) Update(ctx context.Context, id string, up UpdateProfile) (Profile, error) {
	prof, err := svc.repo.GetProfile(ctx, GetFilter{ID: id})
	if err != nil {
		return Profile{}, err
	}

	prof.FullName = up.FullName
	prof.Email = up.Email
	prof.Role = up.Role
	if up.SubRole != nil {
		prof.SubRole = *up.SubRole
	}
	if up.DepartmentID != nil {
		prof.DepartmentID = up.DepartmentID
	}
	if up.Phone != "" {
		prof.Phone = up.Phone
	}
	if up.Status != "" {
		prof.Status = up.Status
	}
	prof.UpdatedAt = time.Now().UTC()

	if up.Password != "" {
		idt, err := svc.repo.GetIdentity(ctx, GetFilter{ID: id})
		if err != nil {
			return Profile{}, errors.Wrap(err, "finding identity")
		}
		if err = idt.SetPassword(up.Password); err != nil {
			return Profile{}, errors.Wrap(err, "hashing password")
		}
		idt.UpdatedAt = prof.UpdatedAt
		if _, err = svc.repo.UpdateIdentity(ctx, idt); err != nil {
			return Profile{}, errors.Wrap(err, "updating identity")
		}
	}
	return svc.repo.UpdateProfile(ctx, prof)
}

// Delete removes the Profiles and their Identities.
func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if _, err := svc.repo.DeleteProfilesByID(ctx, ids); err != nil {
		return errors.Wrap(err, "deleting profiles")
	}
	if _, err := svc.repo.DeleteIdentitiesByID(ctx, ids); err != nil {
		return errors.Wrap(err, "deleting identities")
	}
	return nil
}

// Approve flips a pending profile to active and notifies the user.
func (svc *service) Approve(ctx context.Context, id string) (Profile, error) {
	prof, err := svc.repo.GetProfile(ctx, GetFilter{ID: id})
	if err != nil {
		return Profile{}, err
	}
	if prof.Status != StatusPendingApproval {
		return Profile{}, ErrNotPending
	}

	prof.Status = StatusActive
	prof.ApprovalStatus = "approved"
	prof.UpdatedAt = time.Now().UTC()
	if prof, err = svc.repo.UpdateProfile(ctx, prof); err != nil {
		return Profile{}, errors.Wrap(err, "approving profile")
	}

	svc.sendApprovalMail(prof)
	return prof, nil
}

// Reject is the explicit admin rejection flow: it deletes the Profile and,
// with it, the Identity (and therefore access).
func (svc *service) Reject(ctx context.Context, id string) error {
	prof, err := svc.repo.GetProfile(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if prof.Status != StatusPendingApproval {
		return ErrNotPending
	}

	if err = svc.Delete(ctx, id); err != nil {
		return err
	}
	svc.sendRejectionMail(prof)
	return nil
}

func (svc *service) RequestPasswordReset(email string) error {
	idt, err := svc.GetIdentity(context.Background(), GetFilter{Email: email})
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(idt)
	return nil
}

func (svc *service) ResetPassword(rp ResetPassword) error {
	ctx := context.Background()

	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	idt, err := svc.repo.GetIdentity(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}

	if err = verifyToken(svc.conf, idt, rp.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = idt.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	idt.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateIdentity(ctx, idt)
	return errors.Wrap(err, "updating identity")
}

// Mails

func (svc *service) sendWelcomeMail(prof Profile) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: prof.FullName, Address: prof.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: struct {
			FullName        string
			AppName         string
			PendingApproval bool
		}{prof.FullName, svc.conf.AppName, prof.Status == StatusPendingApproval},
	})
}

func (svc *service) sendApprovalMail(prof Profile) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: prof.FullName, Address: prof.Email}},
		Subject: "Account approved",
		BodyStr: fmt.Sprintf("Hi %s,\n\nYour account has been approved. You can now sign in.", prof.FullName),
	})
}

func (svc *service) sendRejectionMail(prof Profile) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: prof.FullName, Address: prof.Email}},
		Subject: "Account rejected",
		BodyStr: fmt.Sprintf("Hi %s,\n\nYour account request was not approved.", prof.FullName),
	})
}

func (svc *service) sendPasswordResetMail(idt Identity) {
	token, err := MakeToken(svc.conf, idt)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: idt.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			UID   string
			Token string
		}{EncodeUID(idt), token},
	})
}
