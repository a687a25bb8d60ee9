package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

const (
	contextTokenKey   = "accountToken"
	contextProfileKey = "profile"
)

// Claims represents the authorization claims transmitted via a JWT.
// Profile claims are empty on a degraded session (identity without profile).
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Role         string `json:"role,omitempty"`
	SubRole      string `json:"sub_role,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"`   // -> STUDENT PORTAL
	IsProfessor  bool   `json:"is_professor,omitempty"` // -> PROFESSOR PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`     // -> ADMIN PORTAL
}

func GetClaims(conf *core.Config, idt account.Identity, prof *account.Profile, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   idt.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        idt.Email,
	}
	if prof != nil {
		claims.FullName = prof.FullName
		claims.Role = string(prof.Role)
		claims.SubRole = string(prof.SubRole)
		claims.IsStudent = prof.IsStudent()
		claims.IsProfessor = prof.IsProfessor()
		claims.IsAdmin = prof.IsAdmin()
	}
	return claims
}

func authenticate(ctx context.Context, email, pwd string, svc account.Service, conf *core.Config) (*Claims, error) {
	idt, prof, err := svc.Authenticate(ctx, email, pwd)
	if err != nil {
		cause := errors.Cause(err)
		if cause == account.ErrNotFound || cause == account.ErrInvalidPassword {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "authenticating")
	}
	if prof != nil {
		switch prof.Status {
		case account.StatusPendingApproval:
			return nil, errAccountPending
		case account.StatusInactive, account.StatusSuspended:
			return nil, errAccountDeactivated
		}
	}
	return GetClaims(conf, idt, prof), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextProfile resolves (and caches) the acting Profile from the claims.
// A degraded session (identity without profile) yields a nil profile, not an error.
func getContextProfile(ctx echo.Context, svc account.Service, clms ...Claims) (*account.Profile, error) {
	if prof, ok := ctx.Get(contextProfileKey).(*account.Profile); ok {
		return prof, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "getting context claims")
		}
	}

	prof, err := svc.GetProfile(ctx.Request().Context(), account.GetFilter{ID: claims.Subject})
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding profile by ID")
	}
	ctx.Set(contextProfileKey, &prof)
	return &prof, nil
}

func refreshToken(ctx echo.Context, svc account.Service, conf *core.Config) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	idt, err := svc.GetIdentity(ctx.Request().Context(), account.GetFilter{ID: claims.Subject})
	if err != nil {
		return "", errors.Wrap(err, "finding identity by ID")
	}

	prof, err := getContextProfile(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context profile")
	}

	// check if account is still active
	if prof != nil && !prof.IsActive() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetClaims(conf, idt, prof, claims.OrigIssuedAt)
	token, err := GenerateToken(conf, newClaims)
	if err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	svc.Events().Publish(account.AuthEvent{Type: account.EventTokenRefresh, IdentityID: idt.ID})
	return token, nil
}
