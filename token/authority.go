// Package token issues and verifies signed, time-bounded identity tokens and
// enforces the single-active-session rule: each login embeds a fresh session
// marker that is also persisted on the account record, and only the token
// whose marker matches the persisted one is accepted.
package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/apannell/go-secure-api/accounts"
	"github.com/apannell/go-secure-api/internal/errors"
)

// Claims is the identity claim set carried by a signed token.
type Claims struct {
	Role          accounts.RoleType `json:"role,omitempty"`
	SessionMarker string            `json:"sid"`
	jwtlib.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Authority issues, verifies, and supersedes identity tokens.
type Authority struct {
	signer   Signer
	repo     accounts.Repo
	tokenTTL time.Duration
	nowTime  func() time.Time // nowTime function (injectable for testing)
}

// AuthorityOption defines a function type to modify the Authority instance.
type AuthorityOption func(*Authority)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorityOption {
	return func(a *Authority) {
		a.nowTime = nowFunc
	}
}

// NewAuthority initializes a new Authority with required dependencies.
func NewAuthority(signer Signer, repo accounts.Repo, tokenTTL time.Duration, options ...AuthorityOption) (*Authority, error) {
	if signer == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewAuthority] signer is required")
	}
	if repo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewAuthority] account repo is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}

	authority := &Authority{
		signer:   signer,
		repo:     repo,
		tokenTTL: tokenTTL,
		nowTime:  time.Now,
	}

	for _, opt := range options {
		opt(authority)
	}

	return authority, nil
}

// Issue signs a fresh identity token for the account with a newly generated
// session marker and returns both. The marker is not persisted here; Login
// does that so issuance stays a pure function of its inputs plus randomness.
func (a *Authority) Issue(account *accounts.Account) (signedToken, marker string, err error) {
	marker = uuid.New().String()
	now := a.nowTime()

	claims := &Claims{
		Role:          account.Role,
		SessionMarker: marker,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.tokenTTL)),
			ID:        uuid.New().String(),
		},
	}

	signedToken, err = a.signer.Sign(claims)
	if err != nil {
		return "", "", errors.Wrapf(err, "[Authority.Issue]")
	}
	return signedToken, marker, nil
}

// Verify validates signature and expiry and returns the parsed claims.
// Callers treat any failure as "unauthenticated", never as fatal.
func (a *Authority) Verify(rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, errors.ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(
		rawToken,
		claims,
		a.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{a.signer.GetSigningMethod().Alg()}),
		jwtlib.WithTimeFunc(a.nowTime),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// Authenticate verifies the token and then requires its session marker to
// exactly equal the marker persisted on the account. A well-signed, unexpired
// token with a stale marker has been intentionally revoked by a newer login
// and yields ErrSessionSuperseded, distinct from the other token failures.
func (a *Authority) Authenticate(rawToken string) (*Claims, *accounts.Account, error) {
	claims, err := a.Verify(rawToken)
	if err != nil {
		return nil, nil, err
	}

	account, err := a.repo.GetByID(claims.AccountID())
	if err != nil {
		return nil, nil, errors.ErrInvalidToken
	}

	if account.SessionMarker != claims.SessionMarker {
		return nil, nil, errors.ErrSessionSuperseded
	}
	return claims, account, nil
}

// Login checks credentials, issues a token with a fresh marker, and persists
// that marker onto the account record, superseding any prior login. Two
// near-simultaneous logins both succeed; whichever marker write lands last
// wins and the other token is superseded on its next use.
func (a *Authority) Login(email, password string) (signedToken string, account *accounts.Account, err error) {
	account, err = a.repo.GetByEmail(email)
	if err != nil {
		return "", nil, errors.ErrInvalidCredentials
	}
	if account.Blocked {
		return "", nil, errors.ErrInvalidCredentials
	}
	if !accounts.CheckPasswordHash(password, account.PasswordHash) {
		return "", nil, errors.ErrInvalidCredentials
	}

	signedToken, marker, err := a.Issue(account)
	if err != nil {
		return "", nil, err
	}

	if err := a.repo.SetSessionMarker(account.ID, marker); err != nil {
		return "", nil, errors.Wrapf(err, "[Authority.Login] persist session marker")
	}
	account.SessionMarker = marker
	return signedToken, account, nil
}

// RotateMarker overwrites the account's session marker with a fresh value
// without issuing a token, superseding every outstanding login. Used by
// logout and password reset.
func (a *Authority) RotateMarker(accountID string) error {
	if err := a.repo.SetSessionMarker(accountID, uuid.New().String()); err != nil {
		return errors.Wrapf(err, "[Authority.RotateMarker]")
	}
	return nil
}
