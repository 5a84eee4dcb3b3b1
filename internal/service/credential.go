package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/port"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the session credential payload.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// CredentialIssuer signs session credentials with HS256.
type CredentialIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewCredentialIssuer creates an issuer. The secret is copied.
func NewCredentialIssuer(secret []byte, issuer string, ttl time.Duration) *CredentialIssuer {
	return &CredentialIssuer{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed credential for the account.
func (i *CredentialIssuer) Issue(user *domain.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("%w: nil account", port.ErrCredentialSigningFailed)
	}
	if len(i.secret) == 0 {
		return "", fmt.Errorf("%w: empty signing secret", port.ErrCredentialSigningFailed)
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", port.ErrCredentialSigningFailed, err)
	}
	return signed, nil
}

// CredentialVerifier checks session credentials. It never touches storage.
type CredentialVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCredentialVerifier creates a verifier for credentials minted by an
// issuer with the same secret and issuer name.
func NewCredentialVerifier(secret []byte, issuer string) *CredentialVerifier {
	return &CredentialVerifier{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}
}

// Verify decodes a credential. Errors are one of port.ErrMalformedToken,
// port.ErrBadSignature, port.ErrTokenExpired or port.ErrUnsupportedAlgorithm.
func (v *CredentialVerifier) Verify(tokenString string) (*domain.Identity, error) {
	if tokenString == "" {
		return nil, port.ErrMalformedToken
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		// The key is only released for HS256.
		if token.Method != jwt.SigningMethodHS256 {
			return nil, port.ErrUnsupportedAlgorithm
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	// Valid strictly while now < exp.
	if !v.now().Before(claims.ExpiresAt.Time) {
		return nil, port.ErrTokenExpired
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id", port.ErrMalformedToken)
	}

	identity := &domain.Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Username:  claims.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, port.ErrUnsupportedAlgorithm):
		return port.ErrUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", port.ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return port.ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return port.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Unknown alg header values fail before the key func runs.
		return port.ErrUnsupportedAlgorithm
	default:
		return fmt.Errorf("%w: %w", port.ErrMalformedToken, err)
	}
}
