package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
)

var (
	// ErrUnauthenticated 表示请求中没有携带凭证
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredential 表示凭证格式错误、签名无效、已过期或已被注销
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnknownSubject 表示凭证有效但对应的用户已不存在
	ErrUnknownSubject = errors.New("unknown subject")
)

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity 是通过凭证解析出的用户身份
type Identity struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func IdentityOf(user *domain.User) *Identity {
	return &Identity{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

type Issuer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, expiration time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// Issue 为用户签发 HS256 令牌，subject 为用户 ID，jti 用于注销
func (i *Issuer) Issue(user *domain.User) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiration)),
		},
	})

	ss, err := token.SignedString(i.secret)
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token", goerr.V("user_id", user.ID))
	}
	return ss, nil
}

// Parse 只验证签名和有效期，不访问存储
func (i *Issuer) Parse(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidCredential, err.Error())
	}

	if claims.Subject == "" {
		return nil, goerr.Wrap(ErrInvalidCredential, "token has no subject")
	}
	return claims, nil
}
