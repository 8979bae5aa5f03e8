package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
	"github.com/parlour-dev/parlour/backend/internal/repository"
)

// UserFinder 是 Verifier 需要的存储能力
type UserFinder interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Handshake 是实时连接握手阶段暴露给 Verifier 的能力
type Handshake interface {
	HandshakeCredential() string
	RejectWith(reason string)
}

type Verifier struct {
	issuer  *Issuer
	users   UserFinder
	revoker Revoker
}

// NewVerifier 中 revoker 可以为 nil，此时不检查令牌是否已注销
func NewVerifier(issuer *Issuer, users UserFinder, revoker Revoker) *Verifier {
	return &Verifier{
		issuer:  issuer,
		users:   users,
		revoker: revoker,
	}
}

// VerifyToken 解析令牌并查找对应的用户，不产生任何副作用
func (v *Verifier) VerifyToken(ctx context.Context, tokenString string) (*Identity, *AuthClaims, error) {
	if tokenString == "" {
		return nil, nil, goerr.Wrap(ErrUnauthenticated, "no credential provided")
	}

	claims, err := v.issuer.Parse(tokenString)
	if err != nil {
		return nil, nil, err
	}

	if v.revoker != nil && claims.ID != "" {
		revoked, err := v.revoker.IsRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			// redis 不可用时跳过检查，不阻塞请求
			slog.Warn("无法检查令牌是否已注销", "error", err)
		case revoked:
			return nil, nil, goerr.Wrap(ErrInvalidCredential, "token has been revoked", goerr.V("jti", claims.ID))
		}
	}

	user, err := v.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrUnknownSubject, "user no longer exists", goerr.V("sub", claims.Subject))
		}
		return nil, nil, goerr.Wrap(err, "failed to look up token subject", goerr.V("sub", claims.Subject))
	}

	return IdentityOf(user), claims, nil
}

// BearerToken 从 Authorization 头中提取令牌，格式不对时返回空字符串
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (v *Verifier) VerifyRequest(r *http.Request) (*Identity, *AuthClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil, goerr.Wrap(ErrUnauthenticated, "missing authorization header")
	}

	token := BearerToken(r)
	if token == "" {
		return nil, nil, goerr.Wrap(ErrInvalidCredential, "malformed authorization header")
	}
	return v.VerifyToken(r.Context(), token)
}

// VerifyHandshake 只在身份验证失败时通过 RejectWith 拒绝连接，
// 其他错误原样返回，由调用方按服务器错误处理
func (v *Verifier) VerifyHandshake(ctx context.Context, hs Handshake) (*Identity, error) {
	identity, _, err := v.VerifyToken(ctx, hs.HandshakeCredential())
	if err != nil {
		if IsAuthError(err) {
			hs.RejectWith(RejectReason(err))
		}
		return nil, err
	}
	return identity, nil
}

// IsAuthError 判断错误是否属于身份验证失败（应返回 401）
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrUnknownSubject)
}

// RejectReason 返回可以展示给客户端的错误信息
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "No token provided"
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid token"
	case errors.Is(err, ErrUnknownSubject):
		return "User not found"
	default:
		return "Server error"
	}
}
