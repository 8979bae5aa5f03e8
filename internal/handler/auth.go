package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/parlour-dev/parlour/backend/internal/auth"
	"github.com/parlour-dev/parlour/backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 验证邮箱和密码
	user, err := h.repository.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.errorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			h.errorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"token": token,
		"user":  auth.IdentityOf(user),
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"user": identityFrom(r),
	})
}

// Logout 把令牌加入黑名单直到其过期，未配置 redis 时只返回成功
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ClaimsCtxKey).(*auth.AuthClaims)

	if h.revoker != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := h.revoker.Revoke(r.Context(), claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	h.messageResponse(w, r, "Logged out successfully")
}
