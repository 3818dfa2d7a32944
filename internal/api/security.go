package api

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/auth"
)

// APIKeyHeader carries the key on authenticated requests. A bearer Authorization
// header is accepted as well.
const APIKeyHeader = "api_key"

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key that authenticated the request.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// Authenticate hashes key, looks it up in the repository, and compares the
// stored hash in constant time.
func (h *Handler) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hexHash := auth.HashKey(h.pepper, key)

	info, err := h.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}

	computed, _ := hex.DecodeString(hexHash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, errUnauthorized
	}
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// RequireAPIKey rejects requests without a valid key holding scope.
func (h *Handler) RequireAPIKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := h.Authenticate(r.Context(), requestKey(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden", errForbidden.Error())
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
			ctx = zctx.With(ctx, zap.String("api_key", info.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
