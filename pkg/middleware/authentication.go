package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	stemcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"
)

type UserClaims struct {
	Sub         string `json:"sub"`
	Email       string `json:"email"`
	TenantID    string `json:"tenant_id"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Tenant is the tenant_id claim, falling back to the first realm role.
func (c UserClaims) Tenant() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	if len(c.RealmAccess.Roles) > 0 {
		return c.RealmAccess.Roles[0]
	}
	return ""
}

// applyClaims puts the caller's tenant and user on the request context.
func applyClaims(ctx context.Context, c echo.Context, claims UserClaims) {
	if tenantID := claims.Tenant(); tenantID != "" {
		ctx = stemcontext.SetTenantID(ctx, tenantID)
	}
	if claims.Sub != "" {
		ctx = stemcontext.SetUserID(ctx, claims.Sub)
	}
	c.SetRequest(c.Request().WithContext(ctx))
}

// ClaimsVerifier verifies a raw bearer token and returns its claims.
type ClaimsVerifier func(ctx context.Context, rawToken string) (UserClaims, error)

// NewOIDCVerifier discovers the issuer and verifies ID tokens issued for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (ClaimsVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(ctx context.Context, rawToken string) (UserClaims, error) {
		var claims UserClaims
		idToken, err := verifier.Verify(ctx, rawToken)
		if err != nil {
			return claims, err
		}
		err = idToken.Claims(&claims)
		return claims, err
	}, nil
}

func Authentication(logger ectologger.Logger, verify ClaimsVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			claims, err := verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			tenantID := claims.Tenant()
			if tenantID == "" {
				logger.WithContext(ctx).Warn("token carries no tenant")
				return echo.NewHTTPError(http.StatusForbidden, "no tenant")
			}

			applyClaims(ctx, c, claims)
			return next(c)
		}
	}
}
