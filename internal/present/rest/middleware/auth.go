package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/poapbot/internal/present/rest/presenter"
)

var tracer = otel.Tracer("auth")

const (
	HeaderRelaySignature = "X-Signature"
	maxRelayBody         = 1 << 20
)

type AuthMiddleware struct {
	relaySecret   string
	realtimeToken string
}

func NewAuthMiddleware(relaySecret, realtimeToken string) *AuthMiddleware {
	return &AuthMiddleware{
		relaySecret:   relaySecret,
		realtimeToken: realtimeToken,
	}
}

// SignRelayBody returns the X-Signature value for body.
func SignRelayBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func verifyRelaySignature(secret string, body []byte, header string) bool {
	sig := strings.TrimSpace(header)
	if sig == "" || secret == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(sig), "sha256=") {
		sig = sig[len("sha256="):]
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyRelay admits requests whose body carries a valid relay HMAC. The body
// is restored for the next handler.
func (s *AuthMiddleware) VerifyRelay(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.VerifyRelay")
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRelayBody))
		if err != nil {
			span.RecordError(err)
			return presenter.BadRequestMessage(c, "unreadable body")
		}
		if !verifyRelaySignature(s.relaySecret, body, c.Request().Header.Get(HeaderRelaySignature)) {
			span.RecordError(errors.New("relay signature mismatch"))
			return presenter.Unauthorized(c, "invalid signature")
		}

		req := c.Request().WithContext(ctx)
		req.Body = io.NopCloser(bytes.NewReader(body))
		c.SetRequest(req)
		return next(c)
	}
}

// RequireBearer admits requests presenting the realtime token, either as a
// Bearer authorization header or as the token query parameter.
func (s *AuthMiddleware) RequireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.RequireBearer")
		defer span.End()

		token := c.QueryParam("token")
		if authHeader := c.Request().Header.Get("authorization"); authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 || split[0] != "Bearer" {
				span.RecordError(errors.New("only Bearer is acceptable"))
				return presenter.Unauthorized(c, "invalid authorization header")
			}
			token = split[1]
		}

		if s.realtimeToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.realtimeToken)) != 1 {
			span.RecordError(errors.New("invalid realtime token"))
			return presenter.Unauthorized(c, "invalid token")
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
