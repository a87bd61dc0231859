package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"token_swap/internal/domain"
	"token_swap/internal/infra/auth"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies read for signature verification.
const maxBodyBytes = 1 << 20

// authenticate verifies the HMAC headers and attaches the principal bound to
// the access key as the caller.
func authenticate(v *auth.Verifier, onReject func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				writeError(w, http.StatusBadRequest, "InvalidRequest", "failed to read body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			principal, err := v.Verify(r.Method, r.URL.EscapedPath(), r.URL.RawQuery, string(body), r.Header)
			if err != nil {
				if onReject != nil {
					onReject()
				}
				writeError(w, http.StatusUnauthorized, domain.ErrorCode(domain.ErrNoCaller), err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(domain.WithCaller(r.Context(), principal)))
		})
	}
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
