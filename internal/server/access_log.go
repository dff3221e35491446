package server

import (
	"context"
	"net/http"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/middleware"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

type requestUserKey struct{}

// requestUser is filled in by recordIdentity once the authenticator has run,
// which happens further down the handler tree than the access log.
type requestUser struct {
	username string
}

func recordIdentity(_ http.ResponseWriter, r *http.Request) (*http.Request, middleware.Decision) {
	if holder, ok := r.Context().Value(requestUserKey{}).(*requestUser); ok {
		if id, ok := tripAuth.IdentityFromContext(r.Context()); ok {
			holder.username = id.Username
		}
	}
	return r, middleware.Continue
}

// accessLog writes one entry per request, at Warn for 4xx and Error for 5xx.
func accessLog(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &requestUser{}
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestUserKey{}, holder)))

			fields := logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.statusCode,
				"duration_ms": float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond),
			}
			if holder.username != "" {
				fields["username"] = holder.username
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				fields["request_id"] = reqID
			}

			entry := logger.WithFields(fields)
			switch {
			case rec.statusCode >= 500:
				entry.Error("http_request")
			case rec.statusCode >= 400:
				entry.Warn("http_request")
			default:
				entry.Info("http_request")
			}
		})
	}
}
