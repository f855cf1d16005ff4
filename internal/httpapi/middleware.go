package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"habitbot/internal/auth"
	"habitbot/internal/habits"
	logx "habitbot/pkg/logx"
)

type requestInfoKey struct{}

// requestInfo is filled in as the request passes through the middleware.
type requestInfo struct {
	id     string
	userID int64
}

func requestIDFrom(ctx context.Context) string {
	if ri, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return ri.id
	}
	return ""
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// withRequestLog assigns a request id, recovers panics and logs one line per
// request.
func withRequestLog(log logx.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ri := &requestInfo{id: id}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, ri))

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panic",
					logx.String("request_id", id),
					logx.String("panic", fmt.Sprint(p)),
					logx.String("stack", string(debug.Stack())),
				)
				if rec.status == 0 {
					writeJSON(rec, http.StatusInternalServerError, detail{"A server error occurred."})
				}
			}
			fields := []logx.Field{
				logx.String("request_id", id),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("status", rec.status),
				logx.Int("bytes", rec.bytes),
				logx.Duration("took", time.Since(start)),
			}
			if ri.userID != 0 {
				fields = append(fields, logx.Int64("user_id", ri.userID))
			}
			if rec.status >= http.StatusInternalServerError {
				log.Warn("http request", fields...)
				return
			}
			log.Debug("http request", fields...)
		}()
		next.ServeHTTP(rec, r)
	})
}

// withTimeout bounds the request context.
func withTimeout(d time.Duration, next http.Handler) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAuth rejects requests without a valid bearer token and stores the
// user in the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeErr(w, r, a.log, err)
			return
		}
		u, err := a.auth.Verify(r.Context(), tok)
		if err != nil {
			a.log.Debug("token rejected", logx.String("request_id", requestIDFrom(r.Context())), logx.Err(err))
			writeErr(w, r, a.log, err)
			return
		}
		if ri, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
			ri.userID = u.ID
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
	})
}

func callerFrom(r *http.Request) habits.Caller {
	u, _ := auth.UserFrom(r.Context())
	return habits.Caller{UserID: u.ID, IsStaff: u.IsStaff}
}
