package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"habitbot/internal/auth"
	"habitbot/internal/habits"
	logx "habitbot/pkg/logx"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidPage = errors.New("invalid page")
	errRouteGone   = errors.New("no such route")
)

// badRequestError is a malformed request body.
type badRequestError struct {
	field  string
	detail string
}

func (e *badRequestError) Error() string { return e.detail }

type detail struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps service errors to status codes. Unknown errors are logged
// and answered with a bare 500.
func writeErr(w http.ResponseWriter, r *http.Request, log logx.Logger, err error) {
	var ve *habits.ValidationError
	var bre *badRequestError
	switch {
	case errors.As(err, &ve):
		body := make(map[string][]string, len(ve.Fields)+1)
		for k, v := range ve.Fields {
			body[k] = v
		}
		if len(ve.NonField) > 0 {
			body["non_field_errors"] = ve.NonField
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &bre):
		if bre.field != "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{bre.field: {bre.detail}})
			return
		}
		writeJSON(w, http.StatusBadRequest, detail{bre.detail})
	case errors.Is(err, auth.ErrNoCredentials):
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		writeJSON(w, http.StatusUnauthorized, detail{"Authentication credentials were not provided."})
	case errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		writeJSON(w, http.StatusUnauthorized, detail{"Given token is invalid or expired."})
	case errors.Is(err, habits.ErrPermission):
		writeJSON(w, http.StatusForbidden, detail{"You do not have permission to perform this action."})
	case errors.Is(err, habits.ErrNotFound), errors.Is(err, errRouteGone):
		writeJSON(w, http.StatusNotFound, detail{"Not found."})
	case errors.Is(err, errInvalidPage):
		writeJSON(w, http.StatusNotFound, detail{"Invalid page."})
	case errors.Is(err, habits.ErrProtected):
		writeJSON(w, http.StatusConflict, detail{"Cannot delete: the object is referenced by existing habits."})
	default:
		log.Error("request failed",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.String("request_id", requestIDFrom(r.Context())),
			logx.Err(err),
		)
		writeJSON(w, http.StatusInternalServerError, detail{"A server error occurred."})
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed []string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, detail{fmt.Sprintf("Method %q not allowed.", r.Method)})
}

// decode reads a JSON object body into dst. Unknown keys are ignored.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return &badRequestError{detail: "JSON parse error - request body is empty"}
	case errors.As(err, &maxErr):
		return &badRequestError{detail: "request body too large"}
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return &badRequestError{field: typeErr.Field, detail: "Incorrect type. Expected " + typeErr.Type.String() + "."}
	default:
		return &badRequestError{detail: "JSON parse error - " + err.Error()}
	}
}
