package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, mapped
// through core.MapError, and returned either as an HTMX fragment or as JSON.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/casegrid/internal/core"
	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
	"github.com/JonMunkholm/casegrid/internal/logging"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errBadRequest  = errors.New("invalid request body")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes a user-facing response with the given
// status. A zero status is derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	if status == 0 {
		status = statusFor(err, msg)
	}

	log := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error", "error", err)
	} else {
		log.Warn("request error", "error", err)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = errorAlert(msg).Render(r.Context(), w)
		return
	}

	text := msg.Message
	var ve core.ValidationError
	if errors.As(err, &ve) {
		text = ve.Error()
	}
	writeJSON(w, status, ErrorResponse{
		Error:   text,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status of an error.
func statusFor(err error, msg core.UserMessage) int {
	switch {
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrScreenNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrCommitInProgress), errors.Is(err, loader.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManySessions), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errBadRequest),
		errors.Is(err, grid.ErrUnknownColumn),
		errors.Is(err, grid.ErrUnknownRow),
		errors.Is(err, grid.ErrNotEditable),
		errors.Is(err, grid.ErrNotFilterable),
		errors.Is(err, grid.ErrFilterShape),
		errors.Is(err, grid.ErrInvalidPageSize):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidValue), strings.HasPrefix(msg.Code, "VAL"):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// errorAlert renders the HTMX error fragment.
func errorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert" data-code="%s"><p class="alert-message">%s</p>`,
			templ.EscapeString(msg.Code), templ.EscapeString(msg.Message))
		if err != nil {
			return err
		}
		if msg.Action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(msg.Action)); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

// commitStatus renders the HTMX fragment shown after a commit.
func commitStatus(res grid.CommitResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		text := fmt.Sprintf("%d change(s) saved", res.Applied)
		if res.Stale > 0 {
			text += fmt.Sprintf(", %d dropped for cases no longer loaded", res.Stale)
		}
		if res.Pending > 0 {
			text += fmt.Sprintf(", %d still pending", res.Pending)
		}
		_, err := fmt.Fprintf(w, `<div class="alert alert-success" role="status">%s</div>`, templ.EscapeString(text))
		return err
	})
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
