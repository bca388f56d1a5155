package antigravity

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// requestError is a failure that happened before the backend was called.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequest(err error) error {
	return &requestError{status: http.StatusBadRequest, err: err}
}

func internalError(err error) error {
	return &requestError{status: http.StatusInternalServerError, err: err}
}

func statusOf(err error) int {
	var re *requestError
	if errors.As(err, &re) {
		return re.status
	}
	return http.StatusInternalServerError
}

// apiError is the error body of the public Gemini API.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func grpcStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	default:
		return "INTERNAL"
	}
}

func writeError(rw http.ResponseWriter, code int, message string) {
	body, _ := json.Marshal(apiError{Error: apiErrorBody{
		Code:    code,
		Message: message,
		Status:  grpcStatus(code),
	}})
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_, _ = rw.Write(body)
}

func (p *Proxy) fail(rw http.ResponseWriter, log *zap.Logger, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		log.Error("Request processing failed", zap.Error(err))
	} else {
		log.Warn("Rejected request", zap.Error(err))
	}
	writeError(rw, code, err.Error())
}
