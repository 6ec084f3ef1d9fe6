package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
)

const requestLimit = 1 << 20 // 1 MiB

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps a ledger failure onto an HTTP status.
func statusFor(err error) int {
	var malformed badRequest
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	switch coreerrors.Kind(err) {
	case "InvalidState", "CustodyViolation", "InvalidDelegate":
		return http.StatusConflict
	case "InvalidExpiry", "OptionExpired", "OptionNotExpired", "NotOverdue", "NotExpired":
		return http.StatusUnprocessableEntity
	case "Unauthorized":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "NumericOverflow", "InvalidAmount":
		return http.StatusBadRequest
	case "InsufficientBalance":
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	var malformed badRequest
	if errors.As(err, &malformed) {
		writeBadRequest(w, malformed.err)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeInternalError(w, err)
		return
	}
	kind := coreerrors.Kind(err)
	if errors.Is(err, nativecommon.ErrModulePaused) {
		kind = "ModulePaused"
	} else if kind == "internal" {
		kind = ""
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "BadRequest"})
}

func writeInternalError(w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("internal error")
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// decodeJSON reads a single JSON object into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request: %w", err)
	}
	if dec.More() {
		return errors.New("decode request: trailing data")
	}
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
