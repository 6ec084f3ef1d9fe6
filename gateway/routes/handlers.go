package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/middleware"
)

var errMissingCaller = errors.New("authenticated caller required")

// handlers binds the HTTP surface to one ledger.
type handlers struct {
	ledger  *ledger.Ledger
	logger  *slog.Logger
	timeout time.Duration
}

func (h *handlers) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := h.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

// mutate decodes a fresh T per request, resolves the asset and the caller
// and runs op. A nil result answers 204.
func mutate[T any](h *handlers, op func(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req T) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrReject(w, r)
		if !ok {
			return
		}
		asset, err := assetParam(r)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		var req T
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		ctx, cancel := h.context(r.Context())
		defer cancel()
		result, err := op(ctx, asset, caller, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if isNil(result) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// fail writes err and logs failures that are not ledger rejections.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.Any("error", err))
	}
	writeLedgerError(w, err)
}

func callerOrReject(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errMissingCaller.Error(), Kind: "Unauthenticated"})
	}
	return caller, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// query is a read-only call on one asset.
type query func(ctx context.Context, asset crypto.AssetID, r *http.Request) (any, error)

func (h *handlers) read(q query) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := assetParam(r)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		ctx, cancel := h.context(r.Context())
		defer cancel()
		result, err := q(ctx, asset, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func assetParam(r *http.Request) (crypto.AssetID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "asset"))
	if raw == "" {
		return crypto.AssetID{}, errors.New("asset is required")
	}
	return crypto.ParseAssetID(raw)
}

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

// badRequest marks a failure as a malformed request rather than a ledger
// rejection.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }
