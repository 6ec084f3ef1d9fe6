package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/services/history"
)

type historyResponse struct {
	Entries []history.Entry `json:"entries"`
	// Next is the cursor for the following page, zero when exhausted.
	Next int64 `json:"next,omitempty"`
}

// assetHistory lists committed events for the asset. Query parameters:
// type (exact, or prefix when ending in "."), after (sequence cursor), limit.
func (h *handlers) assetHistory(store *history.Store) query {
	return func(ctx context.Context, asset crypto.AssetID, r *http.Request) (any, error) {
		if store == nil {
			return nil, errors.New("history store not configured")
		}
		after, err := intQuery(r, "after")
		if err != nil {
			return nil, badRequest{err}
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				return nil, badRequest{errors.New("invalid limit")}
			}
		}
		entries, err := store.List(ctx, history.Query{
			Asset: asset.String(),
			Type:  r.URL.Query().Get("type"),
			After: after,
			Limit: limit,
		})
		if err != nil {
			return nil, err
		}
		out := historyResponse{Entries: entries}
		if entries == nil {
			out.Entries = []history.Entry{}
		}
		if limit > 0 && len(entries) == limit {
			out.Next = entries[len(entries)-1].Seq
		}
		return out, nil
	}
}
