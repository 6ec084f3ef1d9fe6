package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

type depositRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type balanceResponse struct {
	Address crypto.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

func (h *handlers) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := requireField("address", req.Address); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := crypto.ParseAddress(req.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := h.context(r.Context())
	defer cancel()
	if err := h.ledger.Deposit(ctx, addr, req.Amount); err != nil {
		h.fail(w, r, err)
		return
	}
	balance, err := h.ledger.Balance(ctx, addr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: balance})
}

func (h *handlers) balance(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := h.context(r.Context())
	defer cancel()
	balance, err := h.ledger.Balance(ctx, addr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: balance})
}

// registerRequest names the asset by id or by a label hashed into one.
type registerRequest struct {
	Asset        string               `json:"asset"`
	Label        string               `json:"label"`
	Creators     []settlement.Creator `json:"creators"`
	SellerFeeBps uint16               `json:"sellerFeeBps"`
}

func (h *handlers) registerAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := req.assetID()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := h.context(r.Context())
	defer cancel()
	meta, err := h.ledger.RegisterAsset(ctx, asset, caller, req.Creators, req.SellerFeeBps)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (req registerRequest) assetID() (crypto.AssetID, error) {
	id := strings.TrimSpace(req.Asset)
	label := strings.TrimSpace(req.Label)
	switch {
	case id != "" && label != "":
		return crypto.AssetID{}, errors.New("asset and label are mutually exclusive")
	case id != "":
		return crypto.ParseAssetID(id)
	case label != "":
		return crypto.NewAssetID([]byte(label)), nil
	default:
		return crypto.AssetID{}, errors.New("asset or label is required")
	}
}

func (h *handlers) assetMetadata(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	return h.ledger.AssetMetadata(ctx, asset)
}

type custodyResponse struct {
	Holding *custody.Holding `json:"holding"`
	// Record is nil while no instrument holds the asset.
	Record *custody.Record `json:"record"`
	Asset  *assets.Metadata `json:"metadata,omitempty"`
}

func (h *handlers) custodyView(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	holding, err := h.ledger.Holding(ctx, asset)
	if err != nil {
		return nil, err
	}
	out := custodyResponse{Holding: holding}
	record, err := h.ledger.CustodyRecord(ctx, asset)
	switch {
	case err == nil:
		out.Record = record
	case !errors.Is(err, coreerrors.ErrNotFound):
		return nil, err
	}
	meta, err := h.ledger.AssetMetadata(ctx, asset)
	switch {
	case err == nil:
		out.Asset = meta
	case !errors.Is(err, coreerrors.ErrNotFound):
		return nil, err
	}
	return out, nil
}

type transferRequest struct {
	To crypto.Address `json:"to"`
}

func (h *handlers) transfer(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req transferRequest) (any, error) {
	if req.To.IsZero() {
		return nil, badRequest{errors.New("to is required")}
	}
	if err := h.ledger.TransferAsset(ctx, asset, caller, req.To); err != nil {
		return nil, err
	}
	return h.ledger.Holding(ctx, asset)
}
