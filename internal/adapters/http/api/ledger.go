package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/xsrledger/internal/domain/types"
)

// keyHashLen is the hex length of a SHA-512 digest.
const keyHashLen = 128

// LedgerHandler exposes ledger reads and the copy-to-target pass.
type LedgerHandler struct {
	deps Dependencies
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(deps Dependencies) *LedgerHandler {
	return &LedgerHandler{deps: deps}
}

// HandleHistory handles GET /api/ledger/{key_hash}.
func (h *LedgerHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.ledger_history"
	keyHash := chi.URLParam(r, "key_hash")
	if len(keyHash) != keyHashLen {
		writeServiceError(w, wrapKind(op, ErrBadRequest, nil))
		return
	}
	entries, err := h.deps.History(r.Context(), keyHash)
	if err != nil {
		writeServiceError(w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.NewLedgerHistory(keyHash, entries))
}

// HandleCopyTarget handles POST /api/ledger/copy-target.
func (h *LedgerHandler) HandleCopyTarget(w http.ResponseWriter, r *http.Request) {
	const op = "api.copy_target"
	n, err := h.deps.CopyToTarget(r.Context())
	if err != nil {
		writeServiceError(w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.CopyResult{Rows: n})
}
