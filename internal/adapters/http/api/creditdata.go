package api

import (
	"errors"
	"net/http"
)

// CreditDataHandler ingests uploaded credit-data XML.
type CreditDataHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewCreditDataHandler creates a new credit-data handler.
func NewCreditDataHandler(deps Dependencies, maxBody int64) *CreditDataHandler {
	return &CreditDataHandler{deps: deps, maxBody: maxBody}
}

// HandleCreditData handles POST /api/credit-data. The XML body is ingested
// as Course records and the batch report is returned.
func (h *CreditDataHandler) HandleCreditData(w http.ResponseWriter, r *http.Request) {
	const op = "api.credit_data"
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	report, err := h.deps.IngestCreditData(r.Context(), body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = wrapKind(op, ErrTooLarge, err)
		}
		writeServiceError(w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
