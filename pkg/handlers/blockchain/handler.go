package blockchain

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/de-tools/report-ledger/pkg/adapters"
	"github.com/de-tools/report-ledger/pkg/models/api"
	"github.com/de-tools/report-ledger/pkg/models/domain"
	"github.com/de-tools/report-ledger/pkg/services/canonical"
	"github.com/de-tools/report-ledger/pkg/services/ledger"
	"github.com/de-tools/report-ledger/pkg/services/report"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	ServiceName       = "blockchain"
	routerServiceName = "blockchain-router"

	// upper bound on request bodies; reports carry their order list
	maxBodyBytes = 8 << 20
)

var errEmptyBody = errors.New("no report data provided")

type Handler struct {
	reports report.Service
}

func NewHandler(reports report.Service) *Handler {
	return &Handler{reports: reports}
}

func (h *Handler) MintReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.MintReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, api.ErrorResponse{Detail: err.Error()})
		return
	}
	if strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		writeJSON(w, r, http.StatusBadRequest, api.ErrorResponse{Detail: "startDate and endDate are required"})
		return
	}

	record, err := h.reports.Commit(ctx, adapters.MapApiMintRequestToDomainReport(req))
	if err != nil {
		var commitErr *report.CommitError
		switch {
		case errors.Is(err, canonical.ErrSerialization):
			writeJSON(w, r, http.StatusBadRequest, api.ErrorResponse{Detail: err.Error()})
		case errors.As(err, &commitErr):
			writeJSON(w, r, http.StatusInternalServerError, api.ErrorResponse{
				Detail: err.Error(),
				Reason: string(commitErr.Reason),
			})
		default:
			logger.Error().Err(err).Msg("unexpected mint failure")
			writeJSON(w, r, http.StatusInternalServerError, api.ErrorResponse{Detail: "Internal server error: " + err.Error()})
		}
		return
	}

	writeJSON(w, r, http.StatusOK, adapters.MapDomainCommitmentToApiMint(*record))
}

func (h *Handler) ReportHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.ReportHashRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, api.ErrorResponse{Detail: err.Error()})
		return
	}

	record, err := h.reports.LatestByPeriod(ctx, domain.Period{Start: req.StartDate, End: req.EndDate})
	if err != nil {
		logger.Error().
			Err(err).
			Str("start_date", req.StartDate).
			Str("end_date", req.EndDate).
			Msg("failed to fetch report hash")
		writeJSON(w, r, http.StatusInternalServerError, api.ErrorResponse{Detail: "Failed to fetch report hash"})
		return
	}

	writeJSON(w, r, http.StatusOK, adapters.MapDomainCommitmentToApiHash(record))
}

// LedgerHash reads the hash the contract holds for a report id.
func (h *Handler) LedgerHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	rawID := chi.URLParam(r, "id")

	id, ok := new(big.Int).SetString(rawID, 10)
	if !ok || id.Sign() < 0 {
		writeJSON(w, r, http.StatusBadRequest, api.ErrorResponse{Detail: "report id must be a non-negative integer"})
		return
	}

	hash, err := h.reports.LookupHash(ctx, id)
	switch {
	case errors.Is(err, ledger.ErrReportNotFound):
		writeJSON(w, r, http.StatusNotFound, api.LedgerHashResponse{Success: false, ID: id.String()})
	case err != nil:
		logger.Error().Err(err).Str("id", rawID).Msg("failed to look up report hash on ledger")
		writeJSON(w, r, http.StatusInternalServerError, api.ErrorResponse{Detail: "Failed to look up report hash"})
	default:
		writeJSON(w, r, http.StatusOK, api.LedgerHashResponse{Success: true, ID: id.String(), Hash: hash})
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, api.ServiceInfo{Message: "Blockchain Service is running", Service: ServiceName})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, api.HealthResponse{Status: "healthy", Service: ServiceName})
}

func (h *Handler) RouterHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, api.HealthResponse{Status: "healthy", Service: routerServiceName})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	// keep order numbers in their original decimal form
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("status", status).
			Msg("failed to encode response")
	}
}
