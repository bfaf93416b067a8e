// Package api exposes the portfolio over HTTP as a small JSON API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"divtracker/internal/portfolio"
	"divtracker/internal/provider/cache"
	"divtracker/internal/store"
)

type Handler struct {
	svc       *portfolio.Service
	cache     *cache.Cache
	providers []string
	log       zerolog.Logger
}

func NewHandler(svc *portfolio.Service, c *cache.Cache, providers []string, log zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		cache:     c,
		providers: providers,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// Routes wires every endpoint behind the shared middleware chain.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets", h.listAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets", h.upsertAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets/{symbol}", h.removeAsset).Methods(http.MethodDelete)
	api.HandleFunc("/quote/{symbol}", h.quote).Methods(http.MethodGet)
	api.HandleFunc("/summary", h.summary).Methods(http.MethodGet)
	api.HandleFunc("/monthly", h.monthly).Methods(http.MethodGet)
	api.HandleFunc("/import", h.importCSV).Methods(http.MethodPost)

	return withJSONHeaders(withGzip(recoverPanic(h.log, limitBody(requestLog(h.log, r)))))
}

type healthResponse struct {
	Status       string   `json:"status"`
	CachedQuotes int      `json:"cached_quotes"`
	Providers    []string `json:"providers"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		CachedQuotes: h.cache.Len(),
		Providers:    h.providers,
	})
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Assets(r.Context()))
}

type assetRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *Handler) upsertAsset(w http.ResponseWriter, r *http.Request) {
	var body assetRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.AddAsset(body.Symbol, body.Quantity); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

func (h *Handler) removeAsset(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveAsset(mux.Vars(r)["symbol"])
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown symbol")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, statusOK)
	}
}

// quote never errors; an unresolvable symbol comes back valid=false.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Quote(r.Context(), mux.Vars(r)["symbol"]))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summary(r.Context()))
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Monthly(r.Context()))
}

type importResponse struct {
	Status   string `json:"status"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// importCSV accepts a multipart upload under the "file" field or a raw
// CSV request body.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no file provided")
			return
		}
		defer f.Close()
		if !strings.HasSuffix(strings.ToLower(hdr.Filename), ".csv") {
			writeError(w, http.StatusBadRequest, "file must be CSV")
			return
		}
		src = f
	}
	imported, skipped, err := h.svc.ImportCSV(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Status: "ok", Imported: imported, Skipped: skipped})
}

var statusOK = map[string]string{"status": "ok"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
