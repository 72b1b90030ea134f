package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tripquote/internal/app"
	"tripquote/internal/domain"
	"tripquote/internal/pricing"
)

type Handlers struct {
	Quotes  *app.QuoteService
	Pricing *app.PricingService
	Catalog domain.CatalogRepository
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/catalog/{id}", h.getItem)
	s.mux.Post("/v1/pricing/resolve", h.resolvePrice)

	s.mux.Post("/v1/quotes", h.createQuote)
	s.mux.Get("/v1/quotes/{id}", h.getQuote)
	s.mux.Post("/v1/quotes/{id}/items", h.addItem)
	s.mux.Delete("/v1/quotes/{id}/items/{itemID}", h.removeItem)
	s.mux.Put("/v1/quotes/{id}/markup", h.updateMarkup)
	s.mux.Post("/v1/quotes/{id}/price", h.priceQuote)
	s.mux.Post("/v1/quotes/{id}/freeze", h.freezeQuote)
	s.mux.Post("/v1/quotes/{id}/accept", h.transition((*app.QuoteService).Accept))
	s.mux.Post("/v1/quotes/{id}/reject", h.transition((*app.QuoteService).Reject))
	s.mux.Post("/v1/quotes/{id}/expire", h.transition((*app.QuoteService).Expire))
}

// ---- request payloads ----

type lineRequestDTO struct {
	ItemID   int64  `json:"item_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Quantity int    `json:"quantity"`
	Pax      int    `json:"pax"`
}

func (d lineRequestDTO) toDomain() (pricing.LineRequest, error) {
	start, err := time.Parse("2006-01-02", d.Start)
	if err != nil {
		return pricing.LineRequest{}, domain.ErrInvalidDateRange
	}
	end, err := time.Parse("2006-01-02", d.End)
	if err != nil {
		return pricing.LineRequest{}, domain.ErrInvalidDateRange
	}
	return pricing.LineRequest{ItemID: d.ItemID, Start: start, End: end, Quantity: d.Quantity, Pax: d.Pax}, nil
}

type markupDTO struct {
	Type  string `json:"type"`  // PERCENTAGE | FIXED
	Value string `json:"value"` // decimal: percent, or fixed minor units
}

func (d markupDTO) toDomain() (domain.MarkupType, decimal.Decimal, error) {
	mv, err := decimal.NewFromString(d.Value)
	if err != nil {
		return "", decimal.Decimal{}, errors.New("markup value must be a decimal string")
	}
	switch d.Type {
	case string(domain.MarkupFixed):
		return domain.MarkupFixed, mv, nil
	case string(domain.MarkupPercentage), "":
		return domain.MarkupPercentage, mv, nil
	default:
		return "", decimal.Decimal{}, errors.New("markup type must be PERCENTAGE or FIXED")
	}
}

// ---- handlers ----

func (h *Handlers) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	it, err := h.Catalog.GetItem(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handlers) resolvePrice(w http.ResponseWriter, r *http.Request) {
	var body lineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeErr(w, err)
		return
	}
	qi, err := h.Pricing.ResolvePrice(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qi)
}

func (h *Handlers) createQuote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgentID int64     `json:"agent_id"`
		Markup  markupDTO `json:"markup"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	mt, mv, err := body.Markup.toDomain()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Markup", err.Error())
		return
	}
	q, err := h.Quotes.CreateDraft(r.Context(), body.AgentID, mt, mv)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handlers) getQuote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	q, err := h.Quotes.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	etag, body, err := calcETagAndBody(q)
	if err != nil {
		writeErr(w, err)
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getQuote body")
	}
}

func (h *Handlers) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body lineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeErr(w, err)
		return
	}
	q, err := h.Quotes.AddItem(r.Context(), id, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "itemID must be a number")
		return
	}
	q, err := h.Quotes.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) updateMarkup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body markupDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	mt, mv, err := body.toDomain()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Markup", err.Error())
		return
	}
	q, err := h.Quotes.UpdateMarkup(r.Context(), id, mt, mv)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// priceQuote previews totals for an arbitrary selection set without touching
// the stored quote.
func (h *Handlers) priceQuote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgentID int64            `json:"agent_id"`
		Items   []lineRequestDTO `json:"items"`
		Markup  markupDTO        `json:"markup"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	mt, mv, err := body.Markup.toDomain()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Markup", err.Error())
		return
	}
	reqs := make([]pricing.LineRequest, 0, len(body.Items))
	for _, dto := range body.Items {
		req, err := dto.toDomain()
		if err != nil {
			writeErr(w, err)
			return
		}
		reqs = append(reqs, req)
	}
	totals, items, err := h.Pricing.PriceQuote(r.Context(), body.AgentID, reqs, mt, mv)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Totals domain.QuoteTotals `json:"totals"`
		Items  []domain.QuoteItem `json:"items"`
	}{totals, items})
}

func (h *Handlers) freezeQuote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body struct {
		ExpectedVersion int64 `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	q, err := h.Quotes.Freeze(r.Context(), id, body.ExpectedVersion)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) transition(op func(*app.QuoteService, context.Context, int64) (domain.Quote, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
			return
		}
		q, err := op(h.Quotes, r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps the error taxonomy onto HTTP statuses. Invariant violations
// stay opaque: the detail is the sentinel's text, never computation state.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrAgentNotFound),
		errors.Is(err, domain.ErrQuoteNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrPaxOutOfRange),
		errors.Is(err, domain.ErrRoomCapacityExceeded),
		errors.Is(err, domain.ErrMarkupNegative),
		errors.Is(err, domain.ErrMarkupExceedsCeiling):
		writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrQuoteFrozen):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error in HTTP layer")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "internal error")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body, nil
}
