package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/TatisVivas/zakekeSample/internal/analytics"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/session"
	"github.com/TatisVivas/zakekeSample/internal/store"
	"github.com/TatisVivas/zakekeSample/internal/vendor"
)

// issueToken hands the browser-side customizer a vendor token bound to the
// caller's identity. The request body is optional.
func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	var req TokenRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	accessType := domain.AccessTypeC2S
	if req.AccessType != "" {
		accessType = domain.AccessType(strings.ToUpper(req.AccessType))
		if !accessType.Valid() {
			writeError(w, http.StatusBadRequest, "accessType must be S2S, C2S or B2C")
			return
		}
	}
	visitor := req.VisitorCode
	if visitor == "" {
		visitor = id.VisitorID
	}

	token, err := h.tokens.FetchToken(r.Context(), domain.TokenRequest{
		AccessType: accessType,
		VisitorID:  visitor,
		CustomerID: req.CustomerCode,
	})
	if err != nil {
		writeVendorError(w, "token", err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// serverToken is the S2S token used for server-side vendor calls.
func (h *Handler) serverToken(ctx context.Context, id session.Identity) (domain.Token, error) {
	return h.tokens.FetchToken(ctx, domain.TokenRequest{
		AccessType: domain.AccessTypeS2S,
		CustomerID: id.CustomerID,
	})
}

// designQuery parses the shared parameters of the design endpoints and
// acquires the token. It writes the error response itself on failure.
func (h *Handler) designQuery(w http.ResponseWriter, r *http.Request, designID string) (domain.DesignQuery, bool) {
	if h.poller == nil {
		writeError(w, http.StatusServiceUnavailable, "design polling not configured")
		return domain.DesignQuery{}, false
	}
	quantity, err := positiveQueryInt(r, "quantity", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.DesignQuery{}, false
	}

	token, err := h.serverToken(r.Context(), session.Identity{})
	if err != nil {
		writeVendorError(w, "token", err)
		return domain.DesignQuery{}, false
	}
	return domain.DesignQuery{DesignID: designID, Quantity: quantity, Token: token}, true
}

// checkDesign runs one readiness check. The client drives retries using
// the attempt counter and Retry-After from a 202 response.
func (h *Handler) checkDesign(w http.ResponseWriter, r *http.Request, designID string) {
	attempt, err := positiveQueryInt(r, "attempt", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, ok := h.designQuery(w, r, designID)
	if !ok {
		return
	}

	status, err := h.poller.Check(r.Context(), q, attempt)
	h.writeDesignStatus(w, r, status, err)
}

// waitDesign polls within the request until the design settles or the
// client goes away.
func (h *Handler) waitDesign(w http.ResponseWriter, r *http.Request, designID string) {
	q, ok := h.designQuery(w, r, designID)
	if !ok {
		return
	}

	status, err := h.poller.Poll(r.Context(), q)
	h.writeDesignStatus(w, r, status, err)
}

func (h *Handler) writeDesignStatus(w http.ResponseWriter, r *http.Request, status domain.DesignStatus, err error) {
	switch {
	case errors.Is(err, vendor.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "design polling cancelled")
		return
	case err != nil:
		log.Printf("api: design check error: %v", err)
		writeError(w, http.StatusInternalServerError, "design check failed")
		return
	}

	switch status.State {
	case domain.DesignStateReady:
		design := status.Design
		sku := design.ModelCode
		if sku == "" {
			sku = design.DesignID
		}
		h.track(r, analytics.KindDesignReady, sku)

		if len(design.Raw) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(design.Raw); err != nil {
				log.Printf("api: write design error: %v", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, design)

	case domain.DesignStateProcessing:
		delay := h.poller.Delay()
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		writeJSON(w, http.StatusAccepted, DesignProcessingResponse{
			Status:       string(domain.DesignStateProcessing),
			Attempt:      status.Attempt,
			NextAttempt:  status.Attempt + 1,
			RetryAfterMs: delay.Milliseconds(),
		})

	default:
		writeJSON(w, designFailureStatus(status.StatusCode), DesignFailedResponse{
			Status:     string(domain.DesignStateFailed),
			Reason:     status.Reason,
			Attempt:    status.Attempt,
			StatusCode: status.StatusCode,
		})
	}
}

func designFailureStatus(vendorStatus int) int {
	switch vendorStatus {
	case http.StatusUnauthorized, http.StatusNotFound:
		return vendorStatus
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) printFiles(w http.ResponseWriter, r *http.Request, designID string) {
	token, err := h.serverToken(r.Context(), session.Identity{})
	if err != nil {
		writeVendorError(w, "token", err)
		return
	}

	url, err := h.client.GetPrintFilesURL(r.Context(), designID, token)
	if err != nil {
		writeVendorError(w, "print files", err)
		return
	}
	writeJSON(w, http.StatusOK, PrintFilesResponse{URL: url})
}

// registerOrder forwards a checkout payload to the vendor synchronously.
func (h *Handler) registerOrder(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	var payload json.RawMessage
	if !decodeJSON(w, r, &payload) {
		return
	}

	token, err := h.serverToken(r.Context(), id)
	if err != nil {
		writeVendorError(w, "token", err)
		return
	}

	resp, err := h.client.RegisterOrder(r.Context(), payload, token)
	if err != nil {
		writeVendorError(w, "register order", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		log.Printf("api: write order response error: %v", err)
	}
}

// sellerDesigns lists the signed-in customer's saved designs. A transient
// vendor fault answers 202 so the page can retry.
func (h *Handler) sellerDesigns(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "vendor integration not configured")
		return
	}
	id := h.sessions.Identify(w, r)
	if id.CustomerID == "" {
		writeError(w, http.StatusUnauthorized, "sign in to see your designs")
		return
	}

	token, err := h.tokens.FetchToken(r.Context(), domain.TokenRequest{
		AccessType: domain.AccessTypeS2S,
		VisitorID:  id.VisitorID,
		CustomerID: id.CustomerID,
	})
	if err != nil {
		writeVendorError(w, "token", err)
		return
	}

	designs, err := h.client.ListCustomerDesigns(r.Context(), id.CustomerID, token)
	switch {
	case vendor.IsTransient(err):
		log.Printf("api: seller designs: vendor busy, customer=%s: %v", id.CustomerID, err)
		writeJSON(w, http.StatusAccepted, SellerDesignsProcessingResponse{Status: string(domain.DesignStateProcessing)})
		return
	case err != nil:
		writeVendorError(w, "seller designs", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(designs); err != nil {
		log.Printf("api: write designs error: %v", err)
	}
}

func (h *Handler) validateModel(w http.ResponseWriter, r *http.Request) {
	var req ValidateModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductCode == "" {
		writeError(w, http.StatusBadRequest, "productCode is required")
		return
	}

	p, err := h.store.GetProduct(r.Context(), req.ProductCode)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("api: get product error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if errors.Is(err, store.ErrNotFound) || p.ModelCode == "" {
		writeJSON(w, http.StatusNotFound, ModelErrorResponse{
			Error:       "no model code for this product",
			ProductCode: req.ProductCode,
		})
		return
	}

	token, err := h.serverToken(r.Context(), session.Identity{})
	if err != nil {
		writeVendorError(w, "token", err)
		return
	}

	valid, err := h.client.ValidateModelCode(r.Context(), p.ModelCode, token)
	if err != nil {
		writeVendorError(w, "validate model", err)
		return
	}
	if !valid {
		writeJSON(w, http.StatusNotFound, ModelErrorResponse{
			Error:       "model code not found at vendor",
			ProductCode: req.ProductCode,
			ModelCode:   p.ModelCode,
		})
		return
	}

	writeJSON(w, http.StatusOK, ValidateModelResponse{
		Valid:       true,
		ProductCode: req.ProductCode,
		ModelCode:   p.ModelCode,
	})
}
