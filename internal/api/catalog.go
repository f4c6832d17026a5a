package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TatisVivas/zakekeSample/internal/analytics"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/store"
)

const defaultThumbnail = "/totebag-sample.png"

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, _, err := h.store.ListProducts(r.Context(), 1, DefaultLimit, "")
	if err != nil {
		log.Printf("api: list products error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateProductRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.store.GetProduct(r.Context(), req.Code)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if req.Name == nil {
			writeError(w, http.StatusBadRequest, "name is required for new products")
			return
		}
		p = domain.Product{Code: req.Code, Currency: h.currency}
	case err != nil:
		log.Printf("api: get product error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	applyProductRequest(&p, req)

	if err := h.store.UpsertProduct(r.Context(), p); err != nil {
		log.Printf("api: upsert product error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func applyProductRequest(p *domain.Product, req ProductRequest) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}
	if req.Currency != nil {
		p.Currency = strings.ToUpper(*req.Currency)
	}
	if req.Customizable != nil {
		p.Customizable = *req.Customizable
	}
	if req.ModelCode != nil {
		p.ModelCode = *req.ModelCode
	}
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	products, _, err := h.store.ListProducts(r.Context(), page, CatalogPageSize, search)
	if err != nil {
		log.Printf("api: list catalog error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list catalog")
		return
	}

	origin := h.origin(r)
	items := make([]CatalogItem, len(products))
	for i, p := range products {
		items[i] = CatalogItem{
			Code:      p.Code,
			Name:      p.Name,
			Thumbnail: absoluteURL(origin, p.ImageURL),
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// origin is the configured public base URL, or the request's own origin.
func (h *Handler) origin(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func absoluteURL(origin, image string) string {
	switch {
	case image == "":
		return origin + defaultThumbnail
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		return image
	case strings.HasPrefix(image, "/"):
		return origin + image
	default:
		return origin + "/" + image
	}
}

func (h *Handler) getCatalogOptions(w http.ResponseWriter, r *http.Request, code string) {
	if _, ok := h.productOr404(w, r, code); !ok {
		return
	}
	opts, err := h.store.GetProductOptions(r.Context(), code)
	if err != nil {
		log.Printf("api: get options error: product=%s err=%v", code, err)
		writeError(w, http.StatusInternalServerError, "failed to load options")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) putCatalogOptions(w http.ResponseWriter, r *http.Request, code string) {
	var opts []domain.ProductOption
	if !decodeJSON(w, r, &opts) {
		return
	}
	if err := validateProductOptions(opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.store.UpsertProductOptions(r.Context(), code, opts)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("api: upsert options error: product=%s err=%v", code, err)
		writeError(w, http.StatusInternalServerError, "failed to save options")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) setCustomizable(w http.ResponseWriter, r *http.Request, code string, customizable bool) {
	_, err := h.store.SetProductCustomizable(r.Context(), code, customizable)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("api: set customizable error: product=%s err=%v", code, err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	log.Printf("api: product=%s customizable=%t", code, customizable)
	w.WriteHeader(http.StatusOK)
}

// getConfigurator answers the vendor's configurator lookup. The storefront
// has no configurator rules, so known products get an empty list.
func (h *Handler) getConfigurator(w http.ResponseWriter, r *http.Request, code string) {
	if _, ok := h.productOr404(w, r, code); !ok {
		return
	}
	writeJSON(w, http.StatusOK, []struct{}{})
}

func (h *Handler) productOr404(w http.ResponseWriter, r *http.Request, code string) (domain.Product, bool) {
	p, err := h.store.GetProduct(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return domain.Product{}, false
	}
	if err != nil {
		log.Printf("api: get product error: product=%s err=%v", code, err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return domain.Product{}, false
	}
	return p, true
}

const maxAnalyticsHours = 24 * 31

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request, sku string) {
	if h.analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}

	kind := analytics.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = analytics.KindCartAdd
	}
	switch kind {
	case analytics.KindCartAdd, analytics.KindCartAddCustomized, analytics.KindDesignReady:
	default:
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	hours, err := positiveQueryInt(r, "hours", 24)
	if err != nil || hours > maxAnalyticsHours {
		writeError(w, http.StatusBadRequest, "hours must be between 1 and "+strconv.Itoa(maxAnalyticsHours))
		return
	}

	to := h.now()
	from := to.Add(-time.Duration(hours-1) * time.Hour)
	count, err := h.analytics.Count(r.Context(), kind, sku, from, to)
	if err != nil {
		log.Printf("api: analytics count error: %v", err)
		writeError(w, http.StatusBadGateway, "analytics backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, AnalyticsResponse{SKU: sku, Kind: string(kind), Hours: hours, Count: count})
}

// track records an analytics event without letting a failure reach the caller.
func (h *Handler) track(r *http.Request, kind analytics.Kind, sku string) {
	if h.analytics == nil || sku == "" {
		return
	}
	if err := h.analytics.Record(r.Context(), kind, sku); err != nil {
		log.Printf("api: analytics record error: kind=%s sku=%s err=%v", kind, sku, err)
	}
}
