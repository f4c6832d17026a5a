// Command fake-zakeke is a local stand-in for the Zakeke API used in
// end-to-end runs of merchlab. Point ZAKEKE_TOKEN_URL at /token and
// ZAKEKE_API_URL at the server root.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type request struct {
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
}

type stats struct {
	Count        int64          `json:"count"`
	TokensIssued int64          `json:"tokens_issued"`
	Orders       int64          `json:"orders"`
	DesignCalls  map[string]int `json:"design_calls"`
	LastRequests []request      `json:"last_requests"`
	Since        string         `json:"since"`
}

var (
	mu           sync.Mutex
	count        int64
	tokensIssued int64
	orders       int64
	designCalls  = make(map[string]int)
	lastRequests []request
	since        time.Time
	maxStored    = 50

	clientID        string
	clientSecret    string
	acceptEncoding  string // "header", "body" or "any"
	processingCalls int
	models          map[string]bool
)

func main() {
	since = time.Now().UTC()

	addr := envOr("ADDR", ":8081")
	clientID = envOr("CLIENT_ID", "demo-client")
	clientSecret = envOr("CLIENT_SECRET", "demo-secret")
	acceptEncoding = envOr("ACCEPT_ENCODING", "any")
	processingCalls, _ = strconv.Atoi(envOr("PROCESSING_CALLS", "2"))

	models = make(map[string]bool)
	for _, m := range strings.Split(envOr("MODELS", "1001,1002,1003"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			models[m] = true
		}
	}

	http.HandleFunc("/token", record(tokenHandler))
	http.HandleFunc("/v3/designs/", record(authorized(designHandler)))
	http.HandleFunc("/v1/designs/", record(authorized(outputFilesHandler)))
	http.HandleFunc("/v2/order", record(authorized(orderHandler)))
	http.HandleFunc("/v2/designs", record(authorized(customerDesignsHandler)))
	http.HandleFunc("/v3/products/", record(authorized(productHandler)))
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count, tokensIssued, orders = 0, 0, 0
		designCalls = make(map[string]int)
		lastRequests = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("fake-zakeke listening on %s (accept=%s, processing_calls=%d, models=%d)",
		addr, acceptEncoding, processingCalls, len(models))
	log.Fatal(http.ListenAndServe(addr, nil))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func record(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		mu.Lock()
		count++
		lastRequests = append(lastRequests, request{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    rec.status,
		})
		if len(lastRequests) > maxStored {
			lastRequests = lastRequests[len(lastRequests)-maxStored:]
		}
		mu.Unlock()
	}
}

func authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer fake-") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid bearer token"})
			return
		}
		next(w, r)
	}
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()
	form, err := url.ParseQuery(string(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}

	id, secret, viaHeader := r.BasicAuth()
	if !viaHeader {
		id, secret = form.Get("client_id"), form.Get("client_secret")
	}
	switch {
	case viaHeader && acceptEncoding == "body", !viaHeader && acceptEncoding == "header":
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_client_authentication"})
		return
	case id != clientID || secret != clientSecret:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	mu.Lock()
	tokensIssued++
	n := tokensIssued
	mu.Unlock()

	log.Printf("token #%d issued: access_type=%s visitor=%t customer=%t",
		n, form.Get("access_type"), form.Has("visitorcode"), form.Has("customercode"))
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": fmt.Sprintf("fake-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// designHandler answers 500 for the first PROCESSING_CALLS requests per
// design, the way the real API does while a design is still rendering.
func designHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v3/designs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "design not found"})
		return
	}
	if strings.HasPrefix(id, "missing") {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "design not found"})
		return
	}

	mu.Lock()
	designCalls[id]++
	calls := designCalls[id]
	mu.Unlock()

	if calls <= processingCalls {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "design is being processed"})
		return
	}

	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	if quantity < 1 {
		quantity = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"designID":   id,
		"modelCode":  "1001",
		"name":       "Design " + id,
		"price":      12.5 * float64(quantity),
		"previewUrl": "https://fake-zakeke.local/previews/" + id + ".png",
	})
}

func outputFilesHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/designs/")
	id, ok := strings.CutSuffix(rest, "/outputfiles/zip")
	if !ok || id == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": "https://fake-zakeke.local/files/" + id + ".zip"})
}

func orderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		OrderCode string            `json:"orderCode"`
		Details   []json.RawMessage `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid order payload"})
		return
	}
	if len(payload.Details) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "order has no details"})
		return
	}

	mu.Lock()
	orders++
	n := orders
	mu.Unlock()

	log.Printf("order #%d registered: code=%s details=%d", n, payload.OrderCode, len(payload.Details))
	writeJSON(w, http.StatusOK, map[string]any{"orderID": 900000 + n, "orderCode": payload.OrderCode})
}

func customerDesignsHandler(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customercode")
	if customer == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "customercode is required"})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]string{
		{"designID": customer + "-d1", "modelCode": "1001"},
	})
}

func productHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/v3/products/")
	if !models[code] {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code, "seller": r.URL.Query().Get("seller")})
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	calls := make(map[string]int, len(designCalls))
	for k, v := range designCalls {
		calls[k] = v
	}
	s := stats{
		Count:        count,
		TokensIssued: tokensIssued,
		Orders:       orders,
		DesignCalls:  calls,
		LastRequests: lastRequests,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
