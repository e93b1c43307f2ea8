// Package web serves published calendar artifacts over HTTP in the same
// layout the CDN exposes them.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/source"
	"taiwan-calendar/internal/store"
)

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	store  store.Store
	lister source.Lister
	log    logger.Logger
}

// New creates a Handler serving artifacts from s. lister, usually a
// source.CachedLister, backs /api/resources and may be nil.
func New(s store.Store, lister source.Lister, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{store: s, lister: lister, log: log}
}

// RegisterRoutes registers all HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/years", h.noCache(h.handleYears))
	mux.HandleFunc("GET /api/resources", h.noCache(h.handleResources))
	mux.HandleFunc("GET /api/{file}", h.handleYear)
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *Handler) noCache(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next(w, r)
	}
}

func (h *Handler) handleYear(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".json")
	if !ok {
		http.NotFound(w, r)
		return
	}
	year, err := strconv.Atoi(name)
	if err != nil || year < source.MinYear {
		http.NotFound(w, r)
		return
	}

	data, err := h.store.Get(r.Context(), strconv.Itoa(year))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log.Error("reading artifact", "year", year, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("listing artifacts", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	years := publishedYears(keys)
	writeJSON(w, years)
}

func (h *Handler) handleResources(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		http.Error(w, "resource listing disabled", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	refs, err := h.lister.List(ctx)
	if err != nil {
		h.log.Warn("listing resources", "lister", h.lister.Name(), "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	refs = slices.Clone(refs)
	slices.SortStableFunc(refs, func(a, b model.ResourceRef) int { return a.Year - b.Year })
	writeJSON(w, refs)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// publishedYears extracts the year keys, ascending.
func publishedYears(keys []string) []int {
	years := []int{}
	for _, k := range keys {
		if y, err := strconv.Atoi(k); err == nil {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
