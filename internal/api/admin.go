package api

import (
	"net/http"

	"github.com/Pathwise-Labs/Elicit/internal/engine"
	"github.com/Pathwise-Labs/Elicit/internal/store"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

type AdminHandler struct {
	store  store.Store
	engine *engine.Engine
}

func NewAdminHandler(s store.Store, e *engine.Engine) *AdminHandler {
	return &AdminHandler{store: s, engine: e}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type LibrarySummary struct {
	StaticBeginning []string `json:"static_beginning"`
	StaticEnd       []string `json:"static_end"`
	AdaptivePool    int      `json:"adaptive_pool"`
	Total           int      `json:"total"`
	Dimensions      []string `json:"dimensions"`
}

func (h *AdminHandler) Library(w http.ResponseWriter, r *http.Request) {
	lib := h.engine.Library()
	sum := LibrarySummary{
		AdaptivePool: len(lib.Adaptive()),
		Total:        lib.Len(),
		Dimensions:   vignette.DimensionNames[:],
	}
	for _, v := range lib.Beginning() {
		sum.StaticBeginning = append(sum.StaticBeginning, v.ID)
	}
	for _, v := range lib.End() {
		sum.StaticEnd = append(sum.StaticEnd, v.ID)
	}
	writeJSON(w, http.StatusOK, sum)
}
