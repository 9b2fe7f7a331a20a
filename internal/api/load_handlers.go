package api

import (
	"fmt"
	"net/http"
	"strconv"

	"schwer/internal/models"
)

// cpu handles:
// - (GET)  current per-core CPU utilisation levels;
// - (POST) CPU load percentage update.
func (h *handler) cpu(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.lc.CPUUsage())
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, fmt.Sprintf("Unable to parse request: %s", err), http.StatusBadRequest)
			return
		}

		pct, err := strconv.ParseInt(r.FormValue("pct"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid percentage value", http.StatusBadRequest)
			return
		}
		if pct < 0 || pct > 100 {
			http.Error(w, "Percentage value must be between 0-100", http.StatusBadRequest)
			return
		}

		h.lc.UpdateCPULoad(pct)
		writeText(w, http.StatusAccepted, "CPU load percentage updated")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// mem handles:
// - (GET)  current memory stats in MB;
// - (POST) memory allocation size update.
func (h *handler) mem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.lc.MemUsage())
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, fmt.Sprintf("Unable to parse request: %s", err), http.StatusBadRequest)
			return
		}

		size, err := strconv.ParseInt(r.FormValue("size"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid size value", http.StatusBadRequest)
			return
		}
		if size < 0 {
			http.Error(w, "Size value must be positive", http.StatusBadRequest)
			return
		}
		if size > models.MaxMemSizeMB {
			http.Error(w, fmt.Sprintf("Size value must not exceed %d", models.MaxMemSizeMB), http.StatusBadRequest)
			return
		}

		h.lc.UpdateMemLoad(size)
		writeText(w, http.StatusAccepted, "Memory allocation size updated")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
