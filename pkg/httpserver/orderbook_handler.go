package httpserver

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

const (
	defaultBookDepth = 20
	maxBookDepth     = 100
)

// bookHandler serves live orderbook snapshots straight from the venue. The
// endpoint exists for operators inspecting a leg before confirming a cycle;
// every request costs one venue REST call.
type bookHandler struct {
	books  BookSource
	logger *zap.Logger
}

// handleOrderbook handles GET /api/v1/orderbook?symbol=KCS-USDT&depth=20
// requests.
func (h *bookHandler) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(h.logger, w, "missing required query parameter: symbol", http.StatusBadRequest)
		return
	}

	_, _, err := types.ParseSymbol(symbol)
	if err != nil {
		writeError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	depth := defaultBookDepth

	if raw := r.URL.Query().Get("depth"); raw != "" {
		depth, err = strconv.Atoi(raw)
		if err != nil || depth < 1 || depth > maxBookDepth {
			writeError(h.logger, w, "depth must be an integer between 1 and 100", http.StatusBadRequest)
			return
		}
	}

	h.logger.Debug("orderbook-request-received", zap.String("symbol", symbol), zap.Int("depth", depth))

	snapshot, err := h.books.GetOrderbook(r.Context(), symbol, depth)
	if err != nil {
		if types.KindOf(err) == types.ErrNoLiquidity {
			writeError(h.logger, w, "no book for symbol", http.StatusNotFound)
			return
		}

		h.logger.Error("orderbook-fetch-failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(h.logger, w, "venue error fetching orderbook", http.StatusBadGateway)

		return
	}

	writeJSON(h.logger, w, http.StatusOK, snapshot)
}
