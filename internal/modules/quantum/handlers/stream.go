package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
)

const writeWait = 10 * time.Second

// StreamMessage is one frame of the optimization stream.
type StreamMessage struct {
	Type  string      `json:"type"` // iteration, result or error
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// HandleOptimizeStream handles GET /api/quantum/optimize/stream. The query
// carries molecule and optionally max_iterations; every iteration is pushed
// as it completes, followed by the final report.
func (h *Handler) HandleOptimizeStream(w http.ResponseWriter, r *http.Request) {
	molecule := r.URL.Query().Get("molecule")
	if molecule == "" {
		http.Error(w, "molecule is required", http.StatusBadRequest)
		return
	}
	maxIterations := 0
	if v := r.URL.Query().Get("max_iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid max_iterations", http.StatusBadRequest)
			return
		}
		maxIterations = n
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	// The socket, not the request timeout, bounds the run. CloseRead cancels
	// ctx once the client goes away.
	ctx := conn.CloseRead(context.WithoutCancel(r.Context()))

	log := h.log.With().Str("molecule", molecule).Logger()
	log.Info().Msg("Optimization stream opened")

	send := func(msg StreamMessage) error {
		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		defer cancel()
		return wsjson.Write(writeCtx, conn, msg)
	}

	observer := func(entry optimization.HistoryEntry) {
		if err := send(StreamMessage{Type: "iteration", Data: entry}); err != nil {
			log.Debug().Err(err).Int("iteration", entry.Iteration).Msg("Failed to push iteration")
		}
	}

	report, err := h.driver.WithMaxIterations(maxIterations).Run(ctx, molecule, observer)
	if err != nil {
		log.Warn().Err(err).Msg("Streamed VQE run failed")
		_ = send(StreamMessage{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "run failed")
		return
	}

	if err := send(StreamMessage{Type: "result", Data: reportData(report)}); err != nil {
		log.Debug().Err(err).Msg("Failed to push result")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
