package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Serves the render stream and a small control API:
//   GET  /ws         render surface websocket (render_init + render frames)
//   POST /api/event  one JSON event envelope, same format as IPC
//   GET  /healthz    liveness plus host link / surface client status
// ============================================================================

// maxEventBody bounds POST /api/event payloads.
const maxEventBody = 64 << 10

type healthStatus struct {
	Status         string `json:"status"`
	HostConnected  bool   `json:"host_connected"`
	SurfaceClients int    `json:"surface_clients"`
}

// newHTTPHandler builds the mux. link may be nil when no host is configured.
func newHTTPHandler(ws *Server, link *HostLink, events chan<- Event, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	ws.Register(mux, "/ws")

	mux.HandleFunc("POST /api/event", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ipcError("read body: %v", err))
			return
		}
		ev, err := UnmarshalEvent(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ipcError("parse event: %v", err))
			return
		}

		select {
		case events <- ev:
			logger.Debug("HTTP event accepted", "type", fmt.Sprintf("%T", ev))
			writeJSON(w, http.StatusAccepted, IPCResponse{Status: "ok"})
		default:
			writeJSON(w, http.StatusServiceUnavailable, ipcError("event queue full"))
		}
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		st := healthStatus{Status: "ok", SurfaceClients: ws.Hub().ClientCount()}
		if link != nil {
			st.HostConnected = link.Connected()
		}
		writeJSON(w, http.StatusOK, st)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// runHTTPServer serves handler on port and shuts down gracefully when ctx is
// canceled.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "port", port)
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
