// Package api exposes the daemon's HTTP control surface: slot assignment,
// window and monitor listings, engine state streaming and MJPEG previews.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vrdesk/ovrly/internal/logger"
	"github.com/vrdesk/ovrly/internal/overlay"
	"github.com/vrdesk/ovrly/internal/preview"
	"github.com/vrdesk/ovrly/internal/sharedmem"
	"github.com/vrdesk/ovrly/internal/window"
)

// Server is the HTTP API server.
type Server struct {
	router    *mux.Router
	engine    *overlay.Manager
	store     *sharedmem.Store
	windowMgr *window.Manager
	preview   *preview.Streamer
	upgrader  websocket.Upgrader
}

// NewServer creates an API server. windowMgr and previewStreamer may be nil
// (headless or preview-disabled deployments); the matching endpoints then
// report unavailable.
func NewServer(engine *overlay.Manager, store *sharedmem.Store, windowMgr *window.Manager, previewStreamer *preview.Streamer) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		engine:    engine,
		store:     store,
		windowMgr: windowMgr,
		preview:   previewStreamer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Slot management
	api.HandleFunc("/slots", s.handleGetSlots).Methods("GET")
	api.HandleFunc("/slots/{slot}", s.handleAssignSlot).Methods("PUT")
	api.HandleFunc("/slots/{slot}", s.handleClearSlot).Methods("DELETE")
	api.HandleFunc("/slots/stream", s.handleSlotStream)

	// Capture targets
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")
	api.HandleFunc("/monitors", s.handleGetMonitors).Methods("GET")

	// Preview
	api.HandleFunc("/preview", s.handlePreview).Methods("GET")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("Starting API server")
	return http.ListenAndServe(addr, s.enableCORS(s.router))
}

// Handler returns the configured HTTP handler for embedding in tests.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SlotRequest is the assignment body for PUT /api/slots/{slot}.
type SlotRequest struct {
	Handle       uint64  `json:"handle"`
	IsMonitor    bool    `json:"isMonitor"`
	Opacity      *uint8  `json:"opacity,omitempty"`
	Placement    *string `json:"placement,omitempty"`
	Interactable *bool   `json:"interactable,omitempty"`
	Frozen       *bool   `json:"frozen,omitempty"`
}

func (s *Server) handleGetSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Slots())
}

func (s *Server) handleAssignSlot(w http.ResponseWriter, r *http.Request) {
	slot, ok := s.slotIndex(w, r)
	if !ok {
		return
	}

	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Handle == 0 {
		http.Error(w, "handle is required", http.StatusBadRequest)
		return
	}

	d := sharedmem.NewDescriptor(req.Handle, req.IsMonitor)
	if req.Opacity != nil {
		if *req.Opacity > 100 {
			http.Error(w, "opacity must be 0-100", http.StatusBadRequest)
			return
		}
		d.Opacity = *req.Opacity
	}
	if req.Placement != nil {
		switch *req.Placement {
		case "world":
			d.Placement = sharedmem.WorldLocked
		case "head":
			d.Placement = sharedmem.HeadLocked
		default:
			http.Error(w, "placement must be \"world\" or \"head\"", http.StatusBadRequest)
			return
		}
	}
	if req.Interactable != nil {
		d.IsInteractable = *req.Interactable
	}
	if req.Frozen != nil {
		d.IsFrozen = *req.Frozen
	}

	s.store.WriteDescriptor(slot, d)
	logger.WithComponent("api").Info().
		Int("slot", slot).
		Uint64("handle", req.Handle).
		Bool("monitor", req.IsMonitor).
		Msg("Assigned overlay slot")

	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleClearSlot(w http.ResponseWriter, r *http.Request) {
	slot, ok := s.slotIndex(w, r)
	if !ok {
		return
	}
	s.store.ClearHandle(slot)
	logger.WithComponent("api").Info().Int("slot", slot).Msg("Cleared overlay slot")
	writeJSON(w, map[string]string{"status": "success"})
}

// handleSlotStream pushes slot snapshots over a websocket at 10 Hz.
func (s *Server) handleSlotStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			msg := struct {
				Slots    []overlay.SlotInfo `json:"slots"`
				HasFocus bool               `json:"hasFocus"`
			}{
				Slots:    s.engine.Slots(),
				HasFocus: s.engine.HasFocus(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	if s.windowMgr == nil {
		http.Error(w, "window enumeration unavailable", http.StatusServiceUnavailable)
		return
	}
	windows, err := s.windowMgr.ListWindows()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, windows)
}

func (s *Server) handleGetMonitors(w http.ResponseWriter, r *http.Request) {
	if s.windowMgr == nil {
		http.Error(w, "monitor enumeration unavailable", http.StatusServiceUnavailable)
		return
	}
	monitors, err := s.windowMgr.ListMonitors()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, monitors)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		http.Error(w, "preview disabled", http.StatusServiceUnavailable)
		return
	}
	s.preview.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"hasFocus": s.engine.HasFocus(),
	})
}

func (s *Server) slotIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil || slot < 0 || slot >= sharedmem.OverlayCount {
		http.Error(w, fmt.Sprintf("slot must be 0-%d", sharedmem.OverlayCount-1), http.StatusBadRequest)
		return 0, false
	}
	return slot, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
