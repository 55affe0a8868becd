// Package preview streams composited overlay content as Motion JPEG over
// HTTP so a slot's output can be checked in a browser without a headset.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"

	"golang.org/x/image/draw"

	"github.com/vrdesk/ovrly/internal/logger"
)

// maxPreviewWidth caps the streamed frame width; larger captures are
// downscaled before encoding.
const maxPreviewWidth = 1280

// Streamer fans composited frames out to connected MJPEG clients.
type Streamer struct {
	mu      sync.RWMutex
	running bool
	clients map[chan []byte]struct{}
}

// NewStreamer creates a stopped streamer.
func NewStreamer() *Streamer {
	return &Streamer{clients: make(map[chan []byte]struct{})}
}

// Start enables frame broadcasting.
func (s *Streamer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("preview streamer already running")
	}
	s.running = true
	logger.WithComponent("preview").Info().Msg("Preview streamer started")
	return nil
}

// Stop disconnects all clients.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	logger.WithComponent("preview").Info().Msg("Preview streamer stopped")
	return nil
}

// IsRunning reports whether the streamer accepts frames.
func (s *Streamer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// WriteFrame encodes a frame and broadcasts it. Slow clients skip frames
// rather than stall the engine.
func (s *Streamer) WriteFrame(frame *image.RGBA) error {
	if !s.IsRunning() {
		return fmt.Errorf("preview streamer not running")
	}

	if w := frame.Bounds().Dx(); w > maxPreviewWidth {
		h := frame.Bounds().Dy() * maxPreviewWidth / w
		scaled := image.NewRGBA(image.Rect(0, 0, maxPreviewWidth, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), frame, frame.Bounds(), draw.Src, nil)
		frame = scaled
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	data := buf.Bytes()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// ServeHTTP streams multipart JPEG frames to one client until it hangs up.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.IsRunning() {
		http.Error(w, "preview not running", http.StatusServiceUnavailable)
		return
	}

	ch := make(chan []byte, 4)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	flusher, canFlush := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
