// Package handler serves decoded bitmaps to the browser viewer over HTTP
// and WebSocket.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rasterlab/bmpview/internal/bmp"
	"github.com/rasterlab/bmpview/internal/config"
	"github.com/rasterlab/bmpview/internal/logging"
)

const (
	webSocketReadBufferSize  = 1024
	webSocketWriteBufferSize = 32 * 1024
)

// Viewer exposes the bitmap directory configured for the server.
type Viewer struct {
	cfg *config.Config
	log *logging.Logger
}

// New creates a viewer handler for the given configuration.
func New(cfg *config.Config, log *logging.Logger) *Viewer {
	return &Viewer{cfg: cfg, log: log}
}

// frameInfo is the metadata sent to the client before pixel data.
type frameInfo struct {
	File     string `json:"file"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	BitDepth int    `json:"bitDepth"`
}

// List responds with the bitmap file names available in the viewer
// directory.
func (v *Viewer) List(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(v.cfg.Viewer.Dir)
	if err != nil {
		v.log.Error("list bitmaps: %v", err)
		http.Error(w, "cannot read bitmap directory", http.StatusInternalServerError)

		return
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".bmp") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	writeJSON(w, files)
}

// Info decodes the requested bitmap and responds with its metadata.
func (v *Viewer) Info(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")

	img, status, msg := v.decode(name)
	if img == nil {
		http.Error(w, msg, status)

		return
	}

	writeJSON(w, frameInfo{
		File:     name,
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
		BitDepth: img.BitDepth,
	})
}

// View upgrades to a WebSocket and sends one frame: a JSON metadata
// message followed by a binary RGBA buffer sized width*height*4, ready for
// canvas ImageData consumption.
func (v *Viewer) View(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  webSocketReadBufferSize,
		WriteBufferSize: webSocketWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// Non-browser clients send no Origin header.
			return OriginAllowed(r.Header.Get("Origin"), v.cfg.Security.AllowedOrigins, r.Host, true)
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.log.Error("upgrade websocket: %v", err)

		return
	}

	defer func() {
		if err := wsConn.Close(); err != nil {
			v.log.Warn("close websocket: %v", err)
		}
	}()

	name := r.URL.Query().Get("file")

	img, _, msg := v.decode(name)
	if img == nil {
		v.log.Warn("decode %q: %s", name, msg)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseUnsupportedData, msg)
		_ = wsConn.WriteMessage(websocket.CloseMessage, closeMsg)

		return
	}

	info := frameInfo{
		File:     name,
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
		BitDepth: img.BitDepth,
	}

	if err := wsConn.WriteJSON(info); err != nil {
		v.log.Error("write frame info: %v", err)

		return
	}

	if err := wsConn.WriteMessage(websocket.BinaryMessage, toRGBA(img)); err != nil {
		v.log.Error("write frame pixels: %v", err)

		return
	}

	v.log.Info("served %s (%dx%d, %d-bit)", name, img.Width, img.Height, img.BitDepth)
}

// decode resolves a file name inside the viewer directory and decodes it,
// mapping decoder errors to HTTP semantics.
func (v *Viewer) decode(name string) (*bmp.Image, int, string) {
	if name == "" {
		return nil, http.StatusBadRequest, "missing file parameter"
	}

	path, ok := v.resolve(name)
	if !ok {
		return nil, http.StatusForbidden, "file outside bitmap directory"
	}

	img, err := bmp.DecodeFile(path)
	if err != nil {
		switch {
		case errors.Is(err, bmp.ErrNotFound):
			return nil, http.StatusNotFound, "bitmap not found"
		case errors.Is(err, bmp.ErrTooLarge):
			return nil, http.StatusRequestEntityTooLarge, "bitmap too large"
		default:
			return nil, http.StatusUnprocessableEntity, err.Error()
		}
	}

	if img.Width > v.cfg.Viewer.MaxWidth || img.Height > v.cfg.Viewer.MaxHeight {
		return nil, http.StatusRequestEntityTooLarge, "bitmap exceeds configured dimensions"
	}

	return img, 0, ""
}

// resolve joins name onto the viewer directory and rejects any path that
// escapes it.
func (v *Viewer) resolve(name string) (string, bool) {
	dir := filepath.Clean(v.cfg.Viewer.Dir)
	path := filepath.Clean(filepath.Join(dir, name))

	if path != dir && !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return "", false
	}

	return path, true
}

// toRGBA expands the decoded buffer to 4 channels for the canvas. 32-bit
// sources are already RGBA; 3-channel buffers gain opaque alpha.
func toRGBA(img *bmp.Image) []byte {
	if img.Channels == 4 {
		return img.Pix
	}

	out := make([]byte, img.Width*img.Height*4)
	for i := 0; i < img.Width*img.Height; i++ {
		out[i*4] = img.Pix[i*3]
		out[i*4+1] = img.Pix[i*3+1]
		out[i*4+2] = img.Pix[i*3+2]
		out[i*4+3] = 0xFF
	}

	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response: %v", err)
	}
}

// OriginAllowed reports whether a browser origin may talk to the server.
// An empty allow list falls back to same-host matching. allowEmpty decides
// requests carrying no Origin header: WebSocket upgrades accept them,
// CORS grants do not.
func OriginAllowed(origin string, allowed []string, host string, allowEmpty bool) bool {
	if origin == "" {
		return allowEmpty
	}

	for _, a := range allowed {
		if strings.TrimSpace(a) == origin {
			return true
		}
	}

	if len(allowed) == 0 {
		return strings.Contains(origin, host)
	}

	return false
}
