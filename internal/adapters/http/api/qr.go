package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	chartPath     = "/chart"
	defaultQRSize = 320
	maxQRSize     = 1024
)

// QRHandler renders a QR code linking to the chart page.
type QRHandler struct {
	publicURL string
}

// NewQRHandler creates a new QR handler. publicURL may be empty.
func NewQRHandler(publicURL string) *QRHandler {
	return &QRHandler{publicURL: strings.TrimRight(publicURL, "/")}
}

// HandleQR handles GET /qr. The optional size query parameter sets the
// image width in pixels.
func (h *QRHandler) HandleQR(w http.ResponseWriter, r *http.Request) {
	const op = "api.qr"
	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxQRSize {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(h.chartURL(r), qrcode.Medium, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrQRGeneration, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

func (h *QRHandler) chartURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL + chartPath
	}
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + chartPath
}
