package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelab/export-api/internal/job"
	"github.com/framelab/export-api/internal/workspace"
)

// fakeEncoder writes a marker file instead of invoking ffmpeg.
type fakeEncoder struct{}

func (fakeEncoder) EncodeFrameSequence(_ context.Context, _, output string, _ float64) error {
	return os.WriteFile(output, []byte("mp4-bytes"), 0600)
}

func newTestRouter(t *testing.T) (http.Handler, *workspace.Root) {
	t.Helper()

	root, err := workspace.NewRoot(t.TempDir(), nil)
	require.NoError(t, err)

	limits := job.Limits{
		MaxFrames:         50,
		MaxPayloadBytes:   1 << 20,
		MaxDimension:      1024,
		MaxJobMemoryBytes: 256 << 20,
		MaxConcurrentJobs: 2,
		JobTimeout:        30 * time.Second,
	}
	svc := job.NewExportService(root, fakeEncoder{}, limits, nil)
	h := NewHandlers(svc, nil)
	return NewRouter(h, h.logger, DefaultConfig()), root
}

// ptr returns a pointer to v, for optional request fields.
func ptr[T any](v T) *T { return &v }

// pngPayload returns a base64-encoded solid-color PNG.
func pngPayload(t *testing.T, c color.RGBA, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "/export-gif", resp.Endpoints["export-gif"])
	assert.Equal(t, "/export-video", resp.Endpoints["export-video"])
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotZero(t, resp.MemoryBytes)

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err, "timestamp must be RFC 3339")
}

func TestExportGIF(t *testing.T) {
	t.Run("returns a valid animated gif", func(t *testing.T) {
		router, root := newTestRouter(t)

		frames := make([]string, 10)
		for i := range frames {
			frames[i] = pngPayload(t, color.RGBA{R: uint8(20 * i), A: 255}, 50, 50)
		}

		rec := postJSON(t, router, "/export-gif", ExportGIFRequest{
			Frames: frames,
			Width:  ptr(50),
			Height: ptr(50),
			Delay:  ptr(100),
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="animation.gif"`)

		decoded, err := gif.DecodeAll(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Len(t, decoded.Image, 10)
		assert.Equal(t, 0, decoded.LoopCount)

		// Workspace is destroyed once the response is written.
		assert.Equal(t, 0, root.Live())
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/export-gif", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing frames", func(t *testing.T) {
		router, root := newTestRouter(t)

		rec := postJSON(t, router, "/export-gif", map[string]any{"width": 50})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, root.Live())
	})

	t.Run("explicit zero width", func(t *testing.T) {
		router, root := newTestRouter(t)

		rec := postJSON(t, router, "/export-gif", map[string]any{
			"frames": []string{pngPayload(t, color.RGBA{A: 255}, 8, 8)},
			"width":  0,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, root.Live())

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("corrupt frame yields 422 and no partial output", func(t *testing.T) {
		router, root := newTestRouter(t)

		frames := []string{
			pngPayload(t, color.RGBA{A: 255}, 16, 16),
			base64.StdEncoding.EncodeToString([]byte("corrupt")),
		}

		rec := postJSON(t, router, "/export-gif", ExportGIFRequest{Frames: frames, Width: ptr(16), Height: ptr(16), Delay: ptr(100)})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, 0, root.Live())
	})

	t.Run("defaults applied when fields omitted", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := postJSON(t, router, "/export-gif", map[string]any{
			"frames": []string{pngPayload(t, color.RGBA{A: 255}, 8, 8)},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		decoded, err := gif.DecodeAll(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		require.Len(t, decoded.Image, 1)
		// 480x360 default canvas, 250ms default delay (25 GIF units).
		assert.Equal(t, 480, decoded.Image[0].Bounds().Dx())
		assert.Equal(t, 360, decoded.Image[0].Bounds().Dy())
		assert.Equal(t, []int{25}, decoded.Delay)
	})
}

func TestExportVideo(t *testing.T) {
	t.Run("returns mp4 attachment named by animation type", func(t *testing.T) {
		router, root := newTestRouter(t)

		frames := make([]string, 6)
		for i := range frames {
			frames[i] = pngPayload(t, color.RGBA{B: uint8(40 * i), A: 255}, 32, 32)
		}

		rec := postJSON(t, router, "/export-video", ExportVideoRequest{
			Frames:        frames,
			AnimationType: "hearts",
			Duration:      ptr(3.0),
			Width:         ptr(32),
			Height:        ptr(32),
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="hearts.mp4"`)
		assert.Equal(t, "mp4-bytes", rec.Body.String())
		assert.Equal(t, 0, root.Live())
	})

	t.Run("negative duration", func(t *testing.T) {
		router, root := newTestRouter(t)

		rec := postJSON(t, router, "/export-video", map[string]any{
			"frames":   []string{pngPayload(t, color.RGBA{A: 255}, 8, 8)},
			"duration": -2,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, root.Live())
	})
}

func TestRenderVideo(t *testing.T) {
	router, root := newTestRouter(t)

	rec := postJSON(t, router, "/render-video", RenderVideoRequest{
		Image:    pngPayload(t, color.RGBA{G: 180, A: 255}, 64, 64),
		Message:  "hi there",
		Duration: ptr(1.0),
		FPS:      ptr(5),
		Width:    ptr(64),
		Height:   ptr(64),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="hearts.mp4"`)
	assert.Equal(t, 0, root.Live())
}

func TestMethodRouting(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/export-gif", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
