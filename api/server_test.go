package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/photonworks/dngscope/analysis"
	"github.com/photonworks/dngscope/config"
	"github.com/photonworks/dngscope/raw"
)

func writeFixture(t *testing.T, c color.NRGBA) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 20, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 20; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.dng")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, tiff.Encode(f, img, &tiff.Options{Compression: tiff.Uncompressed}))
	return path
}

func TestHealth(t *testing.T) {
	s := NewServer()

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.Contains(t, rr.Body.String(), "DNGScope")
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer()

	req := httptest.NewRequest("OPTIONS", "/analyze", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestAnalyzeDefaultsToFullFrame(t *testing.T) {
	s := NewServer()
	path := writeFixture(t, color.NRGBA{R: 120, G: 60, B: 30, A: 255})

	body, _ := json.Marshal(AnalyzeRequest{Path: path})
	req := httptest.NewRequest("POST", "/analyze", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 20, resp.Width)
	assert.Equal(t, 16, resp.Height)
	assert.Equal(t, 8, resp.Bits)
	require.Len(t, resp.Measurements, 1)
	assert.Equal(t, 20*16, resp.Measurements[0].Pixels)
	assert.InDelta(t, 120, resp.Measurements[0].Mean.R, 1e-9)
}

func TestAnalyzeWithRegions(t *testing.T) {
	s := NewServer()
	path := writeFixture(t, color.NRGBA{R: 10, G: 20, B: 40, A: 255})

	body, _ := json.Marshal(AnalyzeRequest{
		Path: path,
		Regions: []analysis.Region{
			{ID: 5, Shape: analysis.ShapeRect, Params: analysis.RegionParams{X0: 0, Y0: 0, X1: 4, Y1: 4}},
		},
		OutputBits: 16,
	})
	req := httptest.NewRequest("POST", "/analyze", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 16, resp.Bits)
	require.Len(t, resp.Measurements, 1)
	assert.Equal(t, 5, resp.Measurements[0].RegionID)
	assert.Equal(t, 16, resp.Measurements[0].Pixels)
	// 16-bit native scale: 10 in 8-bit is 10*257.
	assert.InDelta(t, 2570, resp.Measurements[0].Mean.R, 1.0)
}

func TestAnalyzeOptionMapping(t *testing.T) {
	req := AnalyzeRequest{
		WhiteBalance: config.WBManual,
		ManualGains:  [3]float64{2, 1, 1},
		Gamma:        config.GammaManual,
		GammaPower:   2.2,
		GammaSlope:   4.5,
		Demosaic:     config.DemosaicMalvar,
	}
	opts, err := req.options()
	require.NoError(t, err)
	assert.Equal(t, raw.WBManual, opts.WhiteBalance)
	assert.Equal(t, [3]float64{2, 1, 1}, opts.ManualGains)
	assert.Equal(t, raw.GammaManual, opts.Gamma)
	assert.Equal(t, 2.2, opts.GammaPower)
	assert.Equal(t, 4.5, opts.GammaSlope)
	assert.Equal(t, raw.DemosaicMalvar, opts.Demosaic)

	// Empty mode names mean the loader defaults.
	opts, err = (&AnalyzeRequest{}).options()
	require.NoError(t, err)
	assert.Equal(t, raw.WBCamera, opts.WhiteBalance)
	assert.Equal(t, raw.GammaLinear, opts.Gamma)
	assert.Equal(t, raw.DemosaicBilinear, opts.Demosaic)
}

func TestAnalyzeErrors(t *testing.T) {
	s := NewServer()

	t.Run("GET not allowed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/analyze", nil)
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("Missing path", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/analyze", strings.NewReader("{}"))
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unknown gamma", func(t *testing.T) {
		body, _ := json.Marshal(AnalyzeRequest{Path: "x.dng", Gamma: "Rec2020"})
		req := httptest.NewRequest("POST", "/analyze", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "unknown gamma")
	})

	t.Run("Unknown white balance", func(t *testing.T) {
		body, _ := json.Marshal(AnalyzeRequest{Path: "x.dng", WhiteBalance: "Tungsten"})
		req := httptest.NewRequest("POST", "/analyze", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Nonexistent file", func(t *testing.T) {
		body, _ := json.Marshal(AnalyzeRequest{Path: filepath.Join(t.TempDir(), "gone.dng")})
		req := httptest.NewRequest("POST", "/analyze", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Unreadable image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.dng")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

		body, _ := json.Marshal(AnalyzeRequest{Path: path})
		req := httptest.NewRequest("POST", "/analyze", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "error")
	})
}

func TestMetaErrors(t *testing.T) {
	s := NewServer()

	req := httptest.NewRequest("GET", "/meta", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest("GET", "/meta?path="+filepath.Join(t.TempDir(), "gone.dng"), nil)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestWebSocketBroadcast(t *testing.T) {
	s := NewServer()
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	// The register happens in the handler goroutine; give it a moment.
	require.Eventually(t, func() bool {
		s.clientsMu.Lock()
		defer s.clientsMu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.Broadcast(MeasurementEvent{Type: "measurement", Path: "x.dng", Bits: 8})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got MeasurementEvent
	require.NoError(t, ws.ReadJSON(&got))
	assert.Equal(t, "measurement", got.Type)
	assert.Equal(t, "x.dng", got.Path)
}
