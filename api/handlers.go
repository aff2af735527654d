package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/photonworks/dngscope/analysis"
	"github.com/photonworks/dngscope/config"
	"github.com/photonworks/dngscope/raw"
	"github.com/photonworks/dngscope/util/log"
)

// AnalyzeRequest is the /analyze request body. Regions defaults to one
// rect covering the whole frame; option fields use the same names the
// preferences window shows and fall back to the loader defaults.
type AnalyzeRequest struct {
	Path         string            `json:"path"`
	Regions      []analysis.Region `json:"regions,omitempty"`
	OutputBits   int               `json:"output_bits,omitempty"`
	WhiteBalance string            `json:"white_balance,omitempty"`
	ManualGains  [3]float64        `json:"manual_gains,omitempty"`
	Gamma        string            `json:"gamma,omitempty"`
	GammaPower   float64           `json:"gamma_power,omitempty"`
	GammaSlope   float64           `json:"gamma_slope,omitempty"`
	Demosaic     string            `json:"demosaic,omitempty"`
}

// AnalyzeResponse is the /analyze response body.
type AnalyzeResponse struct {
	Path         string                 `json:"path"`
	Width        int                    `json:"width"`
	Height       int                    `json:"height"`
	Bits         int                    `json:"bits"`
	Measurements []analysis.Measurement `json:"measurements"`
}

// MeasurementEvent is the message pushed over the WebSocket channel.
type MeasurementEvent struct {
	Type         string                 `json:"type"`
	Path         string                 `json:"path"`
	Bits         int                    `json:"bits"`
	Measurements []analysis.Measurement `json:"measurements"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"app":     config.AppName,
		"version": config.AppVersion,
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	meta, err := raw.ReadMetadata(path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*raw.Metadata
		Summary string `json:"summary"`
	}{meta, meta.Summary()})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	opts, err := req.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := raw.Load(req.Path, opts)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	regions := req.Regions
	if len(regions) == 0 {
		b := res.Full.Bounds()
		regions = []analysis.Region{{
			ID:    0,
			Shape: analysis.ShapeRect,
			Params: analysis.RegionParams{
				X1: float64(b.Dx()),
				Y1: float64(b.Dy()),
			},
		}}
	}

	measurements := analysis.Measure(res.Full, regions)
	log.Debugf("analyze %s: %d regions", req.Path, len(measurements))

	s.Broadcast(MeasurementEvent{
		Type:         "measurement",
		Path:         req.Path,
		Bits:         res.Bits,
		Measurements: measurements,
	})

	b := res.Full.Bounds()
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Path:         req.Path,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Bits:         res.Bits,
		Measurements: measurements,
	})
}

// options translates the request's mode names into loader options. Empty
// fields mean the loader defaults; anything else must be a name the
// preferences window offers.
func (req *AnalyzeRequest) options() (raw.Options, error) {
	opts := raw.Options{
		OutputBits:  req.OutputBits,
		ManualGains: req.ManualGains,
		GammaPower:  req.GammaPower,
		GammaSlope:  req.GammaSlope,
	}
	switch req.WhiteBalance {
	case "", config.WBCamera:
	case config.WBAuto:
		opts.WhiteBalance = raw.WBAuto
	case config.WBManual:
		opts.WhiteBalance = raw.WBManual
	default:
		return opts, fmt.Errorf("unknown white balance %q", req.WhiteBalance)
	}
	switch req.Gamma {
	case "", config.GammaLinear:
	case config.GammaSRGB:
		opts.Gamma = raw.GammaSRGB
	case config.GammaManual:
		opts.Gamma = raw.GammaManual
	default:
		return opts, fmt.Errorf("unknown gamma %q", req.Gamma)
	}
	switch req.Demosaic {
	case "", config.DemosaicBilinear:
	case config.DemosaicMalvar:
		opts.Demosaic = raw.DemosaicMalvar
	default:
		return opts, fmt.Errorf("unknown demosaic %q", req.Demosaic)
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
