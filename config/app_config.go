package config

import "fyne.io/fyne/v2"

// Preference keys for the raw processing settings.
const (
	OutputBitsKey    = "proc_output_bits"
	WhiteBalanceKey  = "proc_white_balance"
	ManualGainRKey   = "proc_manual_gain_r"
	ManualGainGKey   = "proc_manual_gain_g"
	ManualGainBKey   = "proc_manual_gain_b"
	GammaModeKey     = "proc_gamma_mode"
	GammaPowerKey    = "proc_gamma_power"
	GammaSlopeKey    = "proc_gamma_slope"
	DemosaicKey      = "proc_demosaic"
	PreviewMaxWKey   = "preview_max_width"
	PreviewMaxHKey   = "preview_max_height"
	APIEnabledKey    = "api_enabled"
	UpdateCheckKey   = "app_update_check_enabled"
	NotificationsKey = "app_notifications_enabled"
)

// White balance mode names, as shown in the preferences window.
const (
	WBCamera = "Camera"
	WBAuto   = "Auto"
	WBManual = "Manual"
)

// Gamma mode names.
const (
	GammaLinear = "Linear"
	GammaSRGB   = "sRGB"
	GammaManual = "Manual"
)

// Demosaic algorithm names.
const (
	DemosaicBilinear = "Bilinear"
	DemosaicMalvar   = "Malvar"
)

// AppConfig holds the application-wide configuration backed by fyne preferences.
type AppConfig struct {
	prefs fyne.Preferences
}

// NewAppConfig creates a new AppConfig instance.
func NewAppConfig(p fyne.Preferences) *AppConfig {
	return &AppConfig{prefs: p}
}

// GetOutputBits returns the output bit depth, always 8 or 16.
func (c *AppConfig) GetOutputBits() int {
	bits := c.prefs.IntWithFallback(OutputBitsKey, 8)
	if bits != 8 && bits != 16 {
		return 8
	}
	return bits
}

// SetOutputBits sets the output bit depth. Values other than 8 or 16 are ignored.
func (c *AppConfig) SetOutputBits(bits int) {
	if bits != 8 && bits != 16 {
		return
	}
	c.prefs.SetInt(OutputBitsKey, bits)
}

// GetWhiteBalance returns the white balance mode.
func (c *AppConfig) GetWhiteBalance() string {
	switch wb := c.prefs.StringWithFallback(WhiteBalanceKey, WBCamera); wb {
	case WBCamera, WBAuto, WBManual:
		return wb
	default:
		return WBCamera
	}
}

// SetWhiteBalance sets the white balance mode.
func (c *AppConfig) SetWhiteBalance(mode string) {
	c.prefs.SetString(WhiteBalanceKey, mode)
}

// GetManualGains returns the manual white balance gains as (R, G, B).
func (c *AppConfig) GetManualGains() (float64, float64, float64) {
	r := c.prefs.FloatWithFallback(ManualGainRKey, 1.0)
	g := c.prefs.FloatWithFallback(ManualGainGKey, 1.0)
	b := c.prefs.FloatWithFallback(ManualGainBKey, 1.0)
	return r, g, b
}

// SetManualGains sets the manual white balance gains.
func (c *AppConfig) SetManualGains(r, g, b float64) {
	c.prefs.SetFloat(ManualGainRKey, r)
	c.prefs.SetFloat(ManualGainGKey, g)
	c.prefs.SetFloat(ManualGainBKey, b)
}

// GetGammaMode returns the gamma mode.
func (c *AppConfig) GetGammaMode() string {
	switch gm := c.prefs.StringWithFallback(GammaModeKey, GammaLinear); gm {
	case GammaLinear, GammaSRGB, GammaManual:
		return gm
	default:
		return GammaLinear
	}
}

// SetGammaMode sets the gamma mode.
func (c *AppConfig) SetGammaMode(mode string) {
	c.prefs.SetString(GammaModeKey, mode)
}

// GetGammaCurve returns the manual gamma curve as (power, slope).
func (c *AppConfig) GetGammaCurve() (float64, float64) {
	power := c.prefs.FloatWithFallback(GammaPowerKey, 1.0)
	slope := c.prefs.FloatWithFallback(GammaSlopeKey, 1.0)
	return power, slope
}

// SetGammaCurve sets the manual gamma curve.
func (c *AppConfig) SetGammaCurve(power, slope float64) {
	c.prefs.SetFloat(GammaPowerKey, power)
	c.prefs.SetFloat(GammaSlopeKey, slope)
}

// GetDemosaic returns the demosaic algorithm name.
func (c *AppConfig) GetDemosaic() string {
	return c.prefs.StringWithFallback(DemosaicKey, DemosaicBilinear)
}

// SetDemosaic sets the demosaic algorithm name.
func (c *AppConfig) SetDemosaic(algo string) {
	c.prefs.SetString(DemosaicKey, algo)
}

// GetPreviewMax returns the maximum preview dimensions as (width, height).
func (c *AppConfig) GetPreviewMax() (int, int) {
	w := c.prefs.IntWithFallback(PreviewMaxWKey, 1400)
	h := c.prefs.IntWithFallback(PreviewMaxHKey, 900)
	if w < 100 {
		w = 100
	}
	if h < 100 {
		h = 100
	}
	return w, h
}

// SetPreviewMax sets the maximum preview dimensions.
func (c *AppConfig) SetPreviewMax(w, h int) {
	c.prefs.SetInt(PreviewMaxWKey, w)
	c.prefs.SetInt(PreviewMaxHKey, h)
}

// GetAPIEnabled returns whether the local automation server should run.
func (c *AppConfig) GetAPIEnabled() bool {
	return c.prefs.BoolWithFallback(APIEnabledKey, false)
}

// SetAPIEnabled sets whether the local automation server should run.
func (c *AppConfig) SetAPIEnabled(enabled bool) {
	c.prefs.SetBool(APIEnabledKey, enabled)
}

// GetUpdateCheckEnabled returns whether the application should check for updates.
func (c *AppConfig) GetUpdateCheckEnabled() bool {
	return c.prefs.BoolWithFallback(UpdateCheckKey, true)
}

// SetUpdateCheckEnabled sets whether the application should check for updates.
func (c *AppConfig) SetUpdateCheckEnabled(enabled bool) {
	c.prefs.SetBool(UpdateCheckKey, enabled)
}

// GetAppNotificationsEnabled returns whether system notifications are enabled.
func (c *AppConfig) GetAppNotificationsEnabled() bool {
	return c.prefs.BoolWithFallback(NotificationsKey, true)
}

// SetAppNotificationsEnabled sets whether system notifications are enabled.
func (c *AppConfig) SetAppNotificationsEnabled(enabled bool) {
	c.prefs.SetBool(NotificationsKey, enabled)
}
