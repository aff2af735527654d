package ui

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/photonworks/dngscope/config"
)

// showPreferencesWindow creates and displays the preferences window. Raw
// processing settings take effect when the current image is reprocessed,
// which the Apply button triggers.
func (sa *ScopeApp) showPreferencesWindow() {
	prefsWindow := sa.app.NewWindow(fmt.Sprintf("%s Preferences", config.AppName))
	prefsWindow.Resize(fyne.NewSize(560, 680))
	prefsWindow.CenterOnScreen()

	body := container.NewVBox()

	body.Add(createSectionTitleLabel("Raw Processing"))
	body.Add(createSettingDescriptionLabel("Following settings control how DNG sensor data is developed into the displayed image."))

	sa.addOutputBitsSetting(body)
	sa.addWhiteBalanceSettings(body)
	sa.addGammaSettings(body)
	sa.addDemosaicSetting(body)

	body.Add(widget.NewSeparator())
	body.Add(createSectionTitleLabel("Preview"))
	sa.addPreviewSettings(body)

	body.Add(widget.NewSeparator())
	body.Add(createSectionTitleLabel("Application"))
	sa.addApplicationSettings(body)

	applyButton := widget.NewButton("Apply to Current Image", func() {
		sa.reloadImage()
	})
	closeButton := widget.NewButton("Close", func() {
		prefsWindow.Close()
	})
	footer := container.NewHBox(applyButton, layout.NewSpacer(), closeButton)

	prefsWindow.SetContent(container.NewBorder(nil, footer, nil, nil, container.NewVScroll(body)))
	prefsWindow.Show()
}

func (sa *ScopeApp) addOutputBitsSetting(body *fyne.Container) {
	options := []string{"8", "16"}
	sel := widget.NewSelect(options, func(s string) {
		if bits, err := strconv.Atoi(s); err == nil {
			sa.cfg.SetOutputBits(bits)
		}
	})
	sel.SetSelected(strconv.Itoa(sa.cfg.GetOutputBits()))

	body.Add(widget.NewSeparator())
	body.Add(createSettingTitleLabel("Output Bit Depth:"))
	body.Add(createSettingDescriptionLabel("Bits per channel of the developed image. 16 keeps more of the sensor range."))
	body.Add(sel)
}

func (sa *ScopeApp) addWhiteBalanceSettings(body *fyne.Container) {
	gainEntries := container.NewGridWithColumns(3,
		newGainEntry("R", sa.cfg, 0),
		newGainEntry("G", sa.cfg, 1),
		newGainEntry("B", sa.cfg, 2),
	)
	if sa.cfg.GetWhiteBalance() != config.WBManual {
		gainEntries.Hide()
	}

	modes := []string{config.WBCamera, config.WBAuto, config.WBManual}
	sel := widget.NewSelect(modes, func(s string) {
		sa.cfg.SetWhiteBalance(s)
		if s == config.WBManual {
			gainEntries.Show()
		} else {
			gainEntries.Hide()
		}
	})
	sel.SetSelected(sa.cfg.GetWhiteBalance())

	body.Add(widget.NewSeparator())
	body.Add(createSettingTitleLabel("White Balance:"))
	body.Add(createSettingDescriptionLabel("Camera uses the gains recorded at capture, Auto derives them from the image, Manual applies the gains below."))
	body.Add(sel)
	body.Add(gainEntries)
}

// newGainEntry builds one manual white balance gain entry. idx selects the
// R, G or B channel.
func newGainEntry(label string, cfg *config.AppConfig, idx int) fyne.CanvasObject {
	r, g, b := cfg.GetManualGains()
	gains := [3]float64{r, g, b}

	entry := widget.NewEntry()
	entry.SetText(strconv.FormatFloat(gains[idx], 'f', 2, 64))
	entry.OnChanged = func(s string) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return
		}
		cr, cg, cb := cfg.GetManualGains()
		cur := [3]float64{cr, cg, cb}
		cur[idx] = v
		cfg.SetManualGains(cur[0], cur[1], cur[2])
	}

	return container.NewBorder(nil, nil, widget.NewLabel(label), nil, entry)
}

func (sa *ScopeApp) addGammaSettings(body *fyne.Container) {
	power, slope := sa.cfg.GetGammaCurve()

	powerEntry := widget.NewEntry()
	powerEntry.SetText(strconv.FormatFloat(power, 'f', 3, 64))
	slopeEntry := widget.NewEntry()
	slopeEntry.SetText(strconv.FormatFloat(slope, 'f', 3, 64))

	saveCurve := func(string) {
		p, errP := strconv.ParseFloat(powerEntry.Text, 64)
		s, errS := strconv.ParseFloat(slopeEntry.Text, 64)
		if errP != nil || errS != nil || p <= 0 || s <= 0 {
			return
		}
		sa.cfg.SetGammaCurve(p, s)
	}
	powerEntry.OnChanged = saveCurve
	slopeEntry.OnChanged = saveCurve

	curveEntries := container.NewGridWithColumns(2,
		container.NewBorder(nil, nil, widget.NewLabel("Power"), nil, powerEntry),
		container.NewBorder(nil, nil, widget.NewLabel("Slope"), nil, slopeEntry),
	)
	if sa.cfg.GetGammaMode() != config.GammaManual {
		curveEntries.Hide()
	}

	modes := []string{config.GammaLinear, config.GammaSRGB, config.GammaManual}
	sel := widget.NewSelect(modes, func(s string) {
		sa.cfg.SetGammaMode(s)
		if s == config.GammaManual {
			curveEntries.Show()
		} else {
			curveEntries.Hide()
		}
	})
	sel.SetSelected(sa.cfg.GetGammaMode())

	body.Add(widget.NewSeparator())
	body.Add(createSettingTitleLabel("Gamma:"))
	body.Add(createSettingDescriptionLabel("Linear preserves radiometry for measurement, sRGB matches display brightness, Manual applies the power and slope below."))
	body.Add(sel)
	body.Add(curveEntries)
}

func (sa *ScopeApp) addDemosaicSetting(body *fyne.Container) {
	algos := []string{config.DemosaicBilinear, config.DemosaicMalvar}
	sel := widget.NewSelect(algos, func(s string) {
		sa.cfg.SetDemosaic(s)
	})
	sel.SetSelected(sa.cfg.GetDemosaic())

	body.Add(widget.NewSeparator())
	body.Add(createSettingTitleLabel("Demosaic:"))
	body.Add(createSettingDescriptionLabel("Bilinear is fast. Malvar resolves more edge detail at a small cost."))
	body.Add(sel)
}

func (sa *ScopeApp) addPreviewSettings(body *fyne.Container) {
	w, h := sa.cfg.GetPreviewMax()

	widthEntry := widget.NewEntry()
	widthEntry.SetText(strconv.Itoa(w))
	heightEntry := widget.NewEntry()
	heightEntry.SetText(strconv.Itoa(h))

	saveBounds := func(string) {
		pw, errW := strconv.Atoi(widthEntry.Text)
		ph, errH := strconv.Atoi(heightEntry.Text)
		if errW != nil || errH != nil || pw < 100 || ph < 100 {
			return
		}
		sa.cfg.SetPreviewMax(pw, ph)
	}
	widthEntry.OnChanged = saveBounds
	heightEntry.OnChanged = saveBounds

	body.Add(createSettingTitleLabel("Maximum Preview Size:"))
	body.Add(createSettingDescriptionLabel("The preview is scaled down to fit within these bounds. It is never scaled up."))
	body.Add(container.NewGridWithColumns(2,
		container.NewBorder(nil, nil, widget.NewLabel("Width"), nil, widthEntry),
		container.NewBorder(nil, nil, widget.NewLabel("Height"), nil, heightEntry),
	))
}

func (sa *ScopeApp) addApplicationSettings(body *fyne.Container) {
	apiCheck := widget.NewCheck("Enable local automation server", func(b bool) {
		sa.cfg.SetAPIEnabled(b)
	})
	apiCheck.SetChecked(sa.cfg.GetAPIEnabled())

	updateCheck := widget.NewCheck("Check for updates", func(b bool) {
		sa.cfg.SetUpdateCheckEnabled(b)
	})
	updateCheck.SetChecked(sa.cfg.GetUpdateCheckEnabled())

	body.Add(createSettingDescriptionLabel("The automation server listens on localhost only. Changes take effect on the next start."))
	body.Add(apiCheck)
	body.Add(updateCheck)
}
