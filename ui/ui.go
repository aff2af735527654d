// Package ui builds the fyne desktop application: the main window with the
// preview viewer, the preferences window, and the dialogs around them.
package ui

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/photonworks/dngscope/analysis"
	"github.com/photonworks/dngscope/api"
	"github.com/photonworks/dngscope/config"
	"github.com/photonworks/dngscope/raw"
	"github.com/photonworks/dngscope/timeseries"
	"github.com/photonworks/dngscope/util"
	"github.com/photonworks/dngscope/util/log"
)

// Status strings shown in the stats label.
const (
	statusOpenPrompt  = "Open a DNG image to begin."
	statusDragPrompt  = "Drag to select a region."
	statusTooSmall    = "Selection too small."
	statusLoading     = "Loading..."
	statusBatchPrefix = "Batch running..."
)

// regionTemplateName is the region template looked up in a batch folder.
const regionTemplateName = "regions.json"

// ScopeApp is the application: the fyne app, the main window, and the
// currently loaded capture.
type ScopeApp struct {
	app fyne.App
	win fyne.Window
	cfg *config.AppConfig
	srv *api.Server

	viewer     *Viewer
	metaLabel  *widget.Label
	statsLabel *widget.Label

	mu         sync.Mutex
	loaded     *raw.Result
	loadedPath string
}

var (
	instance *ScopeApp
	once     sync.Once
)

// GetInstance returns the singleton instance of the application.
func GetInstance() *ScopeApp {
	once.Do(func() {
		a := app.NewWithID(config.AppName)
		instance = &ScopeApp{
			app: a,
			cfg: config.NewAppConfig(a.Preferences()),
		}
		instance.buildMainWindow()
		instance.startAPIServer()
	})
	return instance
}

func (sa *ScopeApp) buildMainWindow() {
	sa.win = sa.app.NewWindow(config.AppName)
	sa.win.Resize(fyne.NewSize(1100, 750))
	sa.win.CenterOnScreen()

	sa.viewer = NewViewer()
	sa.viewer.OnSelect = sa.onSelect
	sa.viewer.OnLive = sa.onLiveSelect

	sa.metaLabel = widget.NewLabel("")
	sa.metaLabel.Truncation = fyne.TextTruncateEllipsis
	sa.statsLabel = widget.NewLabel(statusOpenPrompt)

	toolbar := container.NewHBox(
		widget.NewButtonWithIcon("Open DNG", theme.FolderOpenIcon(), sa.openImage),
		widget.NewButtonWithIcon("Suggest Region", theme.SearchIcon(), sa.suggestRegion),
		widget.NewButtonWithIcon("Batch Folder", theme.FolderIcon(), sa.batchFolder),
		widget.NewButtonWithIcon("Preferences", theme.SettingsIcon(), sa.showPreferencesWindow),
		widget.NewButtonWithIcon("Check for Updates", theme.DownloadIcon(), sa.checkForUpdates),
		widget.NewButtonWithIcon("About", theme.InfoIcon(), sa.showAbout),
	)

	top := container.NewVBox(toolbar, sa.metaLabel, widget.NewSeparator())
	bottom := container.NewVBox(widget.NewSeparator(), sa.statsLabel)
	sa.win.SetContent(container.NewBorder(top, bottom, nil, nil, sa.viewer))
	sa.win.SetMaster()
}

func (sa *ScopeApp) startAPIServer() {
	if !sa.cfg.GetAPIEnabled() {
		return
	}
	sa.srv = api.NewServer()
	go func() {
		if err := sa.srv.Start(); err != nil {
			log.Printf("Automation server stopped: %v", err)
		}
	}()
}

// loadOptions builds the processing options from the current preferences.
func (sa *ScopeApp) loadOptions() raw.Options {
	opts := raw.Options{OutputBits: sa.cfg.GetOutputBits()}

	switch sa.cfg.GetWhiteBalance() {
	case config.WBAuto:
		opts.WhiteBalance = raw.WBAuto
	case config.WBManual:
		opts.WhiteBalance = raw.WBManual
		r, g, b := sa.cfg.GetManualGains()
		opts.ManualGains = [3]float64{r, g, b}
	}

	switch sa.cfg.GetGammaMode() {
	case config.GammaSRGB:
		opts.Gamma = raw.GammaSRGB
	case config.GammaManual:
		opts.Gamma = raw.GammaManual
		opts.GammaPower, opts.GammaSlope = sa.cfg.GetGammaCurve()
	}

	if sa.cfg.GetDemosaic() == config.DemosaicMalvar {
		opts.Demosaic = raw.DemosaicMalvar
	}

	opts.PreviewMaxW, opts.PreviewMaxH = sa.cfg.GetPreviewMax()
	return opts
}

func (sa *ScopeApp) openImage() {
	pickDNGFile(sa.win, func(path string) {
		go sa.loadImage(path)
	})
}

// loadImage decodes the capture off the UI thread and publishes the result.
func (sa *ScopeApp) loadImage(path string) {
	fyne.Do(func() {
		sa.statsLabel.SetText(statusLoading)
	})

	res, err := raw.Load(path, sa.loadOptions())
	if err != nil {
		log.Printf("Failed to load %s: %v", path, err)
		fyne.Do(func() {
			sa.metaLabel.SetText(fmt.Sprintf("Failed to load: %v", err))
			sa.statsLabel.SetText(statusOpenPrompt)
		})
		return
	}

	summary := raw.SummaryString(path)

	sa.mu.Lock()
	sa.loaded = res
	sa.loadedPath = path
	sa.mu.Unlock()

	fyne.Do(func() {
		sa.viewer.SetImage(res.Preview)
		sa.metaLabel.SetText(fmt.Sprintf("%s  |  %s", filepath.Base(path), summary))
		sa.statsLabel.SetText(statusDragPrompt)
		sa.win.SetTitle(fmt.Sprintf("%s - %s", config.AppName, filepath.Base(path)))
	})
}

// reloadImage reprocesses the current capture with fresh preferences.
func (sa *ScopeApp) reloadImage() {
	sa.mu.Lock()
	path := sa.loadedPath
	sa.mu.Unlock()
	if path == "" {
		return
	}
	go sa.loadImage(path)
}

// onSelect handles a finished selection: map it to full resolution, average
// the region, and report the result.
func (sa *ScopeApp) onSelect(sel image.Rectangle) {
	sa.mu.Lock()
	res, path := sa.loaded, sa.loadedPath
	sa.mu.Unlock()
	if res == nil {
		return
	}

	if analysis.TooSmall(sel) {
		sa.statsLabel.SetText(statusTooSmall)
		return
	}

	full := sa.fullRect(res, sel)
	avg, ok := analysis.AvgRGB(res.Full, full)
	if !ok {
		sa.statsLabel.SetText(statusTooSmall)
		return
	}

	sa.statsLabel.SetText(formatStats(avg, res.Bits))

	if sa.srv != nil {
		sa.srv.Broadcast(api.MeasurementEvent{
			Type: "measurement",
			Path: path,
			Bits: res.Bits,
			Measurements: []analysis.Measurement{{
				Shape:  analysis.ShapeRect,
				Mean:   avg,
				Pixels: full.Dx() * full.Dy(),
			}},
		})
	}
}

// onLiveSelect updates the stats label while the drag is still in motion.
func (sa *ScopeApp) onLiveSelect(sel image.Rectangle) {
	sa.mu.Lock()
	res := sa.loaded
	sa.mu.Unlock()
	if res == nil || analysis.TooSmall(sel) {
		return
	}
	if avg, ok := analysis.AvgRGB(res.Full, sa.fullRect(res, sel)); ok {
		sa.statsLabel.SetText(formatStats(avg, res.Bits))
	}
}

func (sa *ScopeApp) fullRect(res *raw.Result, sel image.Rectangle) image.Rectangle {
	b := res.Full.Bounds()
	m := analysis.Mapping{Scale: res.Scale}
	return m.PreviewToFull(sel, b.Dx(), b.Dy())
}

func formatStats(avg analysis.RGB, bits int) string {
	return fmt.Sprintf("ROI avg (R,G,B) = (%.2f, %.2f, %.2f)  [%d-bit]", avg.R, avg.G, avg.B, bits)
}

// suggestRegion asks smartcrop for an interesting region of the preview and
// selects it.
func (sa *ScopeApp) suggestRegion() {
	sa.mu.Lock()
	res := sa.loaded
	sa.mu.Unlock()
	if res == nil {
		sa.statsLabel.SetText(statusOpenPrompt)
		return
	}

	go func() {
		b := res.Preview.Bounds()
		crop, err := analysis.Suggest(res.Preview, b.Dx()/2, b.Dy()/2)
		if err != nil {
			log.Printf("Region suggestion failed: %v", err)
			return
		}
		fyne.Do(func() {
			sa.viewer.SetSelection(crop)
		})
	}()
}

// batchFolder measures every DNG in a folder against a region template and
// writes CSV and XLSX exports next to the images. The template is
// regions.json inside the folder; without one the current selection is used.
func (sa *ScopeApp) batchFolder() {
	pickFolder(sa.win, func(folder string) {
		regions, err := sa.batchRegions(folder)
		if err != nil {
			dialog.ShowError(err, sa.win)
			return
		}

		sa.statsLabel.SetText(statusBatchPrefix)
		go sa.runBatch(folder, regions)
	})
}

func (sa *ScopeApp) batchRegions(folder string) ([]analysis.Region, error) {
	templatePath := filepath.Join(folder, regionTemplateName)
	if _, err := os.Stat(templatePath); err == nil {
		return analysis.LoadTemplate(templatePath)
	}

	sa.mu.Lock()
	res := sa.loaded
	sel := sa.viewer.Selection()
	sa.mu.Unlock()

	if res == nil || sel.Empty() {
		return nil, fmt.Errorf("no %s in folder and no active selection", regionTemplateName)
	}

	full := sa.fullRect(res, sel)
	return []analysis.Region{{
		ID:    1,
		Shape: analysis.ShapeRect,
		Params: analysis.RegionParams{
			X0: float64(full.Min.X), Y0: float64(full.Min.Y),
			X1: float64(full.Max.X), Y1: float64(full.Max.Y),
		},
	}}, nil
}

func (sa *ScopeApp) runBatch(folder string, regions []analysis.Region) {
	res, err := timeseries.Collect(context.Background(), folder, regions, sa.loadOptions())
	if err != nil {
		fyne.Do(func() {
			sa.statsLabel.SetText(statusDragPrompt)
			dialog.ShowError(err, sa.win)
		})
		return
	}

	base := filepath.Join(folder, "dngscope-"+res.RunID)
	if err == nil {
		err = res.WriteCSV(base + ".csv")
	}
	if err == nil {
		err = res.WriteXLSX(base + ".xlsx")
	}

	fyne.Do(func() {
		sa.statsLabel.SetText(statusDragPrompt)
		if err != nil {
			dialog.ShowError(err, sa.win)
			return
		}
		dialog.ShowInformation("Batch Complete",
			fmt.Sprintf("%d measurements written to %s.csv and .xlsx", len(res.Rows), base), sa.win)
	})
}

// checkForUpdates polls GitHub for a newer release and reports the outcome.
func (sa *ScopeApp) checkForUpdates() {
	go func() {
		result, err := util.CheckForUpdates(nil)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, sa.win)
				return
			}
			if !result.UpdateAvailable {
				dialog.ShowInformation("Up to Date",
					fmt.Sprintf("%s %s is the latest version.", config.AppName, result.CurrentVersion), sa.win)
				return
			}
			dialog.ShowInformation("Update Available",
				fmt.Sprintf("%s %s is available at %s", config.AppName, result.LatestVersion, result.ReleaseURL), sa.win)
		})
	}()
}

func (sa *ScopeApp) showAbout() {
	dialog.ShowInformation(fmt.Sprintf("About %s", config.AppName),
		fmt.Sprintf("%s %s\n\nDNG region statistics viewer.", config.AppName, config.AppVersion), sa.win)
}

// Preferences returns the preferences for the application.
func (sa *ScopeApp) Preferences() fyne.Preferences {
	return sa.app.Preferences()
}

// Run shows the main window and runs the application loop.
func (sa *ScopeApp) Run() {
	sa.win.Show()
	sa.app.Run()
	if sa.srv != nil {
		if err := sa.srv.Stop(); err != nil {
			log.Printf("Failed to stop automation server: %v", err)
		}
	}
}
