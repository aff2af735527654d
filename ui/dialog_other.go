//go:build !windows
// +build !windows

package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"

	"github.com/photonworks/dngscope/util/log"
)

// pickDNGFile shows the fyne file open dialog filtered to DNG images.
func pickDNGFile(win fyne.Window, onPicked func(path string)) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			log.Printf("Open dialog failed: %v", err)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		rc.Close()
		onPicked(path)
	}, win)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".dng", ".DNG"}))
	fd.Show()
}

// pickFolder shows the fyne folder open dialog.
func pickFolder(win fyne.Window, onPicked func(folder string)) {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			log.Printf("Folder dialog failed: %v", err)
			return
		}
		if uri == nil {
			return
		}
		onPicked(uri.Path())
	}, win)
}
