//go:build windows
// +build windows

package ui

import (
	"errors"

	"fyne.io/fyne/v2"
	"github.com/harry1453/go-common-file-dialog/cfd"
	"github.com/harry1453/go-common-file-dialog/cfdutil"

	"github.com/photonworks/dngscope/util/log"
)

// pickDNGFile shows the native Windows common-item open dialog.
func pickDNGFile(_ fyne.Window, onPicked func(path string)) {
	path, err := cfdutil.ShowOpenFileDialog(cfd.DialogConfig{
		Title: "Open DNG",
		FileFilters: []cfd.FileFilter{
			{DisplayName: "DNG Images (*.dng)", Pattern: "*.dng"},
			{DisplayName: "All Files (*.*)", Pattern: "*.*"},
		},
	})
	if err != nil {
		if !errors.Is(err, cfd.ErrorCancelled) {
			log.Printf("Open dialog failed: %v", err)
		}
		return
	}
	onPicked(path)
}

// pickFolder shows the native Windows folder picker.
func pickFolder(_ fyne.Window, onPicked func(folder string)) {
	folder, err := cfdutil.ShowPickFolderDialog(cfd.DialogConfig{
		Title: "Select DNG Folder",
	})
	if err != nil {
		if !errors.Is(err, cfd.ErrorCancelled) {
			log.Printf("Folder dialog failed: %v", err)
		}
		return
	}
	onPicked(folder)
}
