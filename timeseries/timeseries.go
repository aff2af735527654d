// Package timeseries batch-processes a folder of DNG captures against a
// region template and exports one measurement row per image and region.
package timeseries

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/photonworks/dngscope/analysis"
	"github.com/photonworks/dngscope/raw"
	"github.com/photonworks/dngscope/util/log"
)

const timeLayout = "2006-01-02 15:04:05"

// Row is one region measured on one image.
type Row struct {
	Image     string       `json:"image"`
	Timestamp time.Time    `json:"timestamp"`
	RegionID  int          `json:"region_id"`
	Shape     string       `json:"shape"`
	Mean      analysis.RGB `json:"mean"`
	Pixels    int          `json:"pixels"`
}

// Result is a completed batch run.
type Result struct {
	RunID string `json:"run_id"`
	Rows  []Row  `json:"rows"`
}

// Collect processes every DNG in folder against the given regions, using
// the same develop options for each file so measurements are comparable.
// Files are decoded in parallel but rows keep the sorted file order.
func Collect(ctx context.Context, folder string, regions []analysis.Region, opts raw.Options) (*Result, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("no regions to measure")
	}

	paths, err := listDNGs(folder)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log.Printf("batch run %s: %d files, %d regions", runID, len(paths), len(regions))

	perFile := make([][]Row, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := raw.Load(path, opts)
			if err != nil {
				return fmt.Errorf("processing %s: %w", filepath.Base(path), err)
			}
			ts := raw.CaptureTime(path)
			name := filepath.Base(path)

			rows := make([]Row, 0, len(regions))
			for _, m := range analysis.Measure(res.Full, regions) {
				rows = append(rows, Row{
					Image:     name,
					Timestamp: ts,
					RegionID:  m.RegionID,
					Shape:     m.Shape,
					Mean:      m.Mean,
					Pixels:    m.Pixels,
				})
			}
			perFile[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{RunID: runID}
	for _, rows := range perFile {
		out.Rows = append(out.Rows, rows...)
	}
	return out, nil
}

func listDNGs(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading folder %s: %w", folder, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".dng") {
			paths = append(paths, filepath.Join(folder, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no DNG images found in %s", folder)
	}
	sort.Strings(paths)
	return paths, nil
}

var exportHeader = []string{"Image", "Timestamp", "Region", "Shape", "MeanR", "MeanG", "MeanB", "Pixels"}

func (r *Result) record(row Row) []string {
	return []string{
		row.Image,
		row.Timestamp.Format(timeLayout),
		strconv.Itoa(row.RegionID),
		row.Shape,
		strconv.FormatFloat(row.Mean.R, 'f', 4, 64),
		strconv.FormatFloat(row.Mean.G, 'f', 4, 64),
		strconv.FormatFloat(row.Mean.B, 'f', 4, 64),
		strconv.Itoa(row.Pixels),
	}
}

// WriteCSV exports the run as a CSV file with a header row.
func (r *Result) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := w.Write(r.record(row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteXLSX exports the run as an Excel workbook with one sheet.
func (r *Result) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Measurements"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range r.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.Image,
			row.Timestamp.Format(timeLayout),
			row.RegionID,
			row.Shape,
			row.Mean.R,
			row.Mean.G,
			row.Mean.B,
			row.Pixels,
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
