package timeseries

import (
	"context"
	"encoding/csv"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/image/tiff"

	"github.com/photonworks/dngscope/analysis"
	"github.com/photonworks/dngscope/raw"
)

// writeLinearDNG writes a uniform linear-RGB capture. Linear DNGs are
// TIFFs with an RGB photometric tag, which the loader handles through its
// fallback path, so the stock encoder is enough for fixtures.
func writeLinearDNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, tiff.Encode(f, img, &tiff.Options{Compression: tiff.Uncompressed}))
}

func fixtureFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeLinearDNG(t, filepath.Join(dir, "b_second.dng"), color.NRGBA{R: 50, G: 100, B: 150, A: 255})
	writeLinearDNG(t, filepath.Join(dir, "a_first.DNG"), color.NRGBA{R: 200, G: 150, B: 100, A: 255})
	// A non-DNG file that must be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))
	return dir
}

func testRegions() []analysis.Region {
	return []analysis.Region{
		{ID: 1, Shape: analysis.ShapeRect, Params: analysis.RegionParams{X0: 0, Y0: 0, X1: 10, Y1: 10}},
		{ID: 2, Shape: analysis.ShapeCircle, Params: analysis.RegionParams{CX: 16, CY: 12, R: 5}},
	}
}

func TestCollect(t *testing.T) {
	dir := fixtureFolder(t)

	res, err := Collect(context.Background(), dir, testRegions(), raw.Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Rows, 4) // 2 files x 2 regions

	// Sorted file order, case-insensitive extension match.
	assert.Equal(t, "a_first.DNG", res.Rows[0].Image)
	assert.Equal(t, "a_first.DNG", res.Rows[1].Image)
	assert.Equal(t, "b_second.dng", res.Rows[2].Image)

	// Uniform fixtures measure exactly.
	assert.InDelta(t, 200, res.Rows[0].Mean.R, 1e-9)
	assert.InDelta(t, 50, res.Rows[2].Mean.R, 1e-9)
	assert.Equal(t, 1, res.Rows[0].RegionID)
	assert.Equal(t, 2, res.Rows[1].RegionID)
	assert.Positive(t, res.Rows[1].Pixels)
	assert.False(t, res.Rows[0].Timestamp.IsZero())
}

func TestCollectEmptyFolder(t *testing.T) {
	_, err := Collect(context.Background(), t.TempDir(), testRegions(), raw.Options{})
	assert.Error(t, err)
}

func TestCollectNoRegions(t *testing.T) {
	_, err := Collect(context.Background(), t.TempDir(), nil, raw.Options{})
	assert.Error(t, err)
}

func TestCollectMissingFolder(t *testing.T) {
	_, err := Collect(context.Background(), filepath.Join(t.TempDir(), "absent"), testRegions(), raw.Options{})
	assert.Error(t, err)
}

func TestCollectCancelled(t *testing.T) {
	dir := fixtureFolder(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, dir, testRegions(), raw.Options{})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	dir := fixtureFolder(t)
	res, err := Collect(context.Background(), dir, testRegions(), raw.Options{})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, res.WriteCSV(out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5) // header + 4 rows
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "a_first.DNG", records[1][0])
	assert.Equal(t, "200.0000", records[1][4])
}

func TestWriteXLSX(t *testing.T) {
	dir := fixtureFolder(t)
	res, err := Collect(context.Background(), dir, testRegions(), raw.Options{})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, res.WriteXLSX(out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Measurements", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Image", got)

	got, err = f.GetCellValue("Measurements", "C2")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}
