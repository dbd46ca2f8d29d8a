package scriptutil

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/server"
	"github.com/janelia-flyem/omerotools/service"
)

// writeGrayTIFF writes a sizeX x sizeY gray image whose samples start at base.
func writeGrayTIFF(t *testing.T, path string, sizeX, sizeY int, base uint8) []float64 {
	img := image.NewGray(image.Rect(0, 0, sizeX, sizeY))
	var samples []float64
	for y := 0; y < sizeY; y++ {
		for x := 0; x < sizeX; x++ {
			v := base + uint8(y*sizeX+x)
			img.SetGray(x, y, color.Gray{Y: v})
			samples = append(samples, float64(v))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("can't create %s: %v\n", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("can't encode %s: %v\n", path, err)
	}
	return samples
}

func TestPlaneEncoding(t *testing.T) {
	tests := []struct {
		pixType string
		values  []float64
	}{
		{"int8", []float64{-128, -1, 0, 127}},
		{"uint8", []float64{0, 1, 200, 255}},
		{"int16", []float64{-32768, -2, 3, 32767}},
		{"uint16", []float64{0, 256, 4095, 65535}},
		{"int32", []float64{-70000, -1, 0, 70000}},
		{"uint32", []float64{0, 1, 1 << 20, 4294967295}},
		{"float", []float64{-1.5, 0, 0.25, 1e6}},
		{"double", []float64{-1e-300, 0, 3.25, 1e300}},
	}
	for _, tc := range tests {
		p := &Plane{Type: tc.pixType, SizeX: 2, SizeY: 2, Data: tc.values}
		raw, err := p.Bytes()
		if err != nil {
			t.Fatalf("error encoding %s plane: %v\n", tc.pixType, err)
		}
		got, err := DecodePlane(tc.pixType, 2, 2, raw)
		if err != nil {
			t.Fatalf("error decoding %s plane: %v\n", tc.pixType, err)
		}
		if !reflect.DeepEqual(got.Data, tc.values) {
			t.Errorf("%s plane decoded to %v, expected %v\n", tc.pixType, got.Data, tc.values)
		}
	}

	p := &Plane{Type: "uint16", SizeX: 2, SizeY: 1, Data: []float64{1, 258}}
	raw, err := p.Bytes()
	if err != nil {
		t.Fatalf("error encoding plane: %v\n", err)
	}
	if !reflect.DeepEqual(raw, []byte{0, 1, 1, 2}) {
		t.Errorf("expected big-endian samples, got %v\n", raw)
	}
	if _, err := DecodePlane("uint16", 2, 2, raw); err == nil {
		t.Errorf("expected error decoding short plane\n")
	}
	if _, err := DecodePlane("complex", 1, 1, []byte{0}); err == nil {
		t.Errorf("expected error decoding unknown pixels type\n")
	}
}

func TestGetPlaneFromImage(t *testing.T) {
	dir := t.TempDir()
	grayPath := filepath.Join(dir, "gray.tif")
	samples := writeGrayTIFF(t, grayPath, 3, 2, 10)
	p, err := GetPlaneFromImage(grayPath, NoRGBIndex)
	if err != nil {
		t.Fatalf("error reading gray tiff: %v\n", err)
	}
	if p.Type != "uint8" || p.SizeX != 3 || p.SizeY != 2 || !reflect.DeepEqual(p.Data, samples) {
		t.Errorf("bad gray plane: %+v\n", p)
	}
	if _, err := GetPlaneFromImage(grayPath, 1); err == nil {
		t.Errorf("expected error selecting a component of a gray image\n")
	}

	rgb := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	rgb.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	rgb.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})
	rgbPath := filepath.Join(dir, "rgb.png")
	f, err := os.Create(rgbPath)
	if err != nil {
		t.Fatalf("can't create png: %v\n", err)
	}
	if err := png.Encode(f, rgb); err != nil {
		t.Fatalf("can't encode png: %v\n", err)
	}
	f.Close()

	for i, want := range [][]float64{{10, 40}, {20, 50}, {30, 60}} {
		p, err := GetPlaneFromImage(rgbPath, i)
		if err != nil {
			t.Fatalf("error reading component %d: %v\n", i, err)
		}
		if p.Type != "uint8" || !reflect.DeepEqual(p.Data, want) {
			t.Errorf("component %d: got %+v, expected %v\n", i, p, want)
		}
	}
	if _, err := GetPlaneFromImage(rgbPath, 4); err == nil {
		t.Errorf("expected error for bad component index\n")
	}
}

func TestUploadDirAsImages(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	ds, err := sess.Update().SaveDataset(ctx, &model.Dataset{Name: "imports"})
	if err != nil {
		t.Fatalf("can't save dataset: %v\n", err)
	}
	dir := t.TempDir()
	t1 := writeGrayTIFF(t, filepath.Join(dir, "img_C0_Z1T1.tif"), 4, 3, 0)
	t2 := writeGrayTIFF(t, filepath.Join(dir, "img_C0_Z1T2.tif"), 4, 3, 100)

	imageID, err := UploadDirAsImages(ctx, sess, dir, ds.ID, ome.DiscardLogger())
	if err != nil {
		t.Fatalf("error importing directory: %v\n", err)
	}
	pixelsID, err := sess.Query().PixelsIDOfImage(ctx, imageID)
	if err != nil {
		t.Fatalf("can't get pixels of image %d: %v\n", imageID, err)
	}
	pixels, err := sess.Pixels().RetrievePixDescription(ctx, pixelsID)
	if err != nil {
		t.Fatalf("can't describe pixels: %v\n", err)
	}
	if pixels.SizeX != 4 || pixels.SizeY != 3 || pixels.SizeZ != 1 || pixels.SizeC != 1 || pixels.SizeT != 2 {
		t.Errorf("bad dimensions: %+v\n", pixels)
	}
	if pixels.Type.Value != "uint8" {
		t.Errorf("expected uint8 pixels, got %s\n", pixels.Type.Value)
	}
	if len(pixels.Channels) != 1 || pixels.Channels[0].LogicalChannel.Name != "0" {
		t.Errorf("bad channels: %+v\n", pixels.Channels)
	}
	if ch := pixels.Channels[0]; ch.GlobalMin != 0 || ch.GlobalMax != 111 {
		t.Errorf("expected channel range [0, 111], got [%g, %g]\n", ch.GlobalMin, ch.GlobalMax)
	}

	store := service.NewRawPixelsStore(sess.Planes())
	store.SetPixelsID(pixelsID)
	for tIndex, want := range [][]float64{t1, t2} {
		p, err := DownloadPlane(ctx, store, pixels, 0, 0, tIndex)
		if err != nil {
			t.Fatalf("error downloading plane t=%d: %v\n", tIndex, err)
		}
		if !reflect.DeepEqual(p.Data, want) {
			t.Errorf("plane t=%d: got %v, expected %v\n", tIndex, p.Data, want)
		}
	}

	objs, err := sess.Query().GetObjects(ctx, model.ImageClass, []int64{imageID})
	if err != nil || len(objs) != 1 {
		t.Fatalf("can't get image: %v\n", err)
	}
	if objs[0].Name != "img_C0_Z1" {
		t.Errorf("bad image name %q\n", objs[0].Name)
	}

	rd, err := sess.Rendering().GetRenderingDef(ctx, pixelsID)
	if err != nil || rd == nil {
		t.Fatalf("expected rendering settings: %v\n", err)
	}
	if b := rd.Channels[0]; b.InputStart != 0 || b.InputEnd != 111 || b.Color != Colours["White"] {
		t.Errorf("bad channel rendering: %+v\n", b)
	}
}

func TestUploadDirZeroFill(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	dir := t.TempDir()
	gfp := writeGrayTIFF(t, filepath.Join(dir, "cells_Cgfp_T1.tif"), 2, 2, 5)
	rfp := writeGrayTIFF(t, filepath.Join(dir, "cells_Crfp_T2.tif"), 2, 2, 7)

	imageID, err := UploadDirAsImages(ctx, sess, dir, 0, ome.DiscardLogger())
	if err != nil {
		t.Fatalf("error importing directory: %v\n", err)
	}
	pixelsID, err := sess.Query().PixelsIDOfImage(ctx, imageID)
	if err != nil {
		t.Fatalf("can't get pixels: %v\n", err)
	}
	pixels, err := sess.Pixels().RetrievePixDescription(ctx, pixelsID)
	if err != nil {
		t.Fatalf("can't describe pixels: %v\n", err)
	}
	if pixels.SizeC != 2 || pixels.SizeT != 2 || pixels.SizeZ != 1 {
		t.Fatalf("bad dimensions: %+v\n", pixels)
	}
	if pixels.Channels[0].LogicalChannel.Name != "gfp" || pixels.Channels[1].LogicalChannel.Name != "rfp" {
		t.Errorf("bad channel names: %+v\n", pixels.Channels)
	}

	zero := make([]float64, 4)
	store := service.NewRawPixelsStore(sess.Planes())
	store.SetPixelsID(pixelsID)
	expected := map[[2]int][]float64{
		{0, 0}: gfp,
		{0, 1}: zero,
		{1, 0}: zero,
		{1, 1}: rfp,
	}
	for ct, want := range expected {
		p, err := DownloadPlane(ctx, store, pixels, 0, ct[0], ct[1])
		if err != nil {
			t.Fatalf("error downloading plane c=%d t=%d: %v\n", ct[0], ct[1], err)
		}
		if !reflect.DeepEqual(p.Data, want) {
			t.Errorf("plane c=%d t=%d: got %v, expected %v\n", ct[0], ct[1], p.Data, want)
		}
	}

	rd, err := sess.Rendering().GetRenderingDef(ctx, pixelsID)
	if err != nil || rd == nil {
		t.Fatalf("expected rendering settings: %v\n", err)
	}
	if rd.Channels[0].Color != Colours["Green"] || rd.Channels[1].Color != Colours["Red"] {
		t.Errorf("expected green and red channels, got %+v\n", rd.Channels)
	}
}

func TestUploadDirEmpty(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)

	var dataErr *ome.DataError
	_, err := UploadDirAsImages(context.Background(), sess, t.TempDir(), 0, ome.DiscardLogger())
	if !errors.As(err, &dataErr) {
		t.Errorf("expected data error importing an empty directory, got %v\n", err)
	}
}

func TestResetRenderingSettings(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	pt, err := sess.Query().FindPixelsType(ctx, "uint8")
	if err != nil || pt == nil {
		t.Fatalf("can't find uint8 type: %v\n", err)
	}
	imageID, err := sess.Pixels().CreateImage(ctx, model.ImageSpec{
		SizeX: 2, SizeY: 2, SizeZ: 1, SizeT: 1, Channels: []int{0, 1}, Type: *pt, Name: "render",
	})
	if err != nil {
		t.Fatalf("can't create image: %v\n", err)
	}
	pixelsID, err := sess.Query().PixelsIDOfImage(ctx, imageID)
	if err != nil {
		t.Fatalf("can't get pixels: %v\n", err)
	}

	re := service.NewRenderingEngine(sess.Rendering())
	defer re.Close()
	yellow := Colours["Yellow"]
	if err := ResetRenderingSettings(ctx, re, pixelsID, 1, 5, 10, &yellow); err != nil {
		t.Fatalf("error resetting rendering: %v\n", err)
	}
	if err := ResetRenderingSettings(ctx, re, pixelsID, 0, 1, 2, nil); err != nil {
		t.Fatalf("error resetting rendering: %v\n", err)
	}
	rd, err := sess.Rendering().GetRenderingDef(ctx, pixelsID)
	if err != nil || rd == nil {
		t.Fatalf("expected rendering settings: %v\n", err)
	}
	if b := rd.Channels[1]; b.InputStart != 5 || b.InputEnd != 10 || b.Color != yellow {
		t.Errorf("bad channel 1 rendering: %+v\n", b)
	}
	if b := rd.Channels[0]; b.InputStart != 1 || b.InputEnd != 2 || b.Color != Colours["Red"] {
		t.Errorf("bad channel 0 rendering: %+v\n", b)
	}

	if err := ResetRenderingSettings(ctx, re, 9999, 0, 0, 1, nil); !errors.Is(err, ome.ErrNotFound) {
		t.Errorf("expected not found for missing pixels, got %v\n", err)
	}
}
