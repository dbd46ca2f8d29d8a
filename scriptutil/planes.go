package scriptutil

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/tiff"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/service"
)

// NoRGBIndex asks GetPlaneFromImage for the whole image rather than one colour component.
const NoRGBIndex = -1

// Plane is a 2D array of samples of one pixels type, stored row by row.
type Plane struct {
	// Type is the pixels type value, e.g. "uint16".
	Type  string
	SizeX int
	SizeY int
	Data  []float64
}

// NewPlane returns a zero-filled plane.
func NewPlane(pixType string, sizeX, sizeY int) *Plane {
	return &Plane{Type: pixType, SizeX: sizeX, SizeY: sizeY, Data: make([]float64, sizeX*sizeY)}
}

func (p *Plane) At(x, y int) float64 {
	return p.Data[y*p.SizeX+x]
}

func (p *Plane) Set(x, y int, v float64) {
	p.Data[y*p.SizeX+x] = v
}

// MinMax returns the smallest and largest sample.  A plane without samples returns zeros.
func (p *Plane) MinMax() (min, max float64) {
	if len(p.Data) == 0 {
		return 0, 0
	}
	min, max = p.Data[0], p.Data[0]
	for _, v := range p.Data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}

// sampleBytes returns the bytes per sample of a pixels type.  Bit planes are carried
// one sample per byte.
func sampleBytes(pixType string) (int, error) {
	switch pixType {
	case "bit", "int8", "uint8":
		return 1, nil
	case "int16", "uint16":
		return 2, nil
	case "int32", "uint32", "float":
		return 4, nil
	case "double":
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported pixels type %q", pixType)
	}
}

// DecodePlane converts big-endian raw samples into a plane.
func DecodePlane(pixType string, sizeX, sizeY int, raw []byte) (*Plane, error) {
	nbytes, err := sampleBytes(pixType)
	if err != nil {
		return nil, err
	}
	if len(raw) != sizeX*sizeY*nbytes {
		return nil, fmt.Errorf("expected %d bytes for %d x %d %s plane, got %d",
			sizeX*sizeY*nbytes, sizeX, sizeY, pixType, len(raw))
	}
	p := NewPlane(pixType, sizeX, sizeY)
	be := binary.BigEndian
	for i := range p.Data {
		b := raw[i*nbytes : (i+1)*nbytes]
		switch pixType {
		case "int8":
			p.Data[i] = float64(int8(b[0]))
		case "bit", "uint8":
			p.Data[i] = float64(b[0])
		case "int16":
			p.Data[i] = float64(int16(be.Uint16(b)))
		case "uint16":
			p.Data[i] = float64(be.Uint16(b))
		case "int32":
			p.Data[i] = float64(int32(be.Uint32(b)))
		case "uint32":
			p.Data[i] = float64(be.Uint32(b))
		case "float":
			p.Data[i] = float64(math.Float32frombits(be.Uint32(b)))
		case "double":
			p.Data[i] = math.Float64frombits(be.Uint64(b))
		}
	}
	return p, nil
}

// Bytes returns the plane as big-endian raw samples of its pixels type.
func (p *Plane) Bytes() ([]byte, error) {
	nbytes, err := sampleBytes(p.Type)
	if err != nil {
		return nil, err
	}
	if len(p.Data) != p.SizeX*p.SizeY {
		return nil, fmt.Errorf("plane of %d x %d has %d samples", p.SizeX, p.SizeY, len(p.Data))
	}
	raw := make([]byte, len(p.Data)*nbytes)
	be := binary.BigEndian
	for i, v := range p.Data {
		b := raw[i*nbytes : (i+1)*nbytes]
		switch p.Type {
		case "int8":
			b[0] = byte(int8(v))
		case "bit", "uint8":
			b[0] = uint8(v)
		case "int16":
			be.PutUint16(b, uint16(int16(v)))
		case "uint16":
			be.PutUint16(b, uint16(v))
		case "int32":
			be.PutUint32(b, uint32(int32(v)))
		case "uint32":
			be.PutUint32(b, uint32(v))
		case "float":
			be.PutUint32(b, math.Float32bits(float32(v)))
		case "double":
			be.PutUint64(b, math.Float64bits(v))
		}
	}
	return raw, nil
}

// DownloadPlane reads the (z, c, t) plane of a pixel set.  The store must already be
// set to the pixels.
func DownloadPlane(ctx context.Context, store *service.RawPixelsStore, pixels *model.Pixels, z, c, t int) (*Plane, error) {
	if pixels.Type == nil {
		return nil, fmt.Errorf("pixels %d have no pixels type loaded", pixels.ID)
	}
	raw, err := store.GetPlane(ctx, z, c, t)
	if err != nil {
		return nil, err
	}
	return DecodePlane(pixels.Type.Value, pixels.SizeX, pixels.SizeY, raw)
}

// UploadPlane writes a plane at (z, c, t) of the pixel set the store is set to.
func UploadPlane(ctx context.Context, store *service.RawPixelsStore, plane *Plane, z, c, t int) error {
	raw, err := plane.Bytes()
	if err != nil {
		return err
	}
	return store.SetPlane(ctx, raw, z, c, t)
}

// ReadFlimImageFile returns the planes of every channel at z=0, t=0.
func ReadFlimImageFile(ctx context.Context, store *service.RawPixelsStore, pixels *model.Pixels) ([]*Plane, error) {
	store.SetPixelsID(pixels.ID)
	stack := make([]*Plane, 0, pixels.SizeC)
	for c := 0; c < pixels.SizeC; c++ {
		p, err := DownloadPlane(ctx, store, pixels, 0, c, 0)
		if err != nil {
			return nil, err
		}
		stack = append(stack, p)
	}
	return stack, nil
}

// GetPlaneFromImage decodes a local PNG, JPEG, GIF or TIFF image into a plane.  Gray
// images keep their sample depth and paletted images return palette indices.  Colour
// images return one component (0 red, 1 green, 2 blue, 3 alpha) selected by rgbIndex,
// or their luminance for NoRGBIndex.
func GetPlaneFromImage(path string, rgbIndex int) (*Plane, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	b := img.Bounds()
	sizeX, sizeY := b.Dx(), b.Dy()

	switch m := img.(type) {
	case *image.Gray, *image.Gray16, *image.Paletted:
		if rgbIndex != NoRGBIndex {
			return nil, fmt.Errorf("%s has a single channel, can't select component %d", path, rgbIndex)
		}
		pixType := "uint8"
		if _, ok := m.(*image.Gray16); ok {
			pixType = "uint16"
		}
		p := NewPlane(pixType, sizeX, sizeY)
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				px, py := b.Min.X+x, b.Min.Y+y
				switch m := m.(type) {
				case *image.Gray:
					p.Set(x, y, float64(m.GrayAt(px, py).Y))
				case *image.Gray16:
					p.Set(x, y, float64(m.Gray16At(px, py).Y))
				case *image.Paletted:
					p.Set(x, y, float64(m.ColorIndexAt(px, py)))
				}
			}
		}
		return p, nil
	}

	if rgbIndex < NoRGBIndex || rgbIndex > 3 {
		return nil, fmt.Errorf("bad colour component %d for %s", rgbIndex, path)
	}
	deep := false
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model:
		deep = true
	}
	pixType := "uint8"
	if deep {
		pixType = "uint16"
	}
	p := NewPlane(pixType, sizeX, sizeY)
	for y := 0; y < sizeY; y++ {
		for x := 0; x < sizeX; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			var v float64
			if rgbIndex == NoRGBIndex {
				if deep {
					v = float64(color.Gray16Model.Convert(c).(color.Gray16).Y)
				} else {
					v = float64(color.GrayModel.Convert(c).(color.Gray).Y)
				}
			} else if deep {
				n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
				v = float64([4]uint16{n.R, n.G, n.B, n.A}[rgbIndex])
			} else {
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				v = float64([4]uint8{n.R, n.G, n.B, n.A}[rgbIndex])
			}
			p.Set(x, y, v)
		}
	}
	return p, nil
}
