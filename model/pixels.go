package model

// PixelsType is a pixel numeric type known to the server, e.g. "uint16".
type PixelsType struct {
	ID      int64
	Value   string
	BitSize int
}

// Bytes returns the number of bytes per sample, rounding bit types up.
func (pt *PixelsType) Bytes() int {
	return (pt.BitSize + 7) / 8
}

// ImageSpec describes an image to be created together with its pixels.
type ImageSpec struct {
	SizeX, SizeY, SizeZ, SizeT int
	Channels                   []int
	Type                       PixelsType
	Name                       string
	Description                string
}

type LogicalChannel struct {
	ID   int64
	Name string
}

type Channel struct {
	ID             int64
	Index          int
	GlobalMin      float64
	GlobalMax      float64
	LogicalChannel LogicalChannel
}

// Pixels holds the dimensions and channels of an image's sample data.
type Pixels struct {
	ID       int64
	ImageID  int64
	SizeX    int
	SizeY    int
	SizeZ    int
	SizeC    int
	SizeT    int
	Type     *PixelsType
	Channels []Channel
	Details  Details
}

// PlaneBytes returns the number of bytes of one (Z, C, T) plane.
func (p *Pixels) PlaneBytes() int {
	if p.Type == nil {
		return 0
	}
	return p.SizeX * p.SizeY * p.Type.Bytes()
}

// RGBA is a display colour.
type RGBA struct {
	Red, Green, Blue, Alpha int
}

// ChannelBinding is the rendering window and colour for one channel.
type ChannelBinding struct {
	InputStart float64
	InputEnd   float64
	Color      RGBA
	Active     bool
}

// RenderingDef holds the rendering settings of a pixel set.
type RenderingDef struct {
	ID       int64
	PixelsID int64
	Channels []ChannelBinding
	Details  Details
}
