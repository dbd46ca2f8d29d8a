package scriptutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

var (
	tokenRegexp   = regexp.MustCompile(`(.+)\.`)
	timeRegexp    = regexp.MustCompile(`T(\d+)`)
	channelRegexp = regexp.MustCompile(`_C(.+?)(_|$)`)
	zRegexp       = regexp.MustCompile(`_Z(\d+)`)
)

// rgbChannel is the channel name looked up for every plane of RGB images.
const rgbChannel = "0"

type planeKey struct {
	z int
	c string
	t int
}

// dirLayout is the arrangement of the image files of one directory.
type dirLayout struct {
	planes   map[planeKey]string
	channels []string
	colours  map[int]model.RGBA
	rgb      bool

	zStart, sizeZ int
	tStart, sizeT int

	name string

	// last is the file used to determine the frame size and pixels type.
	last string
}

func (l *dirLayout) sizeC() int {
	return len(l.channels)
}

// channelColour guesses a display colour from a channel name.
func channelColour(name string) (model.RGBA, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "rfp"):
		return Colours["Red"], true
	case strings.Contains(lower, "gfp"):
		return Colours["Green"], true
	case strings.Contains(lower, "dapi"):
		return Colours["Blue"], true
	}
	return model.RGBA{}, false
}

// commonPrefix returns the longest prefix shared by all strings.
func commonPrefix(strs []string) string {
	if len(strs) == 0 {
		return ""
	}
	prefix := strs[0]
	for _, s := range strs[1:] {
		n := 0
		for n < len(prefix) && n < len(s) && prefix[n] == s[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return prefix
}

// scanDir maps every file of a directory to its (Z, channel, T) position.  Positions
// come from "_Z<n>", "_C<name>" and "T<n>" in the file name; a missing cue is
// position 0 or channel "0".
func scanDir(dir string) (*dirLayout, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	l := &dirLayout{
		planes:  make(map[planeKey]string),
		colours: make(map[int]model.RGBA),
	}
	channelSet := make(map[string]struct{})
	var tokens []string
	zMin, zMax, tMin, tMax := -1, -1, -1, -1
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".jpg" || ext == ".jpeg" {
			l.rgb = true
		}
		var key planeKey
		key.c = rgbChannel
		if m := timeRegexp.FindStringSubmatch(name); m != nil {
			key.t, _ = strconv.Atoi(m[1])
		}
		if m := channelRegexp.FindStringSubmatch(name); m != nil {
			key.c = m[1]
		}
		if m := zRegexp.FindStringSubmatch(name); m != nil {
			key.z, _ = strconv.Atoi(m[1])
		}
		if m := tokenRegexp.FindStringSubmatch(name); m != nil {
			tokens = append(tokens, m[1])
		}
		if zMin < 0 || key.z < zMin {
			zMin = key.z
		}
		if key.z > zMax {
			zMax = key.z
		}
		if tMin < 0 || key.t < tMin {
			tMin = key.t
		}
		if key.t > tMax {
			tMax = key.t
		}
		channelSet[key.c] = struct{}{}
		l.planes[key] = filepath.Join(dir, name)
		l.last = l.planes[key]
	}
	if len(l.planes) == 0 {
		return nil, ome.NewDataError("no image files in %s", dir)
	}
	l.zStart, l.sizeZ = zMin, zMax-zMin+1
	l.tStart, l.sizeT = tMin, tMax-tMin+1

	if l.rgb {
		rgbPlanes := make(map[planeKey]string, len(l.planes))
		for key, path := range l.planes {
			key.c = rgbChannel
			rgbPlanes[key] = path
		}
		l.planes = rgbPlanes
		l.channels = []string{"red", "green", "blue"}
		l.colours[0] = Colours["Red"]
		l.colours[1] = Colours["Green"]
		l.colours[2] = Colours["Blue"]
	} else {
		for c := range channelSet {
			l.channels = append(l.channels, c)
		}
		sort.Strings(l.channels)
		for i, c := range l.channels {
			if rgba, ok := channelColour(c); ok {
				l.colours[i] = rgba
			}
		}
	}
	l.name = strings.Trim(commonPrefix(tokens), "0T_")
	return l, nil
}

// readPlane returns the plane at a position of the layout or a zero plane if no file
// holds it.
func (l *dirLayout) readPlane(c, z, t int, pixType string, sizeX, sizeY int) (*Plane, error) {
	key := planeKey{z: z + l.zStart, t: t + l.tStart, c: rgbChannel}
	rgbIndex := NoRGBIndex
	if l.rgb {
		rgbIndex = c
	} else {
		key.c = l.channels[c]
	}
	path, found := l.planes[key]
	if !found {
		return NewPlane(pixType, sizeX, sizeY), nil
	}
	p, err := GetPlaneFromImage(path, rgbIndex)
	if err != nil {
		return nil, err
	}
	if p.SizeX != sizeX || p.SizeY != sizeY {
		return nil, ome.NewDataError("%s is %d x %d, expected %d x %d", path, p.SizeX, p.SizeY, sizeX, sizeY)
	}
	p.Type = pixType
	return p, nil
}

// UploadDirAsImages imports the image files of a directory as a single new image,
// determining its Z, C and T sizes from the file names.  Missing planes are zero
// filled.  If datasetID is not zero the image is placed in that dataset.  It returns
// the new image id.
func UploadDirAsImages(ctx context.Context, sess service.Session, dir string, datasetID int64, logger ome.Logger) (int64, error) {
	layout, err := scanDir(dir)
	if err != nil {
		return 0, err
	}
	description := fmt.Sprintf("Imported from images in %s", dir)
	logger.Infof("Creating image: %s\n", layout.name)

	rgbIndex := NoRGBIndex
	if layout.rgb {
		rgbIndex = 0
	}
	sample, err := GetPlaneFromImage(layout.last, rgbIndex)
	if err != nil {
		return 0, err
	}
	pt, err := sess.Query().FindPixelsType(ctx, sample.Type)
	if err != nil {
		return 0, err
	}
	if pt == nil && strings.HasPrefix(sample.Type, "float") {
		if pt, err = sess.Query().FindPixelsType(ctx, "float"); err != nil {
			return 0, err
		}
	}
	if pt == nil {
		logger.Warningf("Unknown pixels type for: %s\n", sample.Type)
		return 0, ome.NewDataError("unknown pixels type %q for images in %s", sample.Type, dir)
	}
	sizeX, sizeY := sample.SizeX, sample.SizeY
	logger.Debugf("sizeX: %d  sizeY: %d sizeZ: %d  sizeC: %d  sizeT: %d\n",
		sizeX, sizeY, layout.sizeZ, layout.sizeC(), layout.sizeT)

	timedLog := ome.NewTimeLog(logger)
	spec := model.ImageSpec{
		SizeX:       sizeX,
		SizeY:       sizeY,
		SizeZ:       layout.sizeZ,
		SizeT:       layout.sizeT,
		Type:        *pt,
		Name:        layout.name,
		Description: description,
	}
	for c := 0; c < layout.sizeC(); c++ {
		spec.Channels = append(spec.Channels, c)
	}
	imageID, err := sess.Pixels().CreateImage(ctx, spec)
	if err != nil {
		return 0, err
	}
	pixelsID, err := sess.Query().PixelsIDOfImage(ctx, imageID)
	if err != nil {
		return 0, err
	}

	if err := uploadPlanes(ctx, sess, layout, pixelsID, pt.Value, sizeX, sizeY, logger); err != nil {
		return 0, err
	}

	pixels, err := sess.Pixels().RetrievePixDescription(ctx, pixelsID)
	if err != nil {
		return 0, err
	}
	for i, ch := range pixels.Channels {
		lc := ch.LogicalChannel
		lc.Name = layout.channels[i]
		if _, err := sess.Update().SaveLogicalChannel(ctx, &lc); err != nil {
			return 0, err
		}
	}

	if datasetID != 0 {
		link := &model.DatasetImageLink{
			Parent: model.Ref{Class: model.DatasetClass, ID: datasetID},
			Child:  model.Ref{Class: model.ImageClass, ID: imageID},
		}
		if _, err := sess.Update().SaveDatasetImageLink(ctx, link); err != nil {
			return 0, err
		}
	}
	timedLog.Infof("Imported %d files from %s as image %d", len(layout.planes), dir, imageID)
	return imageID, nil
}

// uploadPlanes writes every plane of the layout channel by channel, then records each
// channel's range and rendering window.
func uploadPlanes(ctx context.Context, sess service.Session, layout *dirLayout, pixelsID int64,
	pixType string, sizeX, sizeY int, logger ome.Logger) error {

	store := service.NewRawPixelsStore(sess.Planes())
	store.SetPixelsID(pixelsID)
	defer store.Close()

	for c := 0; c < layout.sizeC(); c++ {
		var minValue, maxValue float64
		for z := 0; z < layout.sizeZ; z++ {
			for t := 0; t < layout.sizeT; t++ {
				plane, err := layout.readPlane(c, z, t, pixType, sizeX, sizeY)
				if err != nil {
					return err
				}
				logger.Debugf("Uploading plane: theZ: %d, theC: %d, theT: %d\n", z, c, t)
				if err := UploadPlane(ctx, store, plane, z, c, t); err != nil {
					return err
				}
				lo, hi := plane.MinMax()
				if lo < minValue {
					minValue = lo
				}
				if hi > maxValue {
					maxValue = hi
				}
			}
		}
		if err := sess.Pixels().SetChannelGlobalMinMax(ctx, pixelsID, c, minValue, maxValue); err != nil {
			return err
		}
		var rgba *model.RGBA
		if colour, ok := layout.colours[c]; ok {
			rgba = &colour
		}
		re := service.NewRenderingEngine(sess.Rendering())
		err := ResetRenderingSettings(ctx, re, pixelsID, c, minValue, maxValue, rgba)
		re.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
