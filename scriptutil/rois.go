package scriptutil

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

// cecogFields are the tab separated columns of a CeCog object detail line.
var cecogFields = []string{
	"frame", "objID", "primaryClassLabel", "primaryClassName",
	"centerX", "centerY", "mean", "sd", "secondaryClassabel",
	"secondaryClassName", "secondaryMean", "secondarySd",
}

type cecogObject struct {
	id     string
	points []model.Point
}

// parseCecogLine returns the named fields of a line.  Fields beyond the end of the line
// are absent.
func parseCecogLine(line string) map[string]string {
	parts := strings.Split(line, "\t")
	values := make(map[string]string, len(cecogFields))
	for i, name := range cecogFields {
		if i < len(parts) {
			values[name] = parts[i]
		}
	}
	return values
}

func cecogDescription(values map[string]string) string {
	var sb strings.Builder
	for _, name := range cecogFields {
		v, found := values[name]
		if !found {
			v = "(missing)"
		}
		fmt.Fprintf(&sb, "%s=%s\n", name, v)
	}
	return sb.String()
}

// UploadCecogObjectDetails reads a CeCog object detail file and saves one region of
// interest per detected object on an image, holding a point for each line of the
// object.  Lines whose frame is not an integer, like headers, are skipped.  Frames
// count from 1 and lines with an earlier frame are skipped too.
//
// For each saved region of interest the id of its last point is returned.
func UploadCecogObjectDetails(ctx context.Context, update service.UpdateService, imageID int64, path string, logger ome.Logger) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var objects []*cecogObject
	byID := make(map[string]*cecogObject)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		values := parseCecogLine(line)
		frame, err := strconv.ParseInt(strings.TrimSpace(values["frame"]), 10, 64)
		if err != nil {
			logger.Debugf("Non-roi line: %s\n", line)
			continue
		}
		if frame < 1 {
			logger.Debugf("Skipping line %d with frame %d: %s\n", lineNum, frame, line)
			continue
		}
		objID, found := values["objID"]
		if !found {
			return nil, ome.NewDataError("%s line %d: no object id", path, lineNum)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(values["centerX"]), 64)
		if err != nil {
			return nil, ome.NewDataError("%s line %d: bad centerX %q", path, lineNum, values["centerX"])
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(values["centerY"]), 64)
		if err != nil {
			return nil, ome.NewDataError("%s line %d: bad centerY %q", path, lineNum, values["centerY"])
		}
		className := values["primaryClassName"]
		theT := int(frame - 1)
		logger.Debugf("Adding point '%s' to frame: %d, x: %g, y: %g\n", className, theT, x, y)

		obj, found := byID[objID]
		if !found {
			obj = &cecogObject{id: objID}
			byID[objID] = obj
			objects = append(objects, obj)
		}
		obj.points = append(obj.points, model.Point{
			Cx:          x,
			Cy:          y,
			TheT:        theT,
			TextValue:   className,
			Description: cecogDescription(values),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var pointIDs []int64
	for _, obj := range objects {
		roi := &model.ROI{
			Image:       model.Ref{Class: model.ImageClass, ID: imageID},
			Description: fmt.Sprintf("objID: %s", obj.id),
		}
		for _, pt := range obj.points {
			roi.AddShape(pt)
		}
		saved, err := update.SaveROI(ctx, roi)
		if err != nil {
			return nil, err
		}
		pointIDs = append(pointIDs, saved.Shapes[len(saved.Shapes)-1].ID)
	}
	logger.Infof("Saved %d regions of interest on image %d from %s\n", len(objects), imageID, path)
	return pointIDs, nil
}
