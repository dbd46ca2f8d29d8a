package scriptutil

import (
	"context"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

// ResetRenderingSettings sets the display window of channel c of a pixel set to
// [min, max] and saves the settings, creating default settings first if there are none.
// A nil rgba keeps the channel's colour, except that newly created settings are white.
func ResetRenderingSettings(ctx context.Context, re *service.RenderingEngine, pixelsID int64, c int, min, max float64, rgba *model.RGBA) error {
	re.LookupPixels(pixelsID)
	found, err := re.LookupRenderingDef(ctx)
	if err != nil {
		return err
	}
	if !found {
		if err := re.ResetDefaults(ctx); err != nil {
			return err
		}
		if rgba == nil {
			white := Colours["White"]
			rgba = &white
		}
		if found, err = re.LookupRenderingDef(ctx); err != nil {
			return err
		}
	}
	if !found {
		return ome.NewDataError("still no rendering def for pixels %d", pixelsID)
	}

	if err := re.Load(ctx); err != nil {
		return err
	}
	if err := re.SetChannelWindow(c, min, max); err != nil {
		return err
	}
	if rgba != nil {
		if err := re.SetRGBA(c, *rgba); err != nil {
			return err
		}
	}
	return re.SaveCurrentSettings(ctx)
}
