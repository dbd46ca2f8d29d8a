package server

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/storage"
)

type storedChannel struct {
	ID               int64
	Index            int
	GlobalMin        float64
	GlobalMax        float64
	LogicalChannelID int64
}

type storedPixels struct {
	ID                                int64
	ImageID                           int64
	SizeX, SizeY, SizeZ, SizeC, SizeT int
	TypeID                            int64
	Channels                          []storedChannel
	Details                           model.Details
}

func (svc *Service) getStoredPixels(id int64) (*storedPixels, error) {
	sp := new(storedPixels)
	found, err := svc.kv.GetObject(storage.Key(pixelsPrefix, id), sp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("pixels %d: %w", id, ome.ErrNotFound)
	}
	return sp, nil
}

// describe expands stored pixels with their type and logical channels.
func (svc *Service) describe(sp *storedPixels) (*model.Pixels, error) {
	pt := new(model.PixelsType)
	found, err := svc.kv.GetObject(storage.Key(pixelsTypePrefix, sp.TypeID), pt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("pixels %d has unknown type %d", sp.ID, sp.TypeID)
	}
	p := &model.Pixels{
		ID:      sp.ID,
		ImageID: sp.ImageID,
		SizeX:   sp.SizeX,
		SizeY:   sp.SizeY,
		SizeZ:   sp.SizeZ,
		SizeC:   sp.SizeC,
		SizeT:   sp.SizeT,
		Type:    pt,
		Details: sp.Details,
	}
	for _, sc := range sp.Channels {
		ch := model.Channel{ID: sc.ID, Index: sc.Index, GlobalMin: sc.GlobalMin, GlobalMax: sc.GlobalMax}
		if _, err := svc.kv.GetObject(storage.Key(logicalChannelPrefix, sc.LogicalChannelID), &ch.LogicalChannel); err != nil {
			return nil, err
		}
		p.Channels = append(p.Channels, ch)
	}
	return p, nil
}

func (s *Session) CreateImage(ctx context.Context, spec model.ImageSpec) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if spec.SizeX <= 0 || spec.SizeY <= 0 || spec.SizeZ <= 0 || spec.SizeT <= 0 || len(spec.Channels) == 0 {
		return 0, fmt.Errorf("bad image dimensions x=%d y=%d z=%d c=%d t=%d",
			spec.SizeX, spec.SizeY, spec.SizeZ, len(spec.Channels), spec.SizeT)
	}
	pt, err := s.FindPixelsType(ctx, spec.Type.Value)
	if err != nil {
		return 0, err
	}
	if pt == nil {
		return 0, fmt.Errorf("pixels type %q: %w", spec.Type.Value, ome.ErrNotFound)
	}

	img := model.Image{Name: spec.Name, Description: spec.Description}
	if err := s.prepareSave(imagePrefix, &img.ID, &img.Details); err != nil {
		return 0, err
	}
	sp := storedPixels{
		ImageID: img.ID,
		SizeX:   spec.SizeX,
		SizeY:   spec.SizeY,
		SizeZ:   spec.SizeZ,
		SizeC:   len(spec.Channels),
		SizeT:   spec.SizeT,
		TypeID:  pt.ID,
	}
	if err := s.prepareSave(pixelsPrefix, &sp.ID, &sp.Details); err != nil {
		return 0, err
	}
	for i := range spec.Channels {
		chID, err := s.svc.kv.NextID(channelPrefix)
		if err != nil {
			return 0, err
		}
		lc, err := s.SaveLogicalChannel(ctx, &model.LogicalChannel{})
		if err != nil {
			return 0, err
		}
		sp.Channels = append(sp.Channels, storedChannel{ID: chID, Index: i, LogicalChannelID: lc.ID})
	}
	img.PixelsID = sp.ID
	if err := s.svc.kv.PutObject(storage.Key(pixelsPrefix, sp.ID), &sp); err != nil {
		return 0, err
	}
	if err := s.svc.kv.PutObject(storage.Key(imagePrefix, img.ID), &img); err != nil {
		return 0, err
	}
	s.svc.logger.Infof("Created image %d (%q) with pixels %d: %d x %d x %d, %d channels, %d timepoints, %s\n",
		img.ID, img.Name, sp.ID, sp.SizeX, sp.SizeY, sp.SizeZ, sp.SizeC, sp.SizeT, pt.Value)
	return img.ID, nil
}

func (s *Session) RetrievePixDescription(ctx context.Context, pixelsID int64) (*model.Pixels, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sp, err := s.svc.getStoredPixels(pixelsID)
	if err != nil {
		return nil, err
	}
	return s.svc.describe(sp)
}

func (s *Session) SetChannelGlobalMinMax(ctx context.Context, pixelsID int64, c int, min, max float64) error {
	if err := s.check(); err != nil {
		return err
	}
	sp, err := s.svc.getStoredPixels(pixelsID)
	if err != nil {
		return err
	}
	if err := s.canModify(sp.Details); err != nil {
		return err
	}
	if c < 0 || c >= len(sp.Channels) {
		return fmt.Errorf("channel %d out of range for pixels %d", c, pixelsID)
	}
	sp.Channels[c].GlobalMin = min
	sp.Channels[c].GlobalMax = max
	return s.svc.kv.PutObject(storage.Key(pixelsPrefix, sp.ID), sp)
}

func checkPlane(sp *storedPixels, z, c, t int) error {
	if z < 0 || z >= sp.SizeZ || c < 0 || c >= sp.SizeC || t < 0 || t >= sp.SizeT {
		return fmt.Errorf("plane z=%d c=%d t=%d out of range for pixels %d", z, c, t, sp.ID)
	}
	return nil
}

func (s *Session) GetPlane(ctx context.Context, pixelsID int64, z, c, t int) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sp, err := s.svc.getStoredPixels(pixelsID)
	if err != nil {
		return nil, err
	}
	if err := checkPlane(sp, z, c, t); err != nil {
		return nil, err
	}
	plane, err := s.svc.kv.GetPlane(pixelsID, z, c, t)
	if err != nil {
		return nil, err
	}
	if plane == nil {
		p, err := s.svc.describe(sp)
		if err != nil {
			return nil, err
		}
		plane = make([]byte, p.PlaneBytes())
	}
	return plane, nil
}

func (s *Session) SetPlane(ctx context.Context, pixelsID int64, z, c, t int, plane []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	sp, err := s.svc.getStoredPixels(pixelsID)
	if err != nil {
		return err
	}
	if err := s.canModify(sp.Details); err != nil {
		return err
	}
	if err := checkPlane(sp, z, c, t); err != nil {
		return err
	}
	p, err := s.svc.describe(sp)
	if err != nil {
		return err
	}
	if len(plane) != p.PlaneBytes() {
		return fmt.Errorf("plane of %d bytes doesn't fit pixels %d (expected %d bytes)", len(plane), pixelsID, p.PlaneBytes())
	}
	return s.svc.kv.PutPlane(pixelsID, z, c, t, plane)
}

// --- RenderingService ---

var defaultChannelColors = []model.RGBA{
	{Red: 255, Alpha: 255},
	{Green: 255, Alpha: 255},
	{Blue: 255, Alpha: 255},
}

func (s *Session) GetRenderingDef(ctx context.Context, pixelsID int64) (*model.RenderingDef, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rd := new(model.RenderingDef)
	found, err := s.svc.kv.GetObject(storage.Key(renderingDefPrefix, pixelsID), rd)
	if err != nil || !found {
		return nil, err
	}
	return rd, nil
}

func (s *Session) ResetDefaults(ctx context.Context, pixelsID int64) (*model.RenderingDef, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sp, err := s.svc.getStoredPixels(pixelsID)
	if err != nil {
		return nil, err
	}
	existing, err := s.GetRenderingDef(ctx, pixelsID)
	if err != nil {
		return nil, err
	}
	rd := &model.RenderingDef{PixelsID: pixelsID}
	if existing != nil {
		rd.ID = existing.ID
		rd.Details = existing.Details
		if err := s.canModify(rd.Details); err != nil {
			return nil, err
		}
	} else {
		if rd.ID, err = s.svc.kv.NextID(renderingDefPrefix); err != nil {
			return nil, err
		}
		rd.Details = s.newDetails()
	}
	for i, ch := range sp.Channels {
		color := model.RGBA{Red: 255, Green: 255, Blue: 255, Alpha: 255}
		if len(sp.Channels) > 1 && i < len(defaultChannelColors) {
			color = defaultChannelColors[i]
		}
		rd.Channels = append(rd.Channels, model.ChannelBinding{
			InputStart: ch.GlobalMin,
			InputEnd:   ch.GlobalMax,
			Color:      color,
			Active:     true,
		})
	}
	if err := s.svc.kv.PutObject(storage.Key(renderingDefPrefix, pixelsID), rd); err != nil {
		return nil, err
	}
	return rd, nil
}

func (s *Session) SaveRenderingDef(ctx context.Context, rd *model.RenderingDef) (*model.RenderingDef, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sp, err := s.svc.getStoredPixels(rd.PixelsID)
	if err != nil {
		return nil, err
	}
	if len(rd.Channels) != len(sp.Channels) {
		return nil, fmt.Errorf("rendering settings have %d channels, pixels %d has %d", len(rd.Channels), sp.ID, len(sp.Channels))
	}
	existing, err := s.GetRenderingDef(ctx, rd.PixelsID)
	if err != nil {
		return nil, err
	}
	saved := *rd
	saved.Channels = append([]model.ChannelBinding(nil), rd.Channels...)
	if existing != nil {
		if err := s.canModify(existing.Details); err != nil {
			return nil, err
		}
		saved.ID = existing.ID
		saved.Details = existing.Details
	} else {
		if saved.ID, err = s.svc.kv.NextID(renderingDefPrefix); err != nil {
			return nil, err
		}
		saved.Details = s.newDetails()
	}
	if err := s.svc.kv.PutObject(storage.Key(renderingDefPrefix, saved.PixelsID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}
