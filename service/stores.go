package service

import (
	"context"
	"fmt"
	"time"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
)

// RawFileStore reads and writes the contents of one original file at a time.
type RawFileStore struct {
	fs     FileService
	fileID int64
}

func NewRawFileStore(fs FileService) *RawFileStore {
	return &RawFileStore{fs: fs}
}

func (s *RawFileStore) SetFileID(id int64) {
	s.fileID = id
}

func (s *RawFileStore) FileID() int64 {
	return s.fileID
}

func (s *RawFileStore) Read(ctx context.Context, offset int64, length int) ([]byte, error) {
	if s.fileID == 0 {
		return nil, fmt.Errorf("raw file store has no file set")
	}
	return s.fs.ReadFile(ctx, s.fileID, offset, length)
}

func (s *RawFileStore) Write(ctx context.Context, block []byte, offset int64) error {
	if s.fileID == 0 {
		return fmt.Errorf("raw file store has no file set")
	}
	return s.fs.WriteFile(ctx, s.fileID, block, offset)
}

// RawPixelsStore reads and writes planes of one pixel set at a time.
type RawPixelsStore struct {
	ps       PlaneService
	pixelsID int64
}

func NewRawPixelsStore(ps PlaneService) *RawPixelsStore {
	return &RawPixelsStore{ps: ps}
}

func (s *RawPixelsStore) SetPixelsID(id int64) {
	s.pixelsID = id
}

func (s *RawPixelsStore) GetPlane(ctx context.Context, z, c, t int) ([]byte, error) {
	if s.pixelsID == 0 {
		return nil, fmt.Errorf("raw pixels store has no pixels set")
	}
	return s.ps.GetPlane(ctx, s.pixelsID, z, c, t)
}

func (s *RawPixelsStore) SetPlane(ctx context.Context, plane []byte, z, c, t int) error {
	if s.pixelsID == 0 {
		return fmt.Errorf("raw pixels store has no pixels set")
	}
	return s.ps.SetPlane(ctx, s.pixelsID, z, c, t, plane)
}

func (s *RawPixelsStore) Close() {
	s.pixelsID = 0
}

// RenderingEngine edits the rendering settings of a pixel set.  Changes are kept locally
// until SaveCurrentSettings.
type RenderingEngine struct {
	rs       RenderingService
	pixelsID int64
	def      *model.RenderingDef
}

func NewRenderingEngine(rs RenderingService) *RenderingEngine {
	return &RenderingEngine{rs: rs}
}

func (re *RenderingEngine) LookupPixels(pixelsID int64) {
	re.pixelsID = pixelsID
	re.def = nil
}

// LookupRenderingDef returns false if the pixels have no rendering settings yet.
func (re *RenderingEngine) LookupRenderingDef(ctx context.Context) (bool, error) {
	rd, err := re.rs.GetRenderingDef(ctx, re.pixelsID)
	if err != nil {
		return false, err
	}
	re.def = rd
	return rd != nil, nil
}

func (re *RenderingEngine) ResetDefaults(ctx context.Context) error {
	rd, err := re.rs.ResetDefaults(ctx, re.pixelsID)
	if err != nil {
		return err
	}
	re.def = rd
	return nil
}

func (re *RenderingEngine) Load(ctx context.Context) error {
	if re.def == nil {
		return fmt.Errorf("no rendering settings loaded for pixels %d", re.pixelsID)
	}
	return nil
}

func (re *RenderingEngine) binding(c int) (*model.ChannelBinding, error) {
	if re.def == nil {
		return nil, fmt.Errorf("no rendering settings loaded for pixels %d", re.pixelsID)
	}
	if c < 0 || c >= len(re.def.Channels) {
		return nil, fmt.Errorf("channel %d out of range for pixels %d", c, re.pixelsID)
	}
	return &re.def.Channels[c], nil
}

func (re *RenderingEngine) SetChannelWindow(c int, start, end float64) error {
	b, err := re.binding(c)
	if err != nil {
		return err
	}
	b.InputStart, b.InputEnd = start, end
	return nil
}

func (re *RenderingEngine) SetRGBA(c int, rgba model.RGBA) error {
	b, err := re.binding(c)
	if err != nil {
		return err
	}
	b.Color = rgba
	return nil
}

// Settings returns the currently loaded rendering settings.
func (re *RenderingEngine) Settings() *model.RenderingDef {
	return re.def
}

func (re *RenderingEngine) SaveCurrentSettings(ctx context.Context) error {
	if re.def == nil {
		return fmt.Errorf("no rendering settings loaded for pixels %d", re.pixelsID)
	}
	rd, err := re.rs.SaveRenderingDef(ctx, re.def)
	if err != nil {
		return err
	}
	re.def = rd
	return nil
}

func (re *RenderingEngine) Close() {
	re.def = nil
	re.pixelsID = 0
}

// Handle tracks an asynchronous disk usage request.
type Handle struct {
	du DiskUsageService
	id string
}

// SubmitDiskUsage starts a disk usage computation.
func SubmitDiskUsage(ctx context.Context, du DiskUsageService, req model.DiskUsageRequest) (*Handle, error) {
	id, err := du.SubmitDiskUsage(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Handle{du: du, id: id}, nil
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) Status(ctx context.Context) (*model.HandleStatus, error) {
	return h.du.HandleStatus(ctx, h.id)
}

func (h *Handle) Response(ctx context.Context) (*model.HandleResult, error) {
	return h.du.HandleResult(ctx, h.id)
}

func (h *Handle) Close(ctx context.Context) error {
	return h.du.CloseHandle(ctx, h.id)
}

// Wait blocks until the request is done.  A negative timeout waits indefinitely, zero
// looks once, and a positive timeout polls every interval until it elapses.  A request
// that is not done when waiting ends returns ome.ErrStillRunning.
func (h *Handle) Wait(ctx context.Context, timeout, interval time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		st, err := h.Status(ctx)
		if err != nil {
			return err
		}
		if st.Done {
			return nil
		}
		if timeout == 0 || (timeout > 0 && !time.Now().Before(deadline)) {
			return ome.ErrStillRunning
		}
		wait := interval
		if timeout > 0 {
			if left := time.Until(deadline); left < wait {
				wait = left
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
