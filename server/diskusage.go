package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/storage"

	"github.com/google/uuid"
)

type diskUsageHandle struct {
	sessionID string

	sync.Mutex
	done   bool
	result model.HandleResult
}

func (h *diskUsageHandle) finish(result model.HandleResult) {
	h.Lock()
	h.done = true
	h.result = result
	h.Unlock()
}

func (s *Session) SubmitDiskUsage(ctx context.Context, req model.DiskUsageRequest) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	h := &diskUsageHandle{sessionID: s.ec.SessionID}
	s.svc.mu.Lock()
	s.svc.handles[id] = h
	s.svc.mu.Unlock()

	s.svc.running.Add(1)
	go func() {
		defer s.svc.running.Done()
		if s.svc.diskUsageDelay > 0 {
			time.Sleep(s.svc.diskUsageDelay)
		}
		timedLog := ome.NewTimeLog(s.svc.logger)
		usage, errResp := s.svc.diskUsage(context.Background(), req)
		h.finish(model.HandleResult{Usage: usage, Error: errResp})
		timedLog.Debugf("Computed disk usage for handle %s", id)
	}()
	return id, nil
}

func (s *Session) handle(id string) (*diskUsageHandle, error) {
	s.svc.mu.Lock()
	h, found := s.svc.handles[id]
	s.svc.mu.Unlock()
	if !found || h.sessionID != s.ec.SessionID {
		return nil, fmt.Errorf("handle %s: %w", id, ome.ErrNotFound)
	}
	return h, nil
}

func (s *Session) HandleStatus(ctx context.Context, id string) (*model.HandleStatus, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	h, err := s.handle(id)
	if err != nil {
		return nil, err
	}
	h.Lock()
	defer h.Unlock()
	st := &model.HandleStatus{Done: h.done, Steps: 1}
	if h.done {
		st.CurrentStep = 1
	}
	return st, nil
}

func (s *Session) HandleResult(ctx context.Context, id string) (*model.HandleResult, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	h, err := s.handle(id)
	if err != nil {
		return nil, err
	}
	h.Lock()
	defer h.Unlock()
	if !h.done {
		return nil, ome.ErrStillRunning
	}
	result := h.result
	return &result, nil
}

func (s *Session) CloseHandle(ctx context.Context, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.handle(id); err != nil {
		return err
	}
	s.svc.mu.Lock()
	delete(s.svc.handles, id)
	s.svc.mu.Unlock()
	return nil
}

func badRequest(format string, args ...interface{}) *model.ErrorResponse {
	return &model.ErrorResponse{
		Category:   "ome.cmd.DiskUsage",
		Name:       "BadRequest",
		Parameters: map[string]string{"message": fmt.Sprintf(format, args...)},
	}
}

// usageTally accumulates bytes and file counts per owner and group.
type usageTally struct {
	bytes map[model.UserGroup]int64
	files map[model.UserGroup]int
}

func (u *usageTally) add(d model.Details, n int64) {
	ug := model.UserGroup{UserID: d.OwnerID, GroupID: d.GroupID}
	u.bytes[ug] += n
	u.files[ug]++
}

// diskUsage sums the bytes of original files and pixel planes owned by the requested
// experimenters, or held by the requested images and files.
func (svc *Service) diskUsage(ctx context.Context, req model.DiskUsageRequest) (*model.DiskUsageResponse, *model.ErrorResponse) {
	users := make(map[int64]*model.Experimenter)
	var images, files []int64
	for _, class := range req.Classes {
		switch class {
		case model.ExperimenterClass:
			err := svc.kv.Scan([]byte(experimenterPrefix+"/"), func(k, v []byte) error {
				e := new(model.Experimenter)
				if _, err := svc.kv.GetObject(k, e); err != nil {
					return err
				}
				users[e.ID] = e
				return nil
			})
			if err != nil {
				return nil, badRequest("can't list experimenters: %v", err)
			}
		default:
			return nil, badRequest("usage of class %s not supported", class)
		}
	}
	classes := make([]string, 0, len(req.Objects))
	for class := range req.Objects {
		classes = append(classes, string(class))
	}
	sort.Strings(classes)
	for _, name := range classes {
		class := model.Class(name)
		ids := req.Objects[class]
		switch class {
		case model.ExperimenterClass:
			for _, id := range ids {
				e := new(model.Experimenter)
				found, err := svc.kv.GetObject(storage.Key(experimenterPrefix, id), e)
				if err != nil {
					return nil, badRequest("can't read experimenter %d: %v", id, err)
				}
				if !found {
					return nil, badRequest("no Experimenter with id %d", id)
				}
				users[id] = e
			}
		case model.ImageClass:
			images = append(images, ids...)
		case model.OriginalFileClass:
			files = append(files, ids...)
		default:
			return nil, badRequest("usage of class %s not supported", class)
		}
	}

	tally := &usageTally{
		bytes: make(map[model.UserGroup]int64),
		files: make(map[model.UserGroup]int),
	}
	for _, e := range users {
		tally.bytes[model.UserGroup{UserID: e.ID, GroupID: e.GroupID}] += 0
	}
	owned := func(d model.Details) bool {
		_, found := users[d.OwnerID]
		return found
	}

	// Original files.
	wantFile := make(map[int64]bool, len(files))
	for _, id := range files {
		wantFile[id] = true
	}
	err := svc.kv.Scan([]byte(originalFilePrefix+"/"), func(k, v []byte) error {
		var f model.OriginalFile
		if _, err := svc.kv.GetObject(k, &f); err != nil {
			return err
		}
		if !owned(f.Details) && !wantFile[f.ID] {
			return nil
		}
		size, err := svc.blobs.Size(ctx, fileKey(f.ID))
		if err != nil {
			return err
		}
		tally.add(f.Details, size)
		delete(wantFile, f.ID)
		return nil
	})
	if err != nil {
		return nil, badRequest("can't size original files: %v", err)
	}
	for id := range wantFile {
		return nil, badRequest("no OriginalFile with id %d", id)
	}

	// Pixel planes.
	wantImage := make(map[int64]bool, len(images))
	for _, id := range images {
		wantImage[id] = true
	}
	err = svc.kv.Scan([]byte(pixelsPrefix+"/"), func(k, v []byte) error {
		var sp storedPixels
		if _, err := svc.kv.GetObject(k, &sp); err != nil {
			return err
		}
		if !owned(sp.Details) && !wantImage[sp.ImageID] {
			return nil
		}
		delete(wantImage, sp.ImageID)
		p, err := svc.describe(&sp)
		if err != nil {
			return err
		}
		var planes int64
		if err := svc.kv.Scan(storage.PlanesPrefix(sp.ID), func(k, v []byte) error {
			planes++
			return nil
		}); err != nil {
			return err
		}
		if planes > 0 {
			tally.add(sp.Details, planes*int64(p.PlaneBytes()))
		}
		return nil
	})
	if err != nil {
		return nil, badRequest("can't size pixels: %v", err)
	}
	for id := range wantImage {
		return nil, badRequest("no Image with id %d", id)
	}
	return &model.DiskUsageResponse{TotalBytesUsed: tally.bytes, TotalFileCount: tally.files}, nil
}
