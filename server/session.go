package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
	"github.com/janelia-flyem/omerotools/storage"
)

// Session is the server side of a logged-in experimenter.  It implements every service
// interface; the accessors all return the session itself.
type Session struct {
	svc *Service
	ec  model.EventContext
}

var _ service.Session = (*Session)(nil)

func (s *Session) Admin() service.AdminService         { return s }
func (s *Session) Query() service.QueryService         { return s }
func (s *Session) Update() service.UpdateService       { return s }
func (s *Session) Pixels() service.PixelsService       { return s }
func (s *Session) Files() service.FileService          { return s }
func (s *Session) Planes() service.PlaneService        { return s }
func (s *Session) Rendering() service.RenderingService { return s }
func (s *Session) DiskUsage() service.DiskUsageService { return s }

func (s *Session) Close() error {
	if !s.svc.sessionOpen(s.ec.SessionID) {
		return ome.ErrSessionClosed
	}
	s.svc.closeSession(s.ec.SessionID)
	return nil
}

func (s *Session) check() error {
	if !s.svc.sessionOpen(s.ec.SessionID) {
		return ome.ErrSessionClosed
	}
	return nil
}

func (s *Session) newDetails() model.Details {
	return model.Details{OwnerID: s.ec.UserID, GroupID: s.ec.GroupID}
}

func (s *Session) canModify(d model.Details) error {
	if s.ec.IsAdmin || d.OwnerID == s.ec.UserID {
		return nil
	}
	return ome.ErrNotAdmin
}

type ownedRecord struct {
	Details model.Details
}

// prepareSave assigns an id to a new entity, or checks that the current user may
// overwrite an existing one and carries over its ownership.
func (s *Session) prepareSave(prefix string, id *int64, details *model.Details) error {
	if *id == 0 {
		newID, err := s.svc.kv.NextID(prefix)
		if err != nil {
			return err
		}
		*id = newID
		*details = s.newDetails()
		return nil
	}
	var rec ownedRecord
	found, err := s.svc.kv.GetObject(storage.Key(prefix, *id), &rec)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %d: %w", prefix, *id, ome.ErrNotFound)
	}
	if err := s.canModify(rec.Details); err != nil {
		return err
	}
	*details = rec.Details
	return nil
}

// --- AdminService ---

func (s *Session) EventContext(ctx context.Context) (*model.EventContext, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	ec := s.ec
	return &ec, nil
}

func (s *Session) GetExperimenter(ctx context.Context, id int64) (*model.Experimenter, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	e := new(model.Experimenter)
	found, err := s.svc.kv.GetObject(storage.Key(experimenterPrefix, id), e)
	if err != nil || !found {
		return nil, err
	}
	return e, nil
}

func (s *Session) ListExperimenters(ctx context.Context) ([]*model.Experimenter, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var users []*model.Experimenter
	err := s.svc.kv.Scan([]byte(experimenterPrefix+"/"), func(k, v []byte) error {
		e := new(model.Experimenter)
		if _, err := s.svc.kv.GetObject(k, e); err != nil {
			return err
		}
		users = append(users, e)
		return nil
	})
	return users, err
}

// --- QueryService ---

func (s *Session) FindPixelsType(ctx context.Context, value string) (*model.PixelsType, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var match *model.PixelsType
	err := s.svc.kv.Scan([]byte(pixelsTypePrefix+"/"), func(k, v []byte) error {
		pt := new(model.PixelsType)
		if _, err := s.svc.kv.GetObject(k, pt); err != nil {
			return err
		}
		if pt.Value == value && match == nil {
			match = pt
		}
		return nil
	})
	return match, err
}

func (s *Session) FindFormat(ctx context.Context, value string) (*model.Format, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var match *model.Format
	err := s.svc.kv.Scan([]byte(formatPrefix+"/"), func(k, v []byte) error {
		f := new(model.Format)
		if _, err := s.svc.kv.GetObject(k, f); err != nil {
			return err
		}
		if f.Value == value && match == nil {
			match = f
		}
		return nil
	})
	return match, err
}

func (s *Session) GetFormat(ctx context.Context, id int64) (*model.Format, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	f := new(model.Format)
	found, err := s.svc.kv.GetObject(storage.Key(formatPrefix, id), f)
	if err != nil || !found {
		return nil, err
	}
	return f, nil
}

func (s *Session) GetOriginalFile(ctx context.Context, id int64) (*model.OriginalFile, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.svc.getOriginalFile(id)
}

func (svc *Service) getOriginalFile(id int64) (*model.OriginalFile, error) {
	f := new(model.OriginalFile)
	found, err := svc.kv.GetObject(storage.Key(originalFilePrefix, id), f)
	if err != nil || !found {
		return nil, err
	}
	return f, nil
}

func (s *Session) PixelsIDOfImage(ctx context.Context, imageID int64) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var img model.Image
	found, err := s.svc.kv.GetObject(storage.Key(imagePrefix, imageID), &img)
	if err != nil {
		return 0, err
	}
	if !found || img.PixelsID == 0 {
		return 0, fmt.Errorf("pixels of image %d: %w", imageID, ome.ErrNotFound)
	}
	return img.PixelsID, nil
}

// summary returns the id and name of an entity or false if it doesn't exist.
func (svc *Service) summary(class model.Class, id int64) (model.ObjectSummary, bool, error) {
	ref := model.Ref{Class: class, ID: id}
	var name string
	var found bool
	var err error
	switch class {
	case model.ExperimenterClass:
		var e model.Experimenter
		found, err = svc.kv.GetObject(storage.Key(experimenterPrefix, id), &e)
		name = e.OmeName
	case model.ProjectClass:
		var p model.Project
		found, err = svc.kv.GetObject(storage.Key(projectPrefix, id), &p)
		name = p.Name
	case model.DatasetClass:
		var d model.Dataset
		found, err = svc.kv.GetObject(storage.Key(datasetPrefix, id), &d)
		name = d.Name
	case model.ImageClass:
		var i model.Image
		found, err = svc.kv.GetObject(storage.Key(imagePrefix, id), &i)
		name = i.Name
	case model.OriginalFileClass:
		var f model.OriginalFile
		found, err = svc.kv.GetObject(storage.Key(originalFilePrefix, id), &f)
		name = f.Name
	default:
		return model.ObjectSummary{}, false, fmt.Errorf("unsupported class %q", class)
	}
	return model.ObjectSummary{Ref: ref, Name: name}, found, err
}

func (s *Session) GetObjects(ctx context.Context, class model.Class, ids []int64) ([]model.ObjectSummary, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var objs []model.ObjectSummary
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		obj, found, err := s.svc.summary(class, id)
		if err != nil {
			return nil, err
		}
		if found {
			objs = append(objs, obj)
		}
	}
	return objs, nil
}

// storedLink is an annotation link as persisted; the child is kept by id.
type storedLink struct {
	ID      int64
	Parent  model.Ref
	ChildID int64
	Details model.Details
}

func (svc *Service) getAnnotation(id int64) (*model.Annotation, error) {
	a := new(model.Annotation)
	found, err := svc.kv.GetObject(storage.Key(annotationPrefix, id), a)
	if err != nil || !found {
		return nil, err
	}
	if a.File != nil {
		f, err := svc.getOriginalFile(a.File.ID)
		if err != nil {
			return nil, err
		}
		if f != nil {
			a.File = f
		}
	}
	return a, nil
}

// linksOf returns the stored annotation links of a parent.
func (svc *Service) linksOf(parent model.Ref) ([]storedLink, error) {
	var links []storedLink
	err := svc.kv.Scan([]byte(annotationLinkPrefix+"/"), func(k, v []byte) error {
		var l storedLink
		if _, err := svc.kv.GetObject(k, &l); err != nil {
			return err
		}
		if l.Parent == parent {
			links = append(links, l)
		}
		return nil
	})
	return links, err
}

func (s *Session) ListAnnotations(ctx context.Context, parent model.Ref, ns string) ([]*model.Annotation, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	links, err := s.svc.linksOf(parent)
	if err != nil {
		return nil, err
	}
	var anns []*model.Annotation
	for _, l := range links {
		a, err := s.svc.getAnnotation(l.ChildID)
		if err != nil {
			return nil, err
		}
		if a == nil || (ns != "" && a.Ns != ns) {
			continue
		}
		anns = append(anns, a)
	}
	sort.Slice(anns, func(i, j int) bool { return anns[i].ID < anns[j].ID })
	return anns, nil
}
