package server

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/storage"
)

func (s *Session) SaveOriginalFile(ctx context.Context, f *model.OriginalFile) (*model.OriginalFile, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	saved := *f
	if err := s.prepareSave(originalFilePrefix, &saved.ID, &saved.Details); err != nil {
		return nil, err
	}
	if err := s.svc.kv.PutObject(storage.Key(originalFilePrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Session) SaveAnnotation(ctx context.Context, a *model.Annotation) (*model.Annotation, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.saveAnnotation(a)
}

func (s *Session) saveAnnotation(a *model.Annotation) (*model.Annotation, error) {
	saved := *a
	saved.MapValue = append([]model.NamedValue(nil), a.MapValue...)
	if saved.Kind == model.FileAnnotationKind {
		if saved.File == nil || saved.File.ID == 0 {
			return nil, fmt.Errorf("file annotation requires a saved original file")
		}
		f, err := s.svc.getOriginalFile(saved.File.ID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("original file %d: %w", saved.File.ID, ome.ErrNotFound)
		}
		saved.File = f
	}
	if err := s.prepareSave(annotationPrefix, &saved.ID, &saved.Details); err != nil {
		return nil, err
	}
	if err := s.svc.kv.PutObject(storage.Key(annotationPrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// checkParent makes sure a link parent exists and that the current user may annotate
// it.  Only admins may annotate experimenters other than themselves.
func (s *Session) checkParent(parent model.Ref) error {
	_, found, err := s.svc.summary(parent.Class, parent.ID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", parent, ome.ErrNotFound)
	}
	if parent.Class == model.ExperimenterClass && parent.ID != s.ec.UserID && !s.ec.IsAdmin {
		return ome.ErrNotAdmin
	}
	return nil
}

func (s *Session) SaveAnnotationLink(ctx context.Context, l *model.AnnotationLink) (*model.AnnotationLink, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if l.Child == nil {
		return nil, fmt.Errorf("annotation link has no child")
	}
	if err := s.checkParent(l.Parent); err != nil {
		return nil, err
	}
	child := l.Child
	if child.ID == 0 {
		var err error
		if child, err = s.saveAnnotation(child); err != nil {
			return nil, err
		}
	} else if stored, err := s.svc.getAnnotation(child.ID); err != nil {
		return nil, err
	} else if stored == nil {
		return nil, fmt.Errorf("annotation %d: %w", child.ID, ome.ErrNotFound)
	} else {
		child = stored
	}
	sl := storedLink{ID: l.ID, Parent: l.Parent, ChildID: child.ID}
	if err := s.prepareSave(annotationLinkPrefix, &sl.ID, &sl.Details); err != nil {
		return nil, err
	}
	if err := s.svc.kv.PutObject(storage.Key(annotationLinkPrefix, sl.ID), &sl); err != nil {
		return nil, err
	}
	s.svc.logger.Debugf("Linked annotation %d to %s\n", child.ID, l.Parent)
	return &model.AnnotationLink{ID: sl.ID, Parent: sl.Parent, Child: child, Details: sl.Details}, nil
}

func (s *Session) DeleteAnnotations(ctx context.Context, parent model.Ref, ns string) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if err := s.checkParent(parent); err != nil {
		return 0, err
	}
	links, err := s.svc.linksOf(parent)
	if err != nil {
		return 0, err
	}
	var deleted int
	for _, l := range links {
		a, err := s.svc.getAnnotation(l.ChildID)
		if err != nil {
			return deleted, err
		}
		if a == nil || (ns != "" && a.Ns != ns) {
			continue
		}
		if err := s.canModify(a.Details); err != nil {
			return deleted, err
		}
		if err := s.svc.kv.Delete(storage.Key(annotationLinkPrefix, l.ID)); err != nil {
			return deleted, err
		}
		if err := s.svc.kv.Delete(storage.Key(annotationPrefix, a.ID)); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Session) SaveROI(ctx context.Context, r *model.ROI) (*model.ROI, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if r.Image.Class != model.ImageClass {
		return nil, fmt.Errorf("ROI must be attached to an image, not %s", r.Image)
	}
	if _, found, err := s.svc.summary(model.ImageClass, r.Image.ID); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("%s: %w", r.Image, ome.ErrNotFound)
	}
	saved := *r
	saved.Shapes = append([]model.Point(nil), r.Shapes...)
	if err := s.prepareSave(roiPrefix, &saved.ID, &saved.Details); err != nil {
		return nil, err
	}
	for i := range saved.Shapes {
		if saved.Shapes[i].ID != 0 {
			continue
		}
		id, err := s.svc.kv.NextID(shapePrefix)
		if err != nil {
			return nil, err
		}
		saved.Shapes[i].ID = id
	}
	if err := s.svc.kv.PutObject(storage.Key(roiPrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Session) SaveLogicalChannel(ctx context.Context, lc *model.LogicalChannel) (*model.LogicalChannel, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	saved := *lc
	if saved.ID == 0 {
		id, err := s.svc.kv.NextID(logicalChannelPrefix)
		if err != nil {
			return nil, err
		}
		saved.ID = id
	}
	if err := s.svc.kv.PutObject(storage.Key(logicalChannelPrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Session) SaveProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	saved := *p
	if err := s.prepareSave(projectPrefix, &saved.ID, &saved.Details); err != nil {
		return nil, err
	}
	if err := s.svc.kv.PutObject(storage.Key(projectPrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Session) SaveDataset(ctx context.Context, d *model.Dataset) (*model.Dataset, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	saved := *d
	if err := s.prepareSave(datasetPrefix, &saved.ID, &saved.Details); err != nil {
		return nil, err
	}
	if err := s.svc.kv.PutObject(storage.Key(datasetPrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// SaveImage updates the name and description of an image.  Images are created with
// CreateImage.
func (s *Session) SaveImage(ctx context.Context, i *model.Image) (*model.Image, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if i.ID == 0 {
		return nil, fmt.Errorf("images must be created with their pixels")
	}
	var stored model.Image
	found, err := s.svc.kv.GetObject(storage.Key(imagePrefix, i.ID), &stored)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("image %d: %w", i.ID, ome.ErrNotFound)
	}
	if err := s.canModify(stored.Details); err != nil {
		return nil, err
	}
	stored.Name = i.Name
	stored.Description = i.Description
	if err := s.svc.kv.PutObject(storage.Key(imagePrefix, stored.ID), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Session) SaveDatasetImageLink(ctx context.Context, l *model.DatasetImageLink) (*model.DatasetImageLink, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if l.Parent.Class != model.DatasetClass || l.Child.Class != model.ImageClass {
		return nil, fmt.Errorf("bad dataset-image link %s -> %s", l.Parent, l.Child)
	}
	for _, ref := range []model.Ref{l.Parent, l.Child} {
		if _, found, err := s.svc.summary(ref.Class, ref.ID); err != nil {
			return nil, err
		} else if !found {
			return nil, fmt.Errorf("%s: %w", ref, ome.ErrNotFound)
		}
	}
	saved := *l
	if err := s.prepareSave(datasetImageLinkPrefix, &saved.ID, &saved.Details); err != nil {
		return nil, err
	}
	if err := s.svc.kv.PutObject(storage.Key(datasetImageLinkPrefix, saved.ID), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}
