/*
	Package service declares the remote services consumed by the command line plugins and
	the script helpers.  A Session is obtained either from the rpc package (a remote
	server) or directly from the server package (in-process, used by tests).

	Lookups of a single entity return (nil, nil) when the entity does not exist unless
	documented otherwise.
*/
package service

import (
	"context"

	"github.com/janelia-flyem/omerotools/model"
)

// AdminService answers questions about experimenters and the current session.
type AdminService interface {
	EventContext(ctx context.Context) (*model.EventContext, error)
	GetExperimenter(ctx context.Context, id int64) (*model.Experimenter, error)

	// ListExperimenters returns all experimenters in ascending id order.
	ListExperimenters(ctx context.Context) ([]*model.Experimenter, error)
}

// QueryService looks up entities.
type QueryService interface {
	FindPixelsType(ctx context.Context, value string) (*model.PixelsType, error)
	FindFormat(ctx context.Context, value string) (*model.Format, error)
	GetFormat(ctx context.Context, id int64) (*model.Format, error)
	GetOriginalFile(ctx context.Context, id int64) (*model.OriginalFile, error)

	// PixelsIDOfImage returns the id of the pixels of an image or ome.ErrNotFound.
	PixelsIDOfImage(ctx context.Context, imageID int64) (int64, error)

	// GetObjects returns the entities of a class with the given ids in ascending id
	// order.  Missing ids are skipped.
	GetObjects(ctx context.Context, class model.Class, ids []int64) ([]model.ObjectSummary, error)

	// ListAnnotations returns the annotations linked to a parent, optionally restricted
	// to a namespace, in ascending id order.
	ListAnnotations(ctx context.Context, parent model.Ref, ns string) ([]*model.Annotation, error)
}

// UpdateService saves entities.  Saving an entity with a zero ID creates it and the
// returned copy carries the new ID.
type UpdateService interface {
	SaveOriginalFile(ctx context.Context, f *model.OriginalFile) (*model.OriginalFile, error)
	SaveAnnotation(ctx context.Context, a *model.Annotation) (*model.Annotation, error)

	// SaveAnnotationLink saves a link, first saving its child annotation if needed.
	SaveAnnotationLink(ctx context.Context, l *model.AnnotationLink) (*model.AnnotationLink, error)

	SaveROI(ctx context.Context, r *model.ROI) (*model.ROI, error)
	SaveLogicalChannel(ctx context.Context, lc *model.LogicalChannel) (*model.LogicalChannel, error)
	SaveProject(ctx context.Context, p *model.Project) (*model.Project, error)
	SaveDataset(ctx context.Context, d *model.Dataset) (*model.Dataset, error)
	SaveImage(ctx context.Context, i *model.Image) (*model.Image, error)
	SaveDatasetImageLink(ctx context.Context, l *model.DatasetImageLink) (*model.DatasetImageLink, error)

	// DeleteAnnotations removes the annotations of a namespace linked to a parent
	// together with their links, returning the number removed.
	DeleteAnnotations(ctx context.Context, parent model.Ref, ns string) (int, error)
}

// PixelsService creates images and describes their pixels.
type PixelsService interface {
	// CreateImage creates an image with a matching pixel set and returns the image id.
	CreateImage(ctx context.Context, spec model.ImageSpec) (int64, error)

	RetrievePixDescription(ctx context.Context, pixelsID int64) (*model.Pixels, error)
	SetChannelGlobalMinMax(ctx context.Context, pixelsID int64, c int, min, max float64) error
}

// FileService moves original file contents.
type FileService interface {
	ReadFile(ctx context.Context, fileID, offset int64, length int) ([]byte, error)
	WriteFile(ctx context.Context, fileID int64, block []byte, offset int64) error
}

// PlaneService moves raw pixel planes.  Samples are big-endian.
type PlaneService interface {
	GetPlane(ctx context.Context, pixelsID int64, z, c, t int) ([]byte, error)
	SetPlane(ctx context.Context, pixelsID int64, z, c, t int, plane []byte) error
}

// RenderingService stores rendering settings.
type RenderingService interface {
	GetRenderingDef(ctx context.Context, pixelsID int64) (*model.RenderingDef, error)

	// ResetDefaults creates or replaces the rendering settings using each channel's
	// global min and max.
	ResetDefaults(ctx context.Context, pixelsID int64) (*model.RenderingDef, error)

	SaveRenderingDef(ctx context.Context, rd *model.RenderingDef) (*model.RenderingDef, error)
}

// DiskUsageService computes disk usage asynchronously.  Each submission returns a
// handle id that must be closed.
type DiskUsageService interface {
	SubmitDiskUsage(ctx context.Context, req model.DiskUsageRequest) (string, error)
	HandleStatus(ctx context.Context, handle string) (*model.HandleStatus, error)

	// HandleResult returns the outcome of a finished request or ome.ErrStillRunning.
	HandleResult(ctx context.Context, handle string) (*model.HandleResult, error)

	CloseHandle(ctx context.Context, handle string) error
}

// Session is an authenticated connection to the server.
type Session interface {
	Admin() AdminService
	Query() QueryService
	Update() UpdateService
	Pixels() PixelsService
	Files() FileService
	Planes() PlaneService
	Rendering() RenderingService
	DiskUsage() DiskUsageService

	// Close ends the session.  Later calls fail with ome.ErrSessionClosed.
	Close() error
}
