package server

import (
	"fmt"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/storage"
)

const (
	experimenterPrefix     = "exp"
	pixelsTypePrefix       = "ptype"
	formatPrefix           = "fmt"
	originalFilePrefix     = "file"
	annotationPrefix       = "ann"
	annotationLinkPrefix   = "alink"
	projectPrefix          = "proj"
	datasetPrefix          = "ds"
	imagePrefix            = "img"
	pixelsPrefix           = "pix"
	datasetImageLinkPrefix = "dilink"
	roiPrefix              = "roi"
	shapePrefix            = "shape"
	logicalChannelPrefix   = "lch"
	channelPrefix          = "ch"
	renderingDefPrefix     = "rdef"
)

var pixelsTypes = []model.PixelsType{
	{Value: "bit", BitSize: 1},
	{Value: "int8", BitSize: 8},
	{Value: "uint8", BitSize: 8},
	{Value: "int16", BitSize: 16},
	{Value: "uint16", BitSize: 16},
	{Value: "int32", BitSize: 32},
	{Value: "uint32", BitSize: 32},
	{Value: "float", BitSize: 32},
	{Value: "double", BitSize: 64},
}

var formats = []string{
	"text/plain",
	"text/csv",
	"text/x-python",
	"application/octet-stream",
	"image/png",
	"image/jpeg",
	"image/tiff",
}

// seed registers the configured users and, for a new store, the enumerations.
func (svc *Service) seed(users []ome.UserConfig) error {
	var maxID int64
	for _, u := range users {
		if u.Name == "" {
			return fmt.Errorf("configured user with id %d has no name", u.ID)
		}
		if _, dup := svc.credentials[u.Name]; dup {
			return fmt.Errorf("user %q configured twice", u.Name)
		}
		e := model.Experimenter{
			ID:        u.ID,
			OmeName:   u.Name,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			GroupID:   u.Group,
			Admin:     u.Admin,
		}
		if err := svc.kv.PutObject(storage.Key(experimenterPrefix, e.ID), &e); err != nil {
			return err
		}
		svc.credentials[u.Name] = credential{userID: u.ID, password: u.Password}
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	if err := svc.kv.Ensure(experimenterPrefix, maxID); err != nil {
		return err
	}

	seeded, err := svc.kv.GetObject(storage.Key(pixelsTypePrefix, 1), &model.PixelsType{})
	if err != nil || seeded {
		return err
	}
	for _, pt := range pixelsTypes {
		id, err := svc.kv.NextID(pixelsTypePrefix)
		if err != nil {
			return err
		}
		pt.ID = id
		if err := svc.kv.PutObject(storage.Key(pixelsTypePrefix, id), &pt); err != nil {
			return err
		}
	}
	for _, value := range formats {
		id, err := svc.kv.NextID(formatPrefix)
		if err != nil {
			return err
		}
		if err := svc.kv.PutObject(storage.Key(formatPrefix, id), &model.Format{ID: id, Value: value}); err != nil {
			return err
		}
	}
	svc.logger.Debugf("Seeded %d pixel types and %d formats\n", len(pixelsTypes), len(formats))
	return nil
}
