/*
	Package model holds the entities exchanged with the image-data server.  All types
	are plain structs so they can be gob-encoded by the RPC transport and the store.

	An ID of zero marks an entity that has not been saved yet.
*/
package model

import "fmt"

// Class names the kind of a server-side entity.
type Class string

const (
	ExperimenterClass Class = "Experimenter"
	ProjectClass      Class = "Project"
	DatasetClass      Class = "Dataset"
	ImageClass        Class = "Image"
	PixelsClass       Class = "Pixels"
	OriginalFileClass Class = "OriginalFile"
	ROIClass          Class = "Roi"
)

// Ref is an unloaded reference to an entity: only its class and id.  Links use refs so
// that saving a link can never overwrite the parent.
type Ref struct {
	Class Class
	ID    int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Class, r.ID)
}

// ObjRef lets a reference stand in for the entity it names.
func (r Ref) ObjRef() Ref { return r }

// Object is implemented by entities that can be the parent of a link.
type Object interface {
	ObjRef() Ref
}

// Details records ownership of an entity.
type Details struct {
	OwnerID int64
	GroupID int64
}

type Experimenter struct {
	ID        int64
	OmeName   string
	FirstName string
	LastName  string
	GroupID   int64
	Admin     bool
}

func (e *Experimenter) ObjRef() Ref { return Ref{ExperimenterClass, e.ID} }

// EventContext describes the current session.
type EventContext struct {
	SessionID string
	UserID    int64
	UserName  string
	GroupID   int64
	IsAdmin   bool
}

type Project struct {
	ID          int64
	Name        string
	Description string
	Details     Details
}

func (p *Project) ObjRef() Ref { return Ref{ProjectClass, p.ID} }

type Dataset struct {
	ID          int64
	Name        string
	Description string
	Details     Details
}

func (d *Dataset) ObjRef() Ref { return Ref{DatasetClass, d.ID} }

type Image struct {
	ID          int64
	Name        string
	Description string
	PixelsID    int64
	Details     Details
}

func (i *Image) ObjRef() Ref { return Ref{ImageClass, i.ID} }

// DatasetImageLink places an image in a dataset.
type DatasetImageLink struct {
	ID      int64
	Parent  Ref
	Child   Ref
	Details Details
}

// ObjectSummary is the id and name of an entity returned by generic lookups.
type ObjectSummary struct {
	Ref  Ref
	Name string
}

// Format is a file format known to the server, e.g. "text/plain".
type Format struct {
	ID    int64
	Value string
}

// OriginalFile is the metadata of an uploaded file.  Its contents are written and read
// through the raw file store.
type OriginalFile struct {
	ID       int64
	Name     string
	Path     string
	Mimetype string
	Size     int64
	Hash     string
	Details  Details
}
