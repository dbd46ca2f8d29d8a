/*
	This file defines the messages exchanged over gorpc.  Every remote operation takes a
	*request and returns a *response; only the fields an operation needs are set.  The
	dispatcher registers both pointer types with gob when routes are added, so they must
	not be registered again by value.
*/

package rpc

import (
	"github.com/janelia-flyem/omerotools/model"
)

// Names of the remote operations.
const (
	sendVersion = "Session.Version"
	sendLogin   = "Session.Login"
	sendLogout  = "Session.Logout"

	sendEventContext      = "Admin.EventContext"
	sendGetExperimenter   = "Admin.GetExperimenter"
	sendListExperimenters = "Admin.ListExperimenters"

	sendFindPixelsType  = "Query.FindPixelsType"
	sendFindFormat      = "Query.FindFormat"
	sendGetFormat       = "Query.GetFormat"
	sendGetOriginalFile = "Query.GetOriginalFile"
	sendPixelsIDOfImage = "Query.PixelsIDOfImage"
	sendGetObjects      = "Query.GetObjects"
	sendListAnnotations = "Query.ListAnnotations"

	sendSave              = "Update.Save"
	sendDeleteAnnotations = "Update.DeleteAnnotations"

	sendCreateImage            = "Pixels.CreateImage"
	sendRetrievePixDescription = "Pixels.RetrievePixDescription"
	sendSetChannelGlobalMinMax = "Pixels.SetChannelGlobalMinMax"

	sendReadFile  = "Files.ReadFile"
	sendWriteFile = "Files.WriteFile"
	sendGetPlane  = "Planes.GetPlane"
	sendSetPlane  = "Planes.SetPlane"

	sendGetRenderingDef  = "Rendering.GetRenderingDef"
	sendResetDefaults    = "Rendering.ResetDefaults"
	sendSaveRenderingDef = "Rendering.SaveRenderingDef"

	sendSubmitDiskUsage = "DiskUsage.Submit"
	sendHandleStatus    = "DiskUsage.Status"
	sendHandleResult    = "DiskUsage.Result"
	sendCloseHandle     = "DiskUsage.Close"
)

var operations = []string{
	sendVersion, sendLogin, sendLogout,
	sendEventContext, sendGetExperimenter, sendListExperimenters,
	sendFindPixelsType, sendFindFormat, sendGetFormat, sendGetOriginalFile,
	sendPixelsIDOfImage, sendGetObjects, sendListAnnotations,
	sendSave, sendDeleteAnnotations,
	sendCreateImage, sendRetrievePixDescription, sendSetChannelGlobalMinMax,
	sendReadFile, sendWriteFile, sendGetPlane, sendSetPlane,
	sendGetRenderingDef, sendResetDefaults, sendSaveRenderingDef,
	sendSubmitDiskUsage, sendHandleStatus, sendHandleResult, sendCloseHandle,
}

// entity carries exactly one saved or looked-up entity.  Absent entities stay nil.
type entity struct {
	Experimenter     *model.Experimenter
	PixelsType       *model.PixelsType
	Format           *model.Format
	OriginalFile     *model.OriginalFile
	Annotation       *model.Annotation
	AnnotationLink   *model.AnnotationLink
	ROI              *model.ROI
	LogicalChannel   *model.LogicalChannel
	Project          *model.Project
	Dataset          *model.Dataset
	Image            *model.Image
	DatasetImageLink *model.DatasetImageLink
	Pixels           *model.Pixels
	RenderingDef     *model.RenderingDef
}

type request struct {
	Token string

	User     string
	Password string

	ID     int64
	Value  string
	Class  model.Class
	IDs    []int64
	Parent model.Ref
	Ns     string

	Offset  int64
	Length  int
	Data    []byte
	Z, C, T int

	Min, Max float64

	Spec      model.ImageSpec
	DiskUsage model.DiskUsageRequest
	Entity    entity
}

type response struct {
	Version string
	Token   string
	ID      int64
	Count   int
	Data    []byte
	Handle  string

	Entity        entity
	EventContext  *model.EventContext
	Experimenters []*model.Experimenter
	Objects       []model.ObjectSummary
	Annotations   []*model.Annotation
	Status        *model.HandleStatus
	Result        *model.HandleResult
}
