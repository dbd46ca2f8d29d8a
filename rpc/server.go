/*
	This file implements the server side of the gorpc transport.
*/

package rpc

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"

	"github.com/valyala/gorpc"
)

const (
	// DefaultAddress is the default address of the RPC server.
	DefaultAddress = ome.DefaultRPCAddress
)

// Backend is the server implementation exposed over RPC.
type Backend interface {
	Version() string
	Login(ctx context.Context, user, password string) (string, error)
	Join(token string) (service.Session, error)
	Logout(token string) error
}

// Server exposes a Backend over gorpc.
type Server struct {
	backend    Backend
	logger     ome.Logger
	dispatcher *gorpc.Dispatcher
	s          *gorpc.Server
	address    string
}

// NewServer returns a server for the backend.  It does not listen until started.
func NewServer(backend Backend, logger ome.Logger) *Server {
	srv := &Server{backend: backend, logger: logger}
	srv.dispatcher = newDispatcher(srv.routes())
	return srv
}

func newDispatcher(routes map[string]func(*request) (*response, error)) *gorpc.Dispatcher {
	d := gorpc.NewDispatcher()
	for _, name := range operations {
		f, found := routes[name]
		if !found {
			f = func(*request) (*response, error) {
				return &response{}, fmt.Errorf("operation not served")
			}
		}
		d.AddFunc(name, f)
	}
	return d
}

// Start listens on a TCP address.
func (srv *Server) Start(address string) error {
	return srv.start(address, gorpc.NewTCPServer)
}

// StartUnix listens on a unix socket.
func (srv *Server) StartUnix(path string) error {
	return srv.start(path, gorpc.NewUnixServer)
}

func (srv *Server) start(address string, newServer func(string, gorpc.HandlerFunc) *gorpc.Server) error {
	if srv.s != nil {
		return fmt.Errorf("rpc server already listening on %s", srv.address)
	}
	gorpc.SetErrorLogger(srv.logger.Errorf) // Send gorpc errors to appropriate error log.

	s := newServer(address, srv.dispatcher.NewHandlerFunc())
	if err := s.Start(); err != nil {
		return err
	}
	srv.s = s
	srv.address = address
	srv.logger.Infof("RPC server listening on %s\n", address)
	return nil
}

// Stop halts the server.
func (srv *Server) Stop() {
	if srv.s == nil {
		return
	}
	srv.s.Stop()
	srv.logger.Infof("Halted RPC server on %s\n", srv.address)
	srv.s = nil
}

type sessionFunc func(ctx context.Context, sess service.Session, req *request) (*response, error)

// withSession joins the session of the request token before calling f.
func (srv *Server) withSession(f sessionFunc) func(*request) (*response, error) {
	return func(req *request) (*response, error) {
		sess, err := srv.backend.Join(req.Token)
		if err != nil {
			return &response{}, err
		}
		return f(context.Background(), sess, req)
	}
}

func (srv *Server) routes() map[string]func(*request) (*response, error) {
	r := map[string]func(*request) (*response, error){
		sendVersion: func(*request) (*response, error) {
			return &response{Version: srv.backend.Version()}, nil
		},
		sendLogin: func(req *request) (*response, error) {
			token, err := srv.backend.Login(context.Background(), req.User, req.Password)
			if err != nil {
				srv.logger.Warningf("Failed login of %q: %v\n", req.User, err)
			}
			return &response{Token: token}, err
		},
		sendLogout: func(req *request) (*response, error) {
			return &response{}, srv.backend.Logout(req.Token)
		},
	}
	for name, f := range map[string]sessionFunc{
		sendEventContext: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			ec, err := sess.Admin().EventContext(ctx)
			return &response{EventContext: ec}, err
		},
		sendGetExperimenter: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			e, err := sess.Admin().GetExperimenter(ctx, req.ID)
			return &response{Entity: entity{Experimenter: e}}, err
		},
		sendListExperimenters: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			users, err := sess.Admin().ListExperimenters(ctx)
			return &response{Experimenters: users}, err
		},
		sendFindPixelsType: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			pt, err := sess.Query().FindPixelsType(ctx, req.Value)
			return &response{Entity: entity{PixelsType: pt}}, err
		},
		sendFindFormat: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			f, err := sess.Query().FindFormat(ctx, req.Value)
			return &response{Entity: entity{Format: f}}, err
		},
		sendGetFormat: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			f, err := sess.Query().GetFormat(ctx, req.ID)
			return &response{Entity: entity{Format: f}}, err
		},
		sendGetOriginalFile: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			f, err := sess.Query().GetOriginalFile(ctx, req.ID)
			return &response{Entity: entity{OriginalFile: f}}, err
		},
		sendPixelsIDOfImage: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			id, err := sess.Query().PixelsIDOfImage(ctx, req.ID)
			return &response{ID: id}, err
		},
		sendGetObjects: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			objs, err := sess.Query().GetObjects(ctx, req.Class, req.IDs)
			return &response{Objects: objs}, err
		},
		sendListAnnotations: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			anns, err := sess.Query().ListAnnotations(ctx, req.Parent, req.Ns)
			return &response{Annotations: anns}, err
		},
		sendSave:              srv.save,
		sendDeleteAnnotations: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			n, err := sess.Update().DeleteAnnotations(ctx, req.Parent, req.Ns)
			return &response{Count: n}, err
		},
		sendCreateImage: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			id, err := sess.Pixels().CreateImage(ctx, req.Spec)
			return &response{ID: id}, err
		},
		sendRetrievePixDescription: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			p, err := sess.Pixels().RetrievePixDescription(ctx, req.ID)
			return &response{Entity: entity{Pixels: p}}, err
		},
		sendSetChannelGlobalMinMax: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			return &response{}, sess.Pixels().SetChannelGlobalMinMax(ctx, req.ID, req.C, req.Min, req.Max)
		},
		sendReadFile: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			data, err := sess.Files().ReadFile(ctx, req.ID, req.Offset, req.Length)
			return &response{Data: data}, err
		},
		sendWriteFile: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			return &response{}, sess.Files().WriteFile(ctx, req.ID, req.Data, req.Offset)
		},
		sendGetPlane: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			data, err := sess.Planes().GetPlane(ctx, req.ID, req.Z, req.C, req.T)
			return &response{Data: data}, err
		},
		sendSetPlane: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			return &response{}, sess.Planes().SetPlane(ctx, req.ID, req.Z, req.C, req.T, req.Data)
		},
		sendGetRenderingDef: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			rd, err := sess.Rendering().GetRenderingDef(ctx, req.ID)
			return &response{Entity: entity{RenderingDef: rd}}, err
		},
		sendResetDefaults: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			rd, err := sess.Rendering().ResetDefaults(ctx, req.ID)
			return &response{Entity: entity{RenderingDef: rd}}, err
		},
		sendSaveRenderingDef: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			if req.Entity.RenderingDef == nil {
				return &response{}, fmt.Errorf("no rendering settings in request")
			}
			rd, err := sess.Rendering().SaveRenderingDef(ctx, req.Entity.RenderingDef)
			return &response{Entity: entity{RenderingDef: rd}}, err
		},
		sendSubmitDiskUsage: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			h, err := sess.DiskUsage().SubmitDiskUsage(ctx, req.DiskUsage)
			return &response{Handle: h}, err
		},
		sendHandleStatus: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			st, err := sess.DiskUsage().HandleStatus(ctx, req.Value)
			return &response{Status: st}, err
		},
		sendHandleResult: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			res, err := sess.DiskUsage().HandleResult(ctx, req.Value)
			return &response{Result: res}, err
		},
		sendCloseHandle: func(ctx context.Context, sess service.Session, req *request) (*response, error) {
			return &response{}, sess.DiskUsage().CloseHandle(ctx, req.Value)
		},
	} {
		r[name] = srv.withSession(f)
	}
	return r
}

// save stores whichever entity the request carries.
func (srv *Server) save(ctx context.Context, sess service.Session, req *request) (*response, error) {
	u := sess.Update()
	e := req.Entity
	var out entity
	var err error
	switch {
	case e.OriginalFile != nil:
		out.OriginalFile, err = u.SaveOriginalFile(ctx, e.OriginalFile)
	case e.Annotation != nil:
		out.Annotation, err = u.SaveAnnotation(ctx, e.Annotation)
	case e.AnnotationLink != nil:
		out.AnnotationLink, err = u.SaveAnnotationLink(ctx, e.AnnotationLink)
	case e.ROI != nil:
		out.ROI, err = u.SaveROI(ctx, e.ROI)
	case e.LogicalChannel != nil:
		out.LogicalChannel, err = u.SaveLogicalChannel(ctx, e.LogicalChannel)
	case e.Project != nil:
		out.Project, err = u.SaveProject(ctx, e.Project)
	case e.Dataset != nil:
		out.Dataset, err = u.SaveDataset(ctx, e.Dataset)
	case e.Image != nil:
		out.Image, err = u.SaveImage(ctx, e.Image)
	case e.DatasetImageLink != nil:
		out.DatasetImageLink, err = u.SaveDatasetImageLink(ctx, e.DatasetImageLink)
	default:
		return &response{}, fmt.Errorf("save request carries no entity")
	}
	return &response{Entity: out}, err
}
