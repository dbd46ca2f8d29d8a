/*
	This file implements the client side of the gorpc transport.
*/

package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"

	"github.com/blang/semver"
	"github.com/valyala/gorpc"
)

// SupportedVersions is the range of server API versions this client speaks.
const SupportedVersions = ">=5.0.0 <6.0.0"

var supportedRange = semver.MustParseRange(SupportedVersions)

// errors that can be recognized across the wire
var sentinels = []error{
	ome.ErrNotFound,
	ome.ErrNotAdmin,
	ome.ErrStillRunning,
	ome.ErrSessionClosed,
	ome.ErrBadCredentials,
}

// remoteError is an error returned by the server.  It unwraps to the matching
// sentinel error if there is one.
type remoteError struct {
	msg    string
	target error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.target }

func fromRemote(err error) error {
	if err == nil {
		return nil
	}
	var ce *gorpc.ClientError
	if errors.As(err, &ce) && !ce.Server {
		return err
	}
	msg := err.Error()
	for _, target := range sentinels {
		if strings.Contains(msg, target.Error()) {
			return &remoteError{msg: msg, target: target}
		}
	}
	return &remoteError{msg: msg}
}

// Client is a session on a remote server.  It implements service.Session.
type Client struct {
	c       *gorpc.Client
	dc      *gorpc.DispatcherClient
	timeout time.Duration
	logger  ome.Logger

	mu     sync.RWMutex
	token  string
	closed bool
}

var _ service.Session = (*Client)(nil)

// Options configure a connection.
type Options struct {
	// Timeout bounds each call without a context deadline.  Zero uses ome.DefaultTimeout
	// seconds.
	Timeout time.Duration

	Logger ome.Logger
}

// Dial connects to a server over TCP, checks that its API version is supported, and logs
// in.
func Dial(ctx context.Context, address, user, password string, opts Options) (*Client, error) {
	return dial(ctx, gorpc.NewTCPClient(address), user, password, opts)
}

// DialUnix is like Dial over a unix socket.
func DialUnix(ctx context.Context, path, user, password string, opts Options) (*Client, error) {
	return dial(ctx, gorpc.NewUnixClient(path), user, password, opts)
}

func dial(ctx context.Context, c *gorpc.Client, user, password string, opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = ome.DefaultTimeout * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = ome.DiscardLogger()
	}
	c.RequestTimeout = opts.Timeout
	c.LogError = opts.Logger.Errorf
	c.Start()

	cl := &Client{
		c:       c,
		dc:      newDispatcher(nil).NewFuncClient(c),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	resp, err := cl.call(ctx, sendVersion, request{})
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("can't get server version: %w", err)
	}
	ver, err := semver.Parse(resp.Version)
	if err != nil {
		c.Stop()
		return nil, fmt.Errorf("server sent bad version %q: %v", resp.Version, err)
	}
	if !supportedRange(ver) {
		c.Stop()
		return nil, fmt.Errorf("server version %s not in %s: %w", ver, SupportedVersions, ome.ErrIncompatibleServer)
	}
	resp, err = cl.call(ctx, sendLogin, request{User: user, Password: password})
	if err != nil {
		c.Stop()
		return nil, err
	}
	cl.token = resp.Token
	cl.logger.Debugf("Logged in as %q on server version %s\n", user, ver)
	return cl, nil
}

func (cl *Client) call(ctx context.Context, name string, req request) (response, error) {
	timeout := cl.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return response{}, context.DeadlineExceeded
		}
	}
	if err := ctx.Err(); err != nil {
		return response{}, err
	}
	resp, err := cl.dc.CallTimeout(name, &req, timeout)
	if err != nil {
		return response{}, fromRemote(err)
	}
	r, ok := resp.(*response)
	if !ok || r == nil {
		return response{}, fmt.Errorf("remote server returned %T for %s", resp, name)
	}
	return *r, nil
}

// sessionCall is call with the session token.
func (cl *Client) sessionCall(ctx context.Context, name string, req request) (response, error) {
	cl.mu.RLock()
	closed, token := cl.closed, cl.token
	cl.mu.RUnlock()
	if closed {
		return response{}, ome.ErrSessionClosed
	}
	req.Token = token
	return cl.call(ctx, name, req)
}

func (cl *Client) Admin() service.AdminService         { return cl }
func (cl *Client) Query() service.QueryService         { return cl }
func (cl *Client) Update() service.UpdateService       { return cl }
func (cl *Client) Pixels() service.PixelsService       { return cl }
func (cl *Client) Files() service.FileService          { return cl }
func (cl *Client) Planes() service.PlaneService        { return cl }
func (cl *Client) Rendering() service.RenderingService { return cl }
func (cl *Client) DiskUsage() service.DiskUsageService { return cl }

// Close logs out and disconnects.
func (cl *Client) Close() error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ome.ErrSessionClosed
	}
	cl.closed = true
	token := cl.token
	cl.mu.Unlock()

	_, err := cl.call(context.Background(), sendLogout, request{Token: token})
	cl.c.Stop()
	return err
}

func (cl *Client) EventContext(ctx context.Context) (*model.EventContext, error) {
	resp, err := cl.sessionCall(ctx, sendEventContext, request{})
	return resp.EventContext, err
}

func (cl *Client) GetExperimenter(ctx context.Context, id int64) (*model.Experimenter, error) {
	resp, err := cl.sessionCall(ctx, sendGetExperimenter, request{ID: id})
	return resp.Entity.Experimenter, err
}

func (cl *Client) ListExperimenters(ctx context.Context) ([]*model.Experimenter, error) {
	resp, err := cl.sessionCall(ctx, sendListExperimenters, request{})
	return resp.Experimenters, err
}

func (cl *Client) FindPixelsType(ctx context.Context, value string) (*model.PixelsType, error) {
	resp, err := cl.sessionCall(ctx, sendFindPixelsType, request{Value: value})
	return resp.Entity.PixelsType, err
}

func (cl *Client) FindFormat(ctx context.Context, value string) (*model.Format, error) {
	resp, err := cl.sessionCall(ctx, sendFindFormat, request{Value: value})
	return resp.Entity.Format, err
}

func (cl *Client) GetFormat(ctx context.Context, id int64) (*model.Format, error) {
	resp, err := cl.sessionCall(ctx, sendGetFormat, request{ID: id})
	return resp.Entity.Format, err
}

func (cl *Client) GetOriginalFile(ctx context.Context, id int64) (*model.OriginalFile, error) {
	resp, err := cl.sessionCall(ctx, sendGetOriginalFile, request{ID: id})
	return resp.Entity.OriginalFile, err
}

func (cl *Client) PixelsIDOfImage(ctx context.Context, imageID int64) (int64, error) {
	resp, err := cl.sessionCall(ctx, sendPixelsIDOfImage, request{ID: imageID})
	return resp.ID, err
}

func (cl *Client) GetObjects(ctx context.Context, class model.Class, ids []int64) ([]model.ObjectSummary, error) {
	resp, err := cl.sessionCall(ctx, sendGetObjects, request{Class: class, IDs: ids})
	return resp.Objects, err
}

func (cl *Client) ListAnnotations(ctx context.Context, parent model.Ref, ns string) ([]*model.Annotation, error) {
	resp, err := cl.sessionCall(ctx, sendListAnnotations, request{Parent: parent, Ns: ns})
	return resp.Annotations, err
}

func (cl *Client) save(ctx context.Context, e entity) (entity, error) {
	resp, err := cl.sessionCall(ctx, sendSave, request{Entity: e})
	return resp.Entity, err
}

func (cl *Client) SaveOriginalFile(ctx context.Context, f *model.OriginalFile) (*model.OriginalFile, error) {
	e, err := cl.save(ctx, entity{OriginalFile: f})
	return e.OriginalFile, err
}

func (cl *Client) SaveAnnotation(ctx context.Context, a *model.Annotation) (*model.Annotation, error) {
	e, err := cl.save(ctx, entity{Annotation: a})
	return e.Annotation, err
}

func (cl *Client) SaveAnnotationLink(ctx context.Context, l *model.AnnotationLink) (*model.AnnotationLink, error) {
	e, err := cl.save(ctx, entity{AnnotationLink: l})
	return e.AnnotationLink, err
}

func (cl *Client) SaveROI(ctx context.Context, r *model.ROI) (*model.ROI, error) {
	e, err := cl.save(ctx, entity{ROI: r})
	return e.ROI, err
}

func (cl *Client) SaveLogicalChannel(ctx context.Context, lc *model.LogicalChannel) (*model.LogicalChannel, error) {
	e, err := cl.save(ctx, entity{LogicalChannel: lc})
	return e.LogicalChannel, err
}

func (cl *Client) SaveProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	e, err := cl.save(ctx, entity{Project: p})
	return e.Project, err
}

func (cl *Client) SaveDataset(ctx context.Context, d *model.Dataset) (*model.Dataset, error) {
	e, err := cl.save(ctx, entity{Dataset: d})
	return e.Dataset, err
}

func (cl *Client) SaveImage(ctx context.Context, i *model.Image) (*model.Image, error) {
	e, err := cl.save(ctx, entity{Image: i})
	return e.Image, err
}

func (cl *Client) SaveDatasetImageLink(ctx context.Context, l *model.DatasetImageLink) (*model.DatasetImageLink, error) {
	e, err := cl.save(ctx, entity{DatasetImageLink: l})
	return e.DatasetImageLink, err
}

func (cl *Client) DeleteAnnotations(ctx context.Context, parent model.Ref, ns string) (int, error) {
	resp, err := cl.sessionCall(ctx, sendDeleteAnnotations, request{Parent: parent, Ns: ns})
	return resp.Count, err
}

func (cl *Client) CreateImage(ctx context.Context, spec model.ImageSpec) (int64, error) {
	resp, err := cl.sessionCall(ctx, sendCreateImage, request{Spec: spec})
	return resp.ID, err
}

func (cl *Client) RetrievePixDescription(ctx context.Context, pixelsID int64) (*model.Pixels, error) {
	resp, err := cl.sessionCall(ctx, sendRetrievePixDescription, request{ID: pixelsID})
	return resp.Entity.Pixels, err
}

func (cl *Client) SetChannelGlobalMinMax(ctx context.Context, pixelsID int64, c int, min, max float64) error {
	_, err := cl.sessionCall(ctx, sendSetChannelGlobalMinMax, request{ID: pixelsID, C: c, Min: min, Max: max})
	return err
}

func (cl *Client) ReadFile(ctx context.Context, fileID, offset int64, length int) ([]byte, error) {
	resp, err := cl.sessionCall(ctx, sendReadFile, request{ID: fileID, Offset: offset, Length: length})
	return resp.Data, err
}

func (cl *Client) WriteFile(ctx context.Context, fileID int64, block []byte, offset int64) error {
	_, err := cl.sessionCall(ctx, sendWriteFile, request{ID: fileID, Data: block, Offset: offset})
	return err
}

func (cl *Client) GetPlane(ctx context.Context, pixelsID int64, z, c, t int) ([]byte, error) {
	resp, err := cl.sessionCall(ctx, sendGetPlane, request{ID: pixelsID, Z: z, C: c, T: t})
	return resp.Data, err
}

func (cl *Client) SetPlane(ctx context.Context, pixelsID int64, z, c, t int, plane []byte) error {
	_, err := cl.sessionCall(ctx, sendSetPlane, request{ID: pixelsID, Z: z, C: c, T: t, Data: plane})
	return err
}

func (cl *Client) GetRenderingDef(ctx context.Context, pixelsID int64) (*model.RenderingDef, error) {
	resp, err := cl.sessionCall(ctx, sendGetRenderingDef, request{ID: pixelsID})
	return resp.Entity.RenderingDef, err
}

func (cl *Client) ResetDefaults(ctx context.Context, pixelsID int64) (*model.RenderingDef, error) {
	resp, err := cl.sessionCall(ctx, sendResetDefaults, request{ID: pixelsID})
	return resp.Entity.RenderingDef, err
}

func (cl *Client) SaveRenderingDef(ctx context.Context, rd *model.RenderingDef) (*model.RenderingDef, error) {
	resp, err := cl.sessionCall(ctx, sendSaveRenderingDef, request{Entity: entity{RenderingDef: rd}})
	return resp.Entity.RenderingDef, err
}

func (cl *Client) SubmitDiskUsage(ctx context.Context, req model.DiskUsageRequest) (string, error) {
	resp, err := cl.sessionCall(ctx, sendSubmitDiskUsage, request{DiskUsage: req})
	return resp.Handle, err
}

func (cl *Client) HandleStatus(ctx context.Context, handle string) (*model.HandleStatus, error) {
	resp, err := cl.sessionCall(ctx, sendHandleStatus, request{Value: handle})
	return resp.Status, err
}

func (cl *Client) HandleResult(ctx context.Context, handle string) (*model.HandleResult, error) {
	resp, err := cl.sessionCall(ctx, sendHandleResult, request{Value: handle})
	return resp.Result, err
}

func (cl *Client) CloseHandle(ctx context.Context, handle string) error {
	_, err := cl.sessionCall(ctx, sendCloseHandle, request{Value: handle})
	return err
}

// IsRemote returns true if err was returned by the server rather than the transport.
func IsRemote(err error) bool {
	var re *remoteError
	return errors.As(err, &re)
}
