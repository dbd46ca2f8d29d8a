package rpc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/server"
	"github.com/janelia-flyem/omerotools/service"
)

func startTestServer(t *testing.T) string {
	svc := server.OpenTest(t)
	srv := NewServer(svc, ome.DiscardLogger())
	path := filepath.Join(t.TempDir(), "omero.sock")
	if err := srv.StartUnix(path); err != nil {
		t.Fatalf("can't start rpc server: %v\n", err)
	}
	t.Cleanup(srv.Stop)
	return path
}

func dialTest(t *testing.T, path, user string) *Client {
	cl, err := DialUnix(context.Background(), path, user, server.TestPassword, Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("can't dial test server as %q: %v\n", user, err)
	}
	return cl
}

func TestNewServerRoutes(t *testing.T) {
	svc := server.OpenTest(t)
	// Building more than one server and client dispatcher must not clash when the
	// message types are registered.
	for i := 0; i < 2; i++ {
		srv := NewServer(svc, ome.DiscardLogger())
		if srv.dispatcher == nil {
			t.Fatalf("no dispatcher built\n")
		}
		newDispatcher(nil)
	}
	routes := NewServer(svc, ome.DiscardLogger()).routes()
	for _, name := range operations {
		if _, found := routes[name]; !found {
			t.Errorf("operation %s has no route\n", name)
		}
	}
}

func TestDialAndClose(t *testing.T) {
	path := startTestServer(t)
	ctx := context.Background()
	if _, err := DialUnix(ctx, path, server.TestUserName, "wrong", Options{}); !errors.Is(err, ome.ErrBadCredentials) {
		t.Fatalf("expected bad credentials over rpc, got %v\n", err)
	}
	cl := dialTest(t, path, server.TestUserName)
	ec, err := cl.Admin().EventContext(ctx)
	if err != nil {
		t.Fatalf("EventContext failed: %v\n", err)
	}
	if ec.UserID != server.TestUserID || ec.IsAdmin {
		t.Errorf("bad event context: %+v\n", ec)
	}
	if err := cl.Close(); err != nil {
		t.Fatalf("Close failed: %v\n", err)
	}
	if _, err := cl.Admin().EventContext(ctx); !errors.Is(err, ome.ErrSessionClosed) {
		t.Errorf("expected closed session, got %v\n", err)
	}
}

func TestRemoteErrors(t *testing.T) {
	path := startTestServer(t)
	ctx := context.Background()
	cl := dialTest(t, path, server.TestUserName)
	defer cl.Close()

	ann := &model.Annotation{Ns: "x"}
	other := model.Ref{Class: model.ExperimenterClass, ID: server.TestOtherID}
	_, err := cl.Update().SaveAnnotationLink(ctx, &model.AnnotationLink{Parent: other, Child: ann})
	if !errors.Is(err, ome.ErrNotAdmin) {
		t.Errorf("expected ErrNotAdmin across the wire, got %v\n", err)
	}
	if !IsRemote(err) {
		t.Errorf("expected error to be marked remote\n")
	}
	if _, err := cl.Query().PixelsIDOfImage(ctx, 1234); !errors.Is(err, ome.ErrNotFound) {
		t.Errorf("expected ErrNotFound across the wire, got %v\n", err)
	}
	if e, err := cl.Admin().GetExperimenter(ctx, 999); e != nil || err != nil {
		t.Errorf("expected nil experimenter without error, got %v, %v\n", e, err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := startTestServer(t)
	ctx := context.Background()
	cl := dialTest(t, path, server.TestUserName)
	defer cl.Close()

	f, err := cl.Update().SaveOriginalFile(ctx, &model.OriginalFile{Name: "notes.txt", Size: 11})
	if err != nil {
		t.Fatalf("SaveOriginalFile failed: %v\n", err)
	}
	store := service.NewRawFileStore(cl.Files())
	store.SetFileID(f.ID)
	if err := store.Write(ctx, []byte("hello "), 0); err != nil {
		t.Fatalf("Write failed: %v\n", err)
	}
	if err := store.Write(ctx, []byte("world"), 6); err != nil {
		t.Fatalf("Write failed: %v\n", err)
	}
	data, err := store.Read(ctx, 0, 11)
	if err != nil || string(data) != "hello world" {
		t.Errorf("expected %q, got %q, %v\n", "hello world", data, err)
	}
}

func TestDiskUsageOverRPC(t *testing.T) {
	path := startTestServer(t)
	ctx := context.Background()
	cl := dialTest(t, path, server.TestAdminName)
	defer cl.Close()

	h, err := service.SubmitDiskUsage(ctx, cl.DiskUsage(), model.DiskUsageRequest{
		Objects: map[model.Class][]int64{model.ExperimenterClass: {server.TestUserID}},
	})
	if err != nil {
		t.Fatalf("SubmitDiskUsage failed: %v\n", err)
	}
	defer h.Close(ctx)
	if err := h.Wait(ctx, -1, 10*time.Millisecond); err != nil {
		t.Fatalf("Wait failed: %v\n", err)
	}
	res, err := h.Response(ctx)
	if err != nil || res.Usage == nil {
		t.Fatalf("bad response: %+v, %v\n", res, err)
	}
	if n, found := res.Usage.TotalBytesUsed[model.UserGroup{UserID: server.TestUserID, GroupID: 3}]; !found || n != 0 {
		t.Errorf("expected zero usage entry for alice, got %v\n", res.Usage.TotalBytesUsed)
	}
}
