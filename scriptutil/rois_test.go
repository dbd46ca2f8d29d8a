package scriptutil

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/server"
)

var cecogSample = strings.Join([]string{
	"frame\tobjID\tprimaryClassLabel\tprimaryClassName\tcenterX\tcenterY\tmean\tsd",
	"1\t7\t1\tinterphase\t10.5\t20\t100.1\t3.2",
	"2\t7\t2\tmitosis\t11\t21.5\t99.8\t3.1",
	"1\t9\t1\tinterphase\t0\t5\t80\t2",
	"",
}, "\n")

func TestCecogDescription(t *testing.T) {
	values := parseCecogLine("3\t4\t1\tprophase\t1.5\t2.5")
	desc := cecogDescription(values)
	for _, want := range []string{"frame=3\n", "objID=4\n", "primaryClassName=prophase\n", "centerY=2.5\n", "mean=(missing)\n"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description %q lacks %q\n", desc, want)
		}
	}
}

func TestUploadCecogObjectDetails(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	pt, err := sess.Query().FindPixelsType(ctx, "uint8")
	if err != nil || pt == nil {
		t.Fatalf("can't find uint8 type: %v\n", err)
	}
	imageID, err := sess.Pixels().CreateImage(ctx, model.ImageSpec{
		SizeX: 32, SizeY: 32, SizeZ: 1, SizeT: 2, Channels: []int{0}, Type: *pt, Name: "cells",
	})
	if err != nil {
		t.Fatalf("can't create image: %v\n", err)
	}

	path := writeTestFile(t, "cecog.txt", []byte(cecogSample))
	pointIDs, err := UploadCecogObjectDetails(ctx, sess.Update(), imageID, path, ome.DiscardLogger())
	if err != nil {
		t.Fatalf("error importing object details: %v\n", err)
	}
	// Object 7 holds two points and object 9 one, so the last points are the second
	// and third shapes saved.
	if len(pointIDs) != 2 {
		t.Fatalf("expected one id per object, got %v\n", pointIDs)
	}
	if pointIDs[1] != pointIDs[0]+1 {
		t.Errorf("expected consecutive last point ids, got %v\n", pointIDs)
	}

	noImage := writeTestFile(t, "cecog.txt", []byte(cecogSample))
	if _, err := UploadCecogObjectDetails(ctx, sess.Update(), 9999, noImage, ome.DiscardLogger()); !errors.Is(err, ome.ErrNotFound) {
		t.Errorf("expected not found for missing image, got %v\n", err)
	}

	var dataErr *ome.DataError
	bad := writeTestFile(t, "bad.txt", []byte("1\t7\t1\tinterphase\tleft\t20\n"))
	if _, err := UploadCecogObjectDetails(ctx, sess.Update(), imageID, bad, ome.DiscardLogger()); !errors.As(err, &dataErr) {
		t.Errorf("expected data error for bad coordinate, got %v\n", err)
	}

	early := writeTestFile(t, "early.txt", []byte("0\t5\t1\tinterphase\t1\t1\n1\t6\t1\tinterphase\t2\t2\n"))
	ids, err := UploadCecogObjectDetails(ctx, sess.Update(), imageID, early, ome.DiscardLogger())
	if err != nil || len(ids) != 1 {
		t.Errorf("expected frame 0 line skipped and one ROI saved, got %v, %v\n", ids, err)
	}

	headerOnly := writeTestFile(t, "header.txt", []byte("frame\tobjID\n"))
	ids, err = UploadCecogObjectDetails(ctx, sess.Update(), imageID, headerOnly, ome.DiscardLogger())
	if err != nil || len(ids) != 0 {
		t.Errorf("expected nothing saved from header-only file, got %v, %v\n", ids, err)
	}
}
