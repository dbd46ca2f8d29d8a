package scriptutil

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/server"
	"github.com/janelia-flyem/omerotools/service"
)

func writeTestFile(t *testing.T, name string, data []byte) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("can't write test file: %v\n", err)
	}
	return path
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}
	return data
}

func TestCalcSha1(t *testing.T) {
	path := writeTestFile(t, "hello.txt", []byte("hello"))
	hash, err := CalcSha1(path)
	if err != nil {
		t.Fatalf("error hashing file: %v\n", err)
	}
	if hash != "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" {
		t.Errorf("bad hash for %q: %s\n", "hello", hash)
	}
	if _, err := CalcSha1(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("expected error hashing a missing file\n")
	}
}

func TestResolveMimeType(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	csv, err := GetFormat(ctx, sess.Query(), "text/csv")
	if err != nil || csv == nil {
		t.Fatalf("can't find text/csv format: %v\n", err)
	}
	tests := []struct {
		mt   MimeType
		want string
	}{
		{nil, ""},
		{PlainMimeType("image/png"), "image/png"},
		{FormatReference(csv.ID), "text/csv"},
	}
	for _, tc := range tests {
		got, err := ResolveMimeType(ctx, sess.Query(), tc.mt)
		if err != nil {
			t.Errorf("error resolving %v: %v\n", tc.mt, err)
			continue
		}
		if got != tc.want {
			t.Errorf("resolved %v to %q, expected %q\n", tc.mt, got, tc.want)
		}
	}
	if _, err := ResolveMimeType(ctx, sess.Query(), FormatReference(9999)); !errors.Is(err, ome.ErrNotFound) {
		t.Errorf("expected not found for bad format reference, got %v\n", err)
	}
}

func TestCreateFileRemotePath(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	local := writeTestFile(t, "local.txt", []byte("some text"))
	f, err := CreateFile(ctx, sess.Update(), local, "text/plain", "/remote/dir/name.txt")
	if err != nil {
		t.Fatalf("error creating file: %v\n", err)
	}
	if f.ID == 0 || f.Name != "name.txt" || f.Path != "/remote/dir" || f.Size != 9 || f.Mimetype != "text/plain" {
		t.Errorf("bad original file record: %+v\n", f)
	}

	f, err = CreateFile(ctx, sess.Update(), local, "", "")
	if err != nil {
		t.Fatalf("error creating file: %v\n", err)
	}
	if f.Name != "local.txt" || f.Path != filepath.Dir(local) {
		t.Errorf("expected name and path from local file, got %q and %q\n", f.Name, f.Path)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	ds, err := sess.Update().SaveDataset(ctx, &model.Dataset{Name: "uploads"})
	if err != nil {
		t.Fatalf("can't save dataset: %v\n", err)
	}
	content := testData(3*ChunkSize + 123)
	local := writeTestFile(t, "data.bin", content)

	ann, err := UploadAndAttachFile(ctx, sess, ds, local, PlainMimeType("application/octet-stream"),
		"test data", "test.ns", "", ome.DiscardLogger())
	if err != nil {
		t.Fatalf("error uploading file: %v\n", err)
	}
	if ann.Kind != model.FileAnnotationKind || ann.Ns != "test.ns" || ann.Description != "test data" {
		t.Errorf("bad file annotation: %+v\n", ann)
	}
	if ann.File == nil || ann.File.Size != int64(len(content)) {
		t.Fatalf("bad annotated file: %+v\n", ann.File)
	}

	anns, err := sess.Query().ListAnnotations(ctx, ds.ObjRef(), "test.ns")
	if err != nil {
		t.Fatalf("can't list annotations: %v\n", err)
	}
	if len(anns) != 1 || anns[0].ID != ann.ID {
		t.Errorf("expected the file annotation on the dataset, got %v\n", anns)
	}

	store := service.NewRawFileStore(sess.Files())
	for _, block := range []int{4096, ChunkSize, 100 * ChunkSize} {
		data, err := ReadFromOriginalFile(ctx, store, sess.Query(), ann.File.ID, block)
		if err != nil {
			t.Fatalf("error reading file back with block %d: %v\n", block, err)
		}
		if !bytes.Equal(data, content) {
			t.Errorf("content read back in blocks of %d differs from upload\n", block)
		}
		sum := sha1.Sum(data)
		if hex.EncodeToString(sum[:]) != ann.File.Hash {
			t.Errorf("hash of downloaded data differs from recorded hash %s\n", ann.File.Hash)
		}
	}

	if _, err := ReadFromOriginalFile(ctx, store, sess.Query(), 9999, 0); !errors.Is(err, ome.ErrNotFound) {
		t.Errorf("expected not found reading missing file, got %v\n", err)
	}
}

func TestAttachFileToParentKinds(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	local := writeTestFile(t, "notes.txt", []byte("notes"))
	f, err := CreateFile(ctx, sess.Update(), local, "text/plain", "")
	if err != nil {
		t.Fatalf("error creating file: %v\n", err)
	}
	user, err := sess.Admin().GetExperimenter(ctx, server.TestUserID)
	if err != nil || user == nil {
		t.Fatalf("can't get test user: %v\n", err)
	}
	link, err := AttachFileToParent(ctx, sess.Update(), user, f, "", "")
	if err != nil || link != nil {
		t.Errorf("expected no-op attaching to an experimenter, got %v, %v\n", link, err)
	}
	if _, err := UploadAndAttachFile(ctx, sess, user, local, nil, "", "", "", ome.DiscardLogger()); err == nil {
		t.Errorf("expected error uploading a file for an experimenter\n")
	}

	proj, err := sess.Update().SaveProject(ctx, &model.Project{Name: "p", Description: "keep me"})
	if err != nil {
		t.Fatalf("can't save project: %v\n", err)
	}
	stale := &model.Project{ID: proj.ID, Name: "stale"}
	link, err = AttachFileToParent(ctx, sess.Update(), stale, f, "desc", "ns")
	if err != nil {
		t.Fatalf("error attaching to project: %v\n", err)
	}
	if link.Parent != proj.ObjRef() || link.Child.File.ID != f.ID {
		t.Errorf("bad project link: %+v\n", link)
	}
	objs, err := sess.Query().GetObjects(ctx, model.ProjectClass, []int64{proj.ID})
	if err != nil || len(objs) != 1 {
		t.Fatalf("can't get project back: %v\n", err)
	}
	if objs[0].Name != "p" {
		t.Errorf("attaching a file changed the project name to %q\n", objs[0].Name)
	}
}

func TestGetObjectsMessage(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"first", "second"} {
		ds, err := sess.Update().SaveDataset(ctx, &model.Dataset{Name: name})
		if err != nil {
			t.Fatalf("can't save dataset: %v\n", err)
		}
		ids = append(ids, ds.ID)
	}

	objs, msg, err := GetObjects(ctx, sess.Query(), model.DatasetClass, []int64{ids[1], 9999, ids[0]})
	if err != nil {
		t.Fatalf("error getting objects: %v\n", err)
	}
	if len(objs) != 2 || objs[0].Ref.ID != ids[1] || objs[1].Ref.ID != ids[0] {
		t.Errorf("expected datasets in requested order, got %v\n", objs)
	}
	if msg != "Found 2 out of 3 dataset(s)." {
		t.Errorf("bad message: %q\n", msg)
	}

	objs, msg, err = GetObjects(ctx, sess.Query(), model.DatasetClass, ids)
	if err != nil || len(objs) != 2 || msg != "" {
		t.Errorf("expected all datasets and no message, got %v, %q, %v\n", objs, msg, err)
	}

	objs, msg, err = GetObjects(ctx, sess.Query(), model.ImageClass, []int64{9999})
	if err != nil || len(objs) != 0 || msg != "No image found." {
		t.Errorf("expected no images, got %v, %q, %v\n", objs, msg, err)
	}
}

func TestCSVHelpers(t *testing.T) {
	if got := ToCSV([]string{"a", "b", "c"}); got != "a,b,c" {
		t.Errorf("bad csv: %q\n", got)
	}
	if got := ToCSV(nil); got != "" {
		t.Errorf("bad csv of empty list: %q\n", got)
	}
	if got := ToList(" a, b ,c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("bad list: %v\n", got)
	}
}

func TestReadFileAsArray(t *testing.T) {
	svc := server.OpenTest(t)
	sess := server.TestSession(t, svc, server.TestUserName)
	ctx := context.Background()
	store := service.NewRawFileStore(sess.Files())

	upload := func(content string) int64 {
		local := writeTestFile(t, "matrix.txt", []byte(content))
		f, err := CreateFile(ctx, sess.Update(), local, "text/plain", "")
		if err != nil {
			t.Fatalf("error creating file: %v\n", err)
		}
		if err := UploadFile(ctx, store, f, local); err != nil {
			t.Fatalf("error uploading file: %v\n", err)
		}
		return f.ID
	}

	spaced := upload("1 2 3\n4 5 6.5\n")
	m, err := ReadFileAsArray(ctx, store, sess.Query(), spaced, 2, 3, " ")
	if err != nil {
		t.Fatalf("error reading array: %v\n", err)
	}
	if !reflect.DeepEqual(m, [][]float64{{1, 2, 3}, {4, 5, 6.5}}) {
		t.Errorf("bad array: %v\n", m)
	}

	commas := upload("1, 2\n3, 4\n")
	m, err = ReadFileAsArray(ctx, store, sess.Query(), commas, 2, 2, ",")
	if err != nil {
		t.Fatalf("error reading array: %v\n", err)
	}
	if !reflect.DeepEqual(m, [][]float64{{1, 2}, {3, 4}}) {
		t.Errorf("bad array: %v\n", m)
	}

	var dataErr *ome.DataError
	if _, err := ReadFileAsArray(ctx, store, sess.Query(), spaced, 3, 3, " "); !errors.As(err, &dataErr) {
		t.Errorf("expected data error for bad shape, got %v\n", err)
	}
}

func TestRemoveDirRecursive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tree")
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("can't make dirs: %v\n", err)
	}
	locked := filepath.Join(sub, "locked.txt")
	if err := os.WriteFile(locked, []byte("x"), 0400); err != nil {
		t.Fatalf("can't write file: %v\n", err)
	}
	if err := RemoveDirRecursive(dir); err != nil {
		t.Fatalf("error removing tree: %v\n", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected tree to be gone, got %v\n", err)
	}
}
