package storage

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/janelia-flyem/omerotools/ome"
)

type testRecord struct {
	ID   int64
	Name string
}

func openTestKV(t *testing.T) *KV {
	kv, err := OpenKV("", ome.DiscardLogger())
	if err != nil {
		t.Fatalf("can't open in-memory store: %v\n", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestKVGetPutScan(t *testing.T) {
	kv := openTestKV(t)
	v, err := kv.Get([]byte("missing"))
	if err != nil || v != nil {
		t.Fatalf("expected nil value for missing key, got %v, %v\n", v, err)
	}
	for i := int64(3); i >= 1; i-- {
		if err := kv.PutObject(Key("rec", i), &testRecord{i, fmt.Sprintf("r%d", i)}); err != nil {
			t.Fatalf("put failed: %v\n", err)
		}
	}
	if err := kv.Put([]byte("other/1"), []byte("x")); err != nil {
		t.Fatalf("put failed: %v\n", err)
	}
	var got []int64
	err = kv.Scan([]byte("rec/"), func(k, v []byte) error {
		var r testRecord
		if _, err := kv.GetObject(k, &r); err != nil {
			return err
		}
		got = append(got, r.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("scan failed: %v\n", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("expected records in id order, got %v\n", got)
	}
	if err := kv.Delete(Key("rec", 2)); err != nil {
		t.Fatalf("delete failed: %v\n", err)
	}
	var r testRecord
	if found, err := kv.GetObject(Key("rec", 2), &r); found || err != nil {
		t.Errorf("expected deleted record to be gone: %t, %v\n", found, err)
	}
}

func TestNextID(t *testing.T) {
	kv := openTestKV(t)
	for want := int64(1); want <= 3; want++ {
		id, err := kv.NextID("files")
		if err != nil {
			t.Fatalf("NextID failed: %v\n", err)
		}
		if id != want {
			t.Errorf("expected id %d, got %d\n", want, id)
		}
	}
	if err := kv.Ensure("users", 10); err != nil {
		t.Fatalf("Ensure failed: %v\n", err)
	}
	if id, _ := kv.NextID("users"); id != 11 {
		t.Errorf("expected id 11 after Ensure, got %d\n", id)
	}
}

func TestPlanes(t *testing.T) {
	kv := openTestKV(t)
	plane := bytes.Repeat([]byte{0, 1, 2, 3}, 256)
	if err := kv.PutPlane(7, 0, 1, 2, plane); err != nil {
		t.Fatalf("PutPlane failed: %v\n", err)
	}
	got, err := kv.GetPlane(7, 0, 1, 2)
	if err != nil {
		t.Fatalf("GetPlane failed: %v\n", err)
	}
	if !bytes.Equal(got, plane) {
		t.Errorf("plane changed after round trip\n")
	}
	if got, _ := kv.GetPlane(7, 1, 1, 2); got != nil {
		t.Errorf("expected nil for missing plane\n")
	}
}

func TestBlobs(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBlobs(ctx, "mem://", ome.DiscardLogger())
	if err != nil {
		t.Fatalf("can't open memory bucket: %v\n", err)
	}
	defer b.Close()

	if data, err := b.ReadRange(ctx, "nope", 0, 10); data != nil || err != nil {
		t.Fatalf("expected nil read for missing object, got %v, %v\n", data, err)
	}
	if err := b.WriteAt(ctx, "f", []byte("world"), 6); err != nil {
		t.Fatalf("WriteAt failed: %v\n", err)
	}
	if err := b.WriteAt(ctx, "f", []byte("hello "), 0); err != nil {
		t.Fatalf("WriteAt failed: %v\n", err)
	}
	data, err := b.ReadAll(ctx, "f")
	if err != nil || string(data) != "hello world" {
		t.Fatalf("expected %q, got %q (%v)\n", "hello world", data, err)
	}
	part, err := b.ReadRange(ctx, "f", 6, 3)
	if err != nil || string(part) != "wor" {
		t.Errorf("expected %q, got %q (%v)\n", "wor", part, err)
	}
	if size, _ := b.Size(ctx, "f"); size != 11 {
		t.Errorf("expected size 11, got %d\n", size)
	}
	if err := b.Delete(ctx, "f"); err != nil {
		t.Fatalf("Delete failed: %v\n", err)
	}
	if size, _ := b.Size(ctx, "f"); size != 0 {
		t.Errorf("expected size 0 after delete, got %d\n", size)
	}
}
