package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/janelia-flyem/omerotools/ome"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Blobs stores byte objects in a gocloud bucket.
type Blobs struct {
	ref    string
	bucket *blob.Bucket
	logger ome.Logger
}

// OpenBlobs opens a bucket from a URL such as "mem://", "file:///data/files",
// "s3://bucket" or "gs://bucket".
func OpenBlobs(ctx context.Context, ref string, logger ome.Logger) (*Blobs, error) {
	bucket, err := blob.OpenBucket(ctx, ref)
	if err != nil {
		logger.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
		return nil, err
	}
	return &Blobs{ref: ref, bucket: bucket, logger: logger}, nil
}

func (b *Blobs) String() string {
	return fmt.Sprintf("bucket @ %s", b.ref)
}

func (b *Blobs) Close() error {
	return b.bucket.Close()
}

// ReadRange returns up to length bytes of an object from offset.  A missing object
// returns nil and no error.
func (b *Blobs) ReadRange(ctx context.Context, key string, offset int64, length int) ([]byte, error) {
	r, err := b.bucket.NewRangeReader(ctx, key, offset, int64(length), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ReadAll returns the whole object or nil if it doesn't exist.
func (b *Blobs) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := b.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *Blobs) Put(ctx context.Context, key string, data []byte) error {
	return b.bucket.WriteAll(ctx, key, data, nil)
}

// WriteAt writes block into an object at offset, zero-filling any gap.  Buckets offer no
// partial writes so the object is rewritten.
func (b *Blobs) WriteAt(ctx context.Context, key string, block []byte, offset int64) error {
	data, err := b.ReadAll(ctx, key)
	if err != nil {
		return err
	}
	end := offset + int64(len(block))
	if int64(len(data)) < end {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[offset:], block)
	return b.Put(ctx, key, data)
}

// Size returns the size of an object or 0 if it doesn't exist.
func (b *Blobs) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, nil
		}
		return 0, err
	}
	return attrs.Size, nil
}

func (b *Blobs) Delete(ctx context.Context, key string) error {
	err := b.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}
