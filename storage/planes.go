package storage

import (
	"fmt"

	"github.com/golang/snappy"
)

// PutPlane stores a snappy-compressed pixel plane.
func (kv *KV) PutPlane(pixelsID int64, z, c, t int, plane []byte) error {
	return kv.Put(planeKey(pixelsID, z, c, t), snappy.Encode(nil, plane))
}

// GetPlane returns an uncompressed pixel plane or nil if it was never stored.
func (kv *KV) GetPlane(pixelsID int64, z, c, t int) ([]byte, error) {
	v, err := kv.Get(planeKey(pixelsID, z, c, t))
	if err != nil || v == nil {
		return nil, err
	}
	plane, err := snappy.Decode(nil, v)
	if err != nil {
		return nil, fmt.Errorf("corrupt plane z=%d c=%d t=%d of pixels %d: %v", z, c, t, pixelsID, err)
	}
	return plane, nil
}

// PlanesPrefix returns the key prefix of all planes of a pixel set.
func PlanesPrefix(pixelsID int64) []byte {
	return []byte(fmt.Sprintf("plane/%016x/", pixelsID))
}

func planeKey(pixelsID int64, z, c, t int) []byte {
	return []byte(fmt.Sprintf("plane/%016x/%08x/%08x/%08x", pixelsID, z, c, t))
}
