package server

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/ome"
)

func fileKey(id int64) string {
	return fmt.Sprintf("files/%016x", id)
}

func (s *Session) ReadFile(ctx context.Context, fileID, offset int64, length int) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	f, err := s.svc.getOriginalFile(fileID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("original file %d: %w", fileID, ome.ErrNotFound)
	}
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("bad read of %d bytes at offset %d", length, offset)
	}
	data, err := s.svc.blobs.ReadRange(ctx, fileKey(fileID), offset, length)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *Session) WriteFile(ctx context.Context, fileID int64, block []byte, offset int64) error {
	if err := s.check(); err != nil {
		return err
	}
	f, err := s.svc.getOriginalFile(fileID)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("original file %d: %w", fileID, ome.ErrNotFound)
	}
	if err := s.canModify(f.Details); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("bad write at offset %d", offset)
	}
	return s.svc.blobs.WriteAt(ctx, fileKey(fileID), block, offset)
}
