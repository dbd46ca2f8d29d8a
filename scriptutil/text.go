package scriptutil

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

// ToCSV joins values with commas.
func ToCSV(values []string) string {
	return strings.Join(values, ",")
}

// ToList splits a comma separated string, trimming space around each value.
func ToList(csv string) []string {
	values := strings.Split(csv, ",")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return values
}

// ReadFileAsArray parses an original file of numbers separated by sep (any white space
// if sep is blank) into a rows x cols matrix.
func ReadFileAsArray(ctx context.Context, store *service.RawFileStore, q service.QueryService, fileID int64,
	rows, cols int, sep string) ([][]float64, error) {

	data, err := ReadFromOriginalFile(ctx, store, q, fileID, ChunkSize)
	if err != nil {
		return nil, err
	}
	var fields []string
	if strings.TrimSpace(sep) == "" {
		fields = strings.Fields(string(data))
	} else {
		for _, line := range strings.Split(string(data), "\n") {
			for _, field := range strings.Split(line, sep) {
				if field = strings.TrimSpace(field); field != "" {
					fields = append(fields, field)
				}
			}
		}
	}
	if len(fields) != rows*cols {
		return nil, ome.NewDataError("original file %d has %d values, can't shape into %d x %d",
			fileID, len(fields), rows, cols)
	}
	matrix := make([][]float64, rows)
	for r := range matrix {
		matrix[r] = make([]float64, cols)
		for c := range matrix[r] {
			field := fields[r*cols+c]
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, ome.NewDataError("original file %d has bad value %q", fileID, field)
			}
			matrix[r][c] = v
		}
	}
	return matrix, nil
}

// RemoveDirRecursive removes a directory tree, first making write-protected entries
// writable.
func RemoveDirRecursive(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().Perm()&0200 == 0 {
			mode := os.FileMode(0600)
			if d.IsDir() {
				mode = 0700
			}
			return os.Chmod(path, mode)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
