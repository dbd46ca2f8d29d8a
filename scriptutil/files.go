package scriptutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"
)

// ChunkSize is the number of bytes moved per raw file store call.
const ChunkSize = 10000

// Colours are the display colours used when importing images.
var Colours = map[string]model.RGBA{
	"Red":    {Red: 255, Green: 0, Blue: 0, Alpha: 255},
	"Green":  {Red: 0, Green: 255, Blue: 0, Alpha: 255},
	"Blue":   {Red: 0, Green: 0, Blue: 255, Alpha: 255},
	"Yellow": {Red: 255, Green: 255, Blue: 0, Alpha: 255},
	"White":  {Red: 255, Green: 255, Blue: 255, Alpha: 255},
}

// CalcSha1 returns the hex SHA-1 digest of a local file.
func CalcSha1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MimeType is either a PlainMimeType or a FormatReference.
type MimeType interface {
	isMimeType()
}

// PlainMimeType is a mimetype given as text, e.g. "text/csv".
type PlainMimeType string

// FormatReference is the id of a Format known to the server.
type FormatReference int64

func (PlainMimeType) isMimeType()   {}
func (FormatReference) isMimeType() {}

// ResolveMimeType returns the text of a mimetype, looking up format references.  A nil
// mimetype resolves to the empty string.
func ResolveMimeType(ctx context.Context, q service.QueryService, mt MimeType) (string, error) {
	switch v := mt.(type) {
	case nil:
		return "", nil
	case PlainMimeType:
		return string(v), nil
	case FormatReference:
		f, err := q.GetFormat(ctx, int64(v))
		if err != nil {
			return "", err
		}
		if f == nil {
			return "", fmt.Errorf("format %d: %w", int64(v), ome.ErrNotFound)
		}
		return f.Value, nil
	default:
		return "", fmt.Errorf("unknown mimetype %T", mt)
	}
}

// GetFormat returns the format with the given value, or nil if the server has none.
func GetFormat(ctx context.Context, q service.QueryService, value string) (*model.Format, error) {
	return q.FindFormat(ctx, value)
}

// splitRemotePath splits a path into its directory and file name, keeping a lone
// root separator as the directory.
func splitRemotePath(p string) (dir, name string) {
	dir, name = filepath.Split(p)
	if len(dir) > 1 {
		dir = strings.TrimRight(dir, string(filepath.Separator))
	}
	return
}

// CreateFile saves a new original file record for a local file.  The record's name and
// path come from remotePath, which defaults to the local path; its size and hash come
// from the local file.
func CreateFile(ctx context.Context, update service.UpdateService, localPath, mimetype, remotePath string) (*model.OriginalFile, error) {
	if remotePath == "" {
		remotePath = localPath
	}
	fi, err := os.Stat(localPath)
	if err != nil {
		return nil, err
	}
	hash, err := CalcSha1(localPath)
	if err != nil {
		return nil, err
	}
	dir, name := splitRemotePath(remotePath)
	f := &model.OriginalFile{
		Name:     name,
		Path:     dir,
		Mimetype: mimetype,
		Size:     fi.Size(),
		Hash:     hash,
	}
	return update.SaveOriginalFile(ctx, f)
}

// UploadFile streams a local file to a saved original file in ChunkSize blocks.  If
// localPath is empty the record's name is used.
func UploadFile(ctx context.Context, store *service.RawFileStore, file *model.OriginalFile, localPath string) error {
	if localPath == "" {
		localPath = file.Name
	}
	fh, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer fh.Close()

	store.SetFileID(file.ID)
	buf := make([]byte, ChunkSize)
	var cursor int64
	for cursor < file.Size {
		n := int64(ChunkSize)
		if file.Size-cursor < n {
			n = file.Size - cursor
		}
		block := buf[:n]
		if _, err := fh.ReadAt(block, cursor); err != nil {
			return fmt.Errorf("reading %s at offset %d: %w", localPath, cursor, err)
		}
		if err := store.Write(ctx, block, cursor); err != nil {
			return err
		}
		cursor += n
	}
	return nil
}

// attachable reports whether file annotations can be linked to entities of a class.
func attachable(c model.Class) bool {
	switch c {
	case model.ProjectClass, model.DatasetClass, model.ImageClass:
		return true
	}
	return false
}

// AttachFileToParent links a saved original file to a project, dataset or image through
// a new file annotation.  Only the parent's reference is sent so the parent itself is
// never overwritten.  Other parents are ignored and (nil, nil) is returned.
func AttachFileToParent(ctx context.Context, update service.UpdateService, parent model.Object, file *model.OriginalFile, description, ns string) (*model.AnnotationLink, error) {
	if parent == nil {
		return nil, nil
	}
	ref := parent.ObjRef()
	if !attachable(ref.Class) {
		return nil, nil
	}
	link := &model.AnnotationLink{
		Parent: ref,
		Child: &model.Annotation{
			Kind:        model.FileAnnotationKind,
			Ns:          ns,
			Description: description,
			File:        file,
		},
	}
	return update.SaveAnnotationLink(ctx, link)
}

// UploadAndAttachFile uploads a local file and attaches it to a project, dataset or
// image, returning the new file annotation.
func UploadAndAttachFile(ctx context.Context, sess service.Session, parent model.Object, localPath string,
	mt MimeType, description, ns, remotePath string, logger ome.Logger) (*model.Annotation, error) {

	if parent == nil {
		return nil, fmt.Errorf("no parent given for file %s", localPath)
	}
	if ref := parent.ObjRef(); !attachable(ref.Class) {
		return nil, fmt.Errorf("can't attach files to %s", ref)
	}
	mimetype, err := ResolveMimeType(ctx, sess.Query(), mt)
	if err != nil {
		return nil, err
	}
	timedLog := ome.NewTimeLog(logger)
	file, err := CreateFile(ctx, sess.Update(), localPath, mimetype, remotePath)
	if err != nil {
		return nil, err
	}
	if err := UploadFile(ctx, service.NewRawFileStore(sess.Files()), file, localPath); err != nil {
		return nil, err
	}
	timedLog.Infof("Uploaded %s (%s) as original file %d", localPath, humanize.IBytes(uint64(file.Size)), file.ID)

	link, err := AttachFileToParent(ctx, sess.Update(), parent, file, description, ns)
	if err != nil {
		return nil, err
	}
	return link.Child, nil
}

// ReadFromOriginalFile returns the contents of an original file read in blocks of at
// most maxBlock bytes.  The result is truncated to the file's declared size.
func ReadFromOriginalFile(ctx context.Context, store *service.RawFileStore, q service.QueryService, fileID int64, maxBlock int) ([]byte, error) {
	if maxBlock <= 0 {
		maxBlock = ChunkSize
	}
	f, err := q.GetOriginalFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("original file %d: %w", fileID, ome.ErrNotFound)
	}
	store.SetFileID(fileID)
	data := make([]byte, 0, f.Size)
	var cursor int64
	for cursor < f.Size {
		n := int64(maxBlock)
		if f.Size-cursor < n {
			n = f.Size - cursor
		}
		block, err := store.Read(ctx, cursor, int(n))
		if err != nil {
			return nil, err
		}
		if len(block) == 0 {
			return nil, ome.NewDataError("original file %d has %d of %d bytes", fileID, cursor, f.Size)
		}
		data = append(data, block...)
		cursor += int64(len(block))
	}
	return data[:f.Size], nil
}

// GetObjects returns the entities of a class with the given ids in the order of ids,
// together with a message noting any that could not be found.
func GetObjects(ctx context.Context, q service.QueryService, class model.Class, ids []int64) ([]model.ObjectSummary, string, error) {
	found, err := q.GetObjects(ctx, class, ids)
	if err != nil {
		return nil, "", err
	}
	typeName := string(class)
	if typeName != "" {
		typeName = strings.ToLower(typeName[:1]) + typeName[1:]
	}
	if len(found) == 0 {
		return nil, fmt.Sprintf("No %s found.", typeName), nil
	}
	var message string
	if len(found) != len(ids) {
		message = fmt.Sprintf("Found %d out of %d %s(s).", len(found), len(ids), typeName)
	}
	byID := make(map[int64]model.ObjectSummary, len(found))
	for _, obj := range found {
		byID[obj.Ref.ID] = obj
	}
	objects := make([]model.ObjectSummary, 0, len(found))
	for _, id := range ids {
		if obj, ok := byID[id]; ok {
			objects = append(objects, obj)
		}
	}
	return objects, message, nil
}
