/*
	Package script implements the "script" command, exposing the script helpers for
	moving files, importing image directories and importing detected objects.
*/
package script

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omerotools/cli"
	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/scriptutil"
	"github.com/janelia-flyem/omerotools/service"
)

const (
	Name = "script"
	Help = "File, image and ROI import helpers for scripting"
)

// Register adds the script command to a registry.
func Register(reg *cli.Registry) error {
	return reg.Register(cli.Descriptor{
		Name: Name,
		Help: Help,
		New: func(c *cli.Context) cli.Control {
			return NewControl(c)
		},
	})
}

type Control struct {
	ctx *cli.Context
}

func NewControl(c *cli.Context) *Control {
	return &Control{ctx: c}
}

// ParseParent takes "Project:<id>", "Dataset:<id>" or "Image:<id>" and returns a
// reference to the entity.
func ParseParent(spec string) (model.Ref, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return model.Ref{}, ome.NewUsageError("Bad parent specification: %s", spec)
	}
	var class model.Class
	switch model.Class(parts[0]) {
	case model.ProjectClass, model.DatasetClass, model.ImageClass:
		class = model.Class(parts[0])
	default:
		return model.Ref{}, ome.NewUsageError("Files can't be attached to: %s", parts[0])
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return model.Ref{}, ome.NewUsageError("Bad parent specification: %s", spec)
	}
	return model.Ref{Class: class, ID: id}, nil
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ome.NewUsageError("Bad %s id: %s", what, s)
	}
	return id, nil
}

func (sc *Control) Subcommands() []cli.Subcommand {
	return []cli.Subcommand{
		{
			Name: "upload",
			Help: "Uploads a local file, optionally attaching it. <file>",
			Setup: func(fs *flag.FlagSet) cli.RunFunc {
				var opts UploadOptions
				var formatID int64
				fs.StringVar(&opts.Parent, "parent", "", "Project:<id>, Dataset:<id> or Image:<id> to attach the file to.")
				fs.StringVar(&opts.Mimetype, "mimetype", "", "Mimetype of the file.")
				fs.Int64Var(&formatID, "format", 0, "Id of a server format to use as mimetype.")
				fs.StringVar(&opts.Description, "description", "", "Description of the file annotation.")
				fs.StringVar(&opts.Namespace, "ns", "", "Namespace of the file annotation.")
				fs.StringVar(&opts.RemotePath, "remote-path", "", "Path and name of the file on the server.")
				return func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return ome.NewUsageError("upload takes exactly one file, got %d", len(args))
					}
					opts.Path = args[0]
					if formatID != 0 {
						if opts.Mimetype != "" {
							return ome.NewUsageError("use only one of --mimetype and --format")
						}
						opts.Format = formatID
					}
					return sc.Upload(ctx, opts)
				}
			},
		},
		{
			Name: "download",
			Help: "Writes the contents of an original file. <file id> [<local path>]",
			Setup: func(fs *flag.FlagSet) cli.RunFunc {
				var block int
				fs.IntVar(&block, "block", scriptutil.ChunkSize, "Bytes read per request.")
				return func(ctx context.Context, args []string) error {
					if len(args) < 1 || len(args) > 2 {
						return ome.NewUsageError("download takes a file id and an optional local path")
					}
					id, err := parseID("file", args[0])
					if err != nil {
						return err
					}
					var dest string
					if len(args) == 2 {
						dest = args[1]
					}
					return sc.Download(ctx, id, dest, block)
				}
			},
		},
		{
			Name: "import-dir",
			Help: "Imports the image files of a directory as one image. <dir>",
			Setup: func(fs *flag.FlagSet) cli.RunFunc {
				var datasetID int64
				fs.Int64Var(&datasetID, "dataset", 0, "Id of a dataset to place the image in.")
				return func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return ome.NewUsageError("import-dir takes exactly one directory, got %d", len(args))
					}
					return sc.ImportDir(ctx, args[0], datasetID)
				}
			},
		},
		{
			Name: "import-rois",
			Help: "Saves CeCog object details as ROIs on an image. <file>",
			Setup: func(fs *flag.FlagSet) cli.RunFunc {
				var imageID int64
				fs.Int64Var(&imageID, "image", 0, "Id of the image the objects were detected on.")
				return func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return ome.NewUsageError("import-rois takes exactly one file, got %d", len(args))
					}
					if imageID <= 0 {
						return ome.NewUsageError("import-rois requires --image")
					}
					return sc.ImportROIs(ctx, args[0], imageID)
				}
			},
		},
	}
}

// UploadOptions are the arguments of the upload subcommand.  Format, if set, is used
// instead of Mimetype.
type UploadOptions struct {
	Path        string
	Parent      string
	Mimetype    string
	Format      int64
	Description string
	Namespace   string
	RemotePath  string
}

func (o UploadOptions) mimeType() scriptutil.MimeType {
	if o.Format != 0 {
		return scriptutil.FormatReference(o.Format)
	}
	if o.Mimetype != "" {
		return scriptutil.PlainMimeType(o.Mimetype)
	}
	return nil
}

// Upload saves a local file on the server.  With a parent the file is attached through
// a file annotation.
func (sc *Control) Upload(ctx context.Context, opts UploadOptions) error {
	var parent model.Ref
	if opts.Parent != "" {
		var err error
		if parent, err = ParseParent(opts.Parent); err != nil {
			return err
		}
	}
	sess, err := sc.ctx.Conn(ctx)
	if err != nil {
		return err
	}
	if opts.Parent != "" {
		ann, err := scriptutil.UploadAndAttachFile(ctx, sess, parent, opts.Path, opts.mimeType(),
			opts.Description, opts.Namespace, opts.RemotePath, sc.ctx.Logger)
		if err != nil {
			return err
		}
		sc.ctx.Out("%s:%d", model.OriginalFileClass, ann.File.ID)
		sc.ctx.Out("%s:%d", ann.Kind, ann.ID)
		return nil
	}

	mimetype, err := scriptutil.ResolveMimeType(ctx, sess.Query(), opts.mimeType())
	if err != nil {
		return err
	}
	file, err := scriptutil.CreateFile(ctx, sess.Update(), opts.Path, mimetype, opts.RemotePath)
	if err != nil {
		return err
	}
	if err := scriptutil.UploadFile(ctx, service.NewRawFileStore(sess.Files()), file, opts.Path); err != nil {
		return err
	}
	sc.ctx.Out("%s:%d", model.OriginalFileClass, file.ID)
	return nil
}

// Download writes an original file to dest, or to the output channel if dest is empty.
func (sc *Control) Download(ctx context.Context, fileID int64, dest string, block int) error {
	sess, err := sc.ctx.Conn(ctx)
	if err != nil {
		return err
	}
	data, err := scriptutil.ReadFromOriginalFile(ctx, service.NewRawFileStore(sess.Files()), sess.Query(), fileID, block)
	if err != nil {
		return err
	}
	if dest == "" {
		_, err = sc.ctx.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return err
	}
	sc.ctx.Logger.Infof("Wrote %d bytes of original file %d to %s\n", len(data), fileID, dest)
	return nil
}

// ImportDir imports a directory of 2D images and prints the new image.
func (sc *Control) ImportDir(ctx context.Context, dir string, datasetID int64) error {
	sess, err := sc.ctx.Conn(ctx)
	if err != nil {
		return err
	}
	imageID, err := scriptutil.UploadDirAsImages(ctx, sess, dir, datasetID, sc.ctx.Logger)
	if err != nil {
		return err
	}
	sc.ctx.Out("%s:%d", model.ImageClass, imageID)
	return nil
}

// ImportROIs saves the objects of a CeCog detail file and prints the id of the last
// point of each region of interest.
func (sc *Control) ImportROIs(ctx context.Context, path string, imageID int64) error {
	sess, err := sc.ctx.Conn(ctx)
	if err != nil {
		return err
	}
	ids, err := scriptutil.UploadCecogObjectDetails(ctx, sess.Update(), imageID, path, sc.ctx.Logger)
	if err != nil {
		return err
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatInt(id, 10)
	}
	sc.ctx.Out("Saved %d ROIs: %s", len(ids), scriptutil.ToCSV(strs))
	return nil
}
