/*
	Package quota implements the "quota" command: reporting disk usage against per-user
	quotas and, for admins, setting and clearing those quotas.

	A quota is a map annotation in the NSQUOTAMAP namespace linked to the experimenter,
	holding a single "Quota" entry with the limit in bytes.
*/
package quota

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/janelia-flyem/omerotools/cli"
	"github.com/janelia-flyem/omerotools/model"
	"github.com/janelia-flyem/omerotools/ome"
	"github.com/janelia-flyem/omerotools/service"

	"github.com/dustin/go-humanize"
)

const (
	Name = "quota"
	Help = "Quota management utilities"

	// Namespace of quota annotations.
	Namespace = "NSQUOTAMAP"

	// Key of the quota entry in the annotation.
	Key = "Quota"

	// DefaultPollInterval is how often the status of a disk usage request is checked.
	DefaultPollInterval = 500 * time.Millisecond

	objHelp = "Users to be queried in the form 'Experimenter:<Id>[,<Id> ...]', " +
		"or 'Experimenter:*' to query all users."
)

// Register adds the quota command to a registry.
func Register(reg *cli.Registry) error {
	return reg.Register(cli.Descriptor{
		Name: Name,
		Help: Help,
		New: func(c *cli.Context) cli.Control {
			return NewControl(c)
		},
	})
}

// Control runs quota subcommands against a context.
type Control struct {
	ctx *cli.Context

	// PollInterval is how often a pending disk usage request is checked.
	PollInterval time.Duration
}

func NewControl(c *cli.Context) *Control {
	return &Control{ctx: c, PollInterval: DefaultPollInterval}
}

func (qc *Control) Subcommands() []cli.Subcommand {
	return []cli.Subcommand{
		{
			Name: "status",
			Help: "Shows quota status for users. [obj] " + objHelp,
			Setup: func(fs *flag.FlagSet) cli.RunFunc {
				var opts StatusOptions
				fs.Int64Var(&opts.Wait, "wait", -1,
					"Number of seconds to wait for the processing to complete (Indefinite < 0; No wait=0).")
				fs.StringVar(&opts.Style, "style", "", "Table style: "+strings.Join(cli.Styles, ", "))
				fs.BoolVar(&opts.Human, "human", false, "Show sizes in human-readable units.")
				return func(ctx context.Context, args []string) error {
					if len(args) > 1 {
						return ome.NewUsageError("status takes at most one object, got %d", len(args))
					}
					if len(args) == 1 {
						opts.Obj = args[0]
					}
					return qc.Status(ctx, opts)
				}
			},
		},
		{
			Name: "update",
			Help: "Sets, updates and clears the quota for users (admin-only). obj " + objHelp,
			Setup: func(fs *flag.FlagSet) cli.RunFunc {
				var opts UpdateOptions
				var set int64
				fs.Int64Var(&set, "set", 0, "Create new or update existing quota (MiB).")
				fs.BoolVar(&opts.Clear, "clear", false, "Remove any existing quota.")
				return cli.AdminOnly(qc.ctx, func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return ome.NewUsageError("update takes exactly one object, got %d", len(args))
					}
					opts.Obj = args[0]
					fs.Visit(func(f *flag.Flag) {
						if f.Name == "set" {
							opts.Set = &set
						}
					})
					return qc.Update(ctx, opts)
				})
			},
		},
	}
}

// ParseObject takes an object specification such as "Experimenter:1,2" and returns its
// class and ids.  A wildcard id list returns nil ids, meaning all experimenters.
func ParseObject(spec string) (model.Class, []int64, error) {
	bad := ome.NewUsageError("Bad object specification: %s", spec)
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return "", nil, bad
	}
	switch parts[0] {
	case "User", "Experimenter":
	default:
		return "", nil, bad
	}
	if strings.Contains(parts[1], "*") {
		return model.ExperimenterClass, nil, nil
	}
	var ids []int64
	for _, s := range strings.Split(parts[1], ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return "", nil, bad
		}
		ids = append(ids, id)
	}
	return model.ExperimenterClass, ids, nil
}

// StatusOptions are the arguments of the status subcommand.
type StatusOptions struct {
	Obj   string
	Wait  int64 // seconds
	Style string
	Human bool
}

// Row is one user's usage in a status report.
type Row struct {
	UserID  int64
	Used    int64
	Quota   *int64
	Percent string
}

// Percent formats usage as a percentage of quota, or "NA" without a non-zero quota.
func Percent(used int64, quota *int64) string {
	if quota == nil || *quota == 0 {
		return "NA"
	}
	return fmt.Sprintf("%d%%", int64(100.0*float64(used)/float64(*quota)))
}

// Status reports disk usage of users against their quotas.
func (qc *Control) Status(ctx context.Context, opts StatusOptions) error {
	if opts.Style != "" && !cli.ValidStyle(opts.Style) {
		return ome.NewUsageError("unknown style %q (choose from %s)", opts.Style, strings.Join(cli.Styles, ", "))
	}
	sess, err := qc.ctx.Conn(ctx)
	if err != nil {
		return err
	}
	var class model.Class
	var ids []int64
	if opts.Obj != "" {
		if class, ids, err = ParseObject(opts.Obj); err != nil {
			return err
		}
	} else {
		ec, err := sess.Admin().EventContext(ctx)
		if err != nil {
			return err
		}
		class = model.ExperimenterClass
		ids = []int64{ec.UserID}
	}

	var req model.DiskUsageRequest
	if ids != nil {
		req.Objects = map[model.Class][]int64{class: ids}
	} else {
		req.Classes = []model.Class{class}
	}
	h, err := service.SubmitDiskUsage(ctx, sess.DiskUsage(), req)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(ctx); err != nil {
			qc.ctx.Logger.Warningf("Couldn't close disk usage handle %s: %v\n", h.ID(), err)
		}
	}()

	wait := time.Duration(opts.Wait) * time.Second
	if opts.Wait < 0 {
		wait = -1
	}
	if err := h.Wait(ctx, wait, qc.PollInterval); err != nil {
		return err
	}
	res, err := h.Response(ctx)
	if err != nil {
		return err
	}
	if res.Error != nil {
		rerr := remoteError(res.Error)
		qc.ctx.Logger.Debugf("Disk usage handle %s failed: %v\n", h.ID(), rerr)
		qc.ctx.Err("Error: %s", rerr.Message)
		return nil
	}
	rows, err := qc.report(ctx, sess, res.Usage)
	if err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		qc.ctx.Err("No usage reported")
	case 1:
		r := rows[0]
		quota := "None"
		if r.Quota != nil {
			quota = formatSize(*r.Quota, opts.Human)
		}
		qc.ctx.Out("%s of %s (%s)", formatSize(r.Used, opts.Human), quota, r.Percent)
	default:
		tb := cli.NewTableBuilder("user", "used (bytes)", "quota (bytes)", "used")
		tb.SetAlign("lrrr")
		if opts.Style != "" {
			tb.SetStyle(opts.Style)
		}
		for _, r := range rows {
			var quota interface{}
			if r.Quota != nil {
				quota = formatSize(*r.Quota, opts.Human)
			}
			tb.Row(r.UserID, formatSize(r.Used, opts.Human), quota, r.Percent)
		}
		qc.ctx.Out("%s", tb.Build())
	}
	return nil
}

// remoteError converts the error response of a failed disk usage request.
func remoteError(e *model.ErrorResponse) *ome.RemoteError {
	return &ome.RemoteError{Name: e.Name, Message: e.Parameters["message"], Parameters: e.Parameters}
}

func formatSize(n int64, human bool) string {
	if human && n >= 0 {
		return humanize.IBytes(uint64(n))
	}
	return strconv.FormatInt(n, 10)
}

// report aggregates usage per user over groups and joins each user's quota.  Rows are in
// ascending user id.
func (qc *Control) report(ctx context.Context, sess service.Session, usage *model.DiskUsageResponse) ([]Row, error) {
	subtotals := make(map[int64]int64)
	for ug, n := range usage.TotalBytesUsed {
		subtotals[ug.UserID] += n
	}
	rows := make([]Row, 0, len(subtotals))
	for uid, used := range subtotals {
		ann, err := quotaAnnotation(ctx, sess, uid)
		if err != nil {
			return nil, err
		}
		r := Row{UserID: uid, Used: used}
		if ann != nil && len(ann.MapValue) > 0 && ann.MapValue[0].Name == Key {
			q, err := strconv.ParseInt(ann.MapValue[0].Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad quota %q for user %d: %v", ann.MapValue[0].Value, uid, err)
			}
			r.Quota = &q
		}
		r.Percent = Percent(used, r.Quota)
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

// quotaAnnotation returns the quota annotation of a user or nil if there is none.
func quotaAnnotation(ctx context.Context, sess service.Session, userID int64) (*model.Annotation, error) {
	parent := model.Ref{Class: model.ExperimenterClass, ID: userID}
	anns, err := sess.Query().ListAnnotations(ctx, parent, Namespace)
	if err != nil || len(anns) == 0 {
		return nil, err
	}
	return anns[0], nil
}

// UpdateOptions are the arguments of the update subcommand.  Exactly one of Set and
// Clear must be given.
type UpdateOptions struct {
	Obj   string
	Set   *int64 // MiB
	Clear bool
}

// Update sets or clears quotas.  Callers are expected to have checked that the session
// belongs to an admin; the server refuses otherwise.
func (qc *Control) Update(ctx context.Context, opts UpdateOptions) error {
	if (opts.Set == nil) == !opts.Clear {
		return ome.NewUsageError("update requires exactly one of --set or --clear")
	}
	_, ids, err := ParseObject(opts.Obj)
	if err != nil {
		return err
	}
	sess, err := qc.ctx.Conn(ctx)
	if err != nil {
		return err
	}
	if ids == nil {
		users, err := sess.Admin().ListExperimenters(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
	}
	for _, id := range ids {
		user, err := sess.Admin().GetExperimenter(ctx, id)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("experimenter %d: %w", id, ome.ErrNotFound)
		}
		ann, err := quotaAnnotation(ctx, sess, id)
		if err != nil {
			return err
		}
		if opts.Set != nil {
			if *opts.Set < 0 {
				return qc.ctx.Die(ome.NegativeQuotaCode, "Error: quota cannot be a negative value")
			}
			quota := *opts.Set * 1024 * 1024
			if ann != nil {
				err = updateQuota(ctx, sess, ann, quota)
			} else {
				err = createQuota(ctx, sess, user, quota)
			}
			if err != nil {
				return err
			}
			qc.ctx.Logger.Infof("Set quota of user %d to %s\n", id, humanize.IBytes(uint64(quota)))
		} else if ann != nil {
			if _, err := sess.Update().DeleteAnnotations(ctx, user.ObjRef(), Namespace); err != nil {
				return err
			}
			qc.ctx.Logger.Infof("Cleared quota of user %d\n", id)
		}
	}
	return nil
}

func quotaValue(quota int64) []model.NamedValue {
	return []model.NamedValue{{Name: Key, Value: strconv.FormatInt(quota, 10)}}
}

func createQuota(ctx context.Context, sess service.Session, user *model.Experimenter, quota int64) error {
	ann := &model.Annotation{Kind: model.MapAnnotationKind, Ns: Namespace, MapValue: quotaValue(quota)}
	ann, err := sess.Update().SaveAnnotation(ctx, ann)
	if err != nil {
		return err
	}
	_, err = sess.Update().SaveAnnotationLink(ctx, &model.AnnotationLink{Parent: user.ObjRef(), Child: ann})
	return err
}

func updateQuota(ctx context.Context, sess service.Session, ann *model.Annotation, quota int64) error {
	ann.MapValue = quotaValue(quota)
	_, err := sess.Update().SaveAnnotation(ctx, ann)
	return err
}
