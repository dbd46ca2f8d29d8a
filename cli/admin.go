package cli

import (
	"context"

	"github.com/janelia-flyem/omerotools/ome"
)

// AdminOnly wraps a subcommand so that it fails with ome.NotAdminCode unless the session
// belongs to an admin.
func AdminOnly(c *Context, run RunFunc) RunFunc {
	return func(ctx context.Context, args []string) error {
		sess, err := c.Conn(ctx)
		if err != nil {
			return err
		}
		ec, err := sess.Admin().EventContext(ctx)
		if err != nil {
			return err
		}
		if !ec.IsAdmin {
			return c.Die(ome.NotAdminCode, "SecurityViolation: Admins only!")
		}
		return run(ctx, args)
	}
}
