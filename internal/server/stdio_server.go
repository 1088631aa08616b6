package server

import (
	"context"
	"io"

	"github.com/samiralibabic/textdap/internal/session"
)

// RunStdio serves a single session over in/out until in reaches EOF.
func RunStdio(ctx context.Context, svc *Service, in io.Reader, out io.Writer) error {
	sess := session.New("stdio")
	svc.logger.Debug("stdio session started")
	err := svc.NewConn(sess, out).Serve(ctx, in)
	svc.logger.Debug("stdio session ended", "terminated", sess.Terminated())
	return err
}
