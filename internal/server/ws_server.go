package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/samiralibabic/textdap/internal/transport/wsdap"
)

func (s *Service) WSHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Server.WSPath, wsdap.Handler(func(remote string, w io.Writer) (wsdap.Conn, func(), error) {
		return s.OpenConn(remote, w)
	}))
	return mux
}

func RunWS(ctx context.Context, svc *Service, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	svc.logger.Info("listening", "transport", "ws", "addr", ln.Addr().String(), "path", svc.cfg.Server.WSPath)

	srv := &http.Server{Handler: svc.WSHandler()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}
