package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
)

// RunTCP listens on addr and serves one session per accepted connection.
func RunTCP(ctx context.Context, svc *Service, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	svc.logger.Info("listening", "transport", "tcp", "addr", ln.Addr().String())
	return ServeTCP(ctx, svc, ln)
}

// ServeTCP accepts on ln until ctx is done, then closes ln and waits for the
// open connections to finish.
func ServeTCP(ctx context.Context, svc *Service, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			nc, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				svc.serveStream(ctx, nc, nc.RemoteAddr().String())
				return nil
			})
		}
	})
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// serveStream runs a managed session over rwc and closes it when done.
func (s *Service) serveStream(ctx context.Context, rwc io.ReadWriteCloser, remote string) {
	defer rwc.Close()
	conn, release, err := s.OpenConn(remote, rwc)
	if err != nil {
		s.logger.Warn("rejecting connection", "remote", remote, "error", err)
		return
	}
	defer release()

	stop := context.AfterFunc(ctx, func() { _ = rwc.Close() })
	defer stop()
	if err := conn.Serve(ctx, rwc); err != nil && ctx.Err() == nil {
		s.logger.Warn("connection ended with error", "remote", remote, "error", err)
	}
}
