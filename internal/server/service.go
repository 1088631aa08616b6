package server

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/samiralibabic/textdap/internal/config"
	"github.com/samiralibabic/textdap/internal/diag"
	"github.com/samiralibabic/textdap/internal/policy"
	"github.com/samiralibabic/textdap/internal/session"
	"github.com/samiralibabic/textdap/internal/source"
)

const ServerVersion = "0.1.0"

// Service holds what every connection shares: configuration, the launch path
// policy, the source loader, the diagnostic file and the session registry.
type Service struct {
	cfg      config.Config
	cwd      string
	policy   *policy.Roots
	loader   *source.Loader
	sessions *session.Manager
	trace    *diag.File
	logger   *slog.Logger
}

func NewService(cfg config.Config, logger *slog.Logger) (*Service, error) {
	pol, err := policy.New(config.AllowedRoots(cfg))
	if err != nil {
		return nil, fmt.Errorf("build path policy: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pol.Restricted() {
		logger.Info("launch restricted to allowed roots", "roots", pol.Dirs())
	}
	return &Service{
		cfg:      cfg,
		cwd:      cwd,
		policy:   pol,
		loader:   source.NewLoader(int64(cfg.Limits.MaxSourceBytes)),
		sessions: session.NewManager(cfg.Limits.MaxConcurrentSessions),
		trace:    openTrace(cfg.Diagnostics),
		logger:   logger,
	}, nil
}

func openTrace(cfg config.DiagnosticsConfig) *diag.File {
	if !cfg.Enabled {
		return diag.NewFile(nil, nil, nil)
	}
	var stderr io.Writer
	if cfg.Stderr {
		stderr = os.Stderr
	}
	return diag.Open(cfg.Path, stderr)
}

func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

func (s *Service) Close() error {
	return s.trace.Close()
}

// loadProgram applies the path policy and reads the program's lines.
func (s *Service) loadProgram(program string) ([]string, error) {
	abs, err := s.policy.Resolve(s.cwd, program)
	if err != nil {
		return nil, err
	}
	return s.loader.Load(abs)
}

// NewConn binds a session to an output stream. The caller owns the session.
func (s *Service) NewConn(sess *session.Session, w io.Writer) *Conn {
	return newConn(s, sess, w)
}

// OpenConn registers a new session with the manager for a network peer. The
// returned release func unregisters it.
func (s *Service) OpenConn(remoteAddr string, w io.Writer) (*Conn, func(), error) {
	sess, err := s.sessions.Open(remoteAddr)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("session opened", "session_id", sess.ID, "remote", remoteAddr)
	release := func() {
		attrs := []any{"session_id", sess.ID, "remote", remoteAddr, "terminated", sess.Terminated()}
		if info, err := s.sessions.Get(sess.ID); err == nil {
			attrs = append(attrs, "duration", time.Since(info.OpenedAt).Round(time.Millisecond))
		}
		_ = s.sessions.Close(sess.ID)
		s.logger.Info("session closed", attrs...)
	}
	return newConn(s, sess, w), release, nil
}
