// Package server assembles the daemon: the local log writer, the admin
// channel and the log streaming service, opened and closed as one unit.
package server

import (
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/logtap/logtap/diag"
	"github.com/logtap/logtap/services/admin"
	"github.com/logtap/logtap/services/adminlog"
	"github.com/logtap/logtap/services/logging"
	"github.com/logtap/logtap/vars"
)

// BuildInfo contains information about the build of the process.
type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

// Service manages a feature of the server.
type Service interface {
	Open() error
	Close() error
}

// Server wires the services together. Services are opened in the order
// they were appended and closed in reverse.
type Server struct {
	config    *Config
	BuildInfo BuildInfo

	Logger *diag.Logger

	LogService      *logging.Service
	AdminService    *admin.Service
	AdminLogService *adminlog.Service

	services []Service
	opened   int
}

func New(c *Config, buildInfo BuildInfo, stdout, stderr zapcore.WriteSyncer) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	s := &Server{
		config:    c,
		BuildInfo: buildInfo,
	}

	s.LogService = logging.NewService(c.Logging, stdout, stderr)
	s.Logger = diag.NewLogger(s.LogService)
	s.appendService(s.LogService)

	if c.Admin.Enabled {
		s.AdminService = admin.NewService(c.Admin, &adminDiag{l: s.Logger})
		s.AdminLogService = adminlog.NewService(s.AdminService, &adminLogDiag{l: s.Logger})
		s.appendService(s.AdminService)
		s.appendService(s.AdminLogService)
		s.Logger.AddHandler(s.AdminLogService)
	}

	vars.HostVar.Set(c.Hostname)
	vars.VersionVar.Set(buildInfo.Version)

	return s, nil
}

func (s *Server) appendService(srv Service) {
	s.services = append(s.services, srv)
}

func (s *Server) Open() error {
	for _, service := range s.services {
		if err := service.Open(); err != nil {
			s.Close()
			return errors.Wrap(err, "open service")
		}
		s.opened++
	}

	s.Logger.Infof("logtap starting, version %s, branch %s, commit %s",
		s.BuildInfo.Version, s.BuildInfo.Branch, s.BuildInfo.Commit)
	s.Logger.Infof("go version %s, GOMAXPROCS set to %d", runtime.Version(), runtime.GOMAXPROCS(0))

	return nil
}

func (s *Server) Close() error {
	var err error
	for i := s.opened - 1; i >= 0; i-- {
		if e := s.services[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	s.opened = 0
	return err
}
