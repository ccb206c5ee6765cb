// Package web serves the browser surface: one page with a drop area and a
// picker per tool, and a small JSON API backed by the pipelines.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/presenter"
	"github.com/andresmejia3/imagedrop/internal/types"
)

//go:embed index.html
var indexHTML []byte

// Tool is a pipeline together with the snapshot presenter it reports to.
type Tool struct {
	Pipeline *pipeline.Pipeline
	View     *presenter.Snapshot
}

// Status is the JSON body of every API response.
type Status struct {
	Tool  string `json:"tool"`
	State string `json:"state"`
	presenter.View
}

type Server struct {
	echo   *echo.Echo
	ctx    context.Context
	logger *slog.Logger
	tools  map[string]Tool
}

// New builds the server. Runs are bound to ctx, not to the request, so a
// client that disconnects mid-run does not abort it.
func New(ctx context.Context, logger *slog.Logger, tools map[string]Tool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{echo: echo.New(), ctx: ctx, logger: logger, tools: tools}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Debug("http request", attrs...)
			return nil
		},
	}))

	e.GET("/", s.index)
	e.GET("/api/:tool", s.status)
	e.POST("/api/:tool", s.submit)
	e.GET("/api/:tool/download", s.download)
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("web surface listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) index(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

func (s *Server) lookup(c echo.Context) (string, Tool, error) {
	name := c.Param("tool")
	t, ok := s.tools[name]
	if !ok {
		return "", Tool{}, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown tool %q", name))
	}
	return name, t, nil
}

func statusOf(name string, t Tool) Status {
	return Status{Tool: name, State: t.Pipeline.State().String(), View: t.View.View()}
}

func (s *Server) status(c echo.Context) error {
	name, t, err := s.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOf(name, t))
}

func (s *Server) submit(c echo.Context) error {
	name, t, err := s.lookup(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// Nothing selected
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed upload")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}

	file := &types.SourceFile{Name: fh.Filename, Type: fh.Header.Get(echo.HeaderContentType), Data: data}
	err = t.Pipeline.OnFileSubmitted(s.ctx, file)
	if errors.Is(err, pipeline.ErrBusy) {
		return c.JSON(http.StatusConflict, statusOf(name, t))
	}
	// Pipeline failures are already reflected in the snapshot.
	return c.JSON(http.StatusOK, statusOf(name, t))
}

func (s *Server) download(c echo.Context) error {
	_, t, err := s.lookup(c)
	if err != nil {
		return err
	}
	res := t.Pipeline.Current()
	if res == nil || res.Artifact == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no result yet")
	}
	art := res.Artifact
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", art.Filename))
	return c.Blob(http.StatusOK, "image/png", art.PNG)
}
