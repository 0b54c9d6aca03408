// Package server exposes inspection and round-trip verification of uploaded
// volumes over HTTP.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"niftiverify/internal/logger"
	"niftiverify/pkg/nifti"
	"niftiverify/pkg/report"
	"niftiverify/pkg/summary"
)

// HeaderRequestID carries the request id on every response.
const HeaderRequestID = "X-Request-Id"

// Options configures a Server.
type Options struct {
	// MaxBodyBytes caps uploaded volumes; 0 means no limit
	MaxBodyBytes int64

	Logger logger.Logger
}

// Server holds the HTTP handlers. It keeps no per-request state.
type Server struct {
	maxBody int64
	log     logger.Logger
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Server{maxBody: opts.MaxBodyBytes, log: log}
}

// Register installs the request id middleware and the v1 routes on e. An
// incoming X-Request-Id is echoed back; otherwise a uuid is assigned.
func (s *Server) Register(e *echo.Echo) {
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		TargetHeader: HeaderRequestID,
		Generator:    uuid.NewString,
	}))
	e.GET("/v1/datatypes", s.handleDatatypes)
	e.POST("/v1/inspect", s.handleInspect)
	e.POST("/v1/roundtrip", s.handleRoundTrip)
}

// RoundTripResponse is the result of POST /v1/roundtrip.
type RoundTripResponse struct {
	Shape      []int               `json:"shape"`
	Kind       nifti.ElementKind   `json:"kind"`
	InputBytes int                 `json:"inputBytes"`
	Bytes      int                 `json:"bytes"`
	Report     nifti.CompareReport `json:"report"`
	Fidelity   *summary.Fidelity   `json:"fidelity,omitempty"`

	// BytesIdentical is set when the re-encoded stream equals the upload
	BytesIdentical bool `json:"bytesIdentical"`
}

func (s *Server) handleDatatypes(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"datatypes": report.DatatypeRows(nifti.Datatypes()),
	})
}

func (s *Server) handleInspect(c *echo.Context) error {
	body, err := s.readBody(c)
	if err != nil {
		return s.writeBodyError(c, err)
	}
	in, err := report.Inspect(body)
	if err != nil {
		return s.writeCodecError(c, err)
	}
	return c.JSON(http.StatusOK, in)
}

func (s *Server) handleRoundTrip(c *echo.Context) error {
	body, err := s.readBody(c)
	if err != nil {
		return s.writeBodyError(c, err)
	}

	original, err := nifti.Decode(body)
	if err != nil {
		return s.writeCodecError(c, err)
	}
	encoded, err := nifti.Encode(original)
	if err != nil {
		return s.writeCodecError(c, err)
	}
	reloaded, err := nifti.Decode(encoded)
	if err != nil {
		return s.writeCodecError(c, fmt.Errorf("decode re-encoded volume: %w", err))
	}

	resp := RoundTripResponse{
		Shape:          original.Shape(),
		Kind:           original.Kind(),
		InputBytes:     len(body),
		Bytes:          len(encoded),
		Report:         nifti.Compare(original, reloaded),
		BytesIdentical: bytes.Equal(body, encoded),
	}
	if r := resp.Report; r.ShapesMatch && r.DtypesMatch && !r.ValuesMatch {
		if f, err := summary.Measure(original, reloaded); err == nil {
			resp.Fidelity = &f
		}
	}
	s.log.Debug("round trip", "request", c.Response().Header().Get(HeaderRequestID),
		"kind", resp.Kind, "identical", resp.Report.Identical())
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) readBody(c *echo.Context) ([]byte, error) {
	r := c.Request().Body
	if s.maxBody > 0 {
		r = http.MaxBytesReader(c.Response(), r, s.maxBody)
	}
	return io.ReadAll(r)
}

func (s *Server) writeBodyError(c *echo.Context, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return writeError(c, http.StatusRequestEntityTooLarge, report.ErrorBody{
			Kind:    nifti.KindOther,
			Message: fmt.Sprintf("volume exceeds %d bytes", tooLarge.Limit),
		})
	}
	return writeError(c, http.StatusBadRequest, report.ErrorOf(err))
}

func (s *Server) writeCodecError(c *echo.Context, err error) error {
	s.log.Warn("rejected volume", "request", c.Response().Header().Get(HeaderRequestID), "error", err)
	return writeError(c, http.StatusBadRequest, report.ErrorOf(err))
}

func writeError(c *echo.Context, status int, body report.ErrorBody) error {
	return c.JSON(status, map[string]any{"error": body})
}
