// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server implements the reference genome inference HTTP API.
//
// Every response carries an X-Request-Id header.  Errors are reported as a
// JSON object with "error" and "message" fields.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/googlegenomics/refgen/detect"
	"github.com/googlegenomics/refgen/internal/vcf"
	"github.com/googlegenomics/refgen/lookup"
)

const (
	buildsPath    = "/v1/builds"
	headerPath    = "/v1/header"
	samHeaderPath = "/v1/header/sam"
	variantsPath  = "/v1/variants"
	metricsPath   = "/metrics"

	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"

	// DefaultMaxBodyBytes bounds request bodies when no limit is given.
	DefaultMaxBodyBytes = 1 << 30
)

var errInvalidLength = errors.New("contig lengths must be positive")

// Server serves inference requests using a single detector.  Must be created
// with New.
type Server struct {
	detector     *detect.Detector
	maxBodyBytes int64
	registry     *prometheus.Registry
	metrics      *metrics
	log          log.FieldLogger
}

// New returns a server answering with d.  cache must be the cache d reads
// tables from; it is only used for metrics.  A maxBodyBytes of zero means
// DefaultMaxBodyBytes and a nil logger means the standard logrus logger.
func New(d *detect.Detector, cache *lookup.Cache, maxBodyBytes int64, logger log.FieldLogger) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return &Server{
		detector:     d,
		maxBodyBytes: maxBodyBytes,
		registry:     reg,
		metrics:      newMetrics(reg, cache),
		log:          logger,
	}
}

// Export registers the API endpoints with router.
func (s *Server) Export(router gin.IRouter) {
	router.GET(buildsPath, s.serveBuilds)
	router.POST(headerPath, s.timed("header", s.serveHeader))
	router.POST(samHeaderPath, s.timed("sam_header", s.serveSAMHeader))
	router.POST(variantsPath, s.timed("variants", s.serveVariants))
	router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// Handler returns a complete handler serving the API.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestID)
	s.Export(router)
	return router
}

// requestID tags the request and its response with a new request ID and
// forwards the request origin for cross-origin clients.
func requestID(c *gin.Context) {
	id := uuid.New().String()
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}

func (s *Server) timed(endpoint string, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		handler(c)
		s.metrics.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) logger(c *gin.Context) log.FieldLogger {
	return s.log.WithFields(log.Fields{
		"request_id": c.GetString(requestIDKey),
		"path":       c.FullPath(),
	})
}

func (s *Server) serveBuilds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"builds": s.detector.Catalog().Builds})
}

type headerRequest struct {
	Contigs map[string]int64 `json:"contigs"`
}

func (s *Server) serveHeader(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	var req headerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newInvalidInputError("decoding request", err))
		return
	}
	for name, n := range req.Contigs {
		if n <= 0 {
			writeError(c, newInvalidInputError(name, errInvalidLength))
			return
		}
	}
	res := s.detector.Contigs(req.Contigs)
	s.metrics.inferences.WithLabelValues("header", res.Kind.String()).Inc()
	c.JSON(http.StatusOK, res)
}

func (s *Server) serveSAMHeader(c *gin.Context) {
	body, err := vcf.Decompress(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes))
	if err != nil {
		writeError(c, newInvalidInputError("reading request", err))
		return
	}
	report, err := s.detector.SAMHeader(body)
	if err != nil {
		writeError(c, newInvalidInputError("parsing header", err))
		return
	}
	s.metrics.inferences.WithLabelValues("sam_header", report.Header.Kind.String()).Inc()
	c.JSON(http.StatusOK, report)
}

func (s *Server) serveVariants(c *gin.Context) {
	format, err := vcf.ParseFormat(c.DefaultQuery("format", "VCF"))
	if err != nil {
		writeError(c, newUnsupportedFormatError(err))
		return
	}
	opts := s.detector.Options().Variant
	for _, p := range []struct {
		name string
		dst  *int64
	}{
		{"matches", &opts.StopAfterMatches},
		{"variants", &opts.StopAfterVariants},
	} {
		if v := c.Query(p.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				writeError(c, newInvalidInputError("parsing "+p.name, fmt.Errorf("invalid count %q", v)))
				return
			}
			*p.dst = n
		}
	}
	if v := c.Query("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t <= 0 || t >= 1 {
			writeError(c, newInvalidInputError("parsing threshold", fmt.Errorf("invalid threshold %q", v)))
			return
		}
		opts.Threshold = t
	}

	body, err := vcf.Decompress(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes))
	if err != nil {
		writeError(c, newInvalidInputError("reading request", err))
		return
	}
	report, err := s.detector.Variants(c.Request.Context(), body, format, opts)
	switch {
	case errors.Is(err, lookup.ErrCatalogUnavailable):
		s.logger(c).WithError(err).Error("catalog unavailable")
		writeError(c, newCatalogUnavailableError(err))
		return
	case detect.Fatal(err):
		s.logger(c).WithError(err).Info("request abandoned")
		writeError(c, err)
		return
	case err != nil:
		writeError(c, newInvalidInputError("reading variants", err))
		return
	}

	s.metrics.inferences.WithLabelValues("variants", report.Variants.Kind.String()).Inc()
	s.logger(c).WithFields(log.Fields{
		"kind":     report.Variants.Kind,
		"build":    report.Variants.Build,
		"variants": report.Variants.Variants,
	}).Info("variants matched")
	c.JSON(http.StatusOK, report)
}
