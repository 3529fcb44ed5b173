// Package healthscores serves the line-chart series shown next to the
// pricing cards.
package healthscores

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/mbd888/tariffdesk/internal/source"
	"github.com/mbd888/tariffdesk/internal/tariff"
)

// DefaultDatasetLabel is used when the document does not name its dataset.
const DefaultDatasetLabel = "Доля оценок А и В"

// Series is one chart dataset. Elements are passed to the chart untouched,
// so labels may be numbers and values may hold null gaps.
type Series struct {
	Labels       []any  `json:"labels"`
	Values       []any  `json:"values"`
	DatasetLabel string `json:"datasetLabel"`
}

type document struct {
	Labels       []any  `json:"labels" yaml:"labels"`
	Values       []any  `json:"values" yaml:"values"`
	DatasetLabel string `json:"datasetLabel" yaml:"datasetLabel"`
}

// Parse decodes a health score document. Both labels and values must be
// present as arrays; their elements are not checked.
func Parse(data []byte, format tariff.Format) (*Series, error) {
	var doc document
	var err error
	if format == tariff.FormatYAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode health scores: %w", err)
	}
	if doc.Labels == nil || doc.Values == nil {
		return nil, fmt.Errorf("health scores: labels and values are required")
	}
	label := doc.DatasetLabel
	if label == "" {
		label = DefaultDatasetLabel
	}
	return &Series{Labels: doc.Labels, Values: doc.Values, DatasetLabel: label}, nil
}

// Service holds the last loaded series.
type Service struct {
	src    source.Source
	logger *slog.Logger

	mu     sync.RWMutex
	series *Series
}

// NewService creates a health score service
func NewService(src source.Source, logger *slog.Logger) *Service {
	return &Service{src: src, logger: logger}
}

// Load fetches and parses the series. On failure the previous series is
// dropped and the chart is hidden.
func (s *Service) Load(ctx context.Context) bool {
	series, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("health scores unavailable", "source", s.src.Name(), "error", err)
	}
	s.mu.Lock()
	s.series = series
	s.mu.Unlock()
	return series != nil
}

func (s *Service) fetch(ctx context.Context) (*Series, error) {
	doc, err := s.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(doc.Data, doc.Format)
}

// Series returns the loaded series, if any.
func (s *Service) Series() (*Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series, s.series != nil
}

// Handler handles GET /health-scores
func (s *Service) Handler(c *gin.Context) {
	series, ok := s.Series()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Health scores are not available",
		})
		return
	}
	c.JSON(http.StatusOK, series)
}
