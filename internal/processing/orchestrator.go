package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/geometry"
	"github.com/ojparkinson/massbalance/internal/massbalance"
	"github.com/ojparkinson/massbalance/internal/metrics"
	"github.com/ojparkinson/massbalance/internal/stationing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs every section of a drawing against one pair of profiles.
type Orchestrator struct {
	mergeTolerance float64
	integrator     massbalance.Integrator
	sectionWorkers int
	logger         *zap.Logger
	progress       ProgressCallback
}

func NewOrchestrator(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	workers := cfg.SectionWorkers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		mergeTolerance: cfg.MergeTolerance,
		integrator:     massbalance.NewIntegrator(cfg.CrossingEpsilon),
		sectionWorkers: workers,
		logger:         logger,
		progress:       &NoOpProgressCallback{},
	}
}

// WithProgress returns a copy of the orchestrator reporting to callback.
func (o *Orchestrator) WithProgress(callback ProgressCallback) *Orchestrator {
	cp := *o
	if callback != nil {
		cp.progress = callback
	}
	return &cp
}

type scaleKey struct {
	h, v float64
}

type profilePair struct {
	grade   *massbalance.Profile
	terrain *massbalance.Profile
}

// FileContext holds the profiles built for one drawing, one pair per
// distinct scale combination. It is read-only once built and is dropped
// when the run finishes.
type FileContext struct {
	Name          string
	profiles      map[scaleKey]profilePair
	skippedChains int
}

func (fc *FileContext) pair(s stationing.Section) (profilePair, bool) {
	p, ok := fc.profiles[scaleKey{s.HScale, s.VScale}]
	return p, ok
}

// BuildContext builds both layers for every scale used by a valid section.
// Any GeometryError is returned as is and aborts the whole drawing.
func (o *Orchestrator) BuildContext(d *drawing.Drawing, req *config.CalculationRequest, sections []stationing.Section) (*FileContext, error) {
	fc := &FileContext{Name: d.Name, profiles: make(map[scaleKey]profilePair)}
	builder := geometry.NewChainBuilder(req.Tolerance(o.mergeTolerance))

	keys := make([]scaleKey, 0, 1)
	for _, s := range sections {
		if s.Validate() != nil {
			continue
		}
		k := scaleKey{s.HScale, s.VScale}
		if _, seen := fc.profiles[k]; !seen {
			fc.profiles[k] = profilePair{}
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		// Layers are still checked so that a broken drawing is reported as such.
		keys = append(keys, scaleKey{1, 1})
	}

	for _, k := range keys {
		grade, skippedG, err := o.buildProfile(builder, d, req.GreideLayer, k)
		if err != nil {
			return nil, err
		}
		terrain, skippedT, err := o.buildProfile(builder, d, req.TerrenoLayer, k)
		if err != nil {
			return nil, err
		}
		fc.profiles[k] = profilePair{grade: grade, terrain: terrain}
		fc.skippedChains += skippedG + skippedT
	}
	return fc, nil
}

func (o *Orchestrator) buildProfile(builder geometry.ChainBuilder, d *drawing.Drawing, layer string, k scaleKey) (*massbalance.Profile, int, error) {
	groups, ok := d.Layer(layer)
	if !ok {
		return nil, 0, &geometry.GeometryError{Layer: layer, Reason: "layer not found in drawing"}
	}

	chains, err := builder.Build(layer, groups, k.h, k.v)
	if err != nil {
		return nil, 0, err
	}
	segments, skipped, err := geometry.LayerSegments(layer, chains)
	if err != nil {
		return nil, 0, err
	}
	if skipped > 0 {
		o.logger.Debug("Skipped single point chains",
			zap.String("layer", layer),
			zap.Int("skipped", skipped))
	}
	return massbalance.NewProfile(layer, segments), skipped, nil
}

// Process computes every section of the request. Invalid sections are
// reported on their own result; a geometry failure aborts the drawing.
// Cancellation is honoured between sections.
func (o *Orchestrator) Process(ctx context.Context, d *drawing.Drawing, req *config.CalculationRequest) (*FileResult, error) {
	start := time.Now()
	sections := req.SectionList()

	fc, err := o.BuildContext(d, req, sections)
	if err != nil {
		var geomErr *geometry.GeometryError
		if errors.As(err, &geomErr) {
			metrics.FilesFailedTotal.WithLabelValues("geometry").Inc()
		}
		return nil, fmt.Errorf("failed to build profiles for %s: %w\nAction: Check the grade and terrain layer names and that both contain polylines", d.Name, err)
	}

	o.progress.OnFileStart(d.Name, len(sections))
	results, err := o.Run(ctx, fc, sections)
	if err != nil {
		return nil, err
	}
	o.progress.OnFileComplete(d.Name)

	result := &FileResult{
		Name:          d.Name,
		GreideLayer:   req.GreideLayer,
		TerrenoLayer:  req.TerrenoLayer,
		Sections:      results,
		SkippedChains: fc.skippedChains,
		CreatedAt:     time.Now().UTC(),
	}
	for _, s := range results {
		if s.Err != nil {
			continue
		}
		cut, fill := s.Totals()
		result.TotalCut += cut
		result.TotalFill += fill
		result.SectionsProcessed++
		result.BinCount += len(s.Bins)
		for _, b := range s.Bins {
			if !b.OK() {
				result.CoverageErrors++
			}
		}
	}

	o.logger.Debug("Drawing processed",
		zap.String("drawing", d.Name),
		zap.Int("sections", result.SectionsProcessed),
		zap.Int("bins", result.BinCount),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// Run fans the sections out over a bounded group. Each section writes only
// its own slot, so the result order matches the request order.
func (o *Orchestrator) Run(ctx context.Context, fc *FileContext, sections []stationing.Section) ([]SectionResult, error) {
	results := make([]SectionResult, len(sections))
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.sectionWorkers)

	for i, s := range sections {
		results[i].Section = s
		if err := s.Validate(); err != nil {
			results[i].Err = err
			metrics.SectionsTotal.WithLabelValues("config_error").Inc()
			o.logger.Warn("Section rejected",
				zap.String("drawing", fc.Name),
				zap.String("section", s.ID),
				zap.Error(err),
				zap.String("action", "Fix the section parameters; other sections are still computed"))
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pair, ok := fc.pair(s)
			if !ok {
				return fmt.Errorf("no profiles built for section %s scale %v/%v", s.ID, s.HScale, s.VScale)
			}

			results[i] = o.processSection(pair, s)
			metrics.SectionsTotal.WithLabelValues("ok").Inc()

			progressMu.Lock()
			o.progress.OnSectionDone(fc.Name, s.ID, len(results[i].Bins))
			progressMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("processing %s stopped: %w", fc.Name, err)
	}
	return results, nil
}

func (o *Orchestrator) processSection(pair profilePair, s stationing.Section) SectionResult {
	res := SectionResult{Section: s, Bins: make([]massbalance.BinResult, 0, s.BinCount())}

	coverageErrors := 0
	for bin := range s.Bins() {
		vt, pf, err := o.integrator.Integrate(pair.grade, pair.terrain, bin)
		if err != nil {
			var covErr *massbalance.CoverageError
			if errors.As(err, &covErr) {
				covErr.SectionID = s.ID
				coverageErrors++
			}
		}
		res.Bins = append(res.Bins, massbalance.NewBinResult(s, bin, vt, pf, err))
	}

	metrics.BinsIntegratedTotal.Add(float64(len(res.Bins)))
	if coverageErrors > 0 {
		metrics.CoverageErrorsTotal.Add(float64(coverageErrors))
		o.logger.Warn("Bins without coverage",
			zap.String("section", s.ID),
			zap.Int("bins", coverageErrors),
			zap.String("action", "Check that both layers span the section range"))
	}

	res.Profile = massbalance.SampleProfiles(pair.grade, pair.terrain, s)
	return res
}
