// Package analysis runs a policy over a candidate set against one indexed
// reference set.
package analysis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/policy"
	"github.com/sells-group/schoolsite/internal/proximity"
	"github.com/sells-group/schoolsite/internal/report"
)

var (
	// ErrUnknownPolicy is returned for a policy name the session cannot run.
	ErrUnknownPolicy = eris.New("analysis: unknown policy")
	// ErrNoBoundaries is returned when the region policy runs without polygons.
	ErrNoBoundaries = eris.New("analysis: region policy needs district boundaries")
)

const defaultConcurrency = 4

// Session owns the index for one analysis invocation. It is read-only after
// NewSession and safe for concurrent Evaluate calls.
type Session struct {
	ID         string
	Config     policy.Config
	Reference  []model.Entity
	Index      *proximity.Index
	Boundaries []*geo.Polygon

	concurrency int
	progress    func(done, total int)
	log         *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithBoundaries supplies district polygons for the region policy.
func WithBoundaries(b []*geo.Polygon) Option {
	return func(s *Session) { s.Boundaries = b }
}

// WithConcurrency bounds the number of candidates evaluated at once.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithProgress registers a callback invoked after each candidate. It may be
// called from several goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Session) { s.progress = fn }
}

// NewSession validates cfg, indexes reference and returns a session ready to
// run.
func NewSession(reference []model.Entity, cfg policy.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "analysis: new session")
	}
	s := &Session{
		ID:          uuid.New().String(),
		Config:      cfg,
		Reference:   reference,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(s)
	}
	start := time.Now()
	s.Index = proximity.Build(reference)
	s.log = zap.L().With(zap.String("component", "analysis"), zap.String("session", s.ID))
	s.log.Debug("reference indexed",
		zap.Int("entities", s.Index.Size()),
		zap.Int("input", len(reference)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s, nil
}

// Outcome is the result of one Run.
type Outcome struct {
	SessionID string          `json:"session_id"`
	Policy    model.Policy    `json:"policy"`
	Verdicts  []model.Verdict `json:"verdicts"`
	Summary   report.Summary  `json:"summary"`
	// Excluded counts candidates outside the configured districts.
	Excluded int           `json:"excluded"`
	Duration time.Duration `json:"duration"`
}

// Evaluate applies p to one candidate. A candidate without valid coordinates
// is rejected with geo.ErrInvalidCoordinate rather than classified.
func (s *Session) Evaluate(p model.Policy, cand model.Entity) (model.Verdict, error) {
	if err := s.check(p); err != nil {
		return model.Verdict{}, err
	}
	if !cand.Location.Valid() {
		return model.Verdict{}, eris.Wrapf(geo.ErrInvalidCoordinate, "analysis: candidate %q", cand.ID)
	}
	switch p {
	case model.PolicyFeasibility:
		return policy.Feasibility(s.Index, cand, s.Config), nil
	case model.PolicyProgression:
		return policy.Progression(s.Index, cand, s.Config), nil
	case model.PolicyUpgrade:
		return policy.Upgrade(s.Index, cand, s.Config), nil
	case model.PolicySite:
		return policy.Site(s.Index, cand, s.Config), nil
	case model.PolicyCompare:
		return policy.Compare(s.Index, cand, s.Config), nil
	case model.PolicyRegion:
		return policy.RegionOf(s.Boundaries, cand), nil
	}
	return model.Verdict{}, eris.Wrapf(ErrUnknownPolicy, "analysis: %q", p)
}

func (s *Session) check(p model.Policy) error {
	switch p {
	case model.PolicyFeasibility, model.PolicyProgression, model.PolicyUpgrade, model.PolicySite, model.PolicyCompare:
		return nil
	case model.PolicyRegion:
		if len(s.Boundaries) == 0 {
			return ErrNoBoundaries
		}
		return nil
	}
	return eris.Wrapf(ErrUnknownPolicy, "analysis: %q", p)
}

// filtersCandidates reports whether the district filter applies to the
// candidates of p rather than to their reference neighbours.
func filtersCandidates(p model.Policy) bool {
	switch p {
	case model.PolicyProgression, model.PolicyUpgrade, model.PolicyCompare, model.PolicyRegion:
		return true
	}
	return false
}

// Run evaluates every candidate under p. Verdicts keep the input order. The
// first candidate that cannot be evaluated fails the whole run.
func (s *Session) Run(ctx context.Context, p model.Policy, candidates []model.Entity) (*Outcome, error) {
	start := time.Now()
	if err := s.check(p); err != nil {
		return nil, err
	}

	selected := candidates
	if filtersCandidates(p) {
		selected = make([]model.Entity, 0, len(candidates))
		for _, c := range candidates {
			if model.MatchesDistrict(c.Region.District, s.Config.Districts) {
				selected = append(selected, c)
			}
		}
	}

	s.log.Info("analysis: starting run",
		zap.String("policy", string(p)),
		zap.Int("candidates", len(selected)),
		zap.Int("excluded", len(candidates)-len(selected)),
		zap.Int("concurrency", s.concurrency),
	)

	verdicts := make([]model.Verdict, len(selected))
	var done atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range selected {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			v, err := s.Evaluate(p, selected[i])
			if err != nil {
				return err
			}
			verdicts[i] = v
			n := done.Add(1)
			if s.progress != nil {
				s.progress(int(n), len(selected))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analysis: run")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "analysis: run")
	}

	out := &Outcome{
		SessionID: s.ID,
		Policy:    p,
		Verdicts:  verdicts,
		Summary:   report.Summarize(verdicts, s.Reference),
		Excluded:  len(candidates) - len(selected),
		Duration:  time.Since(start),
	}
	s.log.Info("analysis: run complete",
		zap.String("policy", string(p)),
		zap.Int("verdicts", len(verdicts)),
		zap.Duration("elapsed", out.Duration),
	)
	return out, nil
}
