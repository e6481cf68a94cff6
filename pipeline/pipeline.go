// Package pipeline resolves named datasets which are derived from one another.
// Each stage's output is saved to a cache.Store and memoized, and a stage
// whose artifact is already stored is never run again, nor are any of its
// upstream stages visited.
package pipeline

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/cache"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownStage is the cause of errors about a stage or dependency
	// which was never registered.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrCycle is the cause of errors about stages which depend on
	// themselves.
	ErrCycle = errors.New("dependency cycle")
)

// Inputs holds the resolved dependencies of a stage, by name.
type Inputs map[string]*trialkit.Dataset

// Get returns the named input, failing if the stage didn't declare it.
func (in Inputs) Get(name string) (*trialkit.Dataset, error) {
	d, ok := in[name]
	if !ok {
		return nil, errors.Errorf("no input named '%s'", name)
	}
	return d, nil
}

// Stage derives one dataset from the datasets named in Deps. Run must not
// have side effects other than fetching source data, since it is skipped
// entirely when its output is cached.
type Stage struct {
	Name string
	Deps []string
	Run  func(in Inputs) (*trialkit.Dataset, error)
}

// Pipeline is a registry of stages backed by a Store. It is not safe for
// concurrent use.
type Pipeline struct {
	store  cache.Store
	stages map[string]Stage
	order  []string
	memo   map[string]*trialkit.Dataset

	validated bool

	log   trialkit.Logger
	stats trialkit.Statter
}

// Option is a functional option type for Pipeline.
type Option func(p *Pipeline)

// OptLogger sets the logger.
func OptLogger(l trialkit.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// OptStatter sets the Statter.
func OptStatter(s trialkit.Statter) Option {
	return func(p *Pipeline) {
		p.stats = s
	}
}

// New returns an empty Pipeline saving to and loading from store.
func New(store cache.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  store,
		stages: make(map[string]Stage),
		memo:   make(map[string]*trialkit.Dataset),
		log:    trialkit.NopLogger{},
		stats:  trialkit.NopStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds stages. Names must be unique and usable as artifact names.
// Dependencies are checked when the pipeline is first resolved (or
// validated) so stages may be registered in any order.
func (p *Pipeline) Register(stages ...Stage) error {
	for _, s := range stages {
		if !cache.ValidName(s.Name) {
			return errors.Errorf("invalid stage name '%s'", s.Name)
		}
		if _, ok := p.stages[s.Name]; ok {
			return errors.Errorf("stage '%s' registered twice", s.Name)
		}
		if s.Run == nil {
			return errors.Errorf("stage '%s' has no Run func", s.Name)
		}
		s.Deps = append([]string(nil), s.Deps...)
		p.stages[s.Name] = s
		p.order = append(p.order, s.Name)
		p.validated = false
	}
	return nil
}

// Stages returns the registered stage names in registration order.
func (p *Pipeline) Stages() []string {
	return append([]string(nil), p.order...)
}

// Validate checks that every dependency is registered and that there are no
// cycles.
func (p *Pipeline) Validate() error {
	if p.validated {
		return nil
	}
	indeg := make(map[string]int, len(p.stages))
	dependents := make(map[string][]string)
	for _, name := range p.order {
		for _, dep := range p.stages[name].Deps {
			if _, ok := p.stages[dep]; !ok {
				return errors.Wrapf(ErrUnknownStage, "stage '%s' depends on '%s'", name, dep)
			}
			indeg[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Kahn's algorithm; anything left over is on or behind a cycle.
	var ready []string
	for _, name := range p.order {
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}
	seen := 0
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		seen++
		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	if seen != len(p.order) {
		var stuck []string
		for name, d := range indeg {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return errors.Wrapf(ErrCycle, "among stages %v", stuck)
	}
	p.validated = true
	return nil
}

// Plan returns name and everything it transitively depends on, dependencies
// first, in the order a cold resolution would run them.
func (p *Pipeline) Plan(name string) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating")
	}
	if _, ok := p.stages[name]; !ok {
		return nil, errors.Wrapf(ErrUnknownStage, "planning '%s'", name)
	}
	var plan []string
	visited := make(map[string]bool)
	var visit func(n string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, dep := range p.stages[n].Deps {
			visit(dep)
		}
		plan = append(plan, n)
	}
	visit(name)
	return plan, nil
}

// Resolve returns the named dataset. In order of preference it comes from
// this pipeline's memo, from the store, or from running the stage after
// resolving its dependencies. Freshly computed datasets are saved before
// they're returned. Any failure aborts the resolution and nothing is saved
// for the failing stage.
func (p *Pipeline) Resolve(name string) (*trialkit.Dataset, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating")
	}
	if _, ok := p.stages[name]; !ok {
		return nil, errors.Wrapf(ErrUnknownStage, "resolving '%s'", name)
	}
	run := uuid.New().String()
	start := time.Now()
	p.log.Debugf("run %s: resolving %s", run, name)
	d, err := p.resolve(name, run)
	if err != nil {
		p.log.Printf("run %s: resolving %s failed: %v", run, name, err)
		return nil, err
	}
	p.log.Debugf("run %s: resolved %s (%d rows) in %v", run, name, d.Len(), time.Since(start))
	return d, nil
}

func (p *Pipeline) resolve(name, run string) (*trialkit.Dataset, error) {
	if d, ok := p.memo[name]; ok {
		p.stats.Count("pipeline.memo_hits", 1, 1, "stage:"+name)
		return d, nil
	}

	ok, err := p.store.Exists(name)
	if err != nil {
		return nil, errors.Wrapf(err, "checking cache for '%s'", name)
	}
	if ok {
		d, err := p.store.Load(name)
		if err != nil {
			return nil, errors.Wrapf(err, "loading '%s'", name)
		}
		p.log.Debugf("run %s: loaded %s from cache", run, name)
		p.stats.Count("pipeline.cache_hits", 1, 1, "stage:"+name)
		p.memo[name] = d
		return d, nil
	}

	stage := p.stages[name]
	in := make(Inputs, len(stage.Deps))
	for _, dep := range stage.Deps {
		d, err := p.resolve(dep, run)
		if err != nil {
			return nil, err
		}
		in[dep] = d
	}

	p.log.Printf("run %s: computing %s", run, name)
	start := time.Now()
	d, err := stage.Run(in)
	if err != nil {
		return nil, errors.Wrapf(err, "running stage '%s'", name)
	}
	if d == nil {
		return nil, errors.Errorf("stage '%s' returned no dataset", name)
	}
	p.stats.Timing("pipeline.stage", time.Since(start), 1, "stage:"+name)
	p.stats.Count("pipeline.stage_runs", 1, 1, "stage:"+name)

	if err := p.store.Save(name, d); err != nil {
		return nil, errors.Wrapf(err, "saving '%s'", name)
	}
	p.memo[name] = d
	return d, nil
}

// Forget drops all memoized datasets so the next Resolve consults the store
// again.
func (p *Pipeline) Forget() {
	p.memo = make(map[string]*trialkit.Dataset)
}
