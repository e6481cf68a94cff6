package competitors

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/aws/s3"
	"github.com/pilosa/trialkit/boltdb"
	"github.com/pilosa/trialkit/cache"
	"github.com/pilosa/trialkit/ctgov"
	"github.com/pilosa/trialkit/leveldb"
	"github.com/pilosa/trialkit/pipeline"
	"github.com/pilosa/trialkit/redis"
	"github.com/pilosa/trialkit/termstat"
	"github.com/pkg/errors"
)

// Main holds the options for resolving derived datasets from the command
// line. Its Setup is shared by every command that needs a pipeline.
type Main struct {
	BaseURL          string        `help:"Root of the ClinicalTrials.gov API."`
	PageSize         int           `help:"Studies requested per page."`
	Timeout          time.Duration `help:"Timeout for each request."`
	CatalogPath      string        `help:"Field catalog CSV with 'Column Name' and 'Included Data Fields' columns. Empty uses the built in catalog."`
	GroupsPath       string        `help:"JSON or YAML file mapping conditions to groups."`
	Sponsor          string        `help:"Reference sponsor whose competitors are found."`
	Years            int           `help:"Length in years of the start date window, ending today."`
	MaxStudies       int           `help:"Maximum number of studies fetched for the base data."`
	MinSponsorTrials int           `help:"A competitor must have more than this many trials on the conditions."`
	Excluded         []string      `help:"Placeholder conditions which are never conditions of interest."`

	Cache       string `help:"Cache backend: dir, memory, bolt, leveldb, s3 or redis."`
	CacheDir    string `help:"Directory for the dir backend."`
	BoltPath    string `help:"Database file for the bolt backend."`
	LevelDBPath string `help:"Database directory for the leveldb backend."`
	S3Bucket    string `help:"Bucket for the s3 backend."`
	S3Prefix    string `help:"Key prefix for the s3 backend."`
	S3Region    string `help:"Region for the s3 backend."`
	S3Endpoint  string `help:"Custom endpoint for the s3 backend, e.g. a local minio."`
	RedisURL    string `help:"URL for the redis backend, e.g. redis://localhost:6379/0."`
	RedisPrefix string `help:"Key prefix for the redis backend."`

	Targets []string `help:"Datasets to resolve."`
	Remove  bool     `help:"Remove the targets' cached artifacts first so they are recomputed."`
	Out     string   `help:"Directory to write the resolved targets to as CSV. Empty writes a single target to stdout."`

	Progress bool   `help:"Periodically print fetch and pipeline stats to stderr."`
	LogPath  string `help:"Log file to write to. Empty means stderr."`
	Verbose  bool   `help:"Enable verbose logging."`

	Stdout  io.Writer        `flag:"-"`
	Stderr  io.Writer        `flag:"-"`
	Statter trialkit.Statter `flag:"-"`
	Now     func() time.Time `flag:"-"`
}

// NewMain returns a new Main.
func NewMain() *Main {
	cfg := NewConfig()
	return &Main{
		BaseURL:          ctgov.DefaultBaseURL,
		PageSize:         ctgov.MaxPageSize,
		Timeout:          time.Minute,
		Sponsor:          cfg.Sponsor,
		Years:            cfg.Years,
		MaxStudies:       cfg.MaxStudies,
		MinSponsorTrials: cfg.MinSponsorTrials,
		Excluded:         cfg.Excluded,
		Cache:            "dir",
		CacheDir:         "data",
		BoltPath:         "trialkit.db",
		LevelDBPath:      "trialkit.ldb",
		RedisURL:         "redis://localhost:6379/0",
		RedisPrefix:      "trialkit:",
		Targets:          []string{Geographic},
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
	}
}

// Env is everything a command needs to resolve datasets. Close it when done.
type Env struct {
	Pipeline *pipeline.Pipeline
	Store    *cache.BlobStore
	Log      trialkit.Logger
	Stats    trialkit.Statter

	closers []io.Closer
}

// Close releases the cache backend, the progress display and the log file.
func (e *Env) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

// OpenBlobs opens the configured cache backend. The returned Closer is nil
// for backends which hold no resources.
func (m *Main) OpenBlobs() (cache.Blobs, io.Closer, error) {
	switch m.Cache {
	case "dir":
		d, err := cache.NewDir(m.CacheDir)
		return d, nil, err
	case "memory":
		return cache.NewMemory(), nil, nil
	case "bolt":
		b, err := boltdb.Open(m.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case "leveldb":
		b, err := leveldb.Open(m.LevelDBPath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case "s3":
		b, err := s3.NewBlobs(m.S3Bucket, s3.OptPrefix(m.S3Prefix), s3.OptRegion(m.S3Region), s3.OptEndpoint(m.S3Endpoint))
		return b, nil, err
	case "redis":
		b, err := redis.Dial(m.RedisURL, m.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
	return nil, nil, errors.Errorf("unknown cache backend '%s'", m.Cache)
}

// Config builds the stage configuration. The client it describes is only
// created once a stage needs to fetch.
func (m *Main) Config(log trialkit.Logger, stats trialkit.Statter) (Config, error) {
	if m.MinSponsorTrials < 0 {
		return Config{}, errors.Errorf("min-sponsor-trials must not be negative, got %d", m.MinSponsorTrials)
	}
	groups, err := LoadGroupMap(m.GroupsPath)
	if err != nil {
		return Config{}, err
	}
	catalog := ctgov.DefaultCatalog()
	if m.CatalogPath != "" {
		f, err := os.Open(m.CatalogPath)
		if err != nil {
			return Config{}, errors.Wrap(err, "opening catalog")
		}
		catalog, err = ctgov.LoadCatalog(f)
		f.Close()
		if err != nil {
			return Config{}, errors.Wrapf(err, "loading catalog %s", m.CatalogPath)
		}
	}

	cfg := NewConfig()
	cfg.Sponsor = m.Sponsor
	cfg.Years = m.Years
	cfg.MaxStudies = m.MaxStudies
	cfg.MinSponsorTrials = m.MinSponsorTrials
	cfg.Excluded = m.Excluded
	cfg.Groups = groups
	cfg.Country = DefaultCountryLookup
	cfg.Log = log
	if m.Now != nil {
		cfg.Now = m.Now
	}
	cfg.Client = func() (StudyFetcher, error) {
		c, err := ctgov.NewClient(
			ctgov.OptBaseURL(m.BaseURL),
			ctgov.OptPageSize(m.PageSize),
			ctgov.OptTransport(ctgov.NewHTTPTransport(ctgov.OptTimeout(m.Timeout))),
			ctgov.OptCatalog(catalog),
			ctgov.OptLogger(log),
			ctgov.OptStatter(stats),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return cfg, nil
}

// Setup opens the log, the cache backend and the progress display, and
// builds a validated pipeline with every stage registered.
func (m *Main) Setup() (_ *Env, err error) {
	env := &Env{}
	defer func() {
		if err != nil {
			env.Close()
		}
	}()

	log, closer, err := trialkit.OpenLogger(m.LogPath, m.Verbose)
	if err != nil {
		return nil, errors.Wrap(err, "setting up logging")
	}
	env.Log = log
	env.closers = append(env.closers, closer)

	var stats trialkit.MultiStatter
	if m.Statter != nil {
		stats = append(stats, m.Statter)
	}
	if m.Progress {
		ts := termstat.NewCollector(m.Stderr, 2*time.Second)
		stats = append(stats, ts)
		env.closers = append(env.closers, ts)
	}
	env.Stats = stats

	blobs, bcloser, err := m.OpenBlobs()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s cache", m.Cache)
	}
	if bcloser != nil {
		env.closers = append(env.closers, bcloser)
	}
	env.Store = cache.New(blobs)

	cfg, err := m.Config(log, stats)
	if err != nil {
		return nil, errors.Wrap(err, "configuring stages")
	}
	env.Pipeline = pipeline.New(env.Store, pipeline.OptLogger(log), pipeline.OptStatter(stats))
	if err := env.Pipeline.Register(Stages(cfg)...); err != nil {
		return nil, errors.Wrap(err, "registering stages")
	}
	if err := env.Pipeline.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating pipeline")
	}
	return env, nil
}

// Run resolves the targets and writes them out.
func (m *Main) Run() error {
	env, err := m.Setup()
	if err != nil {
		return err
	}
	defer env.Close()

	if m.Remove {
		for _, name := range m.Targets {
			env.Log.Printf("removing cached %s", name)
			if err := env.Store.Remove(name); err != nil {
				return errors.Wrapf(err, "removing %s", name)
			}
		}
	}

	if m.Out != "" {
		if err := os.MkdirAll(m.Out, 0755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}
	for _, name := range m.Targets {
		d, err := env.Pipeline.Resolve(name)
		if err != nil {
			return errors.Wrapf(err, "resolving %s", name)
		}
		env.Log.Printf("%s: %d rows", name, d.Len())
		switch {
		case m.Out != "":
			if err := writeCSVFile(filepath.Join(m.Out, name+".csv"), d); err != nil {
				return err
			}
		case len(m.Targets) == 1:
			if err := trialkit.WriteCSV(m.Stdout, d); err != nil {
				return errors.Wrapf(err, "writing %s", name)
			}
		}
	}
	return nil
}

func writeCSVFile(path string, d *trialkit.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	if err := trialkit.WriteCSV(f, d); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrap(f.Close(), "closing output file")
}
