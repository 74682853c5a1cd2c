package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/sirupsen/logrus"

	"github.com/romcellar/romcellar/pkg/archive"
	"github.com/romcellar/romcellar/pkg/download"
	"github.com/romcellar/romcellar/pkg/progress"
	"github.com/romcellar/romcellar/pkg/safepath"
)

// ErrNoDestination means the request carried no destination root, usually a
// missing platform mapping in the configuration.
var ErrNoDestination = errors.New("no destination resolved for install")

// Result is the terminal state of a pipeline run.
type Result int

const (
	Installed Result = iota
	Cancelled
	Failed
)

func (r Result) String() string {
	return [...]string{"installed", "cancelled", "failed"}[r]
}

// Stage names the phases of a run. Transitions are strictly forward, there
// is no retry loop.
type Stage int

const (
	StageStarting Stage = iota
	StageDownloading
	StageExtracting
	StageFinalizing
)

func (s Stage) String() string {
	return [...]string{"starting", "downloading", "extracting", "finalizing"}[s]
}

// Request is the immutable input to one install run.
type Request struct {
	GameID   string
	GameName string
	URL      string

	// DestinationRoot is the platform's library directory. The install
	// directory is created beneath it, named after FileName without its
	// final extension.
	DestinationRoot string
	FileName        string

	// HasMultipleFiles marks the download as a container that is always
	// unpacked. AutoExtract unpacks single-file downloads too when they
	// carry an archive signature.
	HasMultipleFiles bool
	AutoExtract      bool

	// Extensions is an allow-list used to pick the primary file out of an
	// extracted directory, in declared order. It never affects the
	// pipeline itself.
	Extensions []string
}

// DisplayName returns the best human-readable name for status text.
func (r *Request) DisplayName() string {
	if r.GameName != "" {
		return r.GameName
	}

	if r.GameID != "" {
		return r.GameID
	}

	return r.FileName
}

func (r *Request) validate() error {
	if r.DestinationRoot == "" {
		return ErrNoDestination
	}

	if r.URL == "" {
		return errors.New("download url is required")
	}

	if r.FileName == "" {
		return errors.New("file name is required")
	}

	if err := safepath.Validate(r.FileName); err != nil {
		return fmt.Errorf("file name %q: %w", r.FileName, err)
	}

	if err := safepath.Validate(r.DestinationRoot); err != nil {
		return fmt.Errorf("destination %q: %w", r.DestinationRoot, err)
	}

	return nil
}

// stagedName is the name the download is written under. A container
// download keeps a .zip suffix so the wrapper stays distinct from the
// payload it unpacks to.
func (r *Request) stagedName() string {
	if r.HasMultipleFiles && !strings.EqualFold(filepath.Ext(r.FileName), ".zip") {
		return r.FileName + ".zip"
	}

	return r.FileName
}

// Outcome is the terminal result of one run. Exactly one is produced per
// invocation.
type Outcome struct {
	Result      Result
	InstallDir  string
	PrimaryPath string

	// Reason carries the originating cause when Result is Failed.
	Reason error
}

// Store records the installed flag for a game. Implementations persist it
// however they like; the pipeline writes it exactly once, on success.
type Store interface {
	MarkInstalled(id, dir, primary string) error
}

type noopStore struct{}

func (noopStore) MarkInstalled(string, string, string) error { return nil }

// Options configures an Installer. Zero values fall back to the default
// HTTP client, a no-op store and the package-level logger.
type Options struct {
	Client *http.Client
	Store  Store
	Logger log.Interface
}

// Installer runs install pipelines. One Installer may serve many sequential
// runs; it never runs two pipelines for the same request concurrently.
type Installer struct {
	client *http.Client
	store  Store
	logger log.Interface

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(opts *Options) *Installer {
	if opts == nil {
		opts = &Options{}
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	store := opts.Store
	if store == nil {
		store = noopStore{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}

	return &Installer{
		client: client,
		store:  store,
		logger: logger,
	}
}

// Close cancels any in-flight run. Closing an idle Installer is a no-op and
// Close never fails, so it is safe in teardown paths.
func (i *Installer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}

	return nil
}

func (i *Installer) setCancel(cancel context.CancelFunc) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cancel = cancel
}

// Run executes the pipeline for req, reporting progress to sink. A
// cancellation raised at any point folds into the Cancelled outcome here,
// at the top level; every other failure becomes Failed with its cause.
func (i *Installer) Run(ctx context.Context, req *Request, sink progress.Sink) *Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	i.setCancel(cancel)
	defer i.setCancel(nil)

	outcome, err := i.run(ctx, req, progress.NewTracker(sink))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			i.logger.Debugf("install cancelled: %s", req.DisplayName())
			return &Outcome{Result: Cancelled}
		}

		return &Outcome{Result: Failed, Reason: err}
	}

	return outcome
}

func (i *Installer) run(ctx context.Context, req *Request, tracker *progress.Tracker) (*Outcome, error) {
	i.enter(StageStarting)

	name := req.DisplayName()
	tracker.Set(0, fmt.Sprintf("preparing %s", name))

	if err := req.validate(); err != nil {
		return nil, err
	}

	dir := filepath.Join(req.DestinationRoot, strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create install dir: %w", err)
	}

	staged := filepath.Join(dir, req.stagedName())

	i.enter(StageDownloading)

	if _, err := download.To(ctx, i.client, req.URL, staged, tracker); err != nil {
		return nil, err
	}

	needExtract := req.HasMultipleFiles
	if !needExtract && req.AutoExtract {
		ok, err := archive.IsArchive(staged)
		if err != nil {
			return nil, err
		}
		needExtract = ok
	}

	extracted := false
	if needExtract {
		i.enter(StageExtracting)

		if _, err := archive.Extract(ctx, staged, dir, tracker); err != nil {
			return nil, err
		}

		// The wrapper is spent once its contents are on disk. A failed
		// remove only leaves a stray file behind.
		if err := os.Remove(staged); err != nil {
			logrus.WithError(err).Debugf("unable to remove staged archive: %s", staged)
		}

		if err := archive.SweepNested(ctx, dir, tracker); err != nil {
			return nil, err
		}

		extracted = true
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	i.enter(StageFinalizing)

	primary := staged
	if extracted {
		primary = i.primaryFile(dir, req.Extensions)
	}

	if err := i.store.MarkInstalled(req.GameID, dir, primary); err != nil {
		return nil, fmt.Errorf("record install state: %w", err)
	}

	tracker.Set(progress.Done, fmt.Sprintf("%s installed", name))

	return &Outcome{
		Result:      Installed,
		InstallDir:  dir,
		PrimaryPath: primary,
	}, nil
}

func (i *Installer) enter(s Stage) {
	logrus.WithField("stage", s.String()).Trace("enter")
}
