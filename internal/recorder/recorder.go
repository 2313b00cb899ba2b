// Package recorder orchestrates the Chunk Store, State Tracker,
// Snapshot Walker, and Change Detector into one running recording
// session, and seals the result into an archive on Stop.
//
// Grounded on orchestrator.Orchestrator's role of wiring components
// together without owning their business logic, drastically simplified
// to fsrecorder's single-source, single-run scope: there is exactly one
// watched root, one tracker, one chunk store, and one ordered event log
// per Recorder instance.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fsrecorder/internal/archive"
	"fsrecorder/internal/capture"
	"fsrecorder/internal/chunkstore"
	"fsrecorder/internal/classify"
	"fsrecorder/internal/detector"
	"fsrecorder/internal/event"
	"fsrecorder/internal/logging"
	"fsrecorder/internal/snapshot"
	"fsrecorder/internal/tracker"
)

// Options configures a Recorder.
type Options struct {
	// Root is the directory to watch. Required.
	Root string

	// SkipBinaryContent, when true, captures only size for
	// binary-classified files (placeholders) instead of their bytes.
	// The zero value (false) captures binary bytes; the record command's
	// --skip-binary-content flag defaults to true.
	SkipBinaryContent bool

	// ForceTextExtensions and ForceBinaryExtensions override the
	// built-in classifier extension sets.
	ForceTextExtensions   []string
	ForceBinaryExtensions []string

	// Logger is scoped to component="recorder" and handed down to
	// every subcomponent. Defaults to a discard logger.
	Logger *slog.Logger

	// Now returns the current time, used to stamp each event as it is
	// appended to the log. Defaults to time.Now.
	Now func() time.Time
}

// Report summarizes a completed recording run.
type Report struct {
	TotalEvents int
	Unreadable  []string
}

// Recorder runs a single recording session: an initial snapshot
// followed by live change detection, until Stop is called.
type Recorder struct {
	root        string
	recordingID string
	policy      capture.Policy
	tracker     *tracker.Tracker
	store       *chunkstore.Store
	det         *detector.Detector
	logger      *slog.Logger
	now         func() time.Time
	start       time.Time

	mu         sync.Mutex
	events     []event.Event
	unreadable []string

	cancel context.CancelFunc
	group  *errgroup.Group
	out    chan event.Event
}

// New constructs a Recorder and establishes watches under opts.Root. It
// does not start the initial snapshot; call Start for that.
func New(opts Options) (*Recorder, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("recorder: root directory is required")
	}
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	logger := logging.Default(opts.Logger).With("component", "recorder")
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store, err := chunkstore.Open("fsrecorder_", logger)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	policy := capture.Policy{
		Classifier: classify.Classifier{
			ForceText:   classify.NewExtensionSet(opts.ForceTextExtensions),
			ForceBinary: classify.NewExtensionSet(opts.ForceBinaryExtensions),
		},
		SkipBinary: opts.SkipBinaryContent,
		Store:      store,
	}

	tr := tracker.New()

	det, err := detector.New(detector.Config{Root: absRoot, Policy: policy, Tracker: tr, Logger: logger})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("start change detector: %w", err)
	}

	return &Recorder{
		root:        absRoot,
		recordingID: uuid.NewString(),
		policy:      policy,
		tracker:     tr,
		store:       store,
		det:         det,
		logger:      logger,
		now:         now,
	}, nil
}

// Start walks the watched root to build the initial snapshot, then
// launches change detection in the background. ctx governs the
// recording's lifetime; cancelling it (or calling Stop) ends the run.
func (r *Recorder) Start(ctx context.Context) error {
	r.start = r.now()

	events, snapReport, err := snapshot.Walk(r.root, r.policy, r.tracker, r.logger)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	r.appendAll(events)
	r.mu.Lock()
	r.unreadable = append(r.unreadable, snapReport.Unreadable...)
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	r.group = g
	r.out = make(chan event.Event, 256)

	g.Go(func() error { return r.det.Run(gctx, r.out) })
	g.Go(func() error { return r.consume(runCtx, r.out) })

	r.logger.Info("recording started", "root", r.root, "initial_events", len(events))
	return nil
}

func (r *Recorder) consume(ctx context.Context, out <-chan event.Event) error {
	for {
		select {
		case e, ok := <-out:
			if !ok {
				return nil
			}
			r.appendOne(e)
		case <-ctx.Done():
			return drainRemaining(out, r.appendOne)
		}
	}
}

func drainRemaining(out <-chan event.Event, apply func(event.Event)) error {
	for {
		select {
		case e, ok := <-out:
			if !ok {
				return nil
			}
			apply(e)
		default:
			return nil
		}
	}
}

func (r *Recorder) appendOne(e event.Event) {
	e.Timestamp = float64(r.now().UnixNano()) / float64(time.Second)
	if err := e.Validate(); err != nil {
		r.logger.Warn("dropping malformed event", "error", err)
		return
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) appendAll(events []event.Event) {
	for _, e := range events {
		r.appendOne(e)
	}
}

// Stop joins the change detector, then seals the accumulated log and
// chunk store into an archive at outputPath. It is an error to call
// Stop before Start.
func (r *Recorder) Stop(outputPath string) (Report, error) {
	if r.cancel == nil {
		return Report{}, fmt.Errorf("recorder: Stop called before Start")
	}
	r.cancel()
	if err := r.group.Wait(); err != nil {
		r.logger.Warn("change detector stopped with error", "error", err)
	}
	if err := r.det.Close(); err != nil {
		r.logger.Warn("closing watcher failed", "error", err)
	}
	defer r.store.Close()

	r.mu.Lock()
	events := r.events
	unreadable := r.unreadable
	r.mu.Unlock()

	manifest := archive.Manifest{
		Metadata: archive.Metadata{
			RecordedAt:  r.start.UTC().Format(time.RFC3339),
			WatchDir:    r.root,
			TotalEvents: len(events),
			Platform:    runtime.GOOS,
			RecordingID: r.recordingID,
		},
		Events: events,
	}

	if err := archive.Write(outputPath, manifest, r.store); err != nil {
		return Report{}, fmt.Errorf("seal archive: %w", err)
	}

	r.logger.Info("recording stopped", "events", len(events), "unreadable", len(unreadable), "archive", outputPath)
	return Report{TotalEvents: len(events), Unreadable: unreadable}, nil
}
