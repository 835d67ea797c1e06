// Package dashboard keeps the derived bin state in sync with the data source.
//
// The Service subscribes to the status and history paths, reduces every snapshot
// it receives and hands the result to its listeners. Each update rebuilds its
// slice of state from scratch; the other slice is left alone.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"smartbin-dashboard/config"
	"smartbin-dashboard/internal/history"
	"smartbin-dashboard/internal/level"
	"smartbin-dashboard/internal/metrics"
	"smartbin-dashboard/internal/model"
	"smartbin-dashboard/internal/notification"
	"smartbin-dashboard/internal/parse"
	"smartbin-dashboard/internal/source"
)

var (
	// ErrNoStatus is returned by ToggleLid before any status has been observed.
	ErrNoStatus = errors.New("no status observed yet")
	// ErrStopped is returned by ToggleLid when the service is not running.
	ErrStopped = errors.New("dashboard is not running")
)

// Listener receives every derived-state update in the order it was applied.
type Listener func(model.Update)

// Alerter receives "bin full" alerts.
type Alerter interface {
	Dispatch(alert notification.Alert) bool
}

// Archiver stores valid history records.
type Archiver interface {
	ArchiveReadings(ctx context.Context, records []model.HistoryRecord, now time.Time) (int64, error)
}

// Options configures the paths, field names and aggregation of the service.
type Options struct {
	StatusPath    string
	HistoryPath   string
	ControlPath   string
	StatusFields  config.StatusFields
	HistoryFields config.HistoryFields
	History       history.Options
	WriteTimeout  time.Duration

	// HistoryRefresh re-aggregates the last history against the clock so the
	// buckets keep ending at now between pushes. Zero disables it.
	HistoryRefresh time.Duration
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StatusPath:    cfg.Source.StatusPath,
		HistoryPath:   cfg.Source.HistoryPath,
		ControlPath:   cfg.Source.ControlPath,
		StatusFields:  cfg.Source.Fields.Status,
		HistoryFields: cfg.Source.Fields.History,
		History:       history.OptionsFromConfig(cfg.History),
		WriteTimeout:  cfg.Source.Timeout,

		HistoryRefresh: time.Duration(cfg.History.RefreshSeconds) * time.Second,
	}
}

// Deps are the optional collaborators of the service.
type Deps struct {
	Metrics  *metrics.Metrics
	Alerter  Alerter
	Archiver Archiver
}

// Service owns the subscriptions and the derived state.
type Service struct {
	src  source.Source
	opts Options
	deps Deps
	now  func() time.Time

	mu        sync.Mutex
	gen       uint64
	running   bool
	handles   []source.Handle
	snap      model.Snapshot
	records   []model.HistoryRecord // last valid history, ascending
	listeners []Listener

	stopRefresh chan struct{}
	refreshDone chan struct{}

	// Newest archived timestamp and the IDs archived at exactly that time.
	archivedTS  float64
	archivedIDs map[string]struct{}

	// notifyMu is held from applying an update until its listeners return, so
	// listeners see updates in the order they were applied. Taken before mu.
	notifyMu sync.Mutex
	// background tracks control writes and archive jobs.
	background sync.WaitGroup
}

// NewService creates a stopped service reading from src.
func NewService(src source.Source, opts Options, deps Deps) *Service {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Service{src: src, opts: opts, deps: deps, now: time.Now}
	s.snap = s.emptySnapshot()
	return s
}

// AddListener registers l for future updates.
func (s *Service) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Start subscribes to the status and history paths.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.running = true
	s.snap = s.emptySnapshot()
	s.records = nil
	s.mu.Unlock()

	statusHandle, err := s.src.Subscribe(s.opts.StatusPath,
		func(raw any) { s.applyStatus(gen, raw) },
		func(err error) { s.applyError(gen, model.UpdateStatus, err) })
	if err != nil {
		s.abortStart(gen)
		return fmt.Errorf("failed to subscribe to %s: %w", s.opts.StatusPath, err)
	}

	historyHandle, err := s.src.Subscribe(s.opts.HistoryPath,
		func(raw any) { s.applyHistory(gen, raw) },
		func(err error) { s.applyError(gen, model.UpdateHistory, err) })
	if err != nil {
		s.src.Unsubscribe(statusHandle)
		s.abortStart(gen)
		return fmt.Errorf("failed to subscribe to %s: %w", s.opts.HistoryPath, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// Stopped while subscribing.
		s.mu.Unlock()
		s.src.Unsubscribe(statusHandle)
		s.src.Unsubscribe(historyHandle)
		return nil
	}
	s.handles = []source.Handle{statusHandle, historyHandle}
	if s.opts.HistoryRefresh > 0 {
		s.stopRefresh = make(chan struct{})
		s.refreshDone = make(chan struct{})
		go s.refreshLoop(gen, s.opts.HistoryRefresh, s.stopRefresh, s.refreshDone)
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{"status": s.opts.StatusPath, "history": s.opts.HistoryPath}).Info("Dashboard subscribed")
	return nil
}

func (s *Service) abortStart(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.gen++
		s.running = false
	}
}

// Stop releases every subscription. No update is applied once Stop returns.
// Control writes already in flight are not cancelled.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.running = false
	handles := s.handles
	s.handles = nil
	stop, done := s.stopRefresh, s.refreshDone
	s.stopRefresh, s.refreshDone = nil, nil
	s.mu.Unlock()

	for _, h := range handles {
		s.src.Unsubscribe(h)
	}
	if stop != nil {
		close(stop)
		<-done
	}

	// Wait for a listener run that passed the generation check before Stop.
	s.notifyMu.Lock()
	s.notifyMu.Unlock()
	log.Info("Dashboard unsubscribed")
}

// Wait blocks until background writes and archive jobs have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Running reports whether the service is subscribed.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns the current derived state.
func (s *Service) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// ToggleLid writes the inverse of the last known lid state to the control path.
// The write runs in the background; its outcome is only logged and counted.
// Local state is not changed: the new lid state arrives with the next status update.
func (s *Service) ToggleLid() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrStopped
	}
	if !s.snap.StatusSeen {
		s.mu.Unlock()
		return ErrNoStatus
	}
	target := !s.snap.Status.LidOpen
	s.mu.Unlock()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		defer cancel()

		if err := s.src.Set(ctx, s.opts.ControlPath, target); err != nil {
			log.WithFields(log.Fields{"path": s.opts.ControlPath, "lid_open": target, "error": err}).Error("Lid toggle write failed")
			s.deps.Metrics.IncToggle(metrics.ToggleError)
			return
		}
		log.WithFields(log.Fields{"path": s.opts.ControlPath, "lid_open": target}).Info("Lid toggle written")
		s.deps.Metrics.IncToggle(metrics.ToggleOK)
	}()
	return nil
}

func (s *Service) applyStatus(gen uint64, raw any) {
	started := time.Now()
	status := parse.Status(raw, s.opts.StatusFields)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	wasRed := s.snap.StatusSeen && level.Classify(s.snap.Status.FillPercent) == level.Red
	s.snap.Status = status
	_, isObject := raw.(map[string]any)
	s.snap.StatusSeen = isObject
	s.snap.StatusError = ""
	u := s.updateLocked(model.UpdateStatus)
	listeners := s.listeners
	s.mu.Unlock()

	s.deps.Metrics.IncUpdate(metrics.SliceStatus)
	s.deps.Metrics.SetFill(status.FillPercent)
	s.deps.Metrics.ObserveDerive(time.Since(started).Seconds())

	if !wasRed && level.Classify(status.FillPercent) == level.Red && s.deps.Alerter != nil {
		log.WithField("level", status.FillPercent).Info("Bin is full, dispatching alert")
		if s.deps.Alerter.Dispatch(notification.Alert{Level: status.FillPercent, At: u.Timestamp}) {
			s.deps.Metrics.IncAlert()
		}
	}
	notify(listeners, u)
}

func (s *Service) applyHistory(gen uint64, raw any) {
	started := time.Now()
	now := s.now()
	valid := history.Valid(parse.History(raw, s.opts.HistoryFields))
	view := history.Aggregate(valid, now, s.opts.History)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.snap.History = view
	s.snap.HistoryError = ""
	s.records = valid
	var pending []model.HistoryRecord
	if s.deps.Archiver != nil {
		pending = s.unarchivedLocked(valid)
	}
	u := s.updateLocked(model.UpdateHistory)
	listeners := s.listeners
	s.mu.Unlock()

	s.deps.Metrics.IncUpdate(metrics.SliceHistory)
	s.deps.Metrics.SetHistoryRecords(len(valid))
	s.deps.Metrics.ObserveDerive(time.Since(started).Seconds())

	if len(pending) > 0 {
		s.archive(pending, now)
	}
	notify(listeners, u)
}

func (s *Service) applyError(gen uint64, kind model.UpdateKind, err error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	path := s.opts.StatusPath
	switch kind {
	case model.UpdateStatus:
		s.snap.Status = model.CurrentStatus{}
		s.snap.StatusSeen = false
		s.snap.StatusError = err.Error()
	case model.UpdateHistory:
		path = s.opts.HistoryPath
		s.snap.History = history.Aggregate(nil, s.now(), s.opts.History)
		s.snap.HistoryError = err.Error()
		s.records = nil
	}
	u := s.updateLocked(kind)
	listeners := s.listeners
	s.mu.Unlock()

	log.WithFields(log.Fields{"path": path, "error": err}).Warn("Read failed, showing defaults")
	s.deps.Metrics.IncReadError(string(kind))
	notify(listeners, u)
}

func (s *Service) archive(records []model.HistoryRecord, now time.Time) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		defer cancel()
		if _, err := s.deps.Archiver.ArchiveReadings(ctx, records, now); err != nil {
			log.WithError(err).Error("Failed to archive readings")
			return
		}
		s.markArchived(records)
	}()
}

// unarchivedLocked returns the records of sorted newer than the archive mark.
func (s *Service) unarchivedLocked(sorted []model.HistoryRecord) []model.HistoryRecord {
	var pending []model.HistoryRecord
	for _, r := range sorted {
		if r.TimestampSeconds < s.archivedTS {
			continue
		}
		if _, done := s.archivedIDs[r.ID]; done && r.TimestampSeconds == s.archivedTS {
			continue
		}
		pending = append(pending, r)
	}
	return pending
}

// markArchived moves the archive mark to the newest of sorted.
func (s *Service) markArchived(sorted []model.HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newest := sorted[len(sorted)-1].TimestampSeconds
	if newest < s.archivedTS {
		return
	}
	if newest > s.archivedTS || s.archivedIDs == nil {
		s.archivedTS = newest
		s.archivedIDs = make(map[string]struct{})
	}
	for i := len(sorted) - 1; i >= 0 && sorted[i].TimestampSeconds == newest; i-- {
		s.archivedIDs[sorted[i].ID] = struct{}{}
	}
}

func (s *Service) refreshLoop(gen uint64, every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.refreshHistory(gen)
		}
	}
}

// refreshHistory re-buckets the last history at the current time.
func (s *Service) refreshHistory(gen uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if gen != s.gen || len(s.records) == 0 {
		s.mu.Unlock()
		return
	}
	s.snap.History = history.Aggregate(s.records, s.now(), s.opts.History)
	u := s.updateLocked(model.UpdateHistory)
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, u)
}

func (s *Service) updateLocked(kind model.UpdateKind) model.Update {
	s.snap.UpdatedAt = s.now()
	return model.Update{Kind: kind, Timestamp: s.snap.UpdatedAt, Snapshot: s.snap}
}

func (s *Service) emptySnapshot() model.Snapshot {
	return model.Snapshot{History: history.Aggregate(nil, s.now(), s.opts.History)}
}

func notify(listeners []Listener, u model.Update) {
	for _, l := range listeners {
		l(u)
	}
}
