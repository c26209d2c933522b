package timeline

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/services"
)

// Uploader stores image bytes and returns a public URL.
type Uploader interface {
	UploadImage(ctx context.Context, payload imaging.Payload) (string, error)
}

// Generator renders the illustrated version of a source photo.
type Generator interface {
	GenerateTimelineImage(ctx context.Context, sourceURL, message string) (imaging.Payload, error)
}

// Persister receives the full list after every committed change.
type Persister interface {
	Save(ctx context.Context, entries []PhotoEntry) error
}

// NewPhoto describes a local image accepted into the timeline.
type NewPhoto struct {
	Preview string
	Data    []byte
	Date    string
	Message string
}

// EditFields carries the caption fields to change. Nil fields are left alone.
type EditFields struct {
	Date    *string
	Message *string
}

type inflight struct {
	token  uint64
	cancel context.CancelFunc
}

// Manager is the authoritative timeline. All methods are safe for concurrent use.
type Manager struct {
	uploader  Uploader
	generator Generator
	persister Persister
	logger    *slog.Logger
	now       func() time.Time

	maxDimension int
	quality      int

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu        sync.Mutex
	entries   []PhotoEntry
	ops       map[string]inflight
	nextToken uint64
	changed   chan struct{}
	version   uint64
	closed    bool
	wg        sync.WaitGroup

	persistMu        sync.Mutex
	persistedVersion uint64
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithPersister saves the list after every committed change.
func WithPersister(p Persister) Option {
	return func(m *Manager) { m.persister = p }
}

// WithGenerator enables Generate.
func WithGenerator(g Generator) Option {
	return func(m *Manager) { m.generator = g }
}

// WithEntries seeds the list without persisting it. Entries are normalized.
func WithEntries(entries []PhotoEntry) Option {
	return func(m *Manager) {
		m.entries = make([]PhotoEntry, 0, len(entries))
		for _, e := range entries {
			m.entries = append(m.entries, Normalize(e))
		}
	}
}

// WithImaging bounds the uploaded photo size and JPEG quality.
func WithImaging(maxDimension, quality int) Option {
	return func(m *Manager) {
		if maxDimension > 0 {
			m.maxDimension = maxDimension
		}
		if quality > 0 {
			m.quality = quality
		}
	}
}

// WithClock overrides the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a manager that uploads through uploader.
func NewManager(uploader Uploader, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		uploader:     uploader,
		now:          time.Now,
		maxDimension: 1024,
		quality:      imaging.DefaultQuality,
		baseCtx:      ctx,
		cancelBase:   cancel,
		ops:          make(map[string]inflight),
		changed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "timeline")
	return m
}

// Create adds an entry in the uploading state and starts the transcode and
// upload in the background. The returned entry is the state at acceptance.
func (m *Manager) Create(ctx context.Context, photo NewPhoto) (PhotoEntry, error) {
	preview := strings.TrimSpace(photo.Preview)
	if preview == "" {
		preview = "local:" + uuid.NewString()
	}
	date := photo.Date
	if strings.TrimSpace(date) == "" {
		date = m.now().Format("2006-01-02")
	}
	entry := PhotoEntry{
		ID:           uuid.NewString(),
		LocalPreview: preview,
		Date:         date,
		Message:      photo.Message,
		Status:       StatusUploading,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return PhotoEntry{}, ErrClosed
	}
	m.entries = append(slices.Clone(m.entries), entry)
	opCtx, token := m.startLocked(ctx, entry.ID, "upload")
	snapshot, version := m.snapshotLocked()
	m.mu.Unlock()

	logging.WithContext(opCtx, m.logger).Info("photo accepted", logging.String("preview", preview), logging.Int("bytes", len(photo.Data)))
	m.persist(ctx, snapshot, version)

	data := photo.Data
	go m.run(opCtx, entry.ID, token, func(ctx context.Context) PhotoEntry {
		return m.upload(ctx, entry, data)
	})
	return entry, nil
}

func (m *Manager) upload(ctx context.Context, started PhotoEntry, data []byte) PhotoEntry {
	next := started
	payload, err := imaging.ResizeImage(bytes.NewReader(data), m.maxDimension, imaging.WithQuality(m.quality))
	if err == nil {
		var url string
		url, err = m.uploader.UploadImage(ctx, payload)
		if err == nil {
			next.Status = StatusIdle
			next.ImageURL = url
			next.LocalPreview = ""
			next.ErrorDetail = ""
			logging.WithContext(ctx, m.logger).Info("photo uploaded", logging.URL("image_url", url))
			return next
		}
	}
	next.Status = StatusError
	next.ErrorDetail = services.Message(err, UploadFailedMessage)
	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "photo upload failed", "upload_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "delete the entry and add the photo again"),
	)
	return next
}

// Edit updates the date and message of an entry without changing its status.
func (m *Manager) Edit(ctx context.Context, id string, fields EditFields) (PhotoEntry, error) {
	m.mu.Lock()
	idx := indexOf(m.entries, id)
	if idx < 0 {
		m.mu.Unlock()
		return PhotoEntry{}, ErrNotFound
	}
	next := m.entries[idx]
	if next.Status.Busy() {
		m.mu.Unlock()
		return PhotoEntry{}, ErrNotEditable
	}
	if fields.Date != nil {
		next.Date = *fields.Date
	}
	if fields.Message != nil {
		next.Message = *fields.Message
	}
	m.entries = MergeByID(m.entries, next)
	snapshot, version := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(ctx, snapshot, version)
	return next, nil
}

// Generate moves an entry to pending and renders it in the background,
// uploading the result. Done and error entries may be regenerated.
func (m *Manager) Generate(ctx context.Context, id string) (PhotoEntry, error) {
	if m.generator == nil {
		return PhotoEntry{}, ErrNoGenerator
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return PhotoEntry{}, ErrClosed
	}
	idx := indexOf(m.entries, id)
	if idx < 0 {
		m.mu.Unlock()
		return PhotoEntry{}, ErrNotFound
	}
	current := m.entries[idx]
	switch {
	case current.Status.Busy():
		m.mu.Unlock()
		return PhotoEntry{}, ErrBusy
	case strings.TrimSpace(current.ImageURL) == "":
		m.mu.Unlock()
		return PhotoEntry{}, ErrNoSource
	case strings.TrimSpace(current.Message) == "":
		m.mu.Unlock()
		return PhotoEntry{}, ErrEmptyMessage
	}
	started := current
	started.Status = StatusPending
	started.ErrorDetail = ""
	m.entries = MergeByID(m.entries, started)
	opCtx, token := m.startLocked(ctx, id, "generate")
	snapshot, version := m.snapshotLocked()
	m.mu.Unlock()

	logging.WithContext(opCtx, m.logger).Info("generation started", logging.Transition(string(current.Status), string(StatusPending)))
	m.persist(ctx, snapshot, version)

	go m.run(opCtx, id, token, func(ctx context.Context) PhotoEntry {
		return m.generate(ctx, started)
	})
	return started, nil
}

func (m *Manager) generate(ctx context.Context, started PhotoEntry) PhotoEntry {
	next := started
	payload, err := m.generator.GenerateTimelineImage(ctx, started.ImageURL, started.Message)
	if err == nil {
		var url string
		url, err = m.uploader.UploadImage(ctx, payload)
		if err == nil {
			next.Status = StatusDone
			next.GeneratedURL = url
			next.ErrorDetail = ""
			logging.WithContext(ctx, m.logger).Info("generation complete", logging.URL("generated_url", url))
			return next
		}
	}
	next.Status = StatusError
	next.ErrorDetail = services.Message(err, GenerationFailedMessage)
	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "generation failed", "generation_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "edit the message or retry generation"),
	)
	return next
}

// Delete removes entries unconditionally and cancels their in-flight work.
// It reports ErrNotFound when none of the ids exist.
func (m *Manager) Delete(ctx context.Context, ids ...string) (int, error) {
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	m.mu.Lock()
	kept := make([]PhotoEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if _, ok := remove[e.ID]; ok {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(m.entries) - len(kept)
	if removed == 0 {
		m.mu.Unlock()
		return 0, ErrNotFound
	}
	m.entries = kept
	for id := range remove {
		m.cancelLocked(id)
	}
	snapshot, version := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("entries deleted", logging.Int("count", removed))
	m.persist(ctx, snapshot, version)
	return removed, nil
}

// Replace swaps the whole list, as when a timeline is imported or opened from
// a link. All in-flight work is cancelled and entries are normalized.
func (m *Manager) Replace(ctx context.Context, entries []PhotoEntry) error {
	next := make([]PhotoEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return ErrDuplicateID
		}
		seen[e.ID] = struct{}{}
		next = append(next, Normalize(e))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	for id := range m.ops {
		m.cancelLocked(id)
	}
	m.entries = next
	snapshot, version := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("timeline replaced", logging.Int("entries", len(next)))
	m.persist(ctx, snapshot, version)
	return nil
}

// Snapshot returns a copy of the list in insertion order.
func (m *Manager) Snapshot() []PhotoEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Display returns a copy of the list sorted by date.
func (m *Manager) Display() []PhotoEntry {
	return DisplayOrder(m.Snapshot())
}

// Get returns the entry with the given id.
func (m *Manager) Get(id string) (PhotoEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := indexOf(m.entries, id); idx >= 0 {
		return m.entries[idx], true
	}
	return PhotoEntry{}, false
}

// Pending reports how many operations are in flight.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

// Wait blocks until no operation is in flight or ctx ends. Results of
// cancelled operations are not waited for.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		if len(m.ops) == 0 {
			m.mu.Unlock()
			return nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels all in-flight work and waits for the workers to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for id := range m.ops {
		m.cancelLocked(id)
	}
	m.mu.Unlock()
	m.cancelBase()
	m.wg.Wait()
	return nil
}

// startLocked registers an operation for id. The returned context is not tied
// to the caller's cancellation: it ends when the entry is deleted or replaced
// or the manager closes.
func (m *Manager) startLocked(parent context.Context, id, operation string) (context.Context, uint64) {
	m.nextToken++
	token := m.nextToken
	ctx, cancel := context.WithCancel(m.baseCtx)
	if rid, ok := services.RequestIDFromContext(parent); ok {
		ctx = services.WithRequestID(ctx, rid)
	}
	ctx = services.WithPhotoID(ctx, id)
	ctx = services.WithOperation(ctx, operation)
	m.ops[id] = inflight{token: token, cancel: cancel}
	m.wg.Add(1)
	return ctx, token
}

func (m *Manager) cancelLocked(id string) {
	if op, ok := m.ops[id]; ok {
		op.cancel()
		delete(m.ops, id)
		m.notifyLocked()
	}
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) run(ctx context.Context, id string, token uint64, work func(context.Context) PhotoEntry) {
	defer m.wg.Done()
	result := work(ctx)

	m.mu.Lock()
	op, current := m.ops[id]
	if !current || op.token != token {
		m.mu.Unlock()
		logging.WithContext(ctx, m.logger).Info("discarding result for removed entry", logging.String("status", string(result.Status)))
		return
	}
	op.cancel()
	delete(m.ops, id)
	m.notifyLocked()
	m.entries = MergeByID(m.entries, result)
	snapshot, version := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(context.WithoutCancel(ctx), snapshot, version)
}

func (m *Manager) snapshotLocked() ([]PhotoEntry, uint64) {
	m.version++
	return slices.Clone(m.entries), m.version
}

// persist writes snapshot unless a newer version has already been saved.
func (m *Manager) persist(ctx context.Context, snapshot []PhotoEntry, version uint64) {
	if m.persister == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if version <= m.persistedVersion {
		return
	}
	if err := m.persister.Save(ctx, snapshot); err != nil {
		logging.ErrorWithContext(m.logger, "failed to persist timeline", "persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory is writable"),
		)
		return
	}
	m.persistedVersion = version
}
