package datasource

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cart-service/models"
)

type Policy string

const (
	PolicyClient  Policy = "client"
	PolicyDynamic Policy = "dynamic"
	PolicyStatic  Policy = "static"
)

func (p Policy) RenderMode() string {
	switch p {
	case PolicyClient:
		return "Client-side Rendering (useEffect)"
	case PolicyDynamic:
		return "Dynamic Rendering (no-store)"
	case PolicyStatic:
		return "Static Rendering (ISR 60s)"
	}
	return string(p)
}

type Source interface {
	Carts(ctx context.Context) (*models.CartsResponse, error)
	Policy() Policy
}

// Revalidator 刷新缓存快照。Revalidate 对应到期的定时消息，Refresh 对应按需刷新
type Revalidator interface {
	Revalidate(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// RevalidationScheduler 在一次成功刷新后安排下一次重新验证
type RevalidationScheduler interface {
	ScheduleRevalidate(policy Policy, after time.Duration) error
}

type Metrics interface {
	RecordFetch(policy string, success bool)
	RecordSnapshotServed(freshness string)
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, bool)    {}
func (nopMetrics) RecordSnapshotServed(string) {}

type ClientSource struct {
	fetcher *Fetcher
	metrics Metrics
}

func NewClientSource(f *Fetcher, m Metrics) *ClientSource {
	if m == nil {
		m = nopMetrics{}
	}
	return &ClientSource{fetcher: f, metrics: m}
}

func (s *ClientSource) Policy() Policy { return PolicyClient }

func (s *ClientSource) Carts(ctx context.Context) (*models.CartsResponse, error) {
	data, err := s.fetcher.Fetch(ctx, nil)
	s.metrics.RecordFetch(string(PolicyClient), err == nil)
	return data, err
}

type DynamicSource struct {
	fetcher *Fetcher
	metrics Metrics
}

func NewDynamicSource(f *Fetcher, m Metrics) *DynamicSource {
	if m == nil {
		m = nopMetrics{}
	}
	return &DynamicSource{fetcher: f, metrics: m}
}

func (s *DynamicSource) Policy() Policy { return PolicyDynamic }

func (s *DynamicSource) Carts(ctx context.Context) (*models.CartsResponse, error) {
	header := http.Header{}
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")
	data, err := s.fetcher.Fetch(ctx, header)
	s.metrics.RecordFetch(string(PolicyDynamic), err == nil)
	return data, err
}

// StaticSource serves a snapshot for the revalidation window, then serves it
// stale while a single background refresh runs.
type StaticSource struct {
	fetcher   *Fetcher
	store     SnapshotStore
	window    time.Duration
	timeout   time.Duration
	scheduler RevalidationScheduler
	metrics   Metrics
	logger    *zap.Logger
	group     singleflight.Group
	now       func() time.Time

	// 已有一条待投递的重新验证消息
	scheduled atomic.Bool
}

type StaticOption func(*StaticSource)

func WithScheduler(s RevalidationScheduler) StaticOption {
	return func(src *StaticSource) { src.scheduler = s }
}

func WithMetrics(m Metrics) StaticOption {
	return func(src *StaticSource) {
		if m != nil {
			src.metrics = m
		}
	}
}

func WithClock(now func() time.Time) StaticOption {
	return func(src *StaticSource) { src.now = now }
}

func NewStaticSource(f *Fetcher, store SnapshotStore, window time.Duration, logger *zap.Logger, opts ...StaticOption) *StaticSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	src := &StaticSource{
		fetcher: f,
		store:   store,
		window:  window,
		timeout: 30 * time.Second,
		metrics: nopMetrics{},
		logger:  logger,
		now:     time.Now,
	}
	if f.Client != nil && f.Client.Timeout > 0 {
		src.timeout = f.Client.Timeout
	}
	for _, opt := range opts {
		opt(src)
	}
	return src
}

func (s *StaticSource) Policy() Policy { return PolicyStatic }

func (s *StaticSource) Carts(ctx context.Context) (*models.CartsResponse, error) {
	snap, ok, err := s.store.Load(ctx, string(PolicyStatic))
	if err != nil {
		s.logger.Warn("load snapshot failed, fetching", zap.Error(err))
		ok = false
	}
	if !ok || snap.Data == nil {
		s.metrics.RecordSnapshotServed("miss")
		return s.refresh(ctx)
	}

	if s.now().Sub(snap.FetchedAt) < s.window {
		s.metrics.RecordSnapshotServed("fresh")
		return snap.Data, nil
	}

	s.metrics.RecordSnapshotServed("stale")
	go s.revalidateInBackground()
	return snap.Data, nil
}

// Revalidate is called when a scheduled revalidation is delivered. It consumes
// the outstanding schedule so a successful refresh can book the next one.
func (s *StaticSource) Revalidate(ctx context.Context) error {
	s.scheduled.Store(false)
	_, err := s.refresh(ctx)
	return err
}

// Refresh fetches a new snapshot on demand without touching the outstanding
// schedule.
func (s *StaticSource) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

func (s *StaticSource) revalidateInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.refresh(ctx); err != nil {
		// 失败时继续使用旧快照
		s.logger.Warn("background revalidation failed", zap.Error(err), zap.NamedError("cause", unwrap(err)))
	}
}

func (s *StaticSource) refresh(ctx context.Context) (*models.CartsResponse, error) {
	v, err, _ := s.group.Do(string(PolicyStatic), func() (any, error) {
		// 共享调用不受发起者取消的影响
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		data, err := s.fetcher.Fetch(fetchCtx, nil)
		s.metrics.RecordFetch(string(PolicyStatic), err == nil)
		if err != nil {
			return nil, err
		}

		if err := s.store.Save(fetchCtx, string(PolicyStatic), Snapshot{Data: data, FetchedAt: s.now()}); err != nil {
			s.logger.Warn("save snapshot failed", zap.Error(err))
		}
		s.schedule()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CartsResponse), nil
}

// schedule keeps at most one revalidation message outstanding.
func (s *StaticSource) schedule() {
	if s.scheduler == nil || !s.scheduled.CompareAndSwap(false, true) {
		return
	}
	if err := s.scheduler.ScheduleRevalidate(PolicyStatic, s.window); err != nil {
		s.scheduled.Store(false)
		s.logger.Warn("schedule revalidation failed", zap.Error(err))
	}
}

func unwrap(err error) error {
	if fe, ok := err.(*FetchError); ok && fe.Err != nil {
		return fe.Err
	}
	return err
}

// NewSources 按渲染模式构建数据源
func NewSources(f *Fetcher, store SnapshotStore, window time.Duration, logger *zap.Logger, m Metrics, opts ...StaticOption) map[Policy]Source {
	opts = append([]StaticOption{WithMetrics(m)}, opts...)
	return map[Policy]Source{
		PolicyClient:  NewClientSource(f, m),
		PolicyDynamic: NewDynamicSource(f, m),
		PolicyStatic:  NewStaticSource(f, store, window, logger, opts...),
	}
}
