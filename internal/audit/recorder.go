package audit

/*
Файл recorder.go реализует асинхронный журнал действий (Action Log).

- Non-blocking Logging: хост кладет событие в буферизированный канал и не ждет БД.
- Batching: события копятся и пишутся пачкой (Bulk Insert) по таймеру или по лимиту.
- Drain Pattern: Stop закрывает канал, воркер вычитывает остаток и делает финальный flush.
- Load Shedding: при переполнении буфера событие уходит в zap, а не блокирует запрос.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
)

// Storage определяет, куда физически сохраняются записи
type Storage interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, logs []ActionLog) error
}

type Auditor interface {
	Log(entry ActionLog)
}

type Recorder struct {
	ch            chan ActionLog
	repo          Storage
	logger        *zap.Logger
	flushInterval time.Duration
	bufferGauge   prometheus.Gauge
	wg            sync.WaitGroup

	// mu разделяет отправку в канал (RLock) и его закрытие (Lock)
	mu     sync.RWMutex
	closed bool
}

type RecorderOption func(*Recorder)

func WithBufferSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.ch = make(chan ActionLog, n)
		}
	}
}

func WithFlushInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// WithBufferGauge публикует заполненность буфера (backpressure).
func WithBufferGauge(g prometheus.Gauge) RecorderOption {
	return func(r *Recorder) { r.bufferGauge = g }
}

func NewRecorder(repo Storage, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ch:            make(chan ActionLog, defaultBufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "action-log")),
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.logger.Info("stopping action log: closing channel and flushing buffer...")
	close(r.ch)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("action log stopped gracefully")
}

func (r *Recorder) Log(entry ActionLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("action log entry dropped: recorder is stopping", zap.String("id", entry.ID))
		return
	}

	select {
	case r.ch <- entry:
		if r.bufferGauge != nil {
			r.bufferGauge.Set(float64(len(r.ch)))
		}
	default:
		// Буфер переполнен, не блокируем горячий путь, но и не теряем молча
		r.logger.Error("action_log_buffer_overflow",
			zap.String("agent_id", entry.AgentID),
			zap.String("trace_id", entry.TraceID),
			zap.Bool("was_successful", entry.WasSuccessful),
			zap.String("reason", entry.Reason),
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]ActionLog, 0, defaultBatchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст к этому моменту может быть уже закрыт
		if err := r.repo.WriteBatch(context.Background(), batch); err != nil {
			r.logger.Error("action log flush failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		if r.bufferGauge != nil {
			r.bufferGauge.Set(float64(len(r.ch)))
		}
	}

	for {
		select {
		case entry, ok := <-r.ch:
			if !ok {
				// Канал закрыт в Stop(): всё из очереди уже вычитано, финальный сброс
				flush()
				r.logger.Info("action log worker finished")
				return
			}
			batch = append(batch, entry)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
