package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc представляет функцию задачи планировщика.
type JobFunc func(ctx context.Context) error

// JobID представляет идентификатор задачи.
type JobID = cron.EntryID

// Job описывает периодическую задачу.
type Job struct {
	// Name - имя задачи для логирования.
	Name string
	// Schedule - cron-выражение из 5 или 6 полей либо дескриптор (@hourly, @every 10m).
	Schedule string
	// Timeout - максимальное время выполнения (0 - без ограничения).
	Timeout time.Duration
	Run     JobFunc
}

// Entry - состояние зарегистрированной задачи.
type Entry struct {
	ID   JobID
	Name string
	Next time.Time
	Prev time.Time
}

// parser принимает расписания с секундами и без.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule проверяет cron-выражение.
func ParseSchedule(spec string) error {
	_, err := parser.Parse(spec)
	return err
}

// cronLogger адаптер для интеграции cron logger с slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

// Scheduler выполняет периодические задачи обслуживания.
// Повторный запуск задачи пропускается, пока предыдущий не завершился.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	names map[JobID]string

	startOnce sync.Once
	stopOnce  sync.Once
}

// New создает планировщик. Отмена ctx останавливает его.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	cl := cronLogger{logger: logger.With("component", "cron")}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			// Recover внутри SkipIfStillRunning: иначе паника не вернёт токен и задача больше не запустится
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[JobID]string),
	}
}

// Add регистрирует задачу.
func (s *Scheduler) Add(job Job) (JobID, error) {
	if job.Run == nil {
		return 0, fmt.Errorf("job %q has no run function", job.Name)
	}
	if job.Name == "" {
		job.Name = "unnamed"
	}

	id, err := s.cron.AddFunc(job.Schedule, func() { s.run(job) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	s.mu.Lock()
	s.names[id] = job.Name
	s.mu.Unlock()

	s.logger.Info("job scheduled", "name", job.Name, "schedule", job.Schedule, "id", id)
	return id, nil
}

// Entries возвращает зарегистрированные задачи и время их следующего запуска.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{ID: e.ID, Name: s.names[e.ID], Next: e.Next, Prev: e.Prev})
	}
	return out
}

// Start запускает планировщик.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting scheduler")
		s.cron.Start()

		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop останавливает планировщик и ждет завершения выполняющихся задач,
// но не дольше, чем позволяет ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded")
		return ctx.Err()
	}
}

func (s *Scheduler) stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(job Job) {
	ctx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "name", job.Name, "panic", r, "duration", time.Since(start))
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("job completed", "name", job.Name, "duration", time.Since(start))
}
