package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/gate"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/runner"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultSlots        = 2
)

// Worker выполняет jobs — по одной комбинации осей за слот.
//
// Worker — stateless компонент системы, который:
//   - Получает jobs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued jobs в БД (polling fallback)
//   - Поднимает сервисы job и ждёт их готовности через гейт
//   - Выполняет шаги последовательно в изолированном workspace
//   - Слушает broadcast отмен и прерывает свои jobs
//   - Отправляет результат обратно в очередь jobs.completed
//
// Количество одновременных jobs ограничено слотами (WORKER_SLOTS).
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	// Repositories
	jobRepo      *repo.JobRepo
	runRepo      *repo.RunRepo
	pipelineRepo *repo.PipelineRepo

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Execution
	gate   *gate.Gate
	runner *runner.Runner

	// slots ограничивает количество одновременных jobs.
	slots chan struct{}

	// cancels отслеживает контексты выполняющихся jobs для отмены.
	cancels *cancelRegistry

	// Consumers
	jobConsumer     *mq.Consumer
	controlConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Telemetry
	metrics *telemetry.Metrics

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Repositories
	JobRepo      *repo.JobRepo
	RunRepo      *repo.RunRepo
	PipelineRepo *repo.PipelineRepo

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Execution
	Gate   *gate.Gate
	Runner *runner.Runner

	// Slots — количество одновременных jobs (default: WORKER_SLOTS или 2).
	Slots int

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 50)

	// Telemetry
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.DefaultMetrics()
	}

	slots := cfg.Slots
	if slots <= 0 {
		slots = SlotsFromEnv()
	}

	r := cfg.Runner
	if r == nil {
		r = runner.New(nil, logger)
	}

	return &Worker{
		jobRepo:      cfg.JobRepo,
		runRepo:      cfg.RunRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		gate:         cfg.Gate,
		runner:       r,
		slots:        make(chan struct{}, slots),
		cancels:      newCancelRegistry(),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		metrics:      metrics,
		logger:       logger,
	}
}

// SlotsFromEnv читает количество слотов из WORKER_SLOTS.
func SlotsFromEnv() int {
	if raw := os.Getenv("WORKER_SLOTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultSlots
}

// Slots возвращает количество слотов воркера.
func (w *Worker) Slots() int {
	return cap(w.slots)
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для jobs.ready
//   - Consumer для broadcast отмен (эксклюзивная очередь воркера)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"slots", cap(w.slots),
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	controlQueue, err := mq.DeclareControlQueue(w.conn)
	if err != nil {
		return err
	}

	w.jobConsumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsReady),
		Handler:  w.handleJobReady,
		Prefetch: cap(w.slots),
	})

	w.controlConsumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    controlQueue,
		Handler:  w.handleRunCancelled,
		Prefetch: 10,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.jobConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job consumer error", "error", err)
		}
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.controlConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("control consumer error", "error", err)
		}
	}()

	// Запускаем polling
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.jobConsumer != nil {
		w.jobConsumer.Stop()
	}
	if w.controlConsumer != nil {
		w.controlConsumer.Stop()
	}

	// Ждём завершения горутин (включая выполняющиеся jobs)
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	jobs, err := w.jobRepo.ListQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("poll found queued jobs", "count", len(jobs))

	for i := range jobs {
		job := &jobs[i]

		if err := w.dispatch(ctx, job.ID); err != nil {
			w.logger.Error("failed to dispatch job from poll",
				"job_id", job.ID,
				"error", err,
			)
		}
	}
}
