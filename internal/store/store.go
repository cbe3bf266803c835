package store

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/schema"
	"main/pkg/conn"
)

const defaultBatchSize = 256

// Config selects the target database and batching behavior. An empty RunID
// is replaced with a timestamp-derived one at open time.
type Config struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	ConnString string `json:"connString"`
	RunID      string `json:"runId"`
	BatchSize  int    `json:"batchSize"`
}

// Store persists fills and run summaries to PostgreSQL. It drains an engine
// tap queue on its own goroutine, so database latency never reaches the
// delivery loop.
type Store struct {
	client   *conn.Client
	registry *schema.Registry

	runID     string
	batchSize int
	startedAt time.Time

	batch    []FillRow
	messages uint64
	fills    uint64
	rejects  uint64
}

// Open connects to the database and migrates the schema.
func Open(cfg Config, registry *schema.Registry) (*Store, error) {
	if registry == nil || registry.SymbolCount() == 0 {
		return nil, fmt.Errorf("store: empty symbol registry")
	}
	client, err := conn.New(conn.Option{
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   cfg.Database,
		SSLMode:    cfg.SSLMode,
		ConnString: cfg.ConnString,
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.DB().AutoMigrate(&RunRow{}, &FillRow{}, &BalanceRow{}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = "run-" + time.Now().UTC().Format("20060102-150405")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{
		client:    client,
		registry:  registry,
		runID:     runID,
		batchSize: batchSize,
		startedAt: time.Now().UTC(),
	}, nil
}

// RunID returns the identifier rows of this run are tagged with.
func (s *Store) RunID() string { return s.runID }

// Run consumes the tap queue until the context is done or the queue closes,
// then flushes any batched rows.
func (s *Store) Run(ctx context.Context, queue *bus.Queue) {
	queue.Run(ctx, s.Observe)
	if err := s.flush(); err != nil {
		logs.Errorf("store flush: %v", err)
	}
}

// Observe folds one delivered message into the batch and counters.
func (s *Store) Observe(m bus.Message) {
	s.messages++
	r, ok := m.Payload.(schema.OrderResult)
	if !ok {
		return
	}
	if r.Status == schema.OrderStatusRejected {
		s.rejects++
		return
	}
	if r.FilledQty <= 0 {
		return
	}
	s.fills++

	name := fmt.Sprintf("symbol-%d", r.SymbolID)
	if sym, ok := s.registry.Symbol(r.SymbolID); ok {
		name = sym.Name
	}
	s.batch = append(s.batch, fillRow(s.runID, name, r, m.Header.TsEvent))
	if len(s.batch) >= s.batchSize {
		if err := s.flush(); err != nil {
			logs.Errorf("store flush: %v", err)
		}
	}
}

func (s *Store) flush() error {
	if len(s.batch) == 0 {
		return nil
	}
	rows := s.batch
	s.batch = s.batch[:0]
	return s.client.DB().CreateInBatches(rows, s.batchSize).Error
}

// SaveSummary writes the run row and final balances. Call it after Run has
// returned.
func (s *Store) SaveSummary(balances, fees []schema.BalanceEntry) error {
	feeByAsset := make(map[string]int64, len(fees))
	for _, f := range fees {
		feeByAsset[f.Asset] = int64(f.Balance)
	}

	rows := make([]BalanceRow, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, BalanceRow{
			RunID:   s.runID,
			Asset:   b.Asset,
			Balance: int64(b.Balance),
			Locked:  int64(b.Locked),
			Fee:     feeByAsset[b.Asset],
		})
	}

	run := RunRow{
		RunID:      s.runID,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now().UTC(),
		Messages:   s.messages,
		Fills:      s.fills,
		Rejects:    s.rejects,
	}
	if err := s.client.DB().Create(&run).Error; err != nil {
		return fmt.Errorf("store: save run: %w", err)
	}
	if len(rows) > 0 {
		if err := s.client.DB().Create(&rows).Error; err != nil {
			return fmt.Errorf("store: save balances: %w", err)
		}
	}
	return nil
}

// Close flushes pending rows and releases the connection pool.
func (s *Store) Close() error {
	if err := s.flush(); err != nil {
		_ = s.client.Close()
		return err
	}
	return s.client.Close()
}
