package rollstock

import (
	"context"
)

// Reader defines the read-only persistence operations shared by the storage
// handle and a running transaction
// ストレージ本体とトランザクションの双方が提供する参照専用の永続化操作を定義
type Reader interface {
	// Stock ledger / 在庫台帳
	GetStock(ctx context.Context, stockID string) (*Stock, error)
	ListStocksByItem(ctx context.Context, itemID string) ([]Stock, error)
	ListMovementsByStock(ctx context.Context, stockID string) ([]StockMovement, error)

	// Master data (existence / active-flag checks only)
	// マスタデータ（存在・アクティブ確認のみ）
	GetItem(ctx context.Context, itemID string) (*Item, error)
	GetLocation(ctx context.Context, locationID string) (*Location, error)
	GetMachine(ctx context.Context, machineID string) (*Machine, error)

	// Orders / オーダー
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, status *OrderStatus, limit int) ([]Order, error)
	ListOrderHistories(ctx context.Context, orderID string) ([]OrderHistory, error)

	// Slitting / スリット加工
	GetSchedule(ctx context.Context, scheduleID string) (*SlittingSchedule, error)
	ListSchedules(ctx context.Context, limit int) ([]SlittingSchedule, error)
	GetJob(ctx context.Context, jobID string) (*SlittingJob, error)
	ListJobsBySchedule(ctx context.Context, scheduleID string) ([]SlittingJob, error)
	GetRoll(ctx context.Context, rollID string) (*SlittingJobRoll, error)
	ListRollsByJob(ctx context.Context, jobID string) ([]SlittingJobRoll, error)
	ListPlannedOutputsByJob(ctx context.Context, jobID string) ([]SlittingPlannedOutput, error)
	GetActualOutput(ctx context.Context, outputID string) (*SlittingActualOutput, error)
	ListActualOutputsByJob(ctx context.Context, jobID string) ([]SlittingActualOutput, error)
	ListActualOutputsByRoll(ctx context.Context, rollID string) ([]SlittingActualOutput, error)
	ListSlittingHistories(ctx context.Context, entityType, entityID string) ([]SlittingHistory, error)
}

// Tx defines the operations available inside one transactional unit.
// The ForUpdate reads take a row-level lock for the read-validate-write
// sequence of the running operation.
// 1つのトランザクション単位の中で利用できる操作を定義。
// ForUpdate系の読み取りは行ロックを取得する。
type Tx interface {
	Reader

	// Locking reads / 行ロック付き読み取り
	GetStockForUpdate(ctx context.Context, stockID string) (*Stock, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (*Order, error)
	GetScheduleForUpdate(ctx context.Context, scheduleID string) (*SlittingSchedule, error)
	GetJobForUpdate(ctx context.Context, jobID string) (*SlittingJob, error)
	GetRollForUpdate(ctx context.Context, rollID string) (*SlittingJobRoll, error)
	GetMachineForUpdate(ctx context.Context, machineID string) (*Machine, error)

	// Sequence state / 連番状態
	CountBatchNumbers(ctx context.Context, prefix string) (int, error)
	CountOrderNumbers(ctx context.Context, prefix string) (int, error)
	MaxJobSeq(ctx context.Context, scheduleID string) (int, error)
	MaxRollSeq(ctx context.Context, jobID string) (int, error)

	// Stock ledger writes / 在庫台帳書き込み
	CreateStock(ctx context.Context, stock *Stock) error
	UpdateStock(ctx context.Context, stock *Stock) error
	CreateMovement(ctx context.Context, movement *StockMovement) error

	// Order writes / オーダー書き込み
	CreateOrder(ctx context.Context, order *Order) error
	UpdateOrder(ctx context.Context, order *Order) error
	CreateOrderItem(ctx context.Context, item *OrderItem) error
	UpdateOrderItem(ctx context.Context, item *OrderItem) error
	CreateOrderHistory(ctx context.Context, history *OrderHistory) error

	// Slitting writes / スリット加工書き込み
	CreateSchedule(ctx context.Context, schedule *SlittingSchedule) error
	UpdateSchedule(ctx context.Context, schedule *SlittingSchedule) error
	CreateJob(ctx context.Context, job *SlittingJob) error
	UpdateJob(ctx context.Context, job *SlittingJob) error
	CreateRoll(ctx context.Context, roll *SlittingJobRoll) error
	UpdateRoll(ctx context.Context, roll *SlittingJobRoll) error
	CreatePlannedOutput(ctx context.Context, output *SlittingPlannedOutput) error
	CreateActualOutput(ctx context.Context, output *SlittingActualOutput) error
	UpdateActualOutput(ctx context.Context, output *SlittingActualOutput) error
	CreateSlittingHistory(ctx context.Context, history *SlittingHistory) error

	// Machine writes / 機械書き込み
	UpdateMachine(ctx context.Context, machine *Machine) error
}

// Storage defines the interface for the data persistence layer. Workflow
// operations that must be atomic run inside WithinTx; the function either
// commits as a whole or rolls back as a whole.
// データ永続化層のインターフェースを定義。原子的であるべきワークフロー操作は
// WithinTxの中で実行し、全体がコミットされるか全体がロールバックされる。
type Storage interface {
	Reader

	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// AuditEvent is the record handed to the audit sink for every workflow transition
// すべてのワークフロー遷移で監査シンクへ渡されるレコード
type AuditEvent struct {
	Action      string            `json:"action"`       // アクション名
	Category    string            `json:"category"`     // カテゴリ（stock/order/slitting）
	TargetTable string            `json:"target_table"` // 対象テーブル
	TargetID    string            `json:"target_id"`    // 対象ID
	ActorID     string            `json:"actor_id"`     // 実行者
	Changes     map[string]string `json:"changes,omitempty"`  // 変更差分
	Metadata    map[string]string `json:"metadata,omitempty"` // 付加情報
}

// AuditSink defines the fire-and-forget audit collaborator. Implementations
// must never block a workflow; errors are the sink's own concern.
// 監査イベントを受け取る外部コラボレーターを定義。実装がワークフローを
// ブロックしてはならない。
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}
