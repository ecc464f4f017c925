package rollstock

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleStatus represents the status of a production schedule
// 生産スケジュールのステータスを表現
type ScheduleStatus string

const (
	ScheduleStatusDraft      ScheduleStatus = "draft"       // 下書き
	ScheduleStatusPublished  ScheduleStatus = "published"   // 公開済み
	ScheduleStatusInProgress ScheduleStatus = "in_progress" // 作業中
	ScheduleStatusCompleted  ScheduleStatus = "completed"   // 完了
)

// JobStatus represents the status of a slitting job
// スリット加工ジョブのステータスを表現
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"     // 準備前
	JobStatusReady      JobStatus = "ready"       // 準備完了
	JobStatusInProgress JobStatus = "in_progress" // 加工中
	JobStatusCompleted  JobStatus = "completed"   // 加工完了
	JobStatusApproved   JobStatus = "approved"    // 承認済み
)

// RollStatus represents the status of one physical roll within a multi-roll job
// 複数ロールジョブ内の1本の物理ロールのステータスを表現
type RollStatus string

const (
	RollStatusRegistered RollStatus = "registered"  // 登録済み
	RollStatusInProgress RollStatus = "in_progress" // 加工中
	RollStatusCompleted  RollStatus = "completed"   // 加工完了
	RollStatusCancelled  RollStatus = "cancelled"   // 取消
)

// JobKind discriminates the two job shapes. Selected once at creation and
// immutable thereafter.
// ジョブの2つの形態を判別する。作成時に一度だけ決まり以後不変。
type JobKind string

const (
	// JobKindSingleParent binds one reserved parent roll at creation (V1)
	// 作成時に予約済み原反1本を紐付ける形態（V1）
	JobKindSingleParent JobKind = "single_parent"
	// JobKindMultiRoll binds an item/width target and accumulates rolls at runtime (V2)
	// 品目と幅の目標を持ち、実行時にロールを順次登録する形態（V2）
	JobKindMultiRoll JobKind = "multi_roll"
)

// SlittingSchedule groups slitting jobs for one production date
// 1つの生産日のスリット加工ジョブをまとめる
type SlittingSchedule struct {
	ID           string         `json:"id" db:"id"`                         // スケジュールID
	ScheduleDate time.Time      `json:"schedule_date" db:"schedule_date"`   // 生産日
	Status       ScheduleStatus `json:"status" db:"status"`                 // ステータス
	Notes        string         `json:"notes" db:"notes"`                   // 備考
	CreatedBy    string         `json:"created_by" db:"created_by"`         // 作成者
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`         // 作成日時
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`         // 更新日時
}

// SlittingJob represents one slitting job. The Kind field selects the variant:
// single_parent jobs carry ParentStockID, multi_roll jobs carry ItemID /
// ParentWidthMm / PlannedRollCount and their planned outputs.
// 1つのスリット加工ジョブを表現。Kindが形態を選択する。
type SlittingJob struct {
	ID         string    `json:"id" db:"id"`                   // ジョブID
	ScheduleID string    `json:"schedule_id" db:"schedule_id"` // スケジュールID
	Seq        int       `json:"seq" db:"seq"`                 // スケジュール内の順序
	Kind       JobKind   `json:"kind" db:"kind"`               // 形態（single_parent/multi_roll）
	Status     JobStatus `json:"status" db:"status"`           // ステータス
	MachineID  *string   `json:"machine_id" db:"machine_id"`   // 機械ID

	// single_parent variant / single_parent形態
	ParentStockID *string `json:"parent_stock_id" db:"parent_stock_id"` // 予約済み原反在庫ID

	// multi_roll variant / multi_roll形態
	ItemID           *string `json:"item_id" db:"item_id"`                       // 対象品目ID
	ParentWidthMm    *int64  `json:"parent_width_mm" db:"parent_width_mm"`       // 原反幅（mm）
	PlannedRollCount *int    `json:"planned_roll_count" db:"planned_roll_count"` // 予定ロール本数

	OperatorID  *string    `json:"operator_id" db:"operator_id"`   // 作業者ID
	StartedAt   *time.Time `json:"started_at" db:"started_at"`     // 開始日時
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"` // 完了日時
	ApprovedAt  *time.Time `json:"approved_at" db:"approved_at"`   // 承認日時
	ApprovedBy  *string    `json:"approved_by" db:"approved_by"`   // 承認者
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`     // 作成日時
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`     // 更新日時
}

// SlittingJobRoll represents one physical parent roll processed within a multi-roll job
// 複数ロールジョブ内で加工される1本の物理原反を表現
type SlittingJobRoll struct {
	ID           string     `json:"id" db:"id"`                       // ロールID
	JobID        string     `json:"job_id" db:"job_id"`               // ジョブID
	Seq          int        `json:"seq" db:"seq"`                     // ジョブ内の順序
	StockID      string     `json:"stock_id" db:"stock_id"`           // 予約した原反在庫ID
	Status       RollStatus `json:"status" db:"status"`               // ステータス
	CancelReason *string    `json:"cancel_reason" db:"cancel_reason"` // 取消理由
	StartedAt    *time.Time `json:"started_at" db:"started_at"`       // 開始日時
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`   // 完了日時
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`       // 作成日時
}

// SlittingPlannedOutput represents one planned output width for a multi-roll job
// 複数ロールジョブの1つの予定出力幅を表現
type SlittingPlannedOutput struct {
	ID       string `json:"id" db:"id"`             // 予定出力ID
	JobID    string `json:"job_id" db:"job_id"`     // ジョブID
	Seq      int    `json:"seq" db:"seq"`           // 順序
	WidthMm  int64  `json:"width_mm" db:"width_mm"` // 出力幅（mm）
	Quantity int64  `json:"quantity" db:"quantity"` // 予定本数
}

// SlittingActualOutput records one measured output against a job or, for
// multi-roll jobs, against a specific roll
// ジョブ（複数ロールジョブでは特定ロール）に対する1つの実測出力を記録
type SlittingActualOutput struct {
	ID              string              `json:"id" db:"id"`                               // 実績出力ID
	JobID           string              `json:"job_id" db:"job_id"`                       // ジョブID
	RollID          *string             `json:"roll_id" db:"roll_id"`                     // ロールID（複数ロールジョブのみ）
	PlannedOutputID *string             `json:"planned_output_id" db:"planned_output_id"` // 対応する予定出力ID
	WidthMm         int64               `json:"width_mm" db:"width_mm"`                   // 出力幅（mm）
	Quantity        int64               `json:"quantity" db:"quantity"`                   // 本数
	WeightKg        decimal.NullDecimal `json:"weight_kg" db:"weight_kg"`                 // 重量（kg）
	IsLoss          bool                `json:"is_loss" db:"is_loss"`                     // ロス（端材）フラグ
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`               // 作成日時
}

// Slitting history entity types / スリット履歴エンティティタイプ
const (
	SlittingEntitySchedule = "schedule" // スケジュール
	SlittingEntityJob      = "job"      // ジョブ
)

// SlittingHistory represents one immutable workflow transition record in the
// slitting workflow, keyed by (entity type, entity id)
// スリットワークフローの1つの不変な遷移記録を表現
type SlittingHistory struct {
	ID             string    `json:"id" db:"id"`                           // 履歴ID
	EntityType     string    `json:"entity_type" db:"entity_type"`         // エンティティタイプ（schedule/job）
	EntityID       string    `json:"entity_id" db:"entity_id"`             // エンティティID
	Action         string    `json:"action" db:"action"`                   // アクション
	PreviousStatus *string   `json:"previous_status" db:"previous_status"` // 遷移前ステータス
	NewStatus      string    `json:"new_status" db:"new_status"`           // 遷移後ステータス
	ActorID        string    `json:"actor_id" db:"actor_id"`               // 実行者
	Memo           string    `json:"memo" db:"memo"`                       // メモ
	CreatedAt      time.Time `json:"created_at" db:"created_at"`           // 作成日時
}

// ApprovalSummary aggregates the ledger result of a job approval
// ジョブ承認の台帳反映結果を集計する
type ApprovalSummary struct {
	JobID          string              `json:"job_id"`           // ジョブID
	ConsumedStocks []string            `json:"consumed_stocks"`  // 消費した原反在庫ID
	CreatedStocks  []Stock             `json:"created_stocks"`   // 生成されたスリット品在庫
	TotalOutputQty int64               `json:"total_output_qty"` // 総出力本数
	LossQty        int64               `json:"loss_qty"`         // ロス本数
	LossWeightKg   decimal.NullDecimal `json:"loss_weight_kg"`   // ロス重量（kg）
	LossPercent    decimal.Decimal     `json:"loss_percent"`     // ロス率（%）
}
