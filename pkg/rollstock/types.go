// Package rollstock provides paper-roll inventory and slitting production management
package rollstock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockCondition represents the physical condition of a stock lot
// 在庫ロットの物理的な状態を表現
type StockCondition string

const (
	ConditionParent  StockCondition = "parent"  // 原反（スリット前）
	ConditionSlitted StockCondition = "slitted" // スリット済み
)

// StockStatus represents the availability status of a stock lot
// 在庫ロットの利用可否ステータスを表現
type StockStatus string

const (
	StockStatusAvailable  StockStatus = "available"  // 利用可能
	StockStatusReserved   StockStatus = "reserved"   // 予約済み
	StockStatusQuarantine StockStatus = "quarantine" // 検品保留
	StockStatusDisposed   StockStatus = "disposed"   // 処分済み
)

// MovementType defines the type of a stock ledger entry
// 在庫台帳エントリのタイプを定義
type MovementType string

const (
	MovementTypeIn         MovementType = "in"         // 入庫
	MovementTypeOut        MovementType = "out"        // 出庫
	MovementTypeAdjustment MovementType = "adjustment" // 調整
	MovementTypeMove       MovementType = "move"       // 移動
	MovementTypeQuarantine MovementType = "quarantine" // 検品保留
)

// Stock represents one physical paper-roll lot
// 1つの物理的な紙ロール在庫ロットを表現
type Stock struct {
	ID            string              `json:"id" db:"id"`                           // 在庫ID
	ItemID        string              `json:"item_id" db:"item_id"`                 // 品目ID
	LocationID    string              `json:"location_id" db:"location_id"`         // 保管場所ID
	WidthMm       int64               `json:"width_mm" db:"width_mm"`               // 幅（mm）
	Condition     StockCondition      `json:"condition" db:"condition"`             // 状態（原反/スリット済み）
	Quantity      int64               `json:"quantity" db:"quantity"`               // 数量（本）
	WeightKg      decimal.NullDecimal `json:"weight_kg" db:"weight_kg"`             // 重量（kg、不明の場合null）
	Status        StockStatus         `json:"status" db:"status"`                   // ステータス
	IsActive      bool                `json:"is_active" db:"is_active"`             // アクティブ状態
	BatchNumber   string              `json:"batch_number" db:"batch_number"`       // バッチ番号（日付連番、一意）
	ParentStockID *string             `json:"parent_stock_id" db:"parent_stock_id"` // スリット元在庫ID（スリット品のみ）
	CreatedBy     string              `json:"created_by" db:"created_by"`           // 作成者
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`           // 作成日時
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`           // 更新日時
}

// StockMovement represents one append-only ledger entry for a stock lot
// 在庫ロットに対する追記専用の台帳エントリを表現
type StockMovement struct {
	ID             string              `json:"id" db:"id"`                           // 移動ID
	StockID        string              `json:"stock_id" db:"stock_id"`               // 在庫ID
	Type           MovementType        `json:"type" db:"type"`                       // 移動タイプ
	QuantityChange int64               `json:"quantity_change" db:"quantity_change"` // 数量変化
	QuantityBefore int64               `json:"quantity_before" db:"quantity_before"` // 変更前数量
	QuantityAfter  int64               `json:"quantity_after" db:"quantity_after"`   // 変更後数量
	WeightChange   decimal.NullDecimal `json:"weight_change" db:"weight_change"`     // 重量変化（kg）
	WeightBefore   decimal.NullDecimal `json:"weight_before" db:"weight_before"`     // 変更前重量（kg）
	WeightAfter    decimal.NullDecimal `json:"weight_after" db:"weight_after"`       // 変更後重量（kg）
	ReferenceType  string              `json:"reference_type" db:"reference_type"`   // 参照タイプ（order/slitting_jobなど）
	ReferenceID    string              `json:"reference_id" db:"reference_id"`       // 参照ID
	Reason         string              `json:"reason" db:"reason"`                   // 理由（自由記述）
	PerformedBy    string              `json:"performed_by" db:"performed_by"`       // 実行者
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`           // 作成日時
}

// Item represents a paper product master record (read-only collaborator)
// 紙製品マスタレコードを表現（参照専用の外部データ）
type Item struct {
	ID        string    `json:"id" db:"id"`                 // 品目ID
	Name      string    `json:"name" db:"name"`             // 品目名
	Code      string    `json:"code" db:"code"`             // 品目コード
	IsActive  bool      `json:"is_active" db:"is_active"`   // アクティブ状態
	CreatedAt time.Time `json:"created_at" db:"created_at"` // 作成日時
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // 更新日時
}

// Location represents a warehouse or storage location (read-only collaborator)
// 倉庫または保管場所を表現（参照専用の外部データ）
type Location struct {
	ID        string    `json:"id" db:"id"`                 // 保管場所ID
	Name      string    `json:"name" db:"name"`             // 保管場所名
	Type      string    `json:"type" db:"type"`             // タイプ（倉庫、工場など）
	IsActive  bool      `json:"is_active" db:"is_active"`   // アクティブ状態
	CreatedAt time.Time `json:"created_at" db:"created_at"` // 作成日時
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // 更新日時
}

// MachineStatus represents the operating status of a slitting machine
// スリッター機の稼働ステータスを表現
type MachineStatus string

const (
	MachineStatusIdle        MachineStatus = "idle"        // 待機中
	MachineStatusRunning     MachineStatus = "running"     // 稼働中
	MachineStatusMaintenance MachineStatus = "maintenance" // メンテナンス中
)

// Machine represents a slitting machine
// スリッター機を表現
type Machine struct {
	ID        string        `json:"id" db:"id"`                 // 機械ID
	Name      string        `json:"name" db:"name"`             // 機械名
	Status    MachineStatus `json:"status" db:"status"`         // ステータス
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"` // 更新日時
}

// NewID generates a new entity ID
// 新しいエンティティIDを生成
func NewID() string {
	return uuid.New().String()
}

// IsAvailable reports whether the stock can be taken out or reserved
// 在庫が出庫・予約可能かどうかを返す
func (s *Stock) IsAvailable() bool {
	return s.IsActive && s.Status == StockStatusAvailable
}

// IsParentRoll reports whether the stock is an unslit parent roll
// 在庫がスリット前の原反かどうかを返す
func (s *Stock) IsParentRoll() bool {
	return s.Condition == ConditionParent
}
