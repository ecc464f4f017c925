package rollstock

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType defines whether an order brings stock in or takes stock out
// 入出庫オーダーの種別を定義
type OrderType string

const (
	OrderTypeStockIn  OrderType = "stock_in"  // 入庫オーダー
	OrderTypeStockOut OrderType = "stock_out" // 出庫オーダー
)

// OrderStatus represents the workflow status of an order
// オーダーのワークフローステータスを表現
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"           // 受付済み
	OrderStatusFieldProcessing  OrderStatus = "field_processing"  // 現場作業中
	OrderStatusAwaitingApproval OrderStatus = "awaiting_approval" // 承認待ち
	OrderStatusApproved         OrderStatus = "approved"          // 承認済み
	OrderStatusRejected         OrderStatus = "rejected"          // 却下
	OrderStatusCancelled        OrderStatus = "cancelled"         // 取消
)

// OrderReason represents the business reason of an order
// オーダーの業務上の理由を表現
type OrderReason string

// Stock-in reasons / 入庫理由
const (
	ReasonPurchase     OrderReason = "purchase"      // 仕入
	ReasonReturnIn     OrderReason = "return_in"     // 返品入庫
	ReasonProductionIn OrderReason = "production_in" // 生産入庫
	ReasonAdjustmentIn OrderReason = "adjustment_in" // 棚卸調整（入）
)

// Stock-out reasons / 出庫理由
const (
	ReasonSale          OrderReason = "sale"           // 販売
	ReasonReturnOut     OrderReason = "return_out"     // 返品出庫
	ReasonProductionUse OrderReason = "production_use" // 生産払出
	ReasonDisposal      OrderReason = "disposal"       // 廃棄
	ReasonAdjustmentOut OrderReason = "adjustment_out" // 棚卸調整（出）
)

// stockInReasons and stockOutReasons are disjoint sets
// 入庫理由と出庫理由は互いに素な集合
var (
	stockInReasons = map[OrderReason]bool{
		ReasonPurchase:     true,
		ReasonReturnIn:     true,
		ReasonProductionIn: true,
		ReasonAdjustmentIn: true,
	}
	stockOutReasons = map[OrderReason]bool{
		ReasonSale:          true,
		ReasonReturnOut:     true,
		ReasonProductionUse: true,
		ReasonDisposal:      true,
		ReasonAdjustmentOut: true,
	}
)

// ValidReason reports whether the reason belongs to the reason set of the order type
// 理由がオーダー種別の理由セットに属するかどうかを返す
func ValidReason(orderType OrderType, reason OrderReason) bool {
	switch orderType {
	case OrderTypeStockIn:
		return stockInReasons[reason]
	case OrderTypeStockOut:
		return stockOutReasons[reason]
	}
	return false
}

// Order represents a stock-in or stock-out request grouping one or more item lines
// 1つ以上の品目明細をまとめた入庫または出庫の依頼を表現
type Order struct {
	ID          string              `json:"id" db:"id"`                     // オーダーID
	OrderNumber string              `json:"order_number" db:"order_number"` // オーダー番号（種別プレフィックス付き連番）
	Type        OrderType           `json:"type" db:"type"`                 // 種別
	Status      OrderStatus         `json:"status" db:"status"`             // ステータス
	Reason      OrderReason         `json:"reason" db:"reason"`             // 理由
	IsUrgent    bool                `json:"is_urgent" db:"is_urgent"`       // 緊急フラグ
	PartnerID   *string             `json:"partner_id" db:"partner_id"`     // 取引先ID
	Amount      decimal.NullDecimal `json:"amount" db:"amount"`             // 金額（参考値）
	RequestedBy string              `json:"requested_by" db:"requested_by"` // 依頼者
	ProcessedBy *string             `json:"processed_by" db:"processed_by"` // 現場作業者
	ApprovedBy  *string             `json:"approved_by" db:"approved_by"`   // 承認者
	Memo        string              `json:"memo" db:"memo"`                 // メモ
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`     // 作成日時
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`     // 更新日時

	Items []OrderItem `json:"items" db:"-"` // 明細行
}

// OrderItem represents one line of an order
// オーダーの1明細行を表現
type OrderItem struct {
	ID                string              `json:"id" db:"id"`                                   // 明細ID
	OrderID           string              `json:"order_id" db:"order_id"`                       // オーダーID
	ItemID            string              `json:"item_id" db:"item_id"`                         // 品目ID
	StockID           *string             `json:"stock_id" db:"stock_id"`                       // 対象在庫ID（出庫のみ）
	LocationID        *string             `json:"location_id" db:"location_id"`                 // 入庫先保管場所ID（入庫のみ）
	WidthMm           *int64              `json:"width_mm" db:"width_mm"`                       // 幅（mm、入庫のみ）
	RequestedQty      int64               `json:"requested_qty" db:"requested_qty"`             // 依頼数量
	RequestedWeightKg decimal.NullDecimal `json:"requested_weight_kg" db:"requested_weight_kg"` // 依頼重量（kg）
	ProcessedQty      *int64              `json:"processed_qty" db:"processed_qty"`             // 現場確定数量（未確定はnull）
	ProcessedWeightKg decimal.NullDecimal `json:"processed_weight_kg" db:"processed_weight_kg"` // 現場確定重量（kg）
	Notes             string              `json:"notes" db:"notes"`                             // 備考
}

// EffectiveQty returns the quantity that should hit the ledger at approval time
// 承認時に台帳へ反映すべき数量を返す（現場確定数量を優先）
func (i *OrderItem) EffectiveQty() int64 {
	if i.ProcessedQty != nil {
		return *i.ProcessedQty
	}
	return i.RequestedQty
}

// EffectiveWeightKg returns the weight that should hit the ledger at approval time
// 承認時に台帳へ反映すべき重量を返す（現場確定重量を優先）
func (i *OrderItem) EffectiveWeightKg() decimal.NullDecimal {
	if i.ProcessedWeightKg.Valid {
		return i.ProcessedWeightKg
	}
	return i.RequestedWeightKg
}

// Order history actions / オーダー履歴アクション
const (
	OrderActionCreated        = "created"         // 作成
	OrderActionFieldStarted   = "field_started"   // 現場作業開始
	OrderActionFieldCompleted = "field_completed" // 現場作業完了
	OrderActionApproved       = "approved"        // 承認
	OrderActionRejected       = "rejected"        // 却下
	OrderActionCancelled      = "cancelled"       // 取消
	OrderActionUrgentApproved = "urgent_approved" // 緊急承認
)

// OrderHistory represents one immutable workflow transition record of an order
// オーダーの1つの不変なワークフロー遷移記録を表現
type OrderHistory struct {
	ID             string       `json:"id" db:"id"`                           // 履歴ID
	OrderID        string       `json:"order_id" db:"order_id"`               // オーダーID
	Action         string       `json:"action" db:"action"`                   // アクション
	PreviousStatus *OrderStatus `json:"previous_status" db:"previous_status"` // 遷移前ステータス（作成時はnull）
	NewStatus      OrderStatus  `json:"new_status" db:"new_status"`           // 遷移後ステータス
	ActorID        string       `json:"actor_id" db:"actor_id"`               // 実行者
	Memo           string       `json:"memo" db:"memo"`                       // メモ
	Changes        string       `json:"changes" db:"changes"`                 // 変更差分（JSON）
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`           // 作成日時
}
