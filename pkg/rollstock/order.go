package rollstock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Order number prefixes / オーダー番号プレフィックス
const (
	orderPrefixStockIn  = "OI" // 入庫オーダー
	orderPrefixStockOut = "OO" // 出庫オーダー
)

// OrderWorkflow implements the stock-in / stock-out order lifecycle:
// creation, field processing, and the approval that applies the order to the
// stock ledger. The ledger is touched only at approval time, and the status
// transition and all ledger effects commit in one transactional unit.
// 入出庫オーダーのライフサイクルを実装する。台帳への反映は承認時のみ行い、
// ステータス遷移と台帳反映は同一トランザクションでコミットする。
type OrderWorkflow struct {
	storage Storage
	ledger  *Ledger
	audit   AuditSink
	logger  *zap.Logger
}

// NewOrderWorkflow creates a new order workflow service
// 新しいオーダーワークフローサービスを作成
func NewOrderWorkflow(storage Storage, ledger *Ledger, audit AuditSink, logger *zap.Logger) *OrderWorkflow {
	return &OrderWorkflow{
		storage: storage,
		ledger:  ledger,
		audit:   audit,
		logger:  logger,
	}
}

// CreateOrderInput is the input for creating an order
// オーダー作成の入力
type CreateOrderInput struct {
	Type      OrderType             `json:"type"`
	Reason    OrderReason           `json:"reason"`
	IsUrgent  bool                  `json:"is_urgent"`
	PartnerID *string               `json:"partner_id"`
	Amount    decimal.NullDecimal   `json:"amount"`
	Memo      string                `json:"memo"`
	Items     []CreateOrderItemInput `json:"items"`
}

// CreateOrderItemInput is one requested line of a new order
// 新規オーダーの1依頼明細
type CreateOrderItemInput struct {
	ItemID            string              `json:"item_id"`
	StockID           *string             `json:"stock_id"`    // 出庫のみ
	LocationID        *string             `json:"location_id"` // 入庫のみ
	WidthMm           *int64              `json:"width_mm"`    // 入庫のみ
	RequestedQty      int64               `json:"requested_qty"`
	RequestedWeightKg decimal.NullDecimal `json:"requested_weight_kg"`
	Notes             string              `json:"notes"`
}

// FieldResultInput carries the measured quantities one line actually moved
// 現場で実際に動かした数量を1明細ぶん運ぶ
type FieldResultInput struct {
	OrderItemID       string              `json:"order_item_id"`
	ProcessedQty      *int64              `json:"processed_qty"`
	ProcessedWeightKg decimal.NullDecimal `json:"processed_weight_kg"`
}

// Create registers a new order in pending status. No ledger mutation happens
// here; stock existence and availability of stock-out targets are checked so
// obviously doomed orders fail early.
// 新しいオーダーをpendingで登録する。台帳への反映はここでは行わない。
func (w *OrderWorkflow) Create(ctx context.Context, in CreateOrderInput, actorID string) (*Order, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := ValidateOrderReason(in.Type, in.Reason); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, NewValidationError("items", "明細が1件もありません", "")
	}
	for i, item := range in.Items {
		if err := w.validateOrderItem(in.Type, i, item); err != nil {
			return nil, err
		}
	}

	var order *Order
	err := w.storage.WithinTx(ctx, func(tx Tx) error {
		// Stock-out targets must exist and be takeable at request time.
		// 出庫対象の在庫は依頼時点で存在し出庫可能であること。
		for i, item := range in.Items {
			if in.Type != OrderTypeStockOut {
				continue
			}
			stock, err := tx.GetStock(ctx, *item.StockID)
			if err != nil {
				return err
			}
			if !stock.IsAvailable() {
				return NewInvalidStockStateError(stock.ID, string(stock.Status), "出庫できない状態の在庫です")
			}
			if item.RequestedQty > stock.Quantity {
				return fmt.Errorf("明細 %d 行目: %w", i+1, ErrInsufficientQuantity)
			}
		}

		orderNumber, err := w.nextOrderNumber(ctx, tx, in.Type)
		if err != nil {
			return err
		}

		now := time.Now()
		order = &Order{
			ID:          NewID(),
			OrderNumber: orderNumber,
			Type:        in.Type,
			Status:      OrderStatusPending,
			Reason:      in.Reason,
			IsUrgent:    in.IsUrgent,
			PartnerID:   in.PartnerID,
			Amount:      in.Amount,
			RequestedBy: actorID,
			Memo:        in.Memo,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return NewStorageError("create_order", "オーダー作成に失敗しました", err)
		}

		for _, item := range in.Items {
			line := &OrderItem{
				ID:                NewID(),
				OrderID:           order.ID,
				ItemID:            item.ItemID,
				StockID:           item.StockID,
				LocationID:        item.LocationID,
				WidthMm:           item.WidthMm,
				RequestedQty:      item.RequestedQty,
				RequestedWeightKg: item.RequestedWeightKg,
				Notes:             item.Notes,
			}
			if err := tx.CreateOrderItem(ctx, line); err != nil {
				return NewStorageError("create_order_item", "オーダー明細の作成に失敗しました", err)
			}
			order.Items = append(order.Items, *line)
		}

		return w.writeHistory(ctx, tx, order, OrderActionCreated, nil, in.Memo, actorID, nil)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("オーダー作成完了",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("type", string(order.Type)),
		zap.Bool("is_urgent", order.IsUrgent),
		zap.Int("items", len(order.Items)),
	)
	w.recordAudit(ctx, OrderActionCreated, order.ID, actorID, map[string]string{
		"order_number": order.OrderNumber,
	})
	return order, nil
}

// StartFieldProcessing moves an order from pending to field_processing and
// records who is working it
// オーダーをpendingからfield_processingへ遷移させ、現場作業者を記録する
func (w *OrderWorkflow) StartFieldProcessing(ctx context.Context, orderID, actorID string) (*Order, error) {
	return w.simpleTransition(ctx, orderID, actorID, OrderActionFieldStarted, "", func(order *Order) error {
		if err := transitionOrder(order, OrderStatusFieldProcessing); err != nil {
			return err
		}
		order.ProcessedBy = &actorID
		return nil
	})
}

// CompleteFieldProcessing records the measured result of the field work and
// moves the order to awaiting_approval. Lines without a result keep their
// requested quantity as the effective value.
// 現場作業の実測結果を記録してawaiting_approvalへ遷移させる。
func (w *OrderWorkflow) CompleteFieldProcessing(ctx context.Context, orderID string, results []FieldResultInput, memo, actorID string) (*Order, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var order *Order
	err := w.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		prev := order.Status
		if err := transitionOrder(order, OrderStatusAwaitingApproval); err != nil {
			return err
		}
		if err := w.applyFieldResultsTx(ctx, tx, order, results); err != nil {
			return err
		}

		order.ProcessedBy = &actorID
		order.UpdatedAt = time.Now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return NewStorageError("update_order", "オーダー更新に失敗しました", err)
		}
		return w.writeHistory(ctx, tx, order, OrderActionFieldCompleted, &prev, memo, actorID, w.fieldDiff(results))
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("現場作業完了",
		zap.String("order_id", order.ID),
		zap.Int("results", len(results)),
	)
	w.recordAudit(ctx, OrderActionFieldCompleted, order.ID, actorID, nil)
	return order, nil
}

// Approve finalizes an order: the status transition and every line's ledger
// effect commit as one unit. Lines whose effective quantity is not positive
// are skipped (the field moved nothing for them).
// オーダーを確定する。ステータス遷移と全明細の台帳反映を同一単位で
// コミットする。実効数量が正でない明細はスキップする。
func (w *OrderWorkflow) Approve(ctx context.Context, orderID, memo, actorID string) (*Order, error) {
	return w.approve(ctx, orderID, nil, memo, actorID, OrderActionApproved)
}

// UrgentApprove approves an order directly from pending, skipping the field
// processing step. The caller supplies the processed quantities that field
// processing would have recorded, and the order is flagged urgent.
// オーダーをpendingから直接承認する。現場作業工程を飛ばすため、呼び出し元が
// 確定数量を指定する。オーダーには緊急フラグが立つ。
func (w *OrderWorkflow) UrgentApprove(ctx context.Context, orderID string, results []FieldResultInput, memo, actorID string) (*Order, error) {
	return w.approve(ctx, orderID, results, memo, actorID, OrderActionUrgentApproved)
}

func (w *OrderWorkflow) approve(ctx context.Context, orderID string, results []FieldResultInput, memo, actorID, action string) (*Order, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var order *Order
	err := w.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		var diff map[string]interface{}
		if action == OrderActionUrgentApproved {
			if order.Status != OrderStatusPending {
				return NewStateConflictError("order", order.ID, string(order.Status), string(OrderStatusPending))
			}
			// 現場作業工程を飛ばすため確定数量をここで書き込む
			if err := w.applyFieldResultsTx(ctx, tx, order, results); err != nil {
				return err
			}
			order.IsUrgent = true
			diff = w.fieldDiff(results)
		} else if order.Status != OrderStatusAwaitingApproval {
			return NewStateConflictError("order", order.ID, string(order.Status), string(OrderStatusAwaitingApproval))
		}

		prev := order.Status
		if err := transitionOrder(order, OrderStatusApproved); err != nil {
			return err
		}

		for i := range order.Items {
			if err := w.applyLineTx(ctx, tx, order, &order.Items[i], actorID); err != nil {
				return fmt.Errorf("明細 %d 行目の台帳反映に失敗しました: %w", i+1, err)
			}
		}

		order.ApprovedBy = &actorID
		order.UpdatedAt = time.Now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return NewStorageError("update_order", "オーダー更新に失敗しました", err)
		}
		return w.writeHistory(ctx, tx, order, action, &prev, memo, actorID, diff)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("オーダー承認完了",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("action", action),
	)
	w.recordAudit(ctx, action, order.ID, actorID, map[string]string{
		"order_number": order.OrderNumber,
	})
	return order, nil
}

// Reject declines an awaiting-approval order. The memo is mandatory: a
// rejection without a stated reason is useless to the requester.
// 承認待ちオーダーを却下する。メモは必須。
func (w *OrderWorkflow) Reject(ctx context.Context, orderID, memo, actorID string) (*Order, error) {
	if err := ValidateRequiredMemo(memo); err != nil {
		return nil, err
	}
	return w.simpleTransition(ctx, orderID, actorID, OrderActionRejected, memo, func(order *Order) error {
		if order.Status != OrderStatusAwaitingApproval {
			return NewStateConflictError("order", order.ID, string(order.Status), string(OrderStatusAwaitingApproval))
		}
		if err := transitionOrder(order, OrderStatusRejected); err != nil {
			return err
		}
		order.ApprovedBy = &actorID
		return nil
	})
}

// Cancel withdraws an order from any non-terminal status. Approved orders
// cannot be cancelled; their ledger effect already happened.
// オーダーを取り消す。承認済みオーダーは台帳反映済みのため取消不可。
func (w *OrderWorkflow) Cancel(ctx context.Context, orderID, memo, actorID string) (*Order, error) {
	return w.simpleTransition(ctx, orderID, actorID, OrderActionCancelled, memo, func(order *Order) error {
		return transitionOrder(order, OrderStatusCancelled)
	})
}

// Get gets one order with its lines
// オーダーを明細付きで1件取得
func (w *OrderWorkflow) Get(ctx context.Context, orderID string) (*Order, error) {
	return w.storage.GetOrder(ctx, orderID)
}

// List lists orders, optionally filtered by status
// オーダー一覧を取得（ステータスで絞り込み可能）
func (w *OrderWorkflow) List(ctx context.Context, status *OrderStatus, limit int) ([]Order, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return w.storage.ListOrders(ctx, status, limit)
}

// GetHistory gets the transition history of an order in creation order
// オーダーの遷移履歴を作成順で取得
func (w *OrderWorkflow) GetHistory(ctx context.Context, orderID string) ([]OrderHistory, error) {
	return w.storage.ListOrderHistories(ctx, orderID)
}

// --- internals / 内部処理 ---

// validateOrderItem checks line shape against the order type
// オーダー種別に対する明細の形を検証する
func (w *OrderWorkflow) validateOrderItem(orderType OrderType, idx int, item CreateOrderItemInput) error {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", idx, name) }
	if err := ValidateEntityID(field("item_id"), item.ItemID); err != nil {
		return err
	}
	if err := ValidatePositiveQuantity(field("requested_qty"), item.RequestedQty); err != nil {
		return err
	}
	switch orderType {
	case OrderTypeStockIn:
		if item.LocationID == nil {
			return NewValidationError(field("location_id"), "入庫明細には保管場所が必須です", "")
		}
		if item.WidthMm == nil {
			return NewValidationError(field("width_mm"), "入庫明細には幅が必須です", "")
		}
		if err := ValidateWidthMm(field("width_mm"), *item.WidthMm); err != nil {
			return err
		}
	case OrderTypeStockOut:
		if item.StockID == nil {
			return NewValidationError(field("stock_id"), "出庫明細には対象在庫が必須です", "")
		}
	}
	return nil
}

// applyFieldResultsTx writes measured quantities onto the order's lines.
// Every result must reference a line of this order and quantities must not be
// negative.
// 実測数量をオーダー明細へ書き込む。全結果はこのオーダーの明細を参照し、
// 数量は負であってはならない。
func (w *OrderWorkflow) applyFieldResultsTx(ctx context.Context, tx Tx, order *Order, results []FieldResultInput) error {
	byID := make(map[string]*OrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}
	for _, r := range results {
		line, ok := byID[r.OrderItemID]
		if !ok {
			return NewValidationError("order_item_id", "オーダーに存在しない明細です", r.OrderItemID)
		}
		if r.ProcessedQty != nil && *r.ProcessedQty < 0 {
			return NewValidationError("processed_qty", "数量は負にできません", fmt.Sprintf("%d", *r.ProcessedQty))
		}
		line.ProcessedQty = r.ProcessedQty
		line.ProcessedWeightKg = r.ProcessedWeightKg
		if err := tx.UpdateOrderItem(ctx, line); err != nil {
			return NewStorageError("update_order_item", "オーダー明細の更新に失敗しました", err)
		}
	}
	return nil
}

// applyLineTx applies one order line to the ledger inside the approval
// transaction. Movements are tagged with the order number so the ledger
// entry points back at its order.
// 承認トランザクション内で1明細を台帳へ反映する。移動記録の理由には
// オーダー番号を載せる。
func (w *OrderWorkflow) applyLineTx(ctx context.Context, tx Tx, order *Order, line *OrderItem, actorID string) error {
	qty := line.EffectiveQty()
	if qty <= 0 {
		// 現場で何も動かなかった明細は台帳に触れない
		return nil
	}

	switch order.Type {
	case OrderTypeStockIn:
		batchNumber, err := w.ledger.nextBatchNumber(ctx, tx, batchPrefixStockIn)
		if err != nil {
			return err
		}
		_, err = w.ledger.stockInTx(ctx, tx, StockInInput{
			ItemID:        line.ItemID,
			LocationID:    *line.LocationID,
			WidthMm:       *line.WidthMm,
			Condition:     ConditionParent,
			Quantity:      qty,
			WeightKg:      line.EffectiveWeightKg(),
			ReferenceType: "order",
			ReferenceID:   order.ID,
			Reason:        order.OrderNumber,
		}, actorID, batchNumber)
		return err
	case OrderTypeStockOut:
		_, _, err := w.ledger.stockOutTx(ctx, tx, StockOutInput{
			StockID:       *line.StockID,
			Quantity:      qty,
			WeightKg:      line.EffectiveWeightKg(),
			ReasonType:    order.OrderNumber,
			ReferenceType: "order",
			ReferenceID:   order.ID,
		}, actorID)
		return err
	}
	return NewValidationError("type", "無効なオーダー種別です", string(order.Type))
}

// simpleTransition runs a lock-mutate-history transition in one transaction
// ロック・変更・履歴記録を1トランザクションで行う
func (w *OrderWorkflow) simpleTransition(ctx context.Context, orderID, actorID, action, memo string, mutate func(*Order) error) (*Order, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var order *Order
	err := w.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		prev := order.Status
		if err := mutate(order); err != nil {
			return err
		}
		order.UpdatedAt = time.Now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return NewStorageError("update_order", "オーダー更新に失敗しました", err)
		}
		return w.writeHistory(ctx, tx, order, action, &prev, memo, actorID, nil)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("オーダーステータス遷移",
		zap.String("order_id", order.ID),
		zap.String("action", action),
		zap.String("status", string(order.Status)),
	)
	w.recordAudit(ctx, action, order.ID, actorID, nil)
	return order, nil
}

// writeHistory appends one immutable transition record inside tx
// tx内で不変の遷移記録を1件追記する
func (w *OrderWorkflow) writeHistory(ctx context.Context, tx Tx, order *Order, action string, prev *OrderStatus, memo, actorID string, changes map[string]interface{}) error {
	var changesJSON string
	if len(changes) > 0 {
		b, err := json.Marshal(changes)
		if err != nil {
			return NewStorageError("marshal_history", "履歴差分のシリアライズに失敗しました", err)
		}
		changesJSON = string(b)
	}
	h := &OrderHistory{
		ID:             NewID(),
		OrderID:        order.ID,
		Action:         action,
		PreviousStatus: prev,
		NewStatus:      order.Status,
		ActorID:        actorID,
		Memo:           memo,
		Changes:        changesJSON,
		CreatedAt:      time.Now(),
	}
	if err := tx.CreateOrderHistory(ctx, h); err != nil {
		return NewStorageError("create_order_history", "オーダー履歴の作成に失敗しました", err)
	}
	return nil
}

// fieldDiff summarizes field results for the history record
// 履歴記録用に現場実測結果を要約する
func (w *OrderWorkflow) fieldDiff(results []FieldResultInput) map[string]interface{} {
	if len(results) == 0 {
		return nil
	}
	diff := make(map[string]interface{}, len(results))
	for _, r := range results {
		entry := map[string]interface{}{}
		if r.ProcessedQty != nil {
			entry["processed_qty"] = *r.ProcessedQty
		}
		if r.ProcessedWeightKg.Valid {
			entry["processed_weight_kg"] = r.ProcessedWeightKg.Decimal.String()
		}
		diff[r.OrderItemID] = entry
	}
	return diff
}

// nextOrderNumber generates a date-scoped sequential order number,
// e.g. OI-20260831-001
// 日付スコープの連番オーダー番号を生成する（例: OI-20260831-001）
func (w *OrderWorkflow) nextOrderNumber(ctx context.Context, tx Tx, orderType OrderType) (string, error) {
	kind := orderPrefixStockIn
	if orderType == OrderTypeStockOut {
		kind = orderPrefixStockOut
	}
	prefix := fmt.Sprintf("%s-%s-", kind, time.Now().Format("20060102"))
	count, err := tx.CountOrderNumbers(ctx, prefix)
	if err != nil {
		return "", NewStorageError("count_order_numbers", "オーダー番号の採番に失敗しました", err)
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// recordAudit emits one fire-and-forget audit event
// 監査イベントを1件送出する
func (w *OrderWorkflow) recordAudit(ctx context.Context, action, orderID, actorID string, changes map[string]string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEvent{
		Action:      action,
		Category:    "order",
		TargetTable: "orders",
		TargetID:    orderID,
		ActorID:     actorID,
		Changes:     changes,
	})
}
