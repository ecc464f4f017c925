package rollstock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Batch number prefixes / バッチ番号プレフィックス
const (
	batchPrefixStockIn  = "SI" // 入庫ロット
	batchPrefixSlitting = "SL" // スリット生成ロット
)

// Ledger implements the stock ledger: atomic stock-in / stock-out operations
// that create or mutate stock lots and append conservation-checked movement
// records. Stock rows are mutated only through this service.
// 在庫台帳の実装。在庫ロットの生成・変更と、数量保存則を検証した移動記録の
// 追記を原子的に行う。在庫行の変更は必ずこのサービスを経由する。
type Ledger struct {
	storage Storage
	audit   AuditSink
	logger  *zap.Logger
}

// NewLedger creates a new stock ledger service
// 新しい在庫台帳サービスを作成
func NewLedger(storage Storage, audit AuditSink, logger *zap.Logger) *Ledger {
	return &Ledger{
		storage: storage,
		audit:   audit,
		logger:  logger,
	}
}

// StockInInput is the input for a stock-in operation
// 入庫操作の入力
type StockInInput struct {
	ItemID        string              `json:"item_id"`
	LocationID    string              `json:"location_id"`
	WidthMm       int64               `json:"width_mm"`
	Condition     StockCondition      `json:"condition"`
	Quantity      int64               `json:"quantity"`
	WeightKg      decimal.NullDecimal `json:"weight_kg"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`
	Reason        string              `json:"reason"`
	ParentStockID *string             `json:"parent_stock_id"`
}

// StockInResult is the result of a stock-in operation
// 入庫操作の結果
type StockInResult struct {
	Stock       Stock         `json:"stock"`
	Movement    StockMovement `json:"movement"`
	BatchNumber string        `json:"batch_number"`
}

// StockOutInput is the input for a stock-out operation. Quantity 0 means the
// entire current quantity of the lot.
// 出庫操作の入力。Quantityが0の場合はロットの全数量を出庫する。
type StockOutInput struct {
	StockID       string              `json:"stock_id"`
	Quantity      int64               `json:"quantity"`
	WeightKg      decimal.NullDecimal `json:"weight_kg"`
	ReasonType    string              `json:"reason_type"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`
}

// ConversionOutput is one measured slitting output to materialize as stock
// 在庫として実体化する1つのスリット出力
type ConversionOutput struct {
	WidthMm  int64               `json:"width_mm"`
	Quantity int64               `json:"quantity"`
	WeightKg decimal.NullDecimal `json:"weight_kg"`
	IsLoss   bool                `json:"is_loss"`
}

// conversionResult is the outcome of one parent-roll conversion
// 原反1本の変換結果
type conversionResult struct {
	Parent         *Stock
	Created        []Stock
	TotalOutputQty int64
	LossQty        int64
	LossWeightKg   decimal.NullDecimal
}

// validateStockIn checks a stock-in input before any write is attempted
// 書き込み前に入庫入力を検証する
func (l *Ledger) validateStockIn(in StockInInput) error {
	if err := ValidateEntityID("item_id", in.ItemID); err != nil {
		return err
	}
	if err := ValidateEntityID("location_id", in.LocationID); err != nil {
		return err
	}
	if err := ValidatePositiveQuantity("quantity", in.Quantity); err != nil {
		return err
	}
	if err := ValidateWidthMm("width_mm", in.WidthMm); err != nil {
		return err
	}
	if in.Condition != ConditionParent && in.Condition != ConditionSlitted {
		return NewValidationError("condition", "無効な在庫状態です", string(in.Condition))
	}
	return nil
}

// StockIn creates a new stock lot and its initial movement record as one
// transactional unit. A failure after stock creation but before movement
// insertion rolls the whole unit back.
// 新しい在庫ロットと初回の移動記録を1つのトランザクション単位として作成する。
func (l *Ledger) StockIn(ctx context.Context, in StockInInput, actorID string) (*StockInResult, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := l.validateStockIn(in); err != nil {
		return nil, err
	}

	var result *StockInResult
	err := l.storage.WithinTx(ctx, func(tx Tx) error {
		batchNumber, err := l.nextBatchNumber(ctx, tx, batchPrefixStockIn)
		if err != nil {
			return err
		}
		result, err = l.stockInTx(ctx, tx, in, actorID, batchNumber)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("入庫完了",
		zap.String("stock_id", result.Stock.ID),
		zap.String("batch_number", result.BatchNumber),
		zap.String("item_id", in.ItemID),
		zap.Int64("quantity", in.Quantity),
	)
	l.recordAudit(ctx, "stock_in", "stocks", result.Stock.ID, actorID, map[string]string{
		"batch_number": result.BatchNumber,
		"quantity":     fmt.Sprintf("%d", in.Quantity),
	})

	return result, nil
}

// BulkStockIn processes a list of stock-in lines as a single all-or-nothing
// unit. The batch number sequence is shared across the batch; any single line
// failure aborts the entire batch with no partial ledger mutation.
// 複数の入庫明細を単一の全か無かの単位として処理する。
func (l *Ledger) BulkStockIn(ctx context.Context, lines []StockInInput, actorID string) ([]StockInResult, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, NewValidationError("lines", "明細が1件もありません", "")
	}
	for _, in := range lines {
		if err := l.validateStockIn(in); err != nil {
			return nil, err
		}
	}

	var results []StockInResult
	err := l.storage.WithinTx(ctx, func(tx Tx) error {
		results = results[:0]
		for i, in := range lines {
			batchNumber, err := l.nextBatchNumber(ctx, tx, batchPrefixStockIn)
			if err != nil {
				return err
			}
			r, err := l.stockInTx(ctx, tx, in, actorID, batchNumber)
			if err != nil {
				return fmt.Errorf("明細 %d 行目の入庫に失敗しました: %w", i+1, err)
			}
			results = append(results, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("一括入庫完了", zap.Int("lines", len(results)))
	return results, nil
}

// StockOut takes quantity out of an existing stock lot and appends the
// movement record as one transactional unit. Quantity must never go negative;
// this is enforced before the write, never corrected after it.
// 既存の在庫ロットから数量を出庫し、移動記録を原子的に追記する。
// 数量が負になることは書き込み前に防止する。
func (l *Ledger) StockOut(ctx context.Context, in StockOutInput, actorID string) (*Stock, *StockMovement, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, nil, err
	}
	if err := ValidateEntityID("stock_id", in.StockID); err != nil {
		return nil, nil, err
	}

	var (
		stock    *Stock
		movement *StockMovement
	)
	err := l.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		stock, movement, err = l.stockOutTx(ctx, tx, in, actorID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("出庫完了",
		zap.String("stock_id", stock.ID),
		zap.Int64("quantity", -movement.QuantityChange),
		zap.Int64("remaining", stock.Quantity),
	)
	l.recordAudit(ctx, "stock_out", "stocks", stock.ID, actorID, map[string]string{
		"quantity":  fmt.Sprintf("%d", -movement.QuantityChange),
		"remaining": fmt.Sprintf("%d", stock.Quantity),
	})

	return stock, movement, nil
}

// BulkStockOut processes a list of stock-out lines as a single all-or-nothing unit
// 複数の出庫明細を単一の全か無かの単位として処理する
func (l *Ledger) BulkStockOut(ctx context.Context, lines []StockOutInput, actorID string) ([]StockMovement, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, NewValidationError("lines", "明細が1件もありません", "")
	}

	var movements []StockMovement
	err := l.storage.WithinTx(ctx, func(tx Tx) error {
		movements = movements[:0]
		for i, in := range lines {
			_, mv, err := l.stockOutTx(ctx, tx, in, actorID)
			if err != nil {
				return fmt.Errorf("明細 %d 行目の出庫に失敗しました: %w", i+1, err)
			}
			movements = append(movements, *mv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("一括出庫完了", zap.Int("lines", len(movements)))
	return movements, nil
}

// Reserve transitions a stock lot from available to reserved. Used exclusively
// by the slitting workflow when registering a roll against a parent lot.
// 在庫ロットをavailableからreservedへ遷移させる。
func (l *Ledger) Reserve(ctx context.Context, stockID, referenceType, referenceID, actorID string) (*Stock, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var stock *Stock
	err := l.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		stock, err = l.reserveTx(ctx, tx, stockID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("在庫予約完了",
		zap.String("stock_id", stockID),
		zap.String("reference_type", referenceType),
		zap.String("reference_id", referenceID),
	)
	l.recordAudit(ctx, "reserve", "stocks", stockID, actorID, nil)
	return stock, nil
}

// Release transitions a stock lot from reserved back to available
// 在庫ロットをreservedからavailableへ戻す
func (l *Ledger) Release(ctx context.Context, stockID, referenceType, referenceID, actorID string) (*Stock, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var stock *Stock
	err := l.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		stock, err = l.releaseTx(ctx, tx, stockID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("在庫予約解除完了", zap.String("stock_id", stockID))
	l.recordAudit(ctx, "release", "stocks", stockID, actorID, nil)
	return stock, nil
}

// GetStock gets one stock lot
// 在庫ロットを1件取得
func (l *Ledger) GetStock(ctx context.Context, stockID string) (*Stock, error) {
	return l.storage.GetStock(ctx, stockID)
}

// GetMovements gets the movement ledger of a stock lot in creation order
// 在庫ロットの移動台帳を作成順で取得
func (l *Ledger) GetMovements(ctx context.Context, stockID string) ([]StockMovement, error) {
	return l.storage.ListMovementsByStock(ctx, stockID)
}

// TotalQuantityByItem sums current quantity of all active lots of an item
// 品目のアクティブな全ロットの現在数量を合計する
func (l *Ledger) TotalQuantityByItem(ctx context.Context, itemID string) (int64, error) {
	stocks, err := l.storage.ListStocksByItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range stocks {
		if s.IsActive {
			total += s.Quantity
		}
	}
	return total, nil
}

// --- transaction-scoped primitives / トランザクション内プリミティブ ---
// The workflow services call these inside their own transactional units so
// that a workflow status change and its ledger effect commit together.
// ワークフローのステータス変更と台帳反映を同一トランザクションで
// コミットするため、ワークフローサービスはこれらを自身のTx内から呼ぶ。

// nextBatchNumber generates a date-scoped sequential batch number,
// e.g. SI-20260831-001. The count runs inside the caller's transaction, so it
// already includes rows inserted earlier in the same transaction and
// concurrent callers serialize on the insert.
// 日付スコープの連番バッチ番号を生成する（例: SI-20260831-001）。
// 採番は呼び出し元トランザクション内で行うため、同一トランザクションで
// 先に挿入した行も件数に含まれる。
func (l *Ledger) nextBatchNumber(ctx context.Context, tx Tx, kind string) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", kind, time.Now().Format("20060102"))
	count, err := tx.CountBatchNumbers(ctx, prefix)
	if err != nil {
		return "", NewStorageError("count_batch_numbers", "バッチ番号の採番に失敗しました", err)
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// stockInTx creates the stock row and its first movement inside tx
// tx内で在庫行と初回の移動記録を作成する
func (l *Ledger) stockInTx(ctx context.Context, tx Tx, in StockInInput, actorID, batchNumber string) (*StockInResult, error) {
	item, err := tx.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, NewValidationError("item_id", "品目が非アクティブです", in.ItemID)
	}
	location, err := tx.GetLocation(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}
	if !location.IsActive {
		return nil, NewValidationError("location_id", "保管場所が非アクティブです", in.LocationID)
	}

	now := time.Now()
	stock := &Stock{
		ID:            NewID(),
		ItemID:        in.ItemID,
		LocationID:    in.LocationID,
		WidthMm:       in.WidthMm,
		Condition:     in.Condition,
		Quantity:      in.Quantity,
		WeightKg:      in.WeightKg,
		Status:        StockStatusAvailable,
		IsActive:      true,
		BatchNumber:   batchNumber,
		ParentStockID: in.ParentStockID,
		CreatedBy:     actorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateStock(ctx, stock); err != nil {
		return nil, NewStorageError("create_stock", "在庫作成に失敗しました", err)
	}

	movement := &StockMovement{
		ID:             NewID(),
		StockID:        stock.ID,
		Type:           MovementTypeIn,
		QuantityChange: in.Quantity,
		QuantityBefore: 0,
		QuantityAfter:  in.Quantity,
		WeightChange:   in.WeightKg,
		WeightBefore:   zeroWeightIf(in.WeightKg),
		WeightAfter:    in.WeightKg,
		ReferenceType:  in.ReferenceType,
		ReferenceID:    in.ReferenceID,
		Reason:         in.Reason,
		PerformedBy:    actorID,
		CreatedAt:      now,
	}
	if err := tx.CreateMovement(ctx, movement); err != nil {
		return nil, NewStorageError("create_movement", "移動記録の作成に失敗しました", err)
	}

	return &StockInResult{Stock: *stock, Movement: *movement, BatchNumber: batchNumber}, nil
}

// stockOutTx takes quantity out of a locked stock row inside tx
// tx内でロック済み在庫行から数量を出庫する
func (l *Ledger) stockOutTx(ctx context.Context, tx Tx, in StockOutInput, actorID string) (*Stock, *StockMovement, error) {
	stock, err := tx.GetStockForUpdate(ctx, in.StockID)
	if err != nil {
		return nil, nil, err
	}
	if !stock.IsActive {
		return nil, nil, NewInvalidStockStateError(stock.ID, string(stock.Status), "在庫が非アクティブです")
	}
	if stock.Status != StockStatusAvailable {
		return nil, nil, NewInvalidStockStateError(stock.ID, string(stock.Status), "在庫が利用可能な状態ではありません")
	}

	quantity := in.Quantity
	if quantity == 0 {
		quantity = stock.Quantity
	}
	if quantity < 0 {
		return nil, nil, NewValidationError("quantity", "数量は正の値である必要があります", fmt.Sprintf("%d", quantity))
	}
	if quantity > stock.Quantity {
		return nil, nil, ErrInsufficientQuantity
	}

	before := stock.Quantity
	weightBefore := stock.WeightKg
	weightChange, weightAfter, err := outgoingWeight(stock.WeightKg, in.WeightKg)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	stock.Quantity = before - quantity
	stock.WeightKg = weightAfter
	stock.UpdatedAt = now
	if stock.Quantity == 0 {
		stock.Status = StockStatusDisposed
		stock.IsActive = false
	}
	if err := tx.UpdateStock(ctx, stock); err != nil {
		return nil, nil, NewStorageError("update_stock", "在庫更新に失敗しました", err)
	}

	movement := &StockMovement{
		ID:             NewID(),
		StockID:        stock.ID,
		Type:           MovementTypeOut,
		QuantityChange: -quantity,
		QuantityBefore: before,
		QuantityAfter:  stock.Quantity,
		WeightChange:   weightChange,
		WeightBefore:   weightBefore,
		WeightAfter:    weightAfter,
		ReferenceType:  in.ReferenceType,
		ReferenceID:    in.ReferenceID,
		Reason:         in.ReasonType,
		PerformedBy:    actorID,
		CreatedAt:      now,
	}
	if err := tx.CreateMovement(ctx, movement); err != nil {
		return nil, nil, NewStorageError("create_movement", "移動記録の作成に失敗しました", err)
	}

	return stock, movement, nil
}

// reserveTx flips a locked stock row from available to reserved
// tx内でロック済み在庫行をavailableからreservedへ遷移させる
func (l *Ledger) reserveTx(ctx context.Context, tx Tx, stockID string) (*Stock, error) {
	stock, err := tx.GetStockForUpdate(ctx, stockID)
	if err != nil {
		return nil, err
	}
	if !stock.IsActive {
		return nil, NewInvalidStockStateError(stock.ID, string(stock.Status), "在庫が非アクティブです")
	}
	if stock.Status != StockStatusAvailable {
		return nil, NewInvalidStockStateError(stock.ID, string(stock.Status), "予約できるのは利用可能な在庫のみです")
	}
	stock.Status = StockStatusReserved
	stock.UpdatedAt = time.Now()
	if err := tx.UpdateStock(ctx, stock); err != nil {
		return nil, NewStorageError("update_stock", "在庫更新に失敗しました", err)
	}
	return stock, nil
}

// releaseTx flips a locked stock row from reserved back to available
// tx内でロック済み在庫行をreservedからavailableへ戻す
func (l *Ledger) releaseTx(ctx context.Context, tx Tx, stockID string) (*Stock, error) {
	stock, err := tx.GetStockForUpdate(ctx, stockID)
	if err != nil {
		return nil, err
	}
	if stock.Status != StockStatusReserved {
		return nil, NewInvalidStockStateError(stock.ID, string(stock.Status), "予約解除できるのは予約済みの在庫のみです")
	}
	stock.Status = StockStatusAvailable
	stock.UpdatedAt = time.Now()
	if err := tx.UpdateStock(ctx, stock); err != nil {
		return nil, NewStorageError("update_stock", "在庫更新に失敗しました", err)
	}
	return stock, nil
}

// convertParentTx consumes one reserved parent lot and materializes its
// slitting outputs as new slitted lots, all inside the caller's transaction.
// Loss outputs create no stock; they are aggregated for the approval summary.
// 予約済み原反1本を消費し、スリット出力を新しいスリット品ロットとして
// 実体化する。ロス出力は在庫を作らず集計のみ行う。
func (l *Ledger) convertParentTx(ctx context.Context, tx Tx, parentStockID string, outputs []ConversionOutput, referenceType, referenceID, actorID string) (*conversionResult, error) {
	parent, err := tx.GetStockForUpdate(ctx, parentStockID)
	if err != nil {
		return nil, err
	}
	if !parent.IsActive {
		return nil, NewInvalidStockStateError(parent.ID, string(parent.Status), "在庫が非アクティブです")
	}
	if parent.Status != StockStatusReserved {
		return nil, NewInvalidStockStateError(parent.ID, string(parent.Status), "変換できるのは予約済みの原反のみです")
	}
	if !parent.IsParentRoll() {
		return nil, NewInvalidStockStateError(parent.ID, string(parent.Status), "変換できるのは原反のみです")
	}

	now := time.Now()
	before := parent.Quantity
	weightBefore := parent.WeightKg

	parent.Quantity = 0
	parent.WeightKg = zeroWeightIf(parent.WeightKg)
	parent.Status = StockStatusDisposed
	parent.IsActive = false
	parent.UpdatedAt = now
	if err := tx.UpdateStock(ctx, parent); err != nil {
		return nil, NewStorageError("update_stock", "原反在庫の更新に失敗しました", err)
	}

	consume := &StockMovement{
		ID:             NewID(),
		StockID:        parent.ID,
		Type:           MovementTypeOut,
		QuantityChange: -before,
		QuantityBefore: before,
		QuantityAfter:  0,
		WeightChange:   negateWeight(weightBefore),
		WeightBefore:   weightBefore,
		WeightAfter:    zeroWeightIf(weightBefore),
		ReferenceType:  referenceType,
		ReferenceID:    referenceID,
		Reason:         "スリット加工による消費",
		PerformedBy:    actorID,
		CreatedAt:      now,
	}
	if err := tx.CreateMovement(ctx, consume); err != nil {
		return nil, NewStorageError("create_movement", "移動記録の作成に失敗しました", err)
	}

	result := &conversionResult{Parent: parent}
	for i, out := range outputs {
		if err := ValidatePositiveQuantity(fmt.Sprintf("outputs[%d].quantity", i), out.Quantity); err != nil {
			return nil, err
		}
		if out.IsLoss {
			result.LossQty += out.Quantity
			result.LossWeightKg = addWeights(result.LossWeightKg, out.WeightKg)
			continue
		}
		if err := ValidateWidthMm(fmt.Sprintf("outputs[%d].width_mm", i), out.WidthMm); err != nil {
			return nil, err
		}

		batchNumber, err := l.nextBatchNumber(ctx, tx, batchPrefixSlitting)
		if err != nil {
			return nil, err
		}
		r, err := l.stockInTx(ctx, tx, StockInInput{
			ItemID:        parent.ItemID,
			LocationID:    parent.LocationID,
			WidthMm:       out.WidthMm,
			Condition:     ConditionSlitted,
			Quantity:      out.Quantity,
			WeightKg:      out.WeightKg,
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
			Reason:        "スリット加工による生成",
			ParentStockID: &parent.ID,
		}, actorID, batchNumber)
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, r.Stock)
		result.TotalOutputQty += out.Quantity
	}

	return result, nil
}

// recordAudit emits one fire-and-forget audit event
// 監査イベントを1件送出する（失敗してもワークフローには影響しない）
func (l *Ledger) recordAudit(ctx context.Context, action, table, targetID, actorID string, changes map[string]string) {
	if l.audit == nil {
		return
	}
	l.audit.Record(ctx, AuditEvent{
		Action:      action,
		Category:    "stock",
		TargetTable: table,
		TargetID:    targetID,
		ActorID:     actorID,
		Changes:     changes,
	})
}

// --- weight helpers / 重量計算ヘルパー ---

// zeroWeightIf returns decimal zero when the reference weight is tracked,
// null otherwise
// 参照重量が記録されている場合のみ0を返し、それ以外はnullを返す
func zeroWeightIf(ref decimal.NullDecimal) decimal.NullDecimal {
	if !ref.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.Zero)
}

// negateWeight negates a nullable weight
// null許容の重量の符号を反転する
func negateWeight(w decimal.NullDecimal) decimal.NullDecimal {
	if !w.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(w.Decimal.Neg())
}

// addWeights adds two nullable weights; null operands count as zero, but two
// nulls stay null
// null許容の重量を加算する。nullは0として扱うが、両方nullならnullのまま
func addWeights(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid && !b.Valid {
		return decimal.NullDecimal{}
	}
	av, bv := decimal.Zero, decimal.Zero
	if a.Valid {
		av = a.Decimal
	}
	if b.Valid {
		bv = b.Decimal
	}
	return decimal.NewNullDecimal(av.Add(bv))
}

// outgoingWeight computes the movement weight fields for a stock-out. Weight
// is tracked only when the lot itself tracks weight; taking out more weight
// than the lot holds is rejected before any write.
// 出庫時の移動記録の重量フィールドを計算する。
func outgoingWeight(stockWeight, outWeight decimal.NullDecimal) (change, after decimal.NullDecimal, err error) {
	if !stockWeight.Valid {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, nil
	}
	taken := stockWeight.Decimal
	if outWeight.Valid {
		taken = outWeight.Decimal
	}
	if taken.GreaterThan(stockWeight.Decimal) {
		return decimal.NullDecimal{}, decimal.NullDecimal{},
			NewValidationError("weight_kg", "在庫重量が不足しています", taken.String())
	}
	return decimal.NewNullDecimal(taken.Neg()),
		decimal.NewNullDecimal(stockWeight.Decimal.Sub(taken)), nil
}
