package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

const orderColumns = `id, order_number, type, status, reason, is_urgent, partner_id, amount,
		requested_by, processed_by, approved_by, memo, created_at, updated_at`

// scanOrder scans one order row without its lines
// オーダー行を明細抜きで1件スキャンする
func scanOrder(row interface{ Scan(...interface{}) error }) (*rollstock.Order, error) {
	order := &rollstock.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Type,
		&order.Status,
		&order.Reason,
		&order.IsUrgent,
		&order.PartnerID,
		&order.Amount,
		&order.RequestedBy,
		&order.ProcessedBy,
		&order.ApprovedBy,
		&order.Memo,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrOrderNotFound
		}
		return nil, fmt.Errorf("オーダー取得に失敗しました: %w", err)
	}
	return order, nil
}

// GetOrder retrieves one order with its lines
// オーダーを明細付きで1件取得
func (q querier) GetOrder(ctx context.Context, orderID string) (*rollstock.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(q.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = q.listOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderForUpdate retrieves one order with its lines and a row lock on the order
// オーダーを行ロック付きで明細ごと取得
func (t *pgTx) GetOrderForUpdate(ctx context.Context, orderID string) (*rollstock.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(t.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = t.listOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders retrieves orders newest first, optionally filtered by status
// オーダー一覧を新しい順に取得（ステータス絞り込み可能）
func (q querier) ListOrders(ctx context.Context, status *rollstock.OrderStatus, limit int) ([]rollstock.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT %d`, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("オーダー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var orders []rollstock.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = q.listOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// listOrderItems retrieves the lines of an order in insertion order
// オーダーの明細行を挿入順で取得
func (q querier) listOrderItems(ctx context.Context, orderID string) ([]rollstock.OrderItem, error) {
	query := `
		SELECT id, order_id, item_id, stock_id, location_id, width_mm,
			requested_qty, requested_weight_kg, processed_qty, processed_weight_kg, notes
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("オーダー明細の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []rollstock.OrderItem
	for rows.Next() {
		item := rollstock.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ItemID,
			&item.StockID,
			&item.LocationID,
			&item.WidthMm,
			&item.RequestedQty,
			&item.RequestedWeightKg,
			&item.ProcessedQty,
			&item.ProcessedWeightKg,
			&item.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("オーダー明細のスキャンに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateOrder inserts a new order
// 新しいオーダーを挿入
func (q querier) CreateOrder(ctx context.Context, order *rollstock.Order) error {
	query := `
		INSERT INTO orders (id, order_number, type, status, reason, is_urgent, partner_id, amount,
			requested_by, processed_by, approved_by, memo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := q.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.Type,
		order.Status,
		order.Reason,
		order.IsUrgent,
		order.PartnerID,
		order.Amount,
		order.RequestedBy,
		order.ProcessedBy,
		order.ApprovedBy,
		order.Memo,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("オーダー番号は既に存在します")
		}
		return fmt.Errorf("オーダー作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateOrder updates an existing order's workflow fields
// 既存オーダーのワークフロー項目を更新
func (q querier) UpdateOrder(ctx context.Context, order *rollstock.Order) error {
	query := `
		UPDATE orders
		SET status = $2, processed_by = $3, approved_by = $4, memo = $5, updated_at = $6
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query,
		order.ID,
		order.Status,
		order.ProcessedBy,
		order.ApprovedBy,
		order.Memo,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("オーダー更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrOrderNotFound
	}
	return nil
}

// CreateOrderItem inserts one order line
// オーダー明細を1件挿入
func (q querier) CreateOrderItem(ctx context.Context, item *rollstock.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, item_id, stock_id, location_id, width_mm,
			requested_qty, requested_weight_kg, processed_qty, processed_weight_kg, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := q.db.ExecContext(ctx, query,
		item.ID,
		item.OrderID,
		item.ItemID,
		item.StockID,
		item.LocationID,
		item.WidthMm,
		item.RequestedQty,
		item.RequestedWeightKg,
		item.ProcessedQty,
		item.ProcessedWeightKg,
		item.Notes,
	)
	if err != nil {
		return fmt.Errorf("オーダー明細の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateOrderItem updates one order line's field results
// オーダー明細の現場実測値を更新
func (q querier) UpdateOrderItem(ctx context.Context, item *rollstock.OrderItem) error {
	query := `
		UPDATE order_items
		SET processed_qty = $2, processed_weight_kg = $3
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query, item.ID, item.ProcessedQty, item.ProcessedWeightKg)
	if err != nil {
		return fmt.Errorf("オーダー明細の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrOrderNotFound
	}
	return nil
}

// CreateOrderHistory appends one immutable transition record
// 不変の遷移記録を1件追記
func (q querier) CreateOrderHistory(ctx context.Context, history *rollstock.OrderHistory) error {
	query := `
		INSERT INTO order_histories (id, order_id, action, previous_status, new_status,
			actor_id, memo, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := q.db.ExecContext(ctx, query,
		history.ID,
		history.OrderID,
		history.Action,
		history.PreviousStatus,
		history.NewStatus,
		history.ActorID,
		history.Memo,
		history.Changes,
		history.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("オーダー履歴の作成に失敗しました: %w", err)
	}
	return nil
}

// ListOrderHistories retrieves the transition history of an order in creation order
// オーダーの遷移履歴を作成順で取得
func (q querier) ListOrderHistories(ctx context.Context, orderID string) ([]rollstock.OrderHistory, error) {
	query := `
		SELECT id, order_id, action, previous_status, new_status, actor_id, memo, changes, created_at
		FROM order_histories
		WHERE order_id = $1
		ORDER BY created_at, id`

	rows, err := q.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("オーダー履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var histories []rollstock.OrderHistory
	for rows.Next() {
		h := rollstock.OrderHistory{}
		err := rows.Scan(
			&h.ID,
			&h.OrderID,
			&h.Action,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.ActorID,
			&h.Memo,
			&h.Changes,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("オーダー履歴のスキャンに失敗しました: %w", err)
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

// CountOrderNumbers counts orders whose order number starts with the prefix
// オーダー番号がプレフィックスで始まるオーダー数を数える
func (q querier) CountOrderNumbers(ctx context.Context, prefix string) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE order_number LIKE $1 || '%'`
	var count int
	if err := q.db.QueryRowContext(ctx, query, prefix).Scan(&count); err != nil {
		return 0, fmt.Errorf("オーダー番号の集計に失敗しました: %w", err)
	}
	return count, nil
}
