package rollstock_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

func ptrInt64(v int64) *int64 { return &v }
func ptrStr(v string) *string { return &v }

// createStockInOrder は入庫オーダーを1明細で作成する
func createStockInOrder(t *testing.T, env *testEnv, requestedQty int64) *rollstock.Order {
	t.Helper()
	order, err := env.orders.Create(context.Background(), rollstock.CreateOrderInput{
		Type:   rollstock.OrderTypeStockIn,
		Reason: rollstock.ReasonPurchase,
		Items: []rollstock.CreateOrderItemInput{{
			ItemID:       "PAPER-A",
			LocationID:   ptrStr("WAREHOUSE-01"),
			WidthMm:      ptrInt64(1200),
			RequestedQty: requestedQty,
		}},
	}, "tanaka")
	require.NoError(t, err)
	return order
}

// TestOrderWorkflow_StockInLifecycle は入庫オーダーの作成から承認までの一連のテスト。
// 現場確定数量が依頼数量より優先されて台帳へ反映される。
func TestOrderWorkflow_StockInLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 5)
	assert.Equal(t, rollstock.OrderStatusPending, order.Status)
	assert.Equal(t, fmt.Sprintf("OI-%s-001", time.Now().Format("20060102")), order.OrderNumber)
	require.Len(t, order.Items, 1)

	_, err := env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)

	// 現場で検品できたのは4本
	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, []rollstock.FieldResultInput{{
		OrderItemID:  order.Items[0].ID,
		ProcessedQty: ptrInt64(4),
	}}, "検品4本で確定", "suzuki")
	require.NoError(t, err)

	approved, err := env.orders.Approve(ctx, order.ID, "", "sato")
	require.NoError(t, err)
	assert.Equal(t, rollstock.OrderStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "sato", *approved.ApprovedBy)

	// 台帳には依頼数量の5ではなく現場確定数量の4が載る
	total, err := env.ledger.TotalQuantityByItem(ctx, "PAPER-A")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	histories, err := env.orders.GetHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, histories, 4)
	assert.Equal(t, rollstock.OrderActionCreated, histories[0].Action)
	assert.Equal(t, rollstock.OrderActionFieldCompleted, histories[2].Action)
	assert.Equal(t, "検品4本で確定", histories[2].Memo)
	assert.Equal(t, rollstock.OrderActionApproved, histories[3].Action)
}

// TestOrderWorkflow_StockOutApproval は出庫オーダー承認で台帳が減ることのテスト
func TestOrderWorkflow_StockOutApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stock := env.stockInParent(t, 1200, 10, decimal.NullDecimal{})

	order, err := env.orders.Create(ctx, rollstock.CreateOrderInput{
		Type:   rollstock.OrderTypeStockOut,
		Reason: rollstock.ReasonSale,
		Items: []rollstock.CreateOrderItemInput{{
			ItemID:       "PAPER-A",
			StockID:      &stock.Stock.ID,
			RequestedQty: 4,
		}},
	}, "tanaka")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OO-%s-001", time.Now().Format("20060102")), order.OrderNumber)

	_, err = env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, nil, "", "suzuki")
	require.NoError(t, err)
	_, err = env.orders.Approve(ctx, order.ID, "", "sato")
	require.NoError(t, err)

	remaining, err := env.ledger.GetStock(ctx, stock.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), remaining.Quantity)

	movements, err := env.ledger.GetMovements(ctx, stock.Stock.ID)
	require.NoError(t, err)
	assertConservation(t, movements)

	// 承認による出庫移動の理由にはオーダー番号が載る
	require.Len(t, movements, 2)
	assert.Equal(t, order.OrderNumber, movements[1].Reason)
	assert.Equal(t, order.ID, movements[1].ReferenceID)
}

// TestOrderWorkflow_CreateStockOutInsufficient は依頼時点の在庫不足チェックのテスト
func TestOrderWorkflow_CreateStockOutInsufficient(t *testing.T) {
	env := newTestEnv(t)

	stock := env.stockInParent(t, 1200, 3, decimal.NullDecimal{})

	_, err := env.orders.Create(context.Background(), rollstock.CreateOrderInput{
		Type:   rollstock.OrderTypeStockOut,
		Reason: rollstock.ReasonSale,
		Items: []rollstock.CreateOrderItemInput{{
			ItemID:       "PAPER-A",
			StockID:      &stock.Stock.ID,
			RequestedQty: 5,
		}},
	}, "tanaka")
	assert.ErrorIs(t, err, rollstock.ErrInsufficientQuantity)
}

// TestOrderWorkflow_InvalidReason はオーダー種別と理由の組み合わせ検証のテスト
func TestOrderWorkflow_InvalidReason(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.Create(context.Background(), rollstock.CreateOrderInput{
		Type:   rollstock.OrderTypeStockIn,
		Reason: rollstock.ReasonSale, // 出庫理由は入庫オーダーでは無効
		Items: []rollstock.CreateOrderItemInput{{
			ItemID:       "PAPER-A",
			LocationID:   ptrStr("WAREHOUSE-01"),
			WidthMm:      ptrInt64(1200),
			RequestedQty: 1,
		}},
	}, "tanaka")

	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// TestOrderWorkflow_ApproveRequiresAwaitingApproval は承認待ち以外からの承認拒否のテスト
func TestOrderWorkflow_ApproveRequiresAwaitingApproval(t *testing.T) {
	env := newTestEnv(t)

	order := createStockInOrder(t, env, 5)

	_, err := env.orders.Approve(context.Background(), order.ID, "", "sato")
	var sc *rollstock.StateConflictError
	assert.ErrorAs(t, err, &sc)
}

// TestOrderWorkflow_UrgentApprove はpendingからの直接承認テスト。
// 確定数量の書き込み・台帳反映・緊急フラグ設定が一度に行われる。
func TestOrderWorkflow_UrgentApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 3)
	assert.False(t, order.IsUrgent)

	approved, err := env.orders.UrgentApprove(ctx, order.ID, []rollstock.FieldResultInput{{
		OrderItemID:  order.Items[0].ID,
		ProcessedQty: ptrInt64(2),
	}}, "欠品対応", "sato")
	require.NoError(t, err)
	assert.Equal(t, rollstock.OrderStatusApproved, approved.Status)
	assert.True(t, approved.IsUrgent)

	// 依頼数量の3ではなく指定した確定数量の2が反映される
	total, err := env.ledger.TotalQuantityByItem(ctx, "PAPER-A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	histories, err := env.orders.GetHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, histories, 2)
	assert.Equal(t, rollstock.OrderActionUrgentApproved, histories[1].Action)
}

// TestOrderWorkflow_UrgentApprove_RequestedQty は確定数量指定なしの直接承認で
// 依頼数量がそのまま反映されることのテスト
func TestOrderWorkflow_UrgentApprove_RequestedQty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 3)

	approved, err := env.orders.UrgentApprove(ctx, order.ID, nil, "欠品対応", "sato")
	require.NoError(t, err)
	assert.True(t, approved.IsUrgent)

	total, err := env.ledger.TotalQuantityByItem(ctx, "PAPER-A")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

// TestOrderWorkflow_UrgentApprove_RequiresPending はpending以外からの直接承認拒否のテスト
func TestOrderWorkflow_UrgentApprove_RequiresPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 1)
	_, err := env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)

	_, err = env.orders.UrgentApprove(ctx, order.ID, nil, "", "sato")
	var sc *rollstock.StateConflictError
	assert.ErrorAs(t, err, &sc)
}

// TestOrderWorkflow_RejectRequiresMemo は却下時のメモ必須チェックのテスト
func TestOrderWorkflow_RejectRequiresMemo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 2)
	_, err := env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, nil, "", "suzuki")
	require.NoError(t, err)

	_, err = env.orders.Reject(ctx, order.ID, "  ", "sato")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)

	rejected, err := env.orders.Reject(ctx, order.ID, "発注書と数量が一致しない", "sato")
	require.NoError(t, err)
	assert.Equal(t, rollstock.OrderStatusRejected, rejected.Status)

	// 却下されたオーダーは台帳に触れていない
	total, err := env.ledger.TotalQuantityByItem(ctx, "PAPER-A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// TestOrderWorkflow_CancelTerminal は終端ステータスからの取消拒否のテスト
func TestOrderWorkflow_CancelTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 1)
	_, err := env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, nil, "", "suzuki")
	require.NoError(t, err)
	_, err = env.orders.Approve(ctx, order.ID, "", "sato")
	require.NoError(t, err)

	_, err = env.orders.Cancel(ctx, order.ID, "間違い", "tanaka")
	var sc *rollstock.StateConflictError
	assert.ErrorAs(t, err, &sc)
}

// TestOrderWorkflow_AtomicApproval は承認失敗時に全明細が巻き戻ることのテスト
func TestOrderWorkflow_AtomicApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.stockInParent(t, 1200, 5, decimal.NullDecimal{})
	second := env.stockInParent(t, 1000, 5, decimal.NullDecimal{})

	order, err := env.orders.Create(ctx, rollstock.CreateOrderInput{
		Type:   rollstock.OrderTypeStockOut,
		Reason: rollstock.ReasonSale,
		Items: []rollstock.CreateOrderItemInput{
			{ItemID: "PAPER-A", StockID: &first.Stock.ID, RequestedQty: 3},
			{ItemID: "PAPER-A", StockID: &second.Stock.ID, RequestedQty: 2},
		},
	}, "tanaka")
	require.NoError(t, err)

	_, err = env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, nil, "", "suzuki")
	require.NoError(t, err)

	// 2明細目の在庫を承認前に予約して出庫不能にする
	_, err = env.ledger.Reserve(ctx, second.Stock.ID, "test", "ref-1", "tester")
	require.NoError(t, err)

	_, err = env.orders.Approve(ctx, order.ID, "", "sato")
	require.Error(t, err)

	// 1明細目の出庫もオーダーの遷移も巻き戻されている
	stock, err := env.ledger.GetStock(ctx, first.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock.Quantity)

	reloaded, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.OrderStatusAwaitingApproval, reloaded.Status)
}

// TestOrderWorkflow_ZeroProcessedSkipsLine は現場確定0本の明細が台帳に触れないことのテスト
func TestOrderWorkflow_ZeroProcessedSkipsLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 5)
	_, err := env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, []rollstock.FieldResultInput{{
		OrderItemID:  order.Items[0].ID,
		ProcessedQty: ptrInt64(0),
	}}, "", "suzuki")
	require.NoError(t, err)

	approved, err := env.orders.Approve(ctx, order.ID, "", "sato")
	require.NoError(t, err)
	assert.Equal(t, rollstock.OrderStatusApproved, approved.Status)

	total, err := env.ledger.TotalQuantityByItem(ctx, "PAPER-A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// TestOrderWorkflow_CompleteField_UnknownLine は存在しない明細IDの拒否テスト
func TestOrderWorkflow_CompleteField_UnknownLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := createStockInOrder(t, env, 2)
	_, err := env.orders.StartFieldProcessing(ctx, order.ID, "suzuki")
	require.NoError(t, err)

	_, err = env.orders.CompleteFieldProcessing(ctx, order.ID, []rollstock.FieldResultInput{{
		OrderItemID:  "no-such-line",
		ProcessedQty: ptrInt64(1),
	}}, "", "suzuki")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)

	// 失敗した遷移は巻き戻されている
	reloaded, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.OrderStatusFieldProcessing, reloaded.Status)
}

// TestOrderWorkflow_List はステータス絞り込み付き一覧のテスト
func TestOrderWorkflow_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createStockInOrder(t, env, 1)
	cancelled := createStockInOrder(t, env, 1)
	_, err := env.orders.Cancel(ctx, cancelled.ID, "不要", "tanaka")
	require.NoError(t, err)

	pending := rollstock.OrderStatusPending
	orders, err := env.orders.List(ctx, &pending, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	all, err := env.orders.List(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
