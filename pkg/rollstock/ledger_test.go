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

// TestLedger_StockIn は入庫で在庫ロットと初回移動記録が作成されることのテスト
func TestLedger_StockIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 5, weight(500))

	assert.Equal(t, rollstock.StockStatusAvailable, result.Stock.Status)
	assert.Equal(t, rollstock.ConditionParent, result.Stock.Condition)
	assert.True(t, result.Stock.IsActive)
	assert.Equal(t, int64(5), result.Stock.Quantity)

	// バッチ番号は日付スコープの連番
	expected := fmt.Sprintf("SI-%s-001", time.Now().Format("20060102"))
	assert.Equal(t, expected, result.BatchNumber)

	movements, err := env.ledger.GetMovements(ctx, result.Stock.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, rollstock.MovementTypeIn, movements[0].Type)
	assert.Equal(t, int64(0), movements[0].QuantityBefore)
	assert.Equal(t, int64(5), movements[0].QuantityAfter)
	assertConservation(t, movements)
}

// TestLedger_StockIn_InactiveItem は非アクティブ品目への入庫拒否のテスト
func TestLedger_StockIn_InactiveItem(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.StockIn(context.Background(), rollstock.StockInInput{
		ItemID:     "PAPER-OLD",
		LocationID: "WAREHOUSE-01",
		WidthMm:    1200,
		Condition:  rollstock.ConditionParent,
		Quantity:   1,
	}, "tester")

	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// TestLedger_StockOut_Partial は一部出庫後の残量と移動記録のテスト
func TestLedger_StockOut_Partial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 10, decimal.NullDecimal{})

	stock, movement, err := env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID:    result.Stock.ID,
		Quantity:   3,
		ReasonType: "sale",
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, int64(7), stock.Quantity)
	assert.Equal(t, rollstock.StockStatusAvailable, stock.Status)
	assert.Equal(t, int64(-3), movement.QuantityChange)

	movements, err := env.ledger.GetMovements(ctx, result.Stock.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assertConservation(t, movements)
}

// TestLedger_StockOut_FullDisposes は数量0指定で全量出庫され処分済みになることのテスト
func TestLedger_StockOut_FullDisposes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 4, decimal.NullDecimal{})

	stock, _, err := env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID:    result.Stock.ID,
		ReasonType: "disposal",
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, int64(0), stock.Quantity)
	assert.Equal(t, rollstock.StockStatusDisposed, stock.Status)
	assert.False(t, stock.IsActive)
}

// TestLedger_StockOut_Insufficient は在庫不足時の拒否と巻き戻しのテスト
func TestLedger_StockOut_Insufficient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 3, decimal.NullDecimal{})

	_, _, err := env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID:  result.Stock.ID,
		Quantity: 5,
	}, "tester")
	assert.ErrorIs(t, err, rollstock.ErrInsufficientQuantity)

	// 在庫は一切変更されていない
	stock, err := env.ledger.GetStock(ctx, result.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stock.Quantity)

	movements, err := env.ledger.GetMovements(ctx, result.Stock.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

// TestLedger_StockOut_NotAvailable は予約済み在庫の出庫拒否のテスト
func TestLedger_StockOut_NotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 2, decimal.NullDecimal{})
	_, err := env.ledger.Reserve(ctx, result.Stock.ID, "test", "ref-1", "tester")
	require.NoError(t, err)

	_, _, err = env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID:  result.Stock.ID,
		Quantity: 1,
	}, "tester")

	var ise *rollstock.InvalidStockStateError
	assert.ErrorAs(t, err, &ise)
}

// TestLedger_BulkStockIn_Numbering は一括入庫でバッチ番号が連番になることのテスト
func TestLedger_BulkStockIn_Numbering(t *testing.T) {
	env := newTestEnv(t)

	line := rollstock.StockInInput{
		ItemID:     "PAPER-A",
		LocationID: "WAREHOUSE-01",
		WidthMm:    1200,
		Condition:  rollstock.ConditionParent,
		Quantity:   1,
	}
	results, err := env.ledger.BulkStockIn(context.Background(),
		[]rollstock.StockInInput{line, line, line}, "tester")
	require.NoError(t, err)
	require.Len(t, results, 3)

	date := time.Now().Format("20060102")
	assert.Equal(t, fmt.Sprintf("SI-%s-001", date), results[0].BatchNumber)
	assert.Equal(t, fmt.Sprintf("SI-%s-002", date), results[1].BatchNumber)
	assert.Equal(t, fmt.Sprintf("SI-%s-003", date), results[2].BatchNumber)
}

// TestLedger_BulkStockOut_AllOrNothing は一括出庫の全か無か保証のテスト
func TestLedger_BulkStockOut_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.stockInParent(t, 1200, 5, decimal.NullDecimal{})
	second := env.stockInParent(t, 1200, 2, decimal.NullDecimal{})

	_, err := env.ledger.BulkStockOut(ctx, []rollstock.StockOutInput{
		{StockID: first.Stock.ID, Quantity: 3},
		{StockID: second.Stock.ID, Quantity: 10}, // 在庫不足で失敗する
	}, "tester")
	assert.ErrorIs(t, err, rollstock.ErrInsufficientQuantity)

	// 1行目の出庫も巻き戻されている
	stock, err := env.ledger.GetStock(ctx, first.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock.Quantity)
}

// TestLedger_ReserveRelease は予約と予約解除の遷移テスト
func TestLedger_ReserveRelease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 1, decimal.NullDecimal{})

	stock, err := env.ledger.Reserve(ctx, result.Stock.ID, "test", "ref-1", "tester")
	require.NoError(t, err)
	assert.Equal(t, rollstock.StockStatusReserved, stock.Status)

	// 二重予約は拒否される
	_, err = env.ledger.Reserve(ctx, result.Stock.ID, "test", "ref-2", "tester")
	var ise *rollstock.InvalidStockStateError
	assert.ErrorAs(t, err, &ise)

	stock, err = env.ledger.Release(ctx, result.Stock.ID, "test", "ref-1", "tester")
	require.NoError(t, err)
	assert.Equal(t, rollstock.StockStatusAvailable, stock.Status)
}

// TestLedger_TotalQuantityByItem は非アクティブロットが合計から除外されることのテスト
func TestLedger_TotalQuantityByItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.stockInParent(t, 1200, 5, decimal.NullDecimal{})
	disposed := env.stockInParent(t, 1000, 3, decimal.NullDecimal{})
	_, _, err := env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID: disposed.Stock.ID,
	}, "tester")
	require.NoError(t, err)

	total, err := env.ledger.TotalQuantityByItem(ctx, "PAPER-A")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

// TestLedger_StockOut_WeightTracking は重量追跡ロットの出庫重量計算のテスト
func TestLedger_StockOut_WeightTracking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.stockInParent(t, 1200, 10, weight(500))

	stock, movement, err := env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID:  result.Stock.ID,
		Quantity: 2,
		WeightKg: weight(100),
	}, "tester")
	require.NoError(t, err)

	require.True(t, stock.WeightKg.Valid)
	assert.True(t, stock.WeightKg.Decimal.Equal(decimal.NewFromInt(400)))
	require.True(t, movement.WeightChange.Valid)
	assert.True(t, movement.WeightChange.Decimal.Equal(decimal.NewFromInt(-100)))

	// 在庫重量を超える出庫は拒否される
	_, _, err = env.ledger.StockOut(ctx, rollstock.StockOutInput{
		StockID:  result.Stock.ID,
		Quantity: 1,
		WeightKg: weight(900),
	}, "tester")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)
}
