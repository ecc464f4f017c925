package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

// TestMemoryStorage_WithinTxRollback はエラー時にトランザクション内の全書き込みが
// 巻き戻されることのテスト
func TestMemoryStorage_WithinTxRollback(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx rollstock.Tx) error {
		if err := tx.CreateStock(ctx, &rollstock.Stock{ID: "stock-1", ItemID: "PAPER-A"}); err != nil {
			return err
		}
		if err := tx.CreateMovement(ctx, &rollstock.StockMovement{ID: "mv-1", StockID: "stock-1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetStock(ctx, "stock-1")
	assert.ErrorIs(t, err, rollstock.ErrStockNotFound)
	movements, err := store.ListMovementsByStock(ctx, "stock-1")
	require.NoError(t, err)
	assert.Empty(t, movements)
}

// TestMemoryStorage_WithinTxCommit は正常終了時に書き込みが残ることのテスト
func TestMemoryStorage_WithinTxCommit(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx rollstock.Tx) error {
		return tx.CreateStock(ctx, &rollstock.Stock{ID: "stock-1", ItemID: "PAPER-A", Quantity: 3})
	})
	require.NoError(t, err)

	stock, err := store.GetStock(ctx, "stock-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stock.Quantity)
}

// TestMemoryStorage_SequenceCounters は連番カウンタのテスト
func TestMemoryStorage_SequenceCounters(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx rollstock.Tx) error {
		if err := tx.CreateStock(ctx, &rollstock.Stock{ID: "s-1", BatchNumber: "SI-20260831-001"}); err != nil {
			return err
		}
		if err := tx.CreateStock(ctx, &rollstock.Stock{ID: "s-2", BatchNumber: "SI-20260831-002"}); err != nil {
			return err
		}
		if err := tx.CreateStock(ctx, &rollstock.Stock{ID: "s-3", BatchNumber: "SL-20260831-001"}); err != nil {
			return err
		}
		if err := tx.CreateJob(ctx, &rollstock.SlittingJob{ID: "j-1", ScheduleID: "sch-1", Seq: 2}); err != nil {
			return err
		}
		return tx.CreateRoll(ctx, &rollstock.SlittingJobRoll{ID: "r-1", JobID: "j-1", Seq: 4})
	})
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx rollstock.Tx) error {
		count, err := tx.CountBatchNumbers(ctx, "SI-20260831-")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = tx.CountBatchNumbers(ctx, "SL-20260831-")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		seq, err := tx.MaxJobSeq(ctx, "sch-1")
		require.NoError(t, err)
		assert.Equal(t, 2, seq)

		seq, err = tx.MaxRollSeq(ctx, "j-1")
		require.NoError(t, err)
		assert.Equal(t, 4, seq)
		return nil
	})
	require.NoError(t, err)
}

// TestMemoryStorage_UpdateMachine は機械ステータス更新と未登録機械の拒否のテスト
func TestMemoryStorage_UpdateMachine(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	store.SeedMachine(rollstock.Machine{ID: "SLITTER-01", Status: rollstock.MachineStatusIdle})

	err := store.WithinTx(ctx, func(tx rollstock.Tx) error {
		machine, err := tx.GetMachineForUpdate(ctx, "SLITTER-01")
		if err != nil {
			return err
		}
		machine.Status = rollstock.MachineStatusRunning
		return tx.UpdateMachine(ctx, machine)
	})
	require.NoError(t, err)

	machine, err := store.GetMachine(ctx, "SLITTER-01")
	require.NoError(t, err)
	assert.Equal(t, rollstock.MachineStatusRunning, machine.Status)

	err = store.WithinTx(ctx, func(tx rollstock.Tx) error {
		return tx.UpdateMachine(ctx, &rollstock.Machine{ID: "NO-SUCH-MACHINE"})
	})
	assert.ErrorIs(t, err, rollstock.ErrMachineNotFound)
}

// TestMemoryStorage_OrderItemsDetached はオーダー本体と明細が別管理であることのテスト
func TestMemoryStorage_OrderItemsDetached(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	now := time.Now()
	err := store.WithinTx(ctx, func(tx rollstock.Tx) error {
		order := &rollstock.Order{
			ID:          "o-1",
			OrderNumber: "OI-20260831-001",
			Status:      rollstock.OrderStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.CreateOrderItem(ctx, &rollstock.OrderItem{ID: "oi-1", OrderID: "o-1", ItemID: "PAPER-A", RequestedQty: 2})
	})
	require.NoError(t, err)

	order, err := store.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "oi-1", order.Items[0].ID)
}
