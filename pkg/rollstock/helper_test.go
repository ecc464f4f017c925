package rollstock_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fujimino/rollzai/pkg/rollstock"
	"github.com/fujimino/rollzai/pkg/rollstock/storage"
)

// testEnv はインメモリストレージで全サービスを組み立てたテスト環境
type testEnv struct {
	store    *storage.MemoryStorage
	ledger   *rollstock.Ledger
	orders   *rollstock.OrderWorkflow
	slitting *rollstock.SlittingWorkflow
}

// newTestEnv はマスタデータ投入済みのテスト環境を作成する
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStorage()
	now := time.Now()
	store.SeedItem(rollstock.Item{
		ID: "PAPER-A", Name: "上質紙A", Code: "PA-001",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	store.SeedItem(rollstock.Item{
		ID: "PAPER-B", Name: "上質紙B", Code: "PB-001",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	store.SeedItem(rollstock.Item{
		ID: "PAPER-OLD", Name: "廃番品", Code: "PX-001",
		IsActive: false, CreatedAt: now, UpdatedAt: now,
	})
	store.SeedLocation(rollstock.Location{
		ID: "WAREHOUSE-01", Name: "第一倉庫", Type: "warehouse",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	store.SeedMachine(rollstock.Machine{
		ID: "SLITTER-01", Name: "1号スリッター", Status: rollstock.MachineStatusIdle,
		UpdatedAt: now,
	})
	store.SeedMachine(rollstock.Machine{
		ID: "SLITTER-MAINT", Name: "整備中スリッター", Status: rollstock.MachineStatusMaintenance,
		UpdatedAt: now,
	})

	logger := zap.NewNop()
	ledger := rollstock.NewLedger(store, rollstock.NopAuditSink{}, logger)
	return &testEnv{
		store:    store,
		ledger:   ledger,
		orders:   rollstock.NewOrderWorkflow(store, ledger, rollstock.NopAuditSink{}, logger),
		slitting: rollstock.NewSlittingWorkflow(store, ledger, rollstock.NopAuditSink{}, logger),
	}
}

// stockInParent は原反ロットを1件入庫する
func (e *testEnv) stockInParent(t *testing.T, widthMm, quantity int64, weightKg decimal.NullDecimal) *rollstock.StockInResult {
	t.Helper()
	result, err := e.ledger.StockIn(context.Background(), rollstock.StockInInput{
		ItemID:     "PAPER-A",
		LocationID: "WAREHOUSE-01",
		WidthMm:    widthMm,
		Condition:  rollstock.ConditionParent,
		Quantity:   quantity,
		WeightKg:   weightKg,
		Reason:     "仕入",
	}, "tester")
	require.NoError(t, err)
	return result
}

// assertConservation は移動台帳の数量保存則を検証する
func assertConservation(t *testing.T, movements []rollstock.StockMovement) {
	t.Helper()
	for i, m := range movements {
		assert.Equal(t, m.QuantityBefore+m.QuantityChange, m.QuantityAfter,
			"移動 %d 件目の数量保存則が成立していません", i+1)
		if i > 0 {
			assert.Equal(t, movements[i-1].QuantityAfter, m.QuantityBefore,
				"移動 %d 件目が直前の残高と連鎖していません", i+1)
		}
	}
}

// weight はテスト用のnull許容重量を作る
func weight(kg int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(kg))
}
