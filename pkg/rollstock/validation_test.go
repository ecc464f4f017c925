package rollstock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateEntityID はエンティティID形式バリデーションのテスト
func TestValidateEntityID(t *testing.T) {
	assert.NoError(t, ValidateEntityID("item_id", "PAPER-A"))
	assert.NoError(t, ValidateEntityID("item_id", "abc_123-XYZ"))

	assert.Error(t, ValidateEntityID("item_id", ""))
	assert.Error(t, ValidateEntityID("item_id", "日本語ID"))
	assert.Error(t, ValidateEntityID("item_id", "has space"))
	assert.Error(t, ValidateEntityID("item_id", strings.Repeat("a", 65)))
}

// TestValidatePositiveQuantity は数量バリデーションのテスト
func TestValidatePositiveQuantity(t *testing.T) {
	assert.NoError(t, ValidatePositiveQuantity("quantity", 1))
	assert.NoError(t, ValidatePositiveQuantity("quantity", 999999999))

	assert.Error(t, ValidatePositiveQuantity("quantity", 0))
	assert.Error(t, ValidatePositiveQuantity("quantity", -1))
	assert.Error(t, ValidatePositiveQuantity("quantity", 1000000000))
}

// TestValidateWidthMm は幅バリデーションのテスト
func TestValidateWidthMm(t *testing.T) {
	assert.NoError(t, ValidateWidthMm("width_mm", 1))
	assert.NoError(t, ValidateWidthMm("width_mm", 10000))

	assert.Error(t, ValidateWidthMm("width_mm", 0))
	assert.Error(t, ValidateWidthMm("width_mm", -100))
	assert.Error(t, ValidateWidthMm("width_mm", 10001))
}

// TestValidateRequiredMemo は必須メモバリデーションのテスト
func TestValidateRequiredMemo(t *testing.T) {
	assert.NoError(t, ValidateRequiredMemo("数量不一致のため"))

	assert.Error(t, ValidateRequiredMemo(""))
	assert.Error(t, ValidateRequiredMemo("   "))
}

// TestValidReason はオーダー種別と理由の組み合わせ判定のテスト
func TestValidReason(t *testing.T) {
	assert.True(t, ValidReason(OrderTypeStockIn, ReasonPurchase))
	assert.True(t, ValidReason(OrderTypeStockIn, ReasonAdjustmentIn))
	assert.True(t, ValidReason(OrderTypeStockOut, ReasonSale))
	assert.True(t, ValidReason(OrderTypeStockOut, ReasonDisposal))

	// 理由セットは互いに素
	assert.False(t, ValidReason(OrderTypeStockIn, ReasonSale))
	assert.False(t, ValidReason(OrderTypeStockOut, ReasonPurchase))
	assert.False(t, ValidReason(OrderType("move"), ReasonPurchase))
}

// TestIsCallerError はエラー分類のテスト
func TestIsCallerError(t *testing.T) {
	assert.True(t, IsCallerError(ErrStockNotFound))
	assert.True(t, IsCallerError(ErrInsufficientQuantity))
	assert.True(t, IsCallerError(ErrWidthBudgetExceeded))
	assert.True(t, IsCallerError(NewValidationError("f", "m", "v")))
	assert.True(t, IsCallerError(NewStateConflictError("order", "o-1", "pending", "awaiting_approval")))
	assert.True(t, IsCallerError(NewInvalidStockStateError("s-1", "reserved", "m")))

	assert.False(t, IsCallerError(NewStorageError("op", "m", nil)))
	assert.False(t, IsCallerError(NewConsistencyFault("op", "m", nil)))
}

// TestEffectiveQty は現場確定数量が依頼数量より優先されることのテスト
func TestEffectiveQty(t *testing.T) {
	item := OrderItem{RequestedQty: 5}
	assert.Equal(t, int64(5), item.EffectiveQty())

	processed := int64(4)
	item.ProcessedQty = &processed
	assert.Equal(t, int64(4), item.EffectiveQty())

	zero := int64(0)
	item.ProcessedQty = &zero
	assert.Equal(t, int64(0), item.EffectiveQty())
}
