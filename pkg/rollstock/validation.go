package rollstock

import (
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateEntityID バリデーション: エンティティIDの形式
func ValidateEntityID(field, id string) error {
	if id == "" {
		return NewValidationError(field, "IDが空です", id)
	}
	if len(id) > 64 {
		return NewValidationError(field, "IDが長すぎます", id)
	}
	if !idPattern.MatchString(id) {
		return NewValidationError(field, "IDに無効な文字が含まれています", id)
	}
	return nil
}

// ValidatePositiveQuantity バリデーション: 数量が正であること
func ValidatePositiveQuantity(field string, quantity int64) error {
	if quantity <= 0 {
		return NewValidationError(field, "数量は正の値である必要があります", fmt.Sprintf("%d", quantity))
	}
	if quantity > 999999999 {
		return NewValidationError(field, "数量が有効範囲を超えています", fmt.Sprintf("%d", quantity))
	}
	return nil
}

// ValidateWidthMm バリデーション: 幅（mm）
func ValidateWidthMm(field string, widthMm int64) error {
	if widthMm <= 0 {
		return NewValidationError(field, "幅は正の値である必要があります", fmt.Sprintf("%d", widthMm))
	}
	// 一般的なスリッター機の上限を超える幅は入力ミスとみなす
	if widthMm > 10000 {
		return NewValidationError(field, "幅が有効範囲を超えています", fmt.Sprintf("%d", widthMm))
	}
	return nil
}

// ValidateActorID バリデーション: 実行者ID
func ValidateActorID(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return NewValidationError("actor_id", "実行者IDが指定されていません", actorID)
	}
	return nil
}

// ValidateRequiredMemo バリデーション: 必須メモ（却下時など）
func ValidateRequiredMemo(memo string) error {
	if strings.TrimSpace(memo) == "" {
		return NewValidationError("memo", "メモは必須です", memo)
	}
	return nil
}

// ValidateOrderReason バリデーション: オーダー種別と理由の組み合わせ
func ValidateOrderReason(orderType OrderType, reason OrderReason) error {
	if orderType != OrderTypeStockIn && orderType != OrderTypeStockOut {
		return NewValidationError("type", "無効なオーダー種別です", string(orderType))
	}
	if !ValidReason(orderType, reason) {
		return NewValidationError("reason", "オーダー種別に対して無効な理由です", string(reason))
	}
	return nil
}
