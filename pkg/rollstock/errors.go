package rollstock

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
// 共通エラー定義

var (
	// ErrStockNotFound is returned when a stock lot doesn't exist
	// 在庫ロットが存在しない場合のエラー
	ErrStockNotFound = errors.New("在庫ロットが見つかりません")

	// ErrItemNotFound is returned when an item doesn't exist
	// 品目が存在しない場合のエラー
	ErrItemNotFound = errors.New("品目が見つかりません")

	// ErrLocationNotFound is returned when a location doesn't exist
	// 保管場所が存在しない場合のエラー
	ErrLocationNotFound = errors.New("保管場所が見つかりません")

	// ErrMachineNotFound is returned when a machine doesn't exist
	// 機械が存在しない場合のエラー
	ErrMachineNotFound = errors.New("機械が見つかりません")

	// ErrOrderNotFound is returned when an order doesn't exist
	// オーダーが存在しない場合のエラー
	ErrOrderNotFound = errors.New("オーダーが見つかりません")

	// ErrScheduleNotFound is returned when a slitting schedule doesn't exist
	// スケジュールが存在しない場合のエラー
	ErrScheduleNotFound = errors.New("スケジュールが見つかりません")

	// ErrJobNotFound is returned when a slitting job doesn't exist
	// ジョブが存在しない場合のエラー
	ErrJobNotFound = errors.New("ジョブが見つかりません")

	// ErrRollNotFound is returned when a job roll doesn't exist
	// ロールが存在しない場合のエラー
	ErrRollNotFound = errors.New("ロールが見つかりません")

	// ErrOutputNotFound is returned when an actual output doesn't exist
	// 実績出力が存在しない場合のエラー
	ErrOutputNotFound = errors.New("実績出力が見つかりません")

	// ErrInsufficientQuantity is returned when requested quantity exceeds current stock
	// 依頼数量が現在数量を超えている場合のエラー
	ErrInsufficientQuantity = errors.New("在庫数量が不足しています")

	// ErrCapacityExceeded is returned when registering more rolls than planned
	// 予定ロール本数を超えて登録しようとした場合のエラー
	ErrCapacityExceeded = errors.New("予定ロール本数を超えています")

	// ErrDuplicateRollStock is returned when the same stock is registered twice to one job
	// 同じ在庫を同一ジョブに二重登録しようとした場合のエラー
	ErrDuplicateRollStock = errors.New("この在庫は既にジョブへ登録されています")

	// ErrRollInProgress is returned when another roll on the same job is already in progress
	// 同一ジョブで別のロールが加工中の場合のエラー
	ErrRollInProgress = errors.New("別のロールが加工中です")

	// ErrMachineUnavailable is returned when starting a job on a machine under maintenance
	// メンテナンス中の機械でジョブを開始しようとした場合のエラー
	ErrMachineUnavailable = errors.New("機械がメンテナンス中です")

	// ErrWidthBudgetExceeded is returned when planned output widths exceed the parent width
	// 予定出力幅の合計が原反幅を超えている場合のエラー
	ErrWidthBudgetExceeded = errors.New("予定出力幅の合計が原反幅を超えています")
)

// ValidationError represents a malformed-input error with details.
// Always caller-facing, never retried.
// 詳細付きの入力バリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// StateConflictError represents an operation attempted from a status that
// does not permit it. Describes current vs required state.
// 現在ステータスが操作を許可していない場合のエラーを表現
type StateConflictError struct {
	Entity   string   `json:"entity"`   // エンティティ名
	EntityID string   `json:"entity_id"` // エンティティID
	Current  string   `json:"current"`  // 現在ステータス
	Required []string `json:"required"` // 要求ステータス
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("ステータス競合 [%s:%s]: 現在 %s、要求 %s",
		e.Entity, e.EntityID, e.Current, strings.Join(e.Required, "|"))
}

// InvalidStockStateError represents a ledger-level stock state violation
// (not available, wrong condition, inactive)
// 台帳レベルの在庫状態違反を表現（利用不可、状態不一致、非アクティブ）
type InvalidStockStateError struct {
	StockID string `json:"stock_id"` // 在庫ID
	Status  string `json:"status"`   // 現在ステータス
	Message string `json:"message"`  // エラーメッセージ
}

func (e *InvalidStockStateError) Error() string {
	return fmt.Sprintf("在庫状態エラー [%s]: %s (現在: %s)", e.StockID, e.Message, e.Status)
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// ConsistencyFaultError represents a partially committed transactional group.
// Never expected in correct operation; fatal, requires operator intervention.
// Retrying blindly would double-apply a quantity change.
// トランザクション単位が部分的にコミットされた致命的エラーを表現
type ConsistencyFaultError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e *ConsistencyFaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("整合性エラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("整合性エラー [%s]: %s", e.Operation, e.Message)
}

func (e *ConsistencyFaultError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// NewStateConflictError creates a new state conflict error
// 新しいステータス競合エラーを作成
func NewStateConflictError(entity, entityID, current string, required ...string) *StateConflictError {
	return &StateConflictError{Entity: entity, EntityID: entityID, Current: current, Required: required}
}

// NewInvalidStockStateError creates a new invalid stock state error
// 新しい在庫状態エラーを作成
func NewInvalidStockStateError(stockID, status, message string) *InvalidStockStateError {
	return &InvalidStockStateError{StockID: stockID, Status: status, Message: message}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{Operation: operation, Message: message, Cause: cause}
}

// NewConsistencyFault creates a new consistency fault error
// 新しい整合性エラーを作成
func NewConsistencyFault(operation, message string, cause error) *ConsistencyFaultError {
	return &ConsistencyFaultError{Operation: operation, Message: message, Cause: cause}
}

// IsCallerError reports whether the error is a caller-facing (4xx-equivalent)
// error rather than an internal fault
// エラーが呼び出し側起因（4xx相当）かどうかを返す
func IsCallerError(err error) bool {
	var ve *ValidationError
	var sc *StateConflictError
	var is *InvalidStockStateError
	if errors.As(err, &ve) || errors.As(err, &sc) || errors.As(err, &is) {
		return true
	}
	switch {
	case errors.Is(err, ErrStockNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrLocationNotFound),
		errors.Is(err, ErrMachineNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrScheduleNotFound),
		errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrRollNotFound),
		errors.Is(err, ErrOutputNotFound),
		errors.Is(err, ErrInsufficientQuantity),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrDuplicateRollStock),
		errors.Is(err, ErrRollInProgress),
		errors.Is(err, ErrMachineUnavailable),
		errors.Is(err, ErrWidthBudgetExceeded):
		return true
	}
	return false
}
