package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

// Handlers holds HTTP handlers for the roll stock API
// ロール在庫API用のHTTPハンドラーを保持
type Handlers struct {
	ledger   *rollstock.Ledger
	orders   *rollstock.OrderWorkflow
	slitting *rollstock.SlittingWorkflow
	storage  rollstock.Storage
	logger   *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(ledger *rollstock.Ledger, orders *rollstock.OrderWorkflow, slitting *rollstock.SlittingWorkflow, storage rollstock.Storage, logger *zap.Logger) *Handlers {
	return &Handlers{
		ledger:   ledger,
		orders:   orders,
		slitting: slitting,
		storage:  storage,
		logger:   logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// actorID extracts the acting user from the request header
// リクエストヘッダーから実行者を取り出す
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

// errorStatus maps a workflow error to an HTTP status code
// ワークフローエラーをHTTPステータスコードへ対応付ける
func errorStatus(err error) int {
	var ve *rollstock.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	if errors.Is(err, rollstock.ErrWidthBudgetExceeded) {
		return http.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(err, rollstock.ErrStockNotFound),
		errors.Is(err, rollstock.ErrItemNotFound),
		errors.Is(err, rollstock.ErrLocationNotFound),
		errors.Is(err, rollstock.ErrMachineNotFound),
		errors.Is(err, rollstock.ErrOrderNotFound),
		errors.Is(err, rollstock.ErrScheduleNotFound),
		errors.Is(err, rollstock.ErrJobNotFound),
		errors.Is(err, rollstock.ErrRollNotFound),
		errors.Is(err, rollstock.ErrOutputNotFound):
		return http.StatusNotFound
	}
	if rollstock.IsCallerError(err) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleError writes the error response and logs server faults
// エラーレスポンスを書き込み、サーバー起因のエラーはログに残す
func (h *Handlers) handleError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess writes a success response
// 成功レスポンスを書き込む
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

// sendError writes an error response
// エラーレスポンスを書き込む
func (h *Handlers) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
}

// decode parses the JSON request body
// JSONリクエストボディを解析する
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return false
	}
	return true
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.sendError(w, http.StatusServiceUnavailable, "ストレージに接続できません")
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "rollzai",
	})
}

// --- stock ledger / 在庫台帳 ---

// StockIn handles stock-in requests
// 入庫リクエストを処理
func (h *Handlers) StockIn(w http.ResponseWriter, r *http.Request) {
	var req rollstock.StockInInput
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.ledger.StockIn(r.Context(), req, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, result)
}

// BulkStockIn handles bulk stock-in requests
// 一括入庫リクエストを処理
func (h *Handlers) BulkStockIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []rollstock.StockInInput `json:"lines"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	results, err := h.ledger.BulkStockIn(r.Context(), req.Lines, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, results)
}

// StockOut handles stock-out requests
// 出庫リクエストを処理
func (h *Handlers) StockOut(w http.ResponseWriter, r *http.Request) {
	var req rollstock.StockOutInput
	if !h.decode(w, r, &req) {
		return
	}
	req.StockID = mux.Vars(r)["stockId"]
	stock, movement, err := h.ledger.StockOut(r.Context(), req, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"stock":    stock,
		"movement": movement,
	})
}

// BulkStockOut handles bulk stock-out requests
// 一括出庫リクエストを処理
func (h *Handlers) BulkStockOut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []rollstock.StockOutInput `json:"lines"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	movements, err := h.ledger.BulkStockOut(r.Context(), req.Lines, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, movements)
}

// GetStock handles stock lot retrieval
// 在庫ロット取得を処理
func (h *Handlers) GetStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.ledger.GetStock(r.Context(), mux.Vars(r)["stockId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, stock)
}

// GetMovements handles movement ledger retrieval
// 移動台帳取得を処理
func (h *Handlers) GetMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.ledger.GetMovements(r.Context(), mux.Vars(r)["stockId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, movements)
}

// ListStocksByItem handles per-item stock listing
// 品目別在庫一覧を処理
func (h *Handlers) ListStocksByItem(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.storage.ListStocksByItem(r.Context(), mux.Vars(r)["itemId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, stocks)
}

// GetTotalQuantity handles per-item total quantity retrieval
// 品目別合計数量取得を処理
func (h *Handlers) GetTotalQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]
	total, err := h.ledger.TotalQuantityByItem(r.Context(), itemID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"item_id": itemID,
		"total":   total,
	})
}

// --- orders / オーダー ---

// CreateOrder handles order creation
// オーダー作成を処理
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req rollstock.CreateOrderInput
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// memoRequest carries an optional or mandatory memo
// メモを運ぶリクエスト
type memoRequest struct {
	Memo string `json:"memo"`
}

// StartFieldProcessing handles the field work start transition
// 現場作業開始遷移を処理
func (h *Handlers) StartFieldProcessing(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.StartFieldProcessing(r.Context(), mux.Vars(r)["orderId"], actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// CompleteFieldProcessing handles the field result submission
// 現場実測結果の提出を処理
func (h *Handlers) CompleteFieldProcessing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Results []rollstock.FieldResultInput `json:"results"`
		Memo    string                       `json:"memo"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.CompleteFieldProcessing(r.Context(), mux.Vars(r)["orderId"], req.Results, req.Memo, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// ApproveOrder handles order approval
// オーダー承認を処理
func (h *Handlers) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	var req memoRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.Approve(r.Context(), mux.Vars(r)["orderId"], req.Memo, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// UrgentApproveOrder handles urgent order approval from pending
// 緊急オーダーの直接承認を処理
func (h *Handlers) UrgentApproveOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Results []rollstock.FieldResultInput `json:"results"`
		Memo    string                       `json:"memo"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.UrgentApprove(r.Context(), mux.Vars(r)["orderId"], req.Results, req.Memo, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// RejectOrder handles order rejection
// オーダー却下を処理
func (h *Handlers) RejectOrder(w http.ResponseWriter, r *http.Request) {
	var req memoRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.Reject(r.Context(), mux.Vars(r)["orderId"], req.Memo, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// CancelOrder handles order cancellation
// オーダー取消を処理
func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req memoRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.Cancel(r.Context(), mux.Vars(r)["orderId"], req.Memo, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// GetOrder handles order retrieval
// オーダー取得を処理
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, order)
}

// ListOrders handles order listing with optional status filter
// オーダー一覧（ステータス絞り込み可能）を処理
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *rollstock.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := rollstock.OrderStatus(s)
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.orders.List(r.Context(), status, limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, orders)
}

// GetOrderHistory handles order history retrieval
// オーダー履歴取得を処理
func (h *Handlers) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	histories, err := h.orders.GetHistory(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, histories)
}

// --- slitting / スリット加工 ---

// CreateSchedule handles schedule creation
// スケジュール作成を処理
func (h *Handlers) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduleDate time.Time `json:"schedule_date"`
		Notes        string    `json:"notes"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	schedule, err := h.slitting.CreateSchedule(r.Context(), req.ScheduleDate, req.Notes, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, schedule)
}

// AddJob handles job addition to a draft schedule
// 下書きスケジュールへのジョブ追加を処理
func (h *Handlers) AddJob(w http.ResponseWriter, r *http.Request) {
	var req rollstock.AddJobInput
	if !h.decode(w, r, &req) {
		return
	}
	job, err := h.slitting.AddJob(r.Context(), mux.Vars(r)["scheduleId"], req, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// PublishSchedule handles schedule publication
// スケジュール公開を処理
func (h *Handlers) PublishSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.slitting.PublishSchedule(r.Context(), mux.Vars(r)["scheduleId"], actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, schedule)
}

// CompleteSchedule handles schedule completion
// スケジュール完了を処理
func (h *Handlers) CompleteSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.slitting.CompleteSchedule(r.Context(), mux.Vars(r)["scheduleId"], actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, schedule)
}

// GetSchedule handles schedule retrieval
// スケジュール取得を処理
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.slitting.GetSchedule(r.Context(), mux.Vars(r)["scheduleId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, schedule)
}

// ListSchedules handles schedule listing
// スケジュール一覧を処理
func (h *Handlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	schedules, err := h.slitting.ListSchedules(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, schedules)
}

// ListJobs handles job listing of a schedule
// スケジュールのジョブ一覧を処理
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.slitting.ListJobs(r.Context(), mux.Vars(r)["scheduleId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, jobs)
}

// GetJob handles job retrieval
// ジョブ取得を処理
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.slitting.GetJob(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// MarkJobReady handles the job ready transition
// ジョブ準備完了遷移を処理
func (h *Handlers) MarkJobReady(w http.ResponseWriter, r *http.Request) {
	job, err := h.slitting.MarkJobReady(r.Context(), mux.Vars(r)["jobId"], actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// StartJob handles the job start transition
// ジョブ開始遷移を処理
func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID *string `json:"operator_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	job, err := h.slitting.StartJob(r.Context(), mux.Vars(r)["jobId"], req.OperatorID, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// CompleteJob finishes a job. Single-parent jobs take their measured outputs
// here; multi-roll jobs complete from their rolls and reject inline outputs.
// ジョブを完了する。single_parentは実測出力をここで受け取り、
// multi_rollはロールから完了する。
func (h *Handlers) CompleteJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outputs []rollstock.ActualOutputInput `json:"outputs"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	jobID := mux.Vars(r)["jobId"]
	job, err := h.slitting.GetJob(r.Context(), jobID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	switch job.Kind {
	case rollstock.JobKindSingleParent:
		job, err = h.slitting.CompleteJobV1(r.Context(), jobID, req.Outputs, actorID(r))
	case rollstock.JobKindMultiRoll:
		if len(req.Outputs) > 0 {
			h.sendError(w, http.StatusBadRequest, "multi_rollジョブの出力はロール単位で記録してください")
			return
		}
		job, err = h.slitting.CompleteJobV2(r.Context(), jobID, actorID(r))
	}
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, job)
}

// ApproveJob approves a completed job and returns the ledger summary
// 完了済みジョブを承認し台帳反映サマリを返す
func (h *Handlers) ApproveJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	job, err := h.slitting.GetJob(r.Context(), jobID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	var summary *rollstock.ApprovalSummary
	switch job.Kind {
	case rollstock.JobKindSingleParent:
		summary, err = h.slitting.ApproveJobV1(r.Context(), jobID, actorID(r))
	case rollstock.JobKindMultiRoll:
		summary, err = h.slitting.ApproveJobV2(r.Context(), jobID, actorID(r))
	}
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, summary)
}

// RegisterRoll handles roll registration on a multi-roll job
// 複数ロールジョブへのロール登録を処理
func (h *Handlers) RegisterRoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockID string `json:"stock_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	roll, err := h.slitting.RegisterRoll(r.Context(), mux.Vars(r)["jobId"], req.StockID, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, roll)
}

// ListRolls handles roll listing of a job
// ジョブのロール一覧を処理
func (h *Handlers) ListRolls(w http.ResponseWriter, r *http.Request) {
	rolls, err := h.slitting.ListRolls(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, rolls)
}

// ListOutputs handles actual output listing of a job
// ジョブの実績出力一覧を処理
func (h *Handlers) ListOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := h.slitting.ListOutputs(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, outputs)
}

// StartRoll handles the roll start transition
// ロール開始遷移を処理
func (h *Handlers) StartRoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID *string `json:"operator_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	roll, err := h.slitting.StartRoll(r.Context(), mux.Vars(r)["rollId"], req.OperatorID, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, roll)
}

// RecordOutput handles output recording against an in-progress roll
// 加工中ロールへの実測出力記録を処理
func (h *Handlers) RecordOutput(w http.ResponseWriter, r *http.Request) {
	var req rollstock.ActualOutputInput
	if !h.decode(w, r, &req) {
		return
	}
	output, err := h.slitting.RecordOutput(r.Context(), mux.Vars(r)["rollId"], req, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, output)
}

// UpdateOutput handles output correction before approval
// 承認前の実測出力修正を処理
func (h *Handlers) UpdateOutput(w http.ResponseWriter, r *http.Request) {
	var req rollstock.ActualOutputInput
	if !h.decode(w, r, &req) {
		return
	}
	output, err := h.slitting.UpdateOutput(r.Context(), mux.Vars(r)["outputId"], req, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, output)
}

// CompleteRoll handles the roll completion transition
// ロール完了遷移を処理
func (h *Handlers) CompleteRoll(w http.ResponseWriter, r *http.Request) {
	roll, err := h.slitting.CompleteRoll(r.Context(), mux.Vars(r)["rollId"], actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, roll)
}

// CancelRoll handles roll cancellation with reserved stock release
// 予約解除を伴うロール取消を処理
func (h *Handlers) CancelRoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	roll, err := h.slitting.CancelRoll(r.Context(), mux.Vars(r)["rollId"], req.Reason, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, roll)
}

// GetSlittingHistory handles slitting history retrieval
// スリット履歴取得を処理
func (h *Handlers) GetSlittingHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	histories, err := h.slitting.GetHistory(r.Context(), vars["entityType"], vars["entityId"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.sendSuccess(w, histories)
}
