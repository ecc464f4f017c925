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

// newDraftSchedule は下書きスケジュールを1件作成する
func newDraftSchedule(t *testing.T, env *testEnv) *rollstock.SlittingSchedule {
	t.Helper()
	schedule, err := env.slitting.CreateSchedule(context.Background(), time.Now(), "", "yamada")
	require.NoError(t, err)
	return schedule
}

// addMultiRollJob は複数ロールジョブを追加する
func addMultiRollJob(t *testing.T, env *testEnv, scheduleID string, parentWidth int64, rollCount int, machineID *string) *rollstock.SlittingJob {
	t.Helper()
	itemID := "PAPER-A"
	job, err := env.slitting.AddJob(context.Background(), scheduleID, rollstock.AddJobInput{
		Kind:             rollstock.JobKindMultiRoll,
		MachineID:        machineID,
		ItemID:           &itemID,
		ParentWidthMm:    &parentWidth,
		PlannedRollCount: &rollCount,
		PlannedOutputs: []rollstock.PlannedOutputInput{
			{WidthMm: 450, Quantity: 2},
		},
	}, "yamada")
	require.NoError(t, err)
	return job
}

// TestSlittingWorkflow_SingleParentLifecycle はsingle_parentジョブの一連のテスト。
// ジョブ追加で原反が予約され、承認で消費とスリット品生成が同時にコミットされる。
func TestSlittingWorkflow_SingleParentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1200, 1, weight(500))
	schedule := newDraftSchedule(t, env)

	machineID := "SLITTER-01"
	job, err := env.slitting.AddJob(ctx, schedule.ID, rollstock.AddJobInput{
		Kind:          rollstock.JobKindSingleParent,
		MachineID:     &machineID,
		ParentStockID: &parent.Stock.ID,
	}, "yamada")
	require.NoError(t, err)
	assert.Equal(t, rollstock.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Seq)

	// ジョブ追加で原反が予約されている
	stock, err := env.ledger.GetStock(ctx, parent.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.StockStatusReserved, stock.Status)

	_, err = env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)

	operator := "suzuki"
	started, err := env.slitting.StartJob(ctx, job.ID, &operator, "suzuki")
	require.NoError(t, err)
	assert.Equal(t, rollstock.JobStatusInProgress, started.Status)

	// ジョブ開始で機械はrunning、スケジュールはin_progress
	machine, err := env.store.GetMachine(ctx, machineID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.MachineStatusRunning, machine.Status)
	reloaded, err := env.slitting.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.ScheduleStatusInProgress, reloaded.Status)

	_, err = env.slitting.CompleteJobV1(ctx, job.ID, []rollstock.ActualOutputInput{
		{WidthMm: 500, Quantity: 2, WeightKg: weight(400)},
		{WidthMm: 150, Quantity: 1, WeightKg: weight(60)},
		{WidthMm: 50, Quantity: 1, IsLoss: true, WeightKg: weight(20)},
	}, "suzuki")
	require.NoError(t, err)

	// ジョブ完了で機械はidleへ戻る
	machine, err = env.store.GetMachine(ctx, machineID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.MachineStatusIdle, machine.Status)

	summary, err := env.slitting.ApproveJobV1(ctx, job.ID, "sato")
	require.NoError(t, err)
	assert.Equal(t, []string{parent.Stock.ID}, summary.ConsumedStocks)
	assert.Len(t, summary.CreatedStocks, 2)
	assert.Equal(t, int64(3), summary.TotalOutputQty)
	assert.Equal(t, int64(1), summary.LossQty)
	assert.Equal(t, "25", summary.LossPercent.String())

	// 原反は消費され、スリット品が原反への参照を持って生成されている
	consumed, err := env.ledger.GetStock(ctx, parent.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), consumed.Quantity)
	assert.Equal(t, rollstock.StockStatusDisposed, consumed.Status)
	assert.False(t, consumed.IsActive)

	for _, created := range summary.CreatedStocks {
		assert.Equal(t, rollstock.ConditionSlitted, created.Condition)
		require.NotNil(t, created.ParentStockID)
		assert.Equal(t, parent.Stock.ID, *created.ParentStockID)
	}

	movements, err := env.ledger.GetMovements(ctx, parent.Stock.ID)
	require.NoError(t, err)
	assertConservation(t, movements)

	_, err = env.slitting.CompleteSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
}

// TestSlittingWorkflow_AddJob_WidthBudget は予定出力幅の合計が原反幅を超える場合の拒否テスト
func TestSlittingWorkflow_AddJob_WidthBudget(t *testing.T) {
	env := newTestEnv(t)
	schedule := newDraftSchedule(t, env)

	itemID := "PAPER-A"
	parentWidth := int64(1000)
	rollCount := 1
	_, err := env.slitting.AddJob(context.Background(), schedule.ID, rollstock.AddJobInput{
		Kind:             rollstock.JobKindMultiRoll,
		ItemID:           &itemID,
		ParentWidthMm:    &parentWidth,
		PlannedRollCount: &rollCount,
		PlannedOutputs: []rollstock.PlannedOutputInput{
			{WidthMm: 400, Quantity: 2},
			{WidthMm: 300, Quantity: 1}, // 合計1100 > 1000
		},
	}, "yamada")

	assert.ErrorIs(t, err, rollstock.ErrWidthBudgetExceeded)
}

// TestSlittingWorkflow_PublishEmptySchedule はジョブのないスケジュールの公開拒否テスト
func TestSlittingWorkflow_PublishEmptySchedule(t *testing.T) {
	env := newTestEnv(t)
	schedule := newDraftSchedule(t, env)

	_, err := env.slitting.PublishSchedule(context.Background(), schedule.ID, "yamada")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// TestSlittingWorkflow_MultiRollLifecycle は複数ロールジョブの一連のテスト。
// ロール単位の登録・加工・実測記録を経て、承認で全ロールの変換が一括コミットされる。
func TestSlittingWorkflow_MultiRollLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.stockInParent(t, 1000, 1, weight(300))
	second := env.stockInParent(t, 1000, 1, weight(300))

	schedule := newDraftSchedule(t, env)
	machineID := "SLITTER-01"
	job := addMultiRollJob(t, env, schedule.ID, 1000, 2, &machineID)

	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)

	roll1, err := env.slitting.RegisterRoll(ctx, job.ID, first.Stock.ID, "suzuki")
	require.NoError(t, err)
	assert.Equal(t, 1, roll1.Seq)
	roll2, err := env.slitting.RegisterRoll(ctx, job.ID, second.Stock.ID, "suzuki")
	require.NoError(t, err)
	assert.Equal(t, 2, roll2.Seq)

	// 同じ在庫の二重登録は拒否される
	_, err = env.slitting.RegisterRoll(ctx, job.ID, first.Stock.ID, "suzuki")
	assert.ErrorIs(t, err, rollstock.ErrDuplicateRollStock)

	// 予定本数を超える登録は拒否される
	third := env.stockInParent(t, 1000, 1, decimal.NullDecimal{})
	_, err = env.slitting.RegisterRoll(ctx, job.ID, third.Stock.ID, "suzuki")
	assert.ErrorIs(t, err, rollstock.ErrCapacityExceeded)

	operator := "suzuki"
	_, err = env.slitting.StartRoll(ctx, roll1.ID, &operator, "suzuki")
	require.NoError(t, err)

	// 最初のロール開始でジョブも開始されている
	startedJob, err := env.slitting.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.JobStatusInProgress, startedJob.Status)

	// 加工中のロールがある間は次のロールを開始できない
	_, err = env.slitting.StartRoll(ctx, roll2.ID, &operator, "suzuki")
	assert.ErrorIs(t, err, rollstock.ErrRollInProgress)

	_, err = env.slitting.RecordOutput(ctx, roll1.ID, rollstock.ActualOutputInput{
		WidthMm: 450, Quantity: 2, WeightKg: weight(250),
	}, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.RecordOutput(ctx, roll1.ID, rollstock.ActualOutputInput{
		WidthMm: 100, Quantity: 1, IsLoss: true, WeightKg: weight(50),
	}, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.CompleteRoll(ctx, roll1.ID, "suzuki")
	require.NoError(t, err)

	_, err = env.slitting.StartRoll(ctx, roll2.ID, &operator, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.RecordOutput(ctx, roll2.ID, rollstock.ActualOutputInput{
		WidthMm: 450, Quantity: 2, WeightKg: weight(280),
	}, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.CompleteRoll(ctx, roll2.ID, "suzuki")
	require.NoError(t, err)

	_, err = env.slitting.CompleteJobV2(ctx, job.ID, "suzuki")
	require.NoError(t, err)

	summary, err := env.slitting.ApproveJobV2(ctx, job.ID, "sato")
	require.NoError(t, err)
	assert.Len(t, summary.ConsumedStocks, 2)
	assert.Len(t, summary.CreatedStocks, 2)
	assert.Equal(t, int64(4), summary.TotalOutputQty)
	assert.Equal(t, int64(1), summary.LossQty)
	assert.Equal(t, "20", summary.LossPercent.String())
	require.True(t, summary.LossWeightKg.Valid)
	assert.True(t, summary.LossWeightKg.Decimal.Equal(decimal.NewFromInt(50)))

	// 同一トランザクション内で連続採番してもSL番号は飛ばない
	slPrefix := fmt.Sprintf("SL-%s-", time.Now().Format("20060102"))
	assert.Equal(t, slPrefix+"001", summary.CreatedStocks[0].BatchNumber)
	assert.Equal(t, slPrefix+"002", summary.CreatedStocks[1].BatchNumber)

	_, err = env.slitting.CompleteSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
}

// TestSlittingWorkflow_CancelRollReleasesStock はロール取消で原反が解放され、
// 取消済みロールが本数上限にも重複チェックにも数えられないことのテスト
func TestSlittingWorkflow_CancelRollReleasesStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1000, 1, decimal.NullDecimal{})
	schedule := newDraftSchedule(t, env)
	job := addMultiRollJob(t, env, schedule.ID, 1000, 1, nil)

	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)

	roll, err := env.slitting.RegisterRoll(ctx, job.ID, parent.Stock.ID, "suzuki")
	require.NoError(t, err)

	// 理由なしの取消は拒否される
	_, err = env.slitting.CancelRoll(ctx, roll.ID, "", "suzuki")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)

	cancelled, err := env.slitting.CancelRoll(ctx, roll.ID, "原反に傷", "suzuki")
	require.NoError(t, err)
	assert.Equal(t, rollstock.RollStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)

	// 原反はavailableへ戻っている
	stock, err := env.ledger.GetStock(ctx, parent.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.StockStatusAvailable, stock.Status)

	// 同じ在庫を再登録できる（取消済みは数えない）
	again, err := env.slitting.RegisterRoll(ctx, job.ID, parent.Stock.ID, "suzuki")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Seq)
}

// TestSlittingWorkflow_CompleteJobV2_RequiresTerminalRolls は未終端ロールが残る
// ジョブの完了拒否テスト
func TestSlittingWorkflow_CompleteJobV2_RequiresTerminalRolls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1000, 1, decimal.NullDecimal{})
	schedule := newDraftSchedule(t, env)
	job := addMultiRollJob(t, env, schedule.ID, 1000, 2, nil)

	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.RegisterRoll(ctx, job.ID, parent.Stock.ID, "suzuki")
	require.NoError(t, err)

	// 登録済みのまま終端に達していないロールがある
	_, err = env.slitting.CompleteJobV2(ctx, job.ID, "suzuki")
	assert.ErrorIs(t, err, rollstock.ErrRollInProgress)
}

// TestSlittingWorkflow_MachineMaintenance はメンテナンス中の機械でのジョブ開始拒否テスト
func TestSlittingWorkflow_MachineMaintenance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1200, 1, decimal.NullDecimal{})
	schedule := newDraftSchedule(t, env)

	machineID := "SLITTER-MAINT"
	job, err := env.slitting.AddJob(ctx, schedule.ID, rollstock.AddJobInput{
		Kind:          rollstock.JobKindSingleParent,
		MachineID:     &machineID,
		ParentStockID: &parent.Stock.ID,
	}, "yamada")
	require.NoError(t, err)

	_, err = env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)

	_, err = env.slitting.StartJob(ctx, job.ID, nil, "suzuki")
	assert.ErrorIs(t, err, rollstock.ErrMachineUnavailable)

	// 失敗した開始は巻き戻されている
	reloaded, err := env.slitting.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.JobStatusReady, reloaded.Status)
}

// TestSlittingWorkflow_RegisterRoll_Mismatch はジョブ目標と一致しない原反の登録拒否テスト
func TestSlittingWorkflow_RegisterRoll_Mismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// ジョブの目標は幅1000の PAPER-A
	schedule := newDraftSchedule(t, env)
	job := addMultiRollJob(t, env, schedule.ID, 1000, 2, nil)
	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)

	// 幅が一致しない原反
	wrongWidth := env.stockInParent(t, 1200, 1, decimal.NullDecimal{})
	_, err = env.slitting.RegisterRoll(ctx, job.ID, wrongWidth.Stock.ID, "suzuki")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)

	// 拒否された原反は予約されないまま残る
	stock, err := env.ledger.GetStock(ctx, wrongWidth.Stock.ID)
	require.NoError(t, err)
	assert.Equal(t, rollstock.StockStatusAvailable, stock.Status)
}

// TestSlittingWorkflow_CompleteRollWithoutOutputs は実測出力のないロールの完了拒否テスト
func TestSlittingWorkflow_CompleteRollWithoutOutputs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1000, 1, decimal.NullDecimal{})
	schedule := newDraftSchedule(t, env)
	job := addMultiRollJob(t, env, schedule.ID, 1000, 1, nil)

	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)
	roll, err := env.slitting.RegisterRoll(ctx, job.ID, parent.Stock.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.StartRoll(ctx, roll.ID, nil, "suzuki")
	require.NoError(t, err)

	_, err = env.slitting.CompleteRoll(ctx, roll.ID, "suzuki")
	var ve *rollstock.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// TestSlittingWorkflow_UpdateOutputAfterApprove は承認後の実測出力修正拒否テスト
func TestSlittingWorkflow_UpdateOutputAfterApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1200, 1, decimal.NullDecimal{})
	schedule := newDraftSchedule(t, env)
	job, err := env.slitting.AddJob(ctx, schedule.ID, rollstock.AddJobInput{
		Kind:          rollstock.JobKindSingleParent,
		ParentStockID: &parent.Stock.ID,
	}, "yamada")
	require.NoError(t, err)

	_, err = env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.StartJob(ctx, job.ID, nil, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.CompleteJobV1(ctx, job.ID, []rollstock.ActualOutputInput{
		{WidthMm: 600, Quantity: 1},
	}, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.ApproveJobV1(ctx, job.ID, "sato")
	require.NoError(t, err)

	outputs, err := env.slitting.ListOutputs(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	_, err = env.slitting.UpdateOutput(ctx, outputs[0].ID, rollstock.ActualOutputInput{
		WidthMm: 500, Quantity: 2,
	}, "suzuki")
	var sc *rollstock.StateConflictError
	assert.ErrorAs(t, err, &sc)
}

// TestSlittingWorkflow_UpdateOutputAfterRollComplete はロール完了後の実測出力
// 修正拒否テスト。ロール経由の出力はロールが加工中の間だけ修正できる。
func TestSlittingWorkflow_UpdateOutputAfterRollComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.stockInParent(t, 1000, 1, decimal.NullDecimal{})
	schedule := newDraftSchedule(t, env)
	job := addMultiRollJob(t, env, schedule.ID, 1000, 1, nil)

	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)
	roll, err := env.slitting.RegisterRoll(ctx, job.ID, parent.Stock.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.StartRoll(ctx, roll.ID, nil, "suzuki")
	require.NoError(t, err)

	output, err := env.slitting.RecordOutput(ctx, roll.ID, rollstock.ActualOutputInput{
		WidthMm: 450, Quantity: 2,
	}, "suzuki")
	require.NoError(t, err)

	// 加工中は修正できる
	updated, err := env.slitting.UpdateOutput(ctx, output.ID, rollstock.ActualOutputInput{
		WidthMm: 450, Quantity: 1,
	}, "suzuki")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Quantity)

	_, err = env.slitting.CompleteRoll(ctx, roll.ID, "suzuki")
	require.NoError(t, err)

	// 完了済みロールの出力は承認前でも修正できない
	_, err = env.slitting.UpdateOutput(ctx, output.ID, rollstock.ActualOutputInput{
		WidthMm: 450, Quantity: 2,
	}, "suzuki")
	var sc *rollstock.StateConflictError
	assert.ErrorAs(t, err, &sc)
}

// TestSlittingWorkflow_CompleteSchedule_RequiresApprovedJobs は未承認ジョブが残る
// スケジュールの完了拒否テスト
func TestSlittingWorkflow_CompleteSchedule_RequiresApprovedJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	schedule := newDraftSchedule(t, env)
	job := addMultiRollJob(t, env, schedule.ID, 1000, 1, nil)
	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)
	_, err = env.slitting.MarkJobReady(ctx, job.ID, "yamada")
	require.NoError(t, err)

	parent := env.stockInParent(t, 1000, 1, decimal.NullDecimal{})
	roll, err := env.slitting.RegisterRoll(ctx, job.ID, parent.Stock.ID, "suzuki")
	require.NoError(t, err)
	_, err = env.slitting.StartRoll(ctx, roll.ID, nil, "suzuki")
	require.NoError(t, err)

	_, err = env.slitting.CompleteSchedule(ctx, schedule.ID, "yamada")
	var sc *rollstock.StateConflictError
	assert.ErrorAs(t, err, &sc)
}

// TestSlittingWorkflow_History はスケジュールとジョブの遷移履歴記録のテスト
func TestSlittingWorkflow_History(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	schedule := newDraftSchedule(t, env)
	addMultiRollJob(t, env, schedule.ID, 1000, 1, nil)
	_, err := env.slitting.PublishSchedule(ctx, schedule.ID, "yamada")
	require.NoError(t, err)

	histories, err := env.slitting.GetHistory(ctx, rollstock.SlittingEntitySchedule, schedule.ID)
	require.NoError(t, err)
	require.Len(t, histories, 3)
	assert.Equal(t, rollstock.SlittingActionCreated, histories[0].Action)
	assert.Equal(t, rollstock.SlittingActionJobAdded, histories[1].Action)
	assert.Equal(t, rollstock.SlittingActionPublished, histories[2].Action)
}
