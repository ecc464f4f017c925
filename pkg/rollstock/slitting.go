package rollstock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Slitting history actions / スリット履歴アクション
const (
	SlittingActionCreated        = "created"         // 作成
	SlittingActionJobAdded       = "job_added"       // ジョブ追加
	SlittingActionPublished      = "published"       // 公開
	SlittingActionReady          = "ready"           // 準備完了
	SlittingActionStarted        = "started"         // 開始
	SlittingActionCompleted      = "completed"       // 完了
	SlittingActionApproved       = "approved"        // 承認
	SlittingActionRollRegistered = "roll_registered" // ロール登録
	SlittingActionRollStarted    = "roll_started"    // ロール開始
	SlittingActionRollCompleted  = "roll_completed"  // ロール完了
	SlittingActionRollCancelled  = "roll_cancelled"  // ロール取消
)

// SlittingWorkflow implements the three-level slitting production workflow:
// schedule (the production day), job (one slitting run), and, for multi-roll
// jobs, the individual parent rolls fed through the run. Approval is the only
// point where the workflow touches the stock ledger, and it commits the job
// transition and every roll conversion as one transactional unit.
// スケジュール・ジョブ・ロールの3階層スリット加工ワークフローを実装する。
// 台帳への反映は承認時のみで、ジョブ遷移と全ロール変換を同一単位で
// コミットする。
type SlittingWorkflow struct {
	storage Storage
	ledger  *Ledger
	audit   AuditSink
	logger  *zap.Logger
}

// NewSlittingWorkflow creates a new slitting workflow service
// 新しいスリット加工ワークフローサービスを作成
func NewSlittingWorkflow(storage Storage, ledger *Ledger, audit AuditSink, logger *zap.Logger) *SlittingWorkflow {
	return &SlittingWorkflow{
		storage: storage,
		ledger:  ledger,
		audit:   audit,
		logger:  logger,
	}
}

// PlannedOutputInput is one planned output width of a multi-roll job
// 複数ロールジョブの1つの予定出力幅
type PlannedOutputInput struct {
	WidthMm  int64 `json:"width_mm"`
	Quantity int64 `json:"quantity"`
}

// AddJobInput is the input for adding a job to a draft schedule. Kind selects
// the variant and determines which of the remaining fields are required.
// 下書きスケジュールへのジョブ追加入力。Kindが形態と必須フィールドを決める。
type AddJobInput struct {
	Kind      JobKind `json:"kind"`
	MachineID *string `json:"machine_id"`

	// single_parent variant / single_parent形態
	ParentStockID *string `json:"parent_stock_id"`

	// multi_roll variant / multi_roll形態
	ItemID           *string              `json:"item_id"`
	ParentWidthMm    *int64               `json:"parent_width_mm"`
	PlannedRollCount *int                 `json:"planned_roll_count"`
	PlannedOutputs   []PlannedOutputInput `json:"planned_outputs"`
}

// ActualOutputInput is one measured output recorded during or after slitting
// スリット中または完了時に記録する1つの実測出力
type ActualOutputInput struct {
	PlannedOutputID *string             `json:"planned_output_id"`
	WidthMm         int64               `json:"width_mm"`
	Quantity        int64               `json:"quantity"`
	WeightKg        decimal.NullDecimal `json:"weight_kg"`
	IsLoss          bool                `json:"is_loss"`
}

// CreateSchedule creates a production schedule in draft status
// 生産スケジュールをdraftで作成する
func (s *SlittingWorkflow) CreateSchedule(ctx context.Context, scheduleDate time.Time, notes, actorID string) (*SlittingSchedule, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var schedule *SlittingSchedule
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		now := time.Now()
		schedule = &SlittingSchedule{
			ID:           NewID(),
			ScheduleDate: scheduleDate,
			Status:       ScheduleStatusDraft,
			Notes:        notes,
			CreatedBy:    actorID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateSchedule(ctx, schedule); err != nil {
			return NewStorageError("create_schedule", "スケジュール作成に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntitySchedule, schedule.ID, SlittingActionCreated, nil, string(schedule.Status), actorID, notes)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("スケジュール作成完了",
		zap.String("schedule_id", schedule.ID),
		zap.Time("schedule_date", schedule.ScheduleDate),
	)
	s.recordAudit(ctx, SlittingActionCreated, "slitting_schedules", schedule.ID, actorID, nil)
	return schedule, nil
}

// AddJob adds a slitting job to a draft schedule. A single-parent job reserves
// its parent roll immediately so the lot cannot be taken out from under the
// plan. A multi-roll job only declares its target; parent rolls are reserved
// one by one at registration time.
// 下書きスケジュールへジョブを追加する。single_parentジョブは原反を即時
// 予約する。multi_rollジョブは目標のみ宣言し、原反は登録時に予約する。
func (s *SlittingWorkflow) AddJob(ctx context.Context, scheduleID string, in AddJobInput, actorID string) (*SlittingJob, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := s.validateAddJob(in); err != nil {
		return nil, err
	}

	var job *SlittingJob
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		schedule, err := tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return err
		}
		if schedule.Status != ScheduleStatusDraft {
			return NewStateConflictError("schedule", schedule.ID, string(schedule.Status), string(ScheduleStatusDraft))
		}

		if in.MachineID != nil {
			if _, err := tx.GetMachine(ctx, *in.MachineID); err != nil {
				return err
			}
		}

		seq, err := tx.MaxJobSeq(ctx, scheduleID)
		if err != nil {
			return NewStorageError("max_job_seq", "ジョブ順序の採番に失敗しました", err)
		}

		now := time.Now()
		job = &SlittingJob{
			ID:         NewID(),
			ScheduleID: scheduleID,
			Seq:        seq + 1,
			Kind:       in.Kind,
			Status:     JobStatusPending,
			MachineID:  in.MachineID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		switch in.Kind {
		case JobKindSingleParent:
			stock, err := s.ledger.reserveTx(ctx, tx, *in.ParentStockID)
			if err != nil {
				return err
			}
			if !stock.IsParentRoll() {
				return NewInvalidStockStateError(stock.ID, string(stock.Status), "ジョブに紐付けられるのは原反のみです")
			}
			job.ParentStockID = in.ParentStockID
		case JobKindMultiRoll:
			job.ItemID = in.ItemID
			job.ParentWidthMm = in.ParentWidthMm
			job.PlannedRollCount = in.PlannedRollCount
		}

		if err := tx.CreateJob(ctx, job); err != nil {
			return NewStorageError("create_job", "ジョブ作成に失敗しました", err)
		}

		for i, p := range in.PlannedOutputs {
			out := &SlittingPlannedOutput{
				ID:       NewID(),
				JobID:    job.ID,
				Seq:      i + 1,
				WidthMm:  p.WidthMm,
				Quantity: p.Quantity,
			}
			if err := tx.CreatePlannedOutput(ctx, out); err != nil {
				return NewStorageError("create_planned_output", "予定出力の作成に失敗しました", err)
			}
		}

		if err := s.writeHistory(ctx, tx, SlittingEntityJob, job.ID, SlittingActionCreated, nil, string(job.Status), actorID, ""); err != nil {
			return err
		}
		return s.writeHistory(ctx, tx, SlittingEntitySchedule, schedule.ID, SlittingActionJobAdded, nil, string(schedule.Status), actorID, job.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ジョブ追加完了",
		zap.String("schedule_id", scheduleID),
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.Int("seq", job.Seq),
	)
	s.recordAudit(ctx, SlittingActionJobAdded, "slitting_jobs", job.ID, actorID, nil)
	return job, nil
}

// PublishSchedule releases a draft schedule to the floor. An empty schedule
// cannot be published.
// 下書きスケジュールを現場へ公開する。ジョブのないスケジュールは公開不可。
func (s *SlittingWorkflow) PublishSchedule(ctx context.Context, scheduleID, actorID string) (*SlittingSchedule, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var schedule *SlittingSchedule
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		schedule, err = tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return err
		}
		jobs, err := tx.ListJobsBySchedule(ctx, scheduleID)
		if err != nil {
			return NewStorageError("list_jobs", "ジョブ一覧の取得に失敗しました", err)
		}
		if len(jobs) == 0 {
			return NewValidationError("schedule_id", "ジョブが1件もないスケジュールは公開できません", scheduleID)
		}
		prev := string(schedule.Status)
		if err := transitionSchedule(schedule, ScheduleStatusPublished); err != nil {
			return err
		}
		schedule.UpdatedAt = time.Now()
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return NewStorageError("update_schedule", "スケジュール更新に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntitySchedule, schedule.ID, SlittingActionPublished, &prev, string(schedule.Status), actorID, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("スケジュール公開完了", zap.String("schedule_id", schedule.ID))
	s.recordAudit(ctx, SlittingActionPublished, "slitting_schedules", schedule.ID, actorID, nil)
	return schedule, nil
}

// MarkJobReady marks a pending job as ready for the floor. The schedule must
// already be published.
// ジョブを準備完了にする。スケジュールが公開済みであること。
func (s *SlittingWorkflow) MarkJobReady(ctx context.Context, jobID, actorID string) (*SlittingJob, error) {
	return s.jobTransition(ctx, jobID, actorID, SlittingActionReady, func(tx Tx, job *SlittingJob, schedule *SlittingSchedule) error {
		if schedule.Status != ScheduleStatusPublished && schedule.Status != ScheduleStatusInProgress {
			return NewStateConflictError("schedule", schedule.ID, string(schedule.Status),
				string(ScheduleStatusPublished), string(ScheduleStatusInProgress))
		}
		return transitionJob(job, JobStatusReady)
	})
}

// StartJob starts a ready job: the machine goes to running, the operator is
// recorded, and the schedule moves to in_progress on its first started job.
// A machine under maintenance refuses the start. Jobs without an assigned
// machine skip the machine handling entirely.
// 準備完了のジョブを開始する。機械をrunningにし、最初のジョブ開始で
// スケジュールをin_progressへ進める。メンテナンス中の機械では開始不可。
func (s *SlittingWorkflow) StartJob(ctx context.Context, jobID string, operatorID *string, actorID string) (*SlittingJob, error) {
	return s.jobTransition(ctx, jobID, actorID, SlittingActionStarted, func(tx Tx, job *SlittingJob, schedule *SlittingSchedule) error {
		if err := transitionJob(job, JobStatusInProgress); err != nil {
			return err
		}
		if err := s.claimMachineTx(ctx, tx, job); err != nil {
			return err
		}
		if schedule.Status == ScheduleStatusPublished {
			if err := transitionSchedule(schedule, ScheduleStatusInProgress); err != nil {
				return err
			}
			schedule.UpdatedAt = time.Now()
			if err := tx.UpdateSchedule(ctx, schedule); err != nil {
				return NewStorageError("update_schedule", "スケジュール更新に失敗しました", err)
			}
		}
		now := time.Now()
		job.OperatorID = operatorID
		job.StartedAt = &now
		return nil
	})
}

// CompleteJobV1 finishes a single-parent job and records its measured outputs.
// The outputs are stored only; the ledger is untouched until approval.
// single_parentジョブを完了し実測出力を記録する。台帳は承認まで触れない。
func (s *SlittingWorkflow) CompleteJobV1(ctx context.Context, jobID string, outputs []ActualOutputInput, actorID string) (*SlittingJob, error) {
	if len(outputs) == 0 {
		return nil, NewValidationError("outputs", "実測出力が1件もありません", "")
	}
	for i, out := range outputs {
		if err := s.validateOutput(i, out); err != nil {
			return nil, err
		}
	}
	return s.jobTransition(ctx, jobID, actorID, SlittingActionCompleted, func(tx Tx, job *SlittingJob, schedule *SlittingSchedule) error {
		if job.Kind != JobKindSingleParent {
			return NewValidationError("job_id", "single_parentジョブではありません", jobID)
		}
		if err := transitionJob(job, JobStatusCompleted); err != nil {
			return err
		}
		for _, out := range outputs {
			if err := s.createOutputTx(ctx, tx, job.ID, nil, out); err != nil {
				return err
			}
		}
		if err := s.releaseMachineTx(ctx, tx, job); err != nil {
			return err
		}
		now := time.Now()
		job.CompletedAt = &now
		return nil
	})
}

// ApproveJobV1 approves a completed single-parent job: the reserved parent
// roll is consumed and every non-loss output becomes a new slitted lot, all
// in one transactional unit with the status transition.
// 完了済みのsingle_parentジョブを承認する。予約済み原反を消費し、
// ロス以外の出力を新しいスリット品ロットとして生成する。
func (s *SlittingWorkflow) ApproveJobV1(ctx context.Context, jobID, actorID string) (*ApprovalSummary, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var summary *ApprovalSummary
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		job, err := tx.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Kind != JobKindSingleParent {
			return NewValidationError("job_id", "single_parentジョブではありません", jobID)
		}
		prev := string(job.Status)
		if err := transitionJob(job, JobStatusApproved); err != nil {
			return err
		}

		outputs, err := tx.ListActualOutputsByJob(ctx, jobID)
		if err != nil {
			return NewStorageError("list_actual_outputs", "実績出力の取得に失敗しました", err)
		}
		conv, err := s.ledger.convertParentTx(ctx, tx, *job.ParentStockID, toConversionOutputs(outputs), "slitting_job", job.ID, actorID)
		if err != nil {
			return err
		}

		now := time.Now()
		job.ApprovedAt = &now
		job.ApprovedBy = &actorID
		job.UpdatedAt = now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return NewStorageError("update_job", "ジョブ更新に失敗しました", err)
		}
		if err := s.writeHistory(ctx, tx, SlittingEntityJob, job.ID, SlittingActionApproved, &prev, string(job.Status), actorID, ""); err != nil {
			return err
		}

		summary = s.buildSummary(job.ID, []conversionResult{*conv})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ジョブ承認完了",
		zap.String("job_id", jobID),
		zap.Int("created_stocks", len(summary.CreatedStocks)),
		zap.String("loss_percent", summary.LossPercent.String()),
	)
	s.recordAudit(ctx, SlittingActionApproved, "slitting_jobs", jobID, actorID, nil)
	return summary, nil
}

// RegisterRoll reserves one parent roll against a multi-roll job. Cancelled
// rolls count toward neither the capacity limit nor the duplicate check, so
// the stock of a cancelled roll can be registered again.
// 複数ロールジョブへ原反1本を登録・予約する。取消済みロールは本数上限にも
// 重複チェックにも数えないため、取消したロールの在庫は再登録できる。
func (s *SlittingWorkflow) RegisterRoll(ctx context.Context, jobID, stockID, actorID string) (*SlittingJobRoll, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := ValidateEntityID("stock_id", stockID); err != nil {
		return nil, err
	}

	var roll *SlittingJobRoll
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		job, err := tx.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Kind != JobKindMultiRoll {
			return NewValidationError("job_id", "multi_rollジョブではありません", jobID)
		}
		if job.Status != JobStatusReady && job.Status != JobStatusInProgress {
			return NewStateConflictError("job", job.ID, string(job.Status),
				string(JobStatusReady), string(JobStatusInProgress))
		}

		rolls, err := tx.ListRollsByJob(ctx, jobID)
		if err != nil {
			return NewStorageError("list_rolls", "ロール一覧の取得に失敗しました", err)
		}
		active := 0
		for _, r := range rolls {
			if r.Status == RollStatusCancelled {
				continue
			}
			active++
			if r.StockID == stockID {
				return ErrDuplicateRollStock
			}
		}
		if job.PlannedRollCount != nil && active >= *job.PlannedRollCount {
			return ErrCapacityExceeded
		}

		stock, err := s.ledger.reserveTx(ctx, tx, stockID)
		if err != nil {
			return err
		}
		if !stock.IsParentRoll() {
			return NewInvalidStockStateError(stock.ID, string(stock.Status), "登録できるのは原反のみです")
		}
		if job.ItemID != nil && stock.ItemID != *job.ItemID {
			return NewValidationError("stock_id", "ジョブの対象品目と一致しません", stockID)
		}
		if job.ParentWidthMm != nil && stock.WidthMm != *job.ParentWidthMm {
			return NewValidationError("stock_id", "ジョブの原反幅と一致しません", stockID)
		}

		seq, err := tx.MaxRollSeq(ctx, jobID)
		if err != nil {
			return NewStorageError("max_roll_seq", "ロール順序の採番に失敗しました", err)
		}
		roll = &SlittingJobRoll{
			ID:        NewID(),
			JobID:     jobID,
			Seq:       seq + 1,
			StockID:   stockID,
			Status:    RollStatusRegistered,
			CreatedAt: time.Now(),
		}
		if err := tx.CreateRoll(ctx, roll); err != nil {
			return NewStorageError("create_roll", "ロール作成に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntityJob, jobID, SlittingActionRollRegistered, nil, string(roll.Status), actorID, roll.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ロール登録完了",
		zap.String("job_id", jobID),
		zap.String("roll_id", roll.ID),
		zap.String("stock_id", stockID),
		zap.Int("seq", roll.Seq),
	)
	s.recordAudit(ctx, SlittingActionRollRegistered, "slitting_job_rolls", roll.ID, actorID, nil)
	return roll, nil
}

// StartRoll starts processing one registered roll. Only one roll per job may
// be in progress at a time. Starting the first roll of a ready job also
// starts the job itself.
// ロールの加工を開始する。同一ジョブで同時に加工できるロールは1本のみ。
// readyなジョブの最初のロール開始はジョブ自体も開始する。
func (s *SlittingWorkflow) StartRoll(ctx context.Context, rollID string, operatorID *string, actorID string) (*SlittingJobRoll, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var roll *SlittingJobRoll
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		roll, err = tx.GetRollForUpdate(ctx, rollID)
		if err != nil {
			return err
		}
		job, err := tx.GetJobForUpdate(ctx, roll.JobID)
		if err != nil {
			return err
		}

		rolls, err := tx.ListRollsByJob(ctx, roll.JobID)
		if err != nil {
			return NewStorageError("list_rolls", "ロール一覧の取得に失敗しました", err)
		}
		for _, r := range rolls {
			if r.ID != roll.ID && r.Status == RollStatusInProgress {
				return ErrRollInProgress
			}
		}

		if err := transitionRoll(roll, RollStatusInProgress); err != nil {
			return err
		}

		if job.Status == JobStatusReady {
			schedule, err := tx.GetScheduleForUpdate(ctx, job.ScheduleID)
			if err != nil {
				return err
			}
			prev := string(job.Status)
			if err := transitionJob(job, JobStatusInProgress); err != nil {
				return err
			}
			if err := s.claimMachineTx(ctx, tx, job); err != nil {
				return err
			}
			if schedule.Status == ScheduleStatusPublished {
				if err := transitionSchedule(schedule, ScheduleStatusInProgress); err != nil {
					return err
				}
				schedule.UpdatedAt = time.Now()
				if err := tx.UpdateSchedule(ctx, schedule); err != nil {
					return NewStorageError("update_schedule", "スケジュール更新に失敗しました", err)
				}
			}
			now := time.Now()
			job.OperatorID = operatorID
			job.StartedAt = &now
			job.UpdatedAt = now
			if err := tx.UpdateJob(ctx, job); err != nil {
				return NewStorageError("update_job", "ジョブ更新に失敗しました", err)
			}
			if err := s.writeHistory(ctx, tx, SlittingEntityJob, job.ID, SlittingActionStarted, &prev, string(job.Status), actorID, ""); err != nil {
				return err
			}
		} else if job.Status != JobStatusInProgress {
			return NewStateConflictError("job", job.ID, string(job.Status),
				string(JobStatusReady), string(JobStatusInProgress))
		}

		now := time.Now()
		roll.StartedAt = &now
		if err := tx.UpdateRoll(ctx, roll); err != nil {
			return NewStorageError("update_roll", "ロール更新に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntityJob, roll.JobID, SlittingActionRollStarted, nil, string(roll.Status), actorID, roll.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ロール加工開始", zap.String("roll_id", roll.ID), zap.String("job_id", roll.JobID))
	s.recordAudit(ctx, SlittingActionRollStarted, "slitting_job_rolls", roll.ID, actorID, nil)
	return roll, nil
}

// RecordOutput records one measured output against an in-progress roll
// 加工中のロールに対して実測出力を1件記録する
func (s *SlittingWorkflow) RecordOutput(ctx context.Context, rollID string, in ActualOutputInput, actorID string) (*SlittingActualOutput, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := s.validateOutput(0, in); err != nil {
		return nil, err
	}

	var output *SlittingActualOutput
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		roll, err := tx.GetRollForUpdate(ctx, rollID)
		if err != nil {
			return err
		}
		if roll.Status != RollStatusInProgress {
			return NewStateConflictError("roll", roll.ID, string(roll.Status), string(RollStatusInProgress))
		}
		output, err = s.createOutputTxReturning(ctx, tx, roll.JobID, &roll.ID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("実測出力記録",
		zap.String("roll_id", rollID),
		zap.Int64("width_mm", output.WidthMm),
		zap.Int64("quantity", output.Quantity),
		zap.Bool("is_loss", output.IsLoss),
	)
	return output, nil
}

// UpdateOutput corrects a recorded output. Outputs that belong to a roll can
// only be corrected while that roll is still in progress; job-level outputs
// can be corrected any time before the job is approved.
// 記録済みの実測出力を修正する。ロールに属する出力はそのロールが加工中の
// 間のみ修正できる。ジョブ直下の出力は承認前まで修正可能。
func (s *SlittingWorkflow) UpdateOutput(ctx context.Context, outputID string, in ActualOutputInput, actorID string) (*SlittingActualOutput, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := s.validateOutput(0, in); err != nil {
		return nil, err
	}

	var output *SlittingActualOutput
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		output, err = tx.GetActualOutput(ctx, outputID)
		if err != nil {
			return err
		}
		job, err := tx.GetJobForUpdate(ctx, output.JobID)
		if err != nil {
			return err
		}
		if job.Status == JobStatusApproved {
			return NewStateConflictError("job", job.ID, string(job.Status),
				string(JobStatusInProgress), string(JobStatusCompleted))
		}
		// ロール経由の出力はロールが加工中の間だけ修正できる
		if output.RollID != nil {
			roll, err := tx.GetRollForUpdate(ctx, *output.RollID)
			if err != nil {
				return err
			}
			if roll.Status != RollStatusInProgress {
				return NewStateConflictError("roll", roll.ID, string(roll.Status), string(RollStatusInProgress))
			}
		}
		output.PlannedOutputID = in.PlannedOutputID
		output.WidthMm = in.WidthMm
		output.Quantity = in.Quantity
		output.WeightKg = in.WeightKg
		output.IsLoss = in.IsLoss
		if err := tx.UpdateActualOutput(ctx, output); err != nil {
			return NewStorageError("update_actual_output", "実績出力の更新に失敗しました", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("実測出力修正", zap.String("output_id", outputID))
	return output, nil
}

// CompleteRoll finishes one in-progress roll. At least one output must have
// been recorded against it.
// 加工中のロールを完了する。実測出力が1件以上記録されていること。
func (s *SlittingWorkflow) CompleteRoll(ctx context.Context, rollID, actorID string) (*SlittingJobRoll, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var roll *SlittingJobRoll
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		roll, err = tx.GetRollForUpdate(ctx, rollID)
		if err != nil {
			return err
		}
		outputs, err := tx.ListActualOutputsByRoll(ctx, rollID)
		if err != nil {
			return NewStorageError("list_actual_outputs", "実績出力の取得に失敗しました", err)
		}
		if len(outputs) == 0 {
			return NewValidationError("roll_id", "実測出力のないロールは完了できません", rollID)
		}
		if err := transitionRoll(roll, RollStatusCompleted); err != nil {
			return err
		}
		now := time.Now()
		roll.CompletedAt = &now
		if err := tx.UpdateRoll(ctx, roll); err != nil {
			return NewStorageError("update_roll", "ロール更新に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntityJob, roll.JobID, SlittingActionRollCompleted, nil, string(roll.Status), actorID, roll.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ロール加工完了", zap.String("roll_id", roll.ID))
	s.recordAudit(ctx, SlittingActionRollCompleted, "slitting_job_rolls", roll.ID, actorID, nil)
	return roll, nil
}

// CancelRoll cancels a registered or in-progress roll and releases its
// reserved parent stock back to available. The reason is mandatory.
// ロールを取消し、予約していた原反在庫をavailableへ戻す。理由は必須。
func (s *SlittingWorkflow) CancelRoll(ctx context.Context, rollID, reason, actorID string) (*SlittingJobRoll, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if err := ValidateRequiredMemo(reason); err != nil {
		return nil, err
	}

	var roll *SlittingJobRoll
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		roll, err = tx.GetRollForUpdate(ctx, rollID)
		if err != nil {
			return err
		}
		if err := transitionRoll(roll, RollStatusCancelled); err != nil {
			return err
		}
		if _, err := s.ledger.releaseTx(ctx, tx, roll.StockID); err != nil {
			return err
		}
		roll.CancelReason = &reason
		if err := tx.UpdateRoll(ctx, roll); err != nil {
			return NewStorageError("update_roll", "ロール更新に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntityJob, roll.JobID, SlittingActionRollCancelled, nil, string(roll.Status), actorID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ロール取消完了",
		zap.String("roll_id", roll.ID),
		zap.String("stock_id", roll.StockID),
		zap.String("reason", reason),
	)
	s.recordAudit(ctx, SlittingActionRollCancelled, "slitting_job_rolls", roll.ID, actorID, map[string]string{
		"reason": reason,
	})
	return roll, nil
}

// CompleteJobV2 finishes a multi-roll job. Every roll must have reached a
// terminal state, and at least one roll must have completed.
// multi_rollジョブを完了する。全ロールが終端状態に達しており、
// 完了したロールが1本以上あること。
func (s *SlittingWorkflow) CompleteJobV2(ctx context.Context, jobID, actorID string) (*SlittingJob, error) {
	return s.jobTransition(ctx, jobID, actorID, SlittingActionCompleted, func(tx Tx, job *SlittingJob, schedule *SlittingSchedule) error {
		if job.Kind != JobKindMultiRoll {
			return NewValidationError("job_id", "multi_rollジョブではありません", jobID)
		}
		rolls, err := tx.ListRollsByJob(ctx, jobID)
		if err != nil {
			return NewStorageError("list_rolls", "ロール一覧の取得に失敗しました", err)
		}
		completed := 0
		for _, r := range rolls {
			switch r.Status {
			case RollStatusCompleted:
				completed++
			case RollStatusCancelled:
				// 取消済みは数えない
			default:
				return ErrRollInProgress
			}
		}
		if completed == 0 {
			return NewValidationError("job_id", "完了したロールのないジョブは完了できません", jobID)
		}
		if err := transitionJob(job, JobStatusCompleted); err != nil {
			return err
		}
		if err := s.releaseMachineTx(ctx, tx, job); err != nil {
			return err
		}
		now := time.Now()
		job.CompletedAt = &now
		return nil
	})
}

// ApproveJobV2 approves a completed multi-roll job: every completed roll's
// parent stock is consumed and converted to slitted lots, and the aggregated
// summary (including loss percentage) is returned. The job transition and all
// conversions commit as one unit.
// 完了済みのmulti_rollジョブを承認する。完了した全ロールの原反を消費して
// スリット品ロットへ変換し、ロス率を含む集計を返す。
func (s *SlittingWorkflow) ApproveJobV2(ctx context.Context, jobID, actorID string) (*ApprovalSummary, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var summary *ApprovalSummary
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		job, err := tx.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Kind != JobKindMultiRoll {
			return NewValidationError("job_id", "multi_rollジョブではありません", jobID)
		}
		prev := string(job.Status)
		if err := transitionJob(job, JobStatusApproved); err != nil {
			return err
		}

		rolls, err := tx.ListRollsByJob(ctx, jobID)
		if err != nil {
			return NewStorageError("list_rolls", "ロール一覧の取得に失敗しました", err)
		}
		var conversions []conversionResult
		for _, roll := range rolls {
			if roll.Status != RollStatusCompleted {
				continue
			}
			outputs, err := tx.ListActualOutputsByRoll(ctx, roll.ID)
			if err != nil {
				return NewStorageError("list_actual_outputs", "実績出力の取得に失敗しました", err)
			}
			conv, err := s.ledger.convertParentTx(ctx, tx, roll.StockID, toConversionOutputs(outputs), "slitting_job", job.ID, actorID)
			if err != nil {
				return fmt.Errorf("ロール %d 本目の変換に失敗しました: %w", roll.Seq, err)
			}
			conversions = append(conversions, *conv)
		}

		now := time.Now()
		job.ApprovedAt = &now
		job.ApprovedBy = &actorID
		job.UpdatedAt = now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return NewStorageError("update_job", "ジョブ更新に失敗しました", err)
		}
		if err := s.writeHistory(ctx, tx, SlittingEntityJob, job.ID, SlittingActionApproved, &prev, string(job.Status), actorID, ""); err != nil {
			return err
		}

		summary = s.buildSummary(job.ID, conversions)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ジョブ承認完了",
		zap.String("job_id", jobID),
		zap.Int("consumed_stocks", len(summary.ConsumedStocks)),
		zap.Int("created_stocks", len(summary.CreatedStocks)),
		zap.String("loss_percent", summary.LossPercent.String()),
	)
	s.recordAudit(ctx, SlittingActionApproved, "slitting_jobs", jobID, actorID, nil)
	return summary, nil
}

// CompleteSchedule closes a schedule once every one of its jobs is approved
// 全ジョブ承認済みのスケジュールを完了する
func (s *SlittingWorkflow) CompleteSchedule(ctx context.Context, scheduleID, actorID string) (*SlittingSchedule, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var schedule *SlittingSchedule
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		schedule, err = tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return err
		}
		jobs, err := tx.ListJobsBySchedule(ctx, scheduleID)
		if err != nil {
			return NewStorageError("list_jobs", "ジョブ一覧の取得に失敗しました", err)
		}
		for _, j := range jobs {
			if j.Status != JobStatusApproved {
				return NewStateConflictError("job", j.ID, string(j.Status), string(JobStatusApproved))
			}
		}
		prev := string(schedule.Status)
		if err := transitionSchedule(schedule, ScheduleStatusCompleted); err != nil {
			return err
		}
		schedule.UpdatedAt = time.Now()
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return NewStorageError("update_schedule", "スケジュール更新に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntitySchedule, schedule.ID, SlittingActionCompleted, &prev, string(schedule.Status), actorID, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("スケジュール完了", zap.String("schedule_id", schedule.ID))
	s.recordAudit(ctx, SlittingActionCompleted, "slitting_schedules", schedule.ID, actorID, nil)
	return schedule, nil
}

// GetSchedule gets one schedule
// スケジュールを1件取得
func (s *SlittingWorkflow) GetSchedule(ctx context.Context, scheduleID string) (*SlittingSchedule, error) {
	return s.storage.GetSchedule(ctx, scheduleID)
}

// ListSchedules lists schedules
// スケジュール一覧を取得
func (s *SlittingWorkflow) ListSchedules(ctx context.Context, limit int) ([]SlittingSchedule, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.storage.ListSchedules(ctx, limit)
}

// GetJob gets one job
// ジョブを1件取得
func (s *SlittingWorkflow) GetJob(ctx context.Context, jobID string) (*SlittingJob, error) {
	return s.storage.GetJob(ctx, jobID)
}

// ListJobs lists the jobs of a schedule in seq order
// スケジュールのジョブ一覧を順序付きで取得
func (s *SlittingWorkflow) ListJobs(ctx context.Context, scheduleID string) ([]SlittingJob, error) {
	return s.storage.ListJobsBySchedule(ctx, scheduleID)
}

// ListRolls lists the rolls of a job in seq order
// ジョブのロール一覧を順序付きで取得
func (s *SlittingWorkflow) ListRolls(ctx context.Context, jobID string) ([]SlittingJobRoll, error) {
	return s.storage.ListRollsByJob(ctx, jobID)
}

// ListOutputs lists the actual outputs of a job
// ジョブの実績出力一覧を取得
func (s *SlittingWorkflow) ListOutputs(ctx context.Context, jobID string) ([]SlittingActualOutput, error) {
	return s.storage.ListActualOutputsByJob(ctx, jobID)
}

// GetHistory gets the transition history of a schedule or job
// スケジュールまたはジョブの遷移履歴を取得
func (s *SlittingWorkflow) GetHistory(ctx context.Context, entityType, entityID string) ([]SlittingHistory, error) {
	return s.storage.ListSlittingHistories(ctx, entityType, entityID)
}

// --- internals / 内部処理 ---

// validateAddJob checks variant shape and, for multi-roll jobs, the width
// budget: the planned output widths of one pass must fit within the parent
// width
// 形態ごとの必須項目と、multi_rollの幅バジェット（1パスの予定出力幅の
// 合計が原反幅に収まること）を検証する
func (s *SlittingWorkflow) validateAddJob(in AddJobInput) error {
	switch in.Kind {
	case JobKindSingleParent:
		if in.ParentStockID == nil {
			return NewValidationError("parent_stock_id", "single_parentジョブには原反在庫が必須です", "")
		}
		return nil
	case JobKindMultiRoll:
		if in.ItemID == nil {
			return NewValidationError("item_id", "multi_rollジョブには品目が必須です", "")
		}
		if in.ParentWidthMm == nil {
			return NewValidationError("parent_width_mm", "multi_rollジョブには原反幅が必須です", "")
		}
		if err := ValidateWidthMm("parent_width_mm", *in.ParentWidthMm); err != nil {
			return err
		}
		if in.PlannedRollCount == nil || *in.PlannedRollCount <= 0 {
			return NewValidationError("planned_roll_count", "予定ロール本数は正の値である必要があります", "")
		}
		if len(in.PlannedOutputs) == 0 {
			return NewValidationError("planned_outputs", "予定出力が1件もありません", "")
		}
		var budget int64
		for i, p := range in.PlannedOutputs {
			if err := ValidateWidthMm(fmt.Sprintf("planned_outputs[%d].width_mm", i), p.WidthMm); err != nil {
				return err
			}
			if err := ValidatePositiveQuantity(fmt.Sprintf("planned_outputs[%d].quantity", i), p.Quantity); err != nil {
				return err
			}
			budget += p.WidthMm * p.Quantity
		}
		if budget > *in.ParentWidthMm {
			return ErrWidthBudgetExceeded
		}
		return nil
	}
	return NewValidationError("kind", "無効なジョブ形態です", string(in.Kind))
}

// validateOutput checks one actual output input
// 実測出力入力を1件検証する
func (s *SlittingWorkflow) validateOutput(idx int, in ActualOutputInput) error {
	field := func(name string) string { return fmt.Sprintf("outputs[%d].%s", idx, name) }
	if err := ValidatePositiveQuantity(field("quantity"), in.Quantity); err != nil {
		return err
	}
	if !in.IsLoss {
		if err := ValidateWidthMm(field("width_mm"), in.WidthMm); err != nil {
			return err
		}
	}
	return nil
}

// jobTransition runs a lock-mutate-history job transition in one transaction.
// The schedule row is locked alongside the job so job starts and schedule
// completion cannot race.
// ジョブのロック・変更・履歴記録を1トランザクションで行う。
func (s *SlittingWorkflow) jobTransition(ctx context.Context, jobID, actorID, action string, mutate func(Tx, *SlittingJob, *SlittingSchedule) error) (*SlittingJob, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	var job *SlittingJob
	err := s.storage.WithinTx(ctx, func(tx Tx) error {
		var err error
		job, err = tx.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		schedule, err := tx.GetScheduleForUpdate(ctx, job.ScheduleID)
		if err != nil {
			return err
		}
		prev := string(job.Status)
		if err := mutate(tx, job, schedule); err != nil {
			return err
		}
		job.UpdatedAt = time.Now()
		if err := tx.UpdateJob(ctx, job); err != nil {
			return NewStorageError("update_job", "ジョブ更新に失敗しました", err)
		}
		return s.writeHistory(ctx, tx, SlittingEntityJob, job.ID, action, &prev, string(job.Status), actorID, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ジョブステータス遷移",
		zap.String("job_id", job.ID),
		zap.String("action", action),
		zap.String("status", string(job.Status)),
	)
	s.recordAudit(ctx, action, "slitting_jobs", job.ID, actorID, nil)
	return job, nil
}

// claimMachineTx moves the job's machine to running. Jobs without a machine
// assignment skip this entirely.
// ジョブの機械をrunningへ進める。機械未割当のジョブは何もしない。
func (s *SlittingWorkflow) claimMachineTx(ctx context.Context, tx Tx, job *SlittingJob) error {
	if job.MachineID == nil {
		return nil
	}
	machine, err := tx.GetMachineForUpdate(ctx, *job.MachineID)
	if err != nil {
		return err
	}
	if machine.Status != MachineStatusIdle {
		return ErrMachineUnavailable
	}
	machine.Status = MachineStatusRunning
	machine.UpdatedAt = time.Now()
	if err := tx.UpdateMachine(ctx, machine); err != nil {
		return NewStorageError("update_machine", "機械更新に失敗しました", err)
	}
	return nil
}

// releaseMachineTx returns the job's machine to idle on job completion
// ジョブ完了時に機械をidleへ戻す
func (s *SlittingWorkflow) releaseMachineTx(ctx context.Context, tx Tx, job *SlittingJob) error {
	if job.MachineID == nil {
		return nil
	}
	machine, err := tx.GetMachineForUpdate(ctx, *job.MachineID)
	if err != nil {
		return err
	}
	if machine.Status != MachineStatusRunning {
		return nil
	}
	machine.Status = MachineStatusIdle
	machine.UpdatedAt = time.Now()
	if err := tx.UpdateMachine(ctx, machine); err != nil {
		return NewStorageError("update_machine", "機械更新に失敗しました", err)
	}
	return nil
}

// createOutputTx stores one actual output row inside tx
// tx内で実績出力行を1件保存する
func (s *SlittingWorkflow) createOutputTx(ctx context.Context, tx Tx, jobID string, rollID *string, in ActualOutputInput) error {
	_, err := s.createOutputTxReturning(ctx, tx, jobID, rollID, in)
	return err
}

func (s *SlittingWorkflow) createOutputTxReturning(ctx context.Context, tx Tx, jobID string, rollID *string, in ActualOutputInput) (*SlittingActualOutput, error) {
	output := &SlittingActualOutput{
		ID:              NewID(),
		JobID:           jobID,
		RollID:          rollID,
		PlannedOutputID: in.PlannedOutputID,
		WidthMm:         in.WidthMm,
		Quantity:        in.Quantity,
		WeightKg:        in.WeightKg,
		IsLoss:          in.IsLoss,
		CreatedAt:       time.Now(),
	}
	if err := tx.CreateActualOutput(ctx, output); err != nil {
		return nil, NewStorageError("create_actual_output", "実績出力の作成に失敗しました", err)
	}
	return output, nil
}

// writeHistory appends one immutable slitting transition record inside tx
// tx内で不変のスリット遷移記録を1件追記する
func (s *SlittingWorkflow) writeHistory(ctx context.Context, tx Tx, entityType, entityID, action string, prev *string, newStatus, actorID, memo string) error {
	h := &SlittingHistory{
		ID:             NewID(),
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		PreviousStatus: prev,
		NewStatus:      newStatus,
		ActorID:        actorID,
		Memo:           memo,
		CreatedAt:      time.Now(),
	}
	if err := tx.CreateSlittingHistory(ctx, h); err != nil {
		return NewStorageError("create_slitting_history", "スリット履歴の作成に失敗しました", err)
	}
	return nil
}

// recordAudit emits one fire-and-forget audit event
// 監査イベントを1件送出する（失敗してもワークフローには影響しない）
func (s *SlittingWorkflow) recordAudit(ctx context.Context, action, table, targetID, actorID string, changes map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{
		Action:      action,
		Category:    "slitting",
		TargetTable: table,
		TargetID:    targetID,
		ActorID:     actorID,
		Changes:     changes,
	})
}

// buildSummary aggregates conversion results into an approval summary.
// Loss percentage is loss / (output + loss) in percent, two decimal places.
// 変換結果を承認サマリへ集計する。ロス率は loss / (output + loss) の百分率。
func (s *SlittingWorkflow) buildSummary(jobID string, conversions []conversionResult) *ApprovalSummary {
	summary := &ApprovalSummary{JobID: jobID}
	for _, conv := range conversions {
		summary.ConsumedStocks = append(summary.ConsumedStocks, conv.Parent.ID)
		summary.CreatedStocks = append(summary.CreatedStocks, conv.Created...)
		summary.TotalOutputQty += conv.TotalOutputQty
		summary.LossQty += conv.LossQty
		summary.LossWeightKg = addWeights(summary.LossWeightKg, conv.LossWeightKg)
	}
	total := summary.TotalOutputQty + summary.LossQty
	if total > 0 {
		summary.LossPercent = decimal.NewFromInt(summary.LossQty).
			Div(decimal.NewFromInt(total)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return summary
}

// toConversionOutputs maps stored actual outputs to ledger conversion inputs
// 保存済み実績出力を台帳変換入力へ変換する
func toConversionOutputs(outputs []SlittingActualOutput) []ConversionOutput {
	converted := make([]ConversionOutput, 0, len(outputs))
	for _, out := range outputs {
		converted = append(converted, ConversionOutput{
			WidthMm:  out.WidthMm,
			Quantity: out.Quantity,
			WeightKg: out.WeightKg,
			IsLoss:   out.IsLoss,
		})
	}
	return converted
}
