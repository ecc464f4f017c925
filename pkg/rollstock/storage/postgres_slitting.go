package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

const scheduleColumns = `id, schedule_date, status, notes, created_by, created_at, updated_at`

const jobColumns = `id, schedule_id, seq, kind, status, machine_id, parent_stock_id,
		item_id, parent_width_mm, planned_roll_count, operator_id,
		started_at, completed_at, approved_at, approved_by, created_at, updated_at`

const rollColumns = `id, job_id, seq, stock_id, status, cancel_reason, started_at, completed_at, created_at`

// scanSchedule scans one schedule row
// スケジュール行を1件スキャンする
func scanSchedule(row interface{ Scan(...interface{}) error }) (*rollstock.SlittingSchedule, error) {
	s := &rollstock.SlittingSchedule{}
	err := row.Scan(
		&s.ID,
		&s.ScheduleDate,
		&s.Status,
		&s.Notes,
		&s.CreatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("スケジュール取得に失敗しました: %w", err)
	}
	return s, nil
}

// scanJob scans one job row
// ジョブ行を1件スキャンする
func scanJob(row interface{ Scan(...interface{}) error }) (*rollstock.SlittingJob, error) {
	j := &rollstock.SlittingJob{}
	err := row.Scan(
		&j.ID,
		&j.ScheduleID,
		&j.Seq,
		&j.Kind,
		&j.Status,
		&j.MachineID,
		&j.ParentStockID,
		&j.ItemID,
		&j.ParentWidthMm,
		&j.PlannedRollCount,
		&j.OperatorID,
		&j.StartedAt,
		&j.CompletedAt,
		&j.ApprovedAt,
		&j.ApprovedBy,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrJobNotFound
		}
		return nil, fmt.Errorf("ジョブ取得に失敗しました: %w", err)
	}
	return j, nil
}

// scanRoll scans one roll row
// ロール行を1件スキャンする
func scanRoll(row interface{ Scan(...interface{}) error }) (*rollstock.SlittingJobRoll, error) {
	r := &rollstock.SlittingJobRoll{}
	err := row.Scan(
		&r.ID,
		&r.JobID,
		&r.Seq,
		&r.StockID,
		&r.Status,
		&r.CancelReason,
		&r.StartedAt,
		&r.CompletedAt,
		&r.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrRollNotFound
		}
		return nil, fmt.Errorf("ロール取得に失敗しました: %w", err)
	}
	return r, nil
}

// GetSchedule retrieves one schedule
// スケジュールを1件取得
func (q querier) GetSchedule(ctx context.Context, scheduleID string) (*rollstock.SlittingSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM slitting_schedules WHERE id = $1`
	return scanSchedule(q.db.QueryRowContext(ctx, query, scheduleID))
}

// GetScheduleForUpdate retrieves one schedule with a row lock
// スケジュールを行ロック付きで1件取得
func (t *pgTx) GetScheduleForUpdate(ctx context.Context, scheduleID string) (*rollstock.SlittingSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM slitting_schedules WHERE id = $1 FOR UPDATE`
	return scanSchedule(t.db.QueryRowContext(ctx, query, scheduleID))
}

// ListSchedules retrieves schedules newest first
// スケジュール一覧を新しい順で取得
func (q querier) ListSchedules(ctx context.Context, limit int) ([]rollstock.SlittingSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM slitting_schedules ORDER BY created_at DESC, id LIMIT $1`

	rows, err := q.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("スケジュール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var schedules []rollstock.SlittingSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// CreateSchedule inserts a new schedule
// 新しいスケジュールを挿入
func (q querier) CreateSchedule(ctx context.Context, schedule *rollstock.SlittingSchedule) error {
	query := `
		INSERT INTO slitting_schedules (id, schedule_date, status, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.ScheduleDate,
		schedule.Status,
		schedule.Notes,
		schedule.CreatedBy,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("スケジュール作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateSchedule updates an existing schedule
// 既存スケジュールを更新
func (q querier) UpdateSchedule(ctx context.Context, schedule *rollstock.SlittingSchedule) error {
	query := `
		UPDATE slitting_schedules
		SET status = $2, notes = $3, updated_at = $4
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.Status,
		schedule.Notes,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("スケジュール更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrScheduleNotFound
	}
	return nil
}

// GetJob retrieves one job
// ジョブを1件取得
func (q querier) GetJob(ctx context.Context, jobID string) (*rollstock.SlittingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM slitting_jobs WHERE id = $1`
	return scanJob(q.db.QueryRowContext(ctx, query, jobID))
}

// GetJobForUpdate retrieves one job with a row lock
// ジョブを行ロック付きで1件取得
func (t *pgTx) GetJobForUpdate(ctx context.Context, jobID string) (*rollstock.SlittingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM slitting_jobs WHERE id = $1 FOR UPDATE`
	return scanJob(t.db.QueryRowContext(ctx, query, jobID))
}

// ListJobsBySchedule retrieves the jobs of a schedule in seq order
// スケジュールのジョブ一覧を順序付きで取得
func (q querier) ListJobsBySchedule(ctx context.Context, scheduleID string) ([]rollstock.SlittingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM slitting_jobs WHERE schedule_id = $1 ORDER BY seq`

	rows, err := q.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("ジョブ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []rollstock.SlittingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// CreateJob inserts a new job
// 新しいジョブを挿入
func (q querier) CreateJob(ctx context.Context, job *rollstock.SlittingJob) error {
	query := `
		INSERT INTO slitting_jobs (id, schedule_id, seq, kind, status, machine_id, parent_stock_id,
			item_id, parent_width_mm, planned_roll_count, operator_id,
			started_at, completed_at, approved_at, approved_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := q.db.ExecContext(ctx, query,
		job.ID,
		job.ScheduleID,
		job.Seq,
		job.Kind,
		job.Status,
		job.MachineID,
		job.ParentStockID,
		job.ItemID,
		job.ParentWidthMm,
		job.PlannedRollCount,
		job.OperatorID,
		job.StartedAt,
		job.CompletedAt,
		job.ApprovedAt,
		job.ApprovedBy,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブ作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateJob updates an existing job
// 既存ジョブを更新
func (q querier) UpdateJob(ctx context.Context, job *rollstock.SlittingJob) error {
	query := `
		UPDATE slitting_jobs
		SET status = $2, machine_id = $3, operator_id = $4,
			started_at = $5, completed_at = $6, approved_at = $7, approved_by = $8, updated_at = $9
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.MachineID,
		job.OperatorID,
		job.StartedAt,
		job.CompletedAt,
		job.ApprovedAt,
		job.ApprovedBy,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブ更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrJobNotFound
	}
	return nil
}

// MaxJobSeq returns the highest job seq within a schedule
// スケジュール内の最大ジョブ順序を返す
func (q querier) MaxJobSeq(ctx context.Context, scheduleID string) (int, error) {
	query := `SELECT COALESCE(MAX(seq), 0) FROM slitting_jobs WHERE schedule_id = $1`
	var max int
	if err := q.db.QueryRowContext(ctx, query, scheduleID).Scan(&max); err != nil {
		return 0, fmt.Errorf("ジョブ順序の取得に失敗しました: %w", err)
	}
	return max, nil
}

// GetRoll retrieves one roll
// ロールを1件取得
func (q querier) GetRoll(ctx context.Context, rollID string) (*rollstock.SlittingJobRoll, error) {
	query := `SELECT ` + rollColumns + ` FROM slitting_job_rolls WHERE id = $1`
	return scanRoll(q.db.QueryRowContext(ctx, query, rollID))
}

// GetRollForUpdate retrieves one roll with a row lock
// ロールを行ロック付きで1件取得
func (t *pgTx) GetRollForUpdate(ctx context.Context, rollID string) (*rollstock.SlittingJobRoll, error) {
	query := `SELECT ` + rollColumns + ` FROM slitting_job_rolls WHERE id = $1 FOR UPDATE`
	return scanRoll(t.db.QueryRowContext(ctx, query, rollID))
}

// ListRollsByJob retrieves the rolls of a job in seq order
// ジョブのロール一覧を順序付きで取得
func (q querier) ListRollsByJob(ctx context.Context, jobID string) ([]rollstock.SlittingJobRoll, error) {
	query := `SELECT ` + rollColumns + ` FROM slitting_job_rolls WHERE job_id = $1 ORDER BY seq`

	rows, err := q.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("ロール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var rolls []rollstock.SlittingJobRoll
	for rows.Next() {
		r, err := scanRoll(rows)
		if err != nil {
			return nil, err
		}
		rolls = append(rolls, *r)
	}
	return rolls, rows.Err()
}

// CreateRoll inserts a new roll
// 新しいロールを挿入
func (q querier) CreateRoll(ctx context.Context, roll *rollstock.SlittingJobRoll) error {
	query := `
		INSERT INTO slitting_job_rolls (id, job_id, seq, stock_id, status, cancel_reason,
			started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := q.db.ExecContext(ctx, query,
		roll.ID,
		roll.JobID,
		roll.Seq,
		roll.StockID,
		roll.Status,
		roll.CancelReason,
		roll.StartedAt,
		roll.CompletedAt,
		roll.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ロール作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateRoll updates an existing roll
// 既存ロールを更新
func (q querier) UpdateRoll(ctx context.Context, roll *rollstock.SlittingJobRoll) error {
	query := `
		UPDATE slitting_job_rolls
		SET status = $2, cancel_reason = $3, started_at = $4, completed_at = $5
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query,
		roll.ID,
		roll.Status,
		roll.CancelReason,
		roll.StartedAt,
		roll.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("ロール更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrRollNotFound
	}
	return nil
}

// MaxRollSeq returns the highest roll seq within a job
// ジョブ内の最大ロール順序を返す
func (q querier) MaxRollSeq(ctx context.Context, jobID string) (int, error) {
	query := `SELECT COALESCE(MAX(seq), 0) FROM slitting_job_rolls WHERE job_id = $1`
	var max int
	if err := q.db.QueryRowContext(ctx, query, jobID).Scan(&max); err != nil {
		return 0, fmt.Errorf("ロール順序の取得に失敗しました: %w", err)
	}
	return max, nil
}

// CreatePlannedOutput inserts one planned output
// 予定出力を1件挿入
func (q querier) CreatePlannedOutput(ctx context.Context, output *rollstock.SlittingPlannedOutput) error {
	query := `
		INSERT INTO slitting_planned_outputs (id, job_id, seq, width_mm, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := q.db.ExecContext(ctx, query,
		output.ID,
		output.JobID,
		output.Seq,
		output.WidthMm,
		output.Quantity,
	)
	if err != nil {
		return fmt.Errorf("予定出力の作成に失敗しました: %w", err)
	}
	return nil
}

// ListPlannedOutputsByJob retrieves the planned outputs of a job in seq order
// ジョブの予定出力一覧を順序付きで取得
func (q querier) ListPlannedOutputsByJob(ctx context.Context, jobID string) ([]rollstock.SlittingPlannedOutput, error) {
	query := `
		SELECT id, job_id, seq, width_mm, quantity
		FROM slitting_planned_outputs
		WHERE job_id = $1
		ORDER BY seq`

	rows, err := q.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("予定出力の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var outputs []rollstock.SlittingPlannedOutput
	for rows.Next() {
		o := rollstock.SlittingPlannedOutput{}
		if err := rows.Scan(&o.ID, &o.JobID, &o.Seq, &o.WidthMm, &o.Quantity); err != nil {
			return nil, fmt.Errorf("予定出力のスキャンに失敗しました: %w", err)
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

const actualOutputColumns = `id, job_id, roll_id, planned_output_id, width_mm, quantity, weight_kg, is_loss, created_at`

// scanActualOutput scans one actual output row
// 実績出力行を1件スキャンする
func scanActualOutput(row interface{ Scan(...interface{}) error }) (*rollstock.SlittingActualOutput, error) {
	o := &rollstock.SlittingActualOutput{}
	err := row.Scan(
		&o.ID,
		&o.JobID,
		&o.RollID,
		&o.PlannedOutputID,
		&o.WidthMm,
		&o.Quantity,
		&o.WeightKg,
		&o.IsLoss,
		&o.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrOutputNotFound
		}
		return nil, fmt.Errorf("実績出力の取得に失敗しました: %w", err)
	}
	return o, nil
}

// GetActualOutput retrieves one actual output
// 実績出力を1件取得
func (q querier) GetActualOutput(ctx context.Context, outputID string) (*rollstock.SlittingActualOutput, error) {
	query := `SELECT ` + actualOutputColumns + ` FROM slitting_actual_outputs WHERE id = $1`
	return scanActualOutput(q.db.QueryRowContext(ctx, query, outputID))
}

// ListActualOutputsByJob retrieves the actual outputs of a job in creation order
// ジョブの実績出力一覧を作成順で取得
func (q querier) ListActualOutputsByJob(ctx context.Context, jobID string) ([]rollstock.SlittingActualOutput, error) {
	query := `SELECT ` + actualOutputColumns + ` FROM slitting_actual_outputs WHERE job_id = $1 ORDER BY created_at, id`
	return q.listActualOutputs(ctx, query, jobID)
}

// ListActualOutputsByRoll retrieves the actual outputs of one roll in creation order
// ロールの実績出力一覧を作成順で取得
func (q querier) ListActualOutputsByRoll(ctx context.Context, rollID string) ([]rollstock.SlittingActualOutput, error) {
	query := `SELECT ` + actualOutputColumns + ` FROM slitting_actual_outputs WHERE roll_id = $1 ORDER BY created_at, id`
	return q.listActualOutputs(ctx, query, rollID)
}

func (q querier) listActualOutputs(ctx context.Context, query, arg string) ([]rollstock.SlittingActualOutput, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("実績出力の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var outputs []rollstock.SlittingActualOutput
	for rows.Next() {
		o, err := scanActualOutput(rows)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, *o)
	}
	return outputs, rows.Err()
}

// CreateActualOutput inserts one actual output
// 実績出力を1件挿入
func (q querier) CreateActualOutput(ctx context.Context, output *rollstock.SlittingActualOutput) error {
	query := `
		INSERT INTO slitting_actual_outputs (id, job_id, roll_id, planned_output_id,
			width_mm, quantity, weight_kg, is_loss, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := q.db.ExecContext(ctx, query,
		output.ID,
		output.JobID,
		output.RollID,
		output.PlannedOutputID,
		output.WidthMm,
		output.Quantity,
		output.WeightKg,
		output.IsLoss,
		output.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("実績出力の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateActualOutput updates one actual output before approval
// 承認前の実績出力を更新
func (q querier) UpdateActualOutput(ctx context.Context, output *rollstock.SlittingActualOutput) error {
	query := `
		UPDATE slitting_actual_outputs
		SET planned_output_id = $2, width_mm = $3, quantity = $4, weight_kg = $5, is_loss = $6
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query,
		output.ID,
		output.PlannedOutputID,
		output.WidthMm,
		output.Quantity,
		output.WeightKg,
		output.IsLoss,
	)
	if err != nil {
		return fmt.Errorf("実績出力の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrOutputNotFound
	}
	return nil
}

// CreateSlittingHistory appends one immutable transition record
// 不変の遷移記録を1件追記
func (q querier) CreateSlittingHistory(ctx context.Context, history *rollstock.SlittingHistory) error {
	query := `
		INSERT INTO slitting_histories (id, entity_type, entity_id, action, previous_status,
			new_status, actor_id, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := q.db.ExecContext(ctx, query,
		history.ID,
		history.EntityType,
		history.EntityID,
		history.Action,
		history.PreviousStatus,
		history.NewStatus,
		history.ActorID,
		history.Memo,
		history.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("スリット履歴の作成に失敗しました: %w", err)
	}
	return nil
}

// ListSlittingHistories retrieves the transition history of a schedule or job
// スケジュールまたはジョブの遷移履歴を作成順で取得
func (q querier) ListSlittingHistories(ctx context.Context, entityType, entityID string) ([]rollstock.SlittingHistory, error) {
	query := `
		SELECT id, entity_type, entity_id, action, previous_status, new_status, actor_id, memo, created_at
		FROM slitting_histories
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id`

	rows, err := q.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("スリット履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var histories []rollstock.SlittingHistory
	for rows.Next() {
		h := rollstock.SlittingHistory{}
		err := rows.Scan(
			&h.ID,
			&h.EntityType,
			&h.EntityID,
			&h.Action,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.ActorID,
			&h.Memo,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("スリット履歴のスキャンに失敗しました: %w", err)
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}
