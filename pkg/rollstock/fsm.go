package rollstock

// Finite state machine transition tables. Every workflow transition is
// checked here, in one place, instead of ad-hoc status comparisons at each
// call site.
// 有限状態機械の遷移表。ワークフロー遷移の検証はすべてここで一元化する。

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusFieldProcessing,
		OrderStatusApproved, // 緊急承認（現場作業スキップ）
		OrderStatusCancelled,
	},
	OrderStatusFieldProcessing: {
		OrderStatusAwaitingApproval,
		OrderStatusCancelled,
	},
	OrderStatusAwaitingApproval: {
		OrderStatusApproved,
		OrderStatusRejected,
		OrderStatusCancelled,
	},
	// approved / rejected / cancelled are terminal
	// approved / rejected / cancelled は終端
}

var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleStatusDraft:      {ScheduleStatusPublished},
	ScheduleStatusPublished:  {ScheduleStatusInProgress},
	ScheduleStatusInProgress: {ScheduleStatusCompleted},
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusReady},
	JobStatusReady:      {JobStatusInProgress},
	JobStatusInProgress: {JobStatusCompleted},
	JobStatusCompleted:  {JobStatusApproved},
}

var rollTransitions = map[RollStatus][]RollStatus{
	RollStatusRegistered: {RollStatusInProgress, RollStatusCancelled},
	RollStatusInProgress: {RollStatusCompleted, RollStatusCancelled},
}

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// CanTransitionOrder reports whether an order may move from one status to another
// オーダーのステータス遷移が許可されているかを返す
func CanTransitionOrder(from, to OrderStatus) bool {
	return contains(orderTransitions[from], to)
}

// CanTransitionSchedule reports whether a schedule may move from one status to another
// スケジュールのステータス遷移が許可されているかを返す
func CanTransitionSchedule(from, to ScheduleStatus) bool {
	return contains(scheduleTransitions[from], to)
}

// CanTransitionJob reports whether a job may move from one status to another
// ジョブのステータス遷移が許可されているかを返す
func CanTransitionJob(from, to JobStatus) bool {
	return contains(jobTransitions[from], to)
}

// CanTransitionRoll reports whether a roll may move from one status to another
// ロールのステータス遷移が許可されているかを返す
func CanTransitionRoll(from, to RollStatus) bool {
	return contains(rollTransitions[from], to)
}

// IsTerminalOrderStatus reports whether the status permits no further transition
// ステータスがそれ以上遷移できない終端かどうかを返す
func IsTerminalOrderStatus(s OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// transitionOrder validates and applies an order status transition
// オーダーのステータス遷移を検証して適用する
func transitionOrder(o *Order, to OrderStatus) error {
	if !CanTransitionOrder(o.Status, to) {
		return NewStateConflictError("order", o.ID, string(o.Status), requiredOrderStatuses(to)...)
	}
	o.Status = to
	return nil
}

// transitionSchedule validates and applies a schedule status transition
// スケジュールのステータス遷移を検証して適用する
func transitionSchedule(s *SlittingSchedule, to ScheduleStatus) error {
	if !CanTransitionSchedule(s.Status, to) {
		return NewStateConflictError("schedule", s.ID, string(s.Status), requiredScheduleStatuses(to)...)
	}
	s.Status = to
	return nil
}

// transitionJob validates and applies a job status transition
// ジョブのステータス遷移を検証して適用する
func transitionJob(j *SlittingJob, to JobStatus) error {
	if !CanTransitionJob(j.Status, to) {
		return NewStateConflictError("job", j.ID, string(j.Status), requiredJobStatuses(to)...)
	}
	j.Status = to
	return nil
}

// transitionRoll validates and applies a roll status transition
// ロールのステータス遷移を検証して適用する
func transitionRoll(r *SlittingJobRoll, to RollStatus) error {
	if !CanTransitionRoll(r.Status, to) {
		return NewStateConflictError("roll", r.ID, string(r.Status), requiredRollStatuses(to)...)
	}
	r.Status = to
	return nil
}

// requiredOrderStatuses lists the statuses an order must be in to reach the target
// 目標ステータスへ遷移するために必要なステータス一覧を返す
func requiredOrderStatuses(to OrderStatus) []string {
	var out []string
	for from, tos := range orderTransitions {
		if contains(tos, to) {
			out = append(out, string(from))
		}
	}
	return out
}

func requiredScheduleStatuses(to ScheduleStatus) []string {
	var out []string
	for from, tos := range scheduleTransitions {
		if contains(tos, to) {
			out = append(out, string(from))
		}
	}
	return out
}

func requiredJobStatuses(to JobStatus) []string {
	var out []string
	for from, tos := range jobTransitions {
		if contains(tos, to) {
			out = append(out, string(from))
		}
	}
	return out
}

func requiredRollStatuses(to RollStatus) []string {
	var out []string
	for from, tos := range rollTransitions {
		if contains(tos, to) {
			out = append(out, string(from))
		}
	}
	return out
}
