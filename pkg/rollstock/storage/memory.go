// Package storage provides persistence implementations for the rollstock services
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

// memState holds every table of the in-memory store. Entities are stored by
// value so a snapshot is a plain map/slice copy; service code never mutates
// through shared pointers.
// インメモリストアの全テーブルを保持する。エンティティは値で保持する。
type memState struct {
	stocks    map[string]rollstock.Stock
	movements map[string][]rollstock.StockMovement

	items     map[string]rollstock.Item
	locations map[string]rollstock.Location
	machines  map[string]rollstock.Machine

	orders         map[string]rollstock.Order
	orderItems     map[string][]rollstock.OrderItem
	orderHistories map[string][]rollstock.OrderHistory

	schedules         map[string]rollstock.SlittingSchedule
	jobs              map[string]rollstock.SlittingJob
	rolls             map[string]rollstock.SlittingJobRoll
	plannedOutputs    map[string][]rollstock.SlittingPlannedOutput
	actualOutputs     []rollstock.SlittingActualOutput
	slittingHistories []rollstock.SlittingHistory
}

func newMemState() *memState {
	return &memState{
		stocks:         make(map[string]rollstock.Stock),
		movements:      make(map[string][]rollstock.StockMovement),
		items:          make(map[string]rollstock.Item),
		locations:      make(map[string]rollstock.Location),
		machines:       make(map[string]rollstock.Machine),
		orders:         make(map[string]rollstock.Order),
		orderItems:     make(map[string][]rollstock.OrderItem),
		orderHistories: make(map[string][]rollstock.OrderHistory),
		schedules:      make(map[string]rollstock.SlittingSchedule),
		jobs:           make(map[string]rollstock.SlittingJob),
		rolls:          make(map[string]rollstock.SlittingJobRoll),
		plannedOutputs: make(map[string][]rollstock.SlittingPlannedOutput),
	}
}

// clone copies every table. Entity structs are value types, so map and slice
// copies are sufficient.
// 全テーブルを複製する。
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.movements {
		c.movements[k] = append([]rollstock.StockMovement(nil), v...)
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.machines {
		c.machines[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]rollstock.OrderItem(nil), v...)
	}
	for k, v := range s.orderHistories {
		c.orderHistories[k] = append([]rollstock.OrderHistory(nil), v...)
	}
	for k, v := range s.schedules {
		c.schedules[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.rolls {
		c.rolls[k] = v
	}
	for k, v := range s.plannedOutputs {
		c.plannedOutputs[k] = append([]rollstock.SlittingPlannedOutput(nil), v...)
	}
	c.actualOutputs = append([]rollstock.SlittingActualOutput(nil), s.actualOutputs...)
	c.slittingHistories = append([]rollstock.SlittingHistory(nil), s.slittingHistories...)
	return c
}

// MemoryStorage is an in-memory Storage implementation. One mutex serializes
// every transaction, and WithinTx restores a pre-transaction snapshot on
// failure, so the transactional contract matches the SQL implementation.
// Intended for tests and examples.
// インメモリのStorage実装。1つのミューテックスが全トランザクションを
// 直列化し、失敗時はスナップショットへ巻き戻す。テストと例のための実装。
type MemoryStorage struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStorage creates an empty in-memory storage
// 空のインメモリストレージを作成
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{state: newMemState()}
}

// SeedItem inserts an item master record
// 品目マスタを投入する
func (m *MemoryStorage) SeedItem(item rollstock.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.items[item.ID] = item
}

// SeedLocation inserts a location master record
// 保管場所マスタを投入する
func (m *MemoryStorage) SeedLocation(location rollstock.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.locations[location.ID] = location
}

// SeedMachine inserts a machine record
// 機械レコードを投入する
func (m *MemoryStorage) SeedMachine(machine rollstock.Machine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.machines[machine.ID] = machine
}

// WithinTx runs fn against the live state under the store lock. On error the
// pre-transaction snapshot is restored, discarding every write fn made.
// ストアロックの下でfnを実行する。エラー時はスナップショットへ巻き戻す。
func (m *MemoryStorage) WithinTx(_ context.Context, fn func(tx rollstock.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{state: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Ping is a no-op for the in-memory store
// インメモリストアでは何もしない
func (m *MemoryStorage) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store
// インメモリストアでは何もしない
func (m *MemoryStorage) Close() error { return nil }

// Reader methods on the storage handle take the lock themselves.
// ストレージ本体のReaderメソッドは自身でロックを取る。

func (m *MemoryStorage) locked(fn func(tx *memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{state: m.state})
}

func (m *MemoryStorage) GetStock(ctx context.Context, stockID string) (*rollstock.Stock, error) {
	var out *rollstock.Stock
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetStock(ctx, stockID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListStocksByItem(ctx context.Context, itemID string) ([]rollstock.Stock, error) {
	var out []rollstock.Stock
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListStocksByItem(ctx, itemID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListMovementsByStock(ctx context.Context, stockID string) ([]rollstock.StockMovement, error) {
	var out []rollstock.StockMovement
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListMovementsByStock(ctx, stockID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetItem(ctx context.Context, itemID string) (*rollstock.Item, error) {
	var out *rollstock.Item
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetItem(ctx, itemID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetLocation(ctx context.Context, locationID string) (*rollstock.Location, error) {
	var out *rollstock.Location
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetLocation(ctx, locationID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetMachine(ctx context.Context, machineID string) (*rollstock.Machine, error) {
	var out *rollstock.Machine
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetMachine(ctx, machineID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetOrder(ctx context.Context, orderID string) (*rollstock.Order, error) {
	var out *rollstock.Order
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetOrder(ctx, orderID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListOrders(ctx context.Context, status *rollstock.OrderStatus, limit int) ([]rollstock.Order, error) {
	var out []rollstock.Order
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListOrders(ctx, status, limit)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListOrderHistories(ctx context.Context, orderID string) ([]rollstock.OrderHistory, error) {
	var out []rollstock.OrderHistory
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListOrderHistories(ctx, orderID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetSchedule(ctx context.Context, scheduleID string) (*rollstock.SlittingSchedule, error) {
	var out *rollstock.SlittingSchedule
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetSchedule(ctx, scheduleID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListSchedules(ctx context.Context, limit int) ([]rollstock.SlittingSchedule, error) {
	var out []rollstock.SlittingSchedule
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListSchedules(ctx, limit)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetJob(ctx context.Context, jobID string) (*rollstock.SlittingJob, error) {
	var out *rollstock.SlittingJob
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetJob(ctx, jobID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListJobsBySchedule(ctx context.Context, scheduleID string) ([]rollstock.SlittingJob, error) {
	var out []rollstock.SlittingJob
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListJobsBySchedule(ctx, scheduleID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetRoll(ctx context.Context, rollID string) (*rollstock.SlittingJobRoll, error) {
	var out *rollstock.SlittingJobRoll
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetRoll(ctx, rollID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListRollsByJob(ctx context.Context, jobID string) ([]rollstock.SlittingJobRoll, error) {
	var out []rollstock.SlittingJobRoll
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListRollsByJob(ctx, jobID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListPlannedOutputsByJob(ctx context.Context, jobID string) ([]rollstock.SlittingPlannedOutput, error) {
	var out []rollstock.SlittingPlannedOutput
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListPlannedOutputsByJob(ctx, jobID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) GetActualOutput(ctx context.Context, outputID string) (*rollstock.SlittingActualOutput, error) {
	var out *rollstock.SlittingActualOutput
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.GetActualOutput(ctx, outputID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListActualOutputsByJob(ctx context.Context, jobID string) ([]rollstock.SlittingActualOutput, error) {
	var out []rollstock.SlittingActualOutput
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListActualOutputsByJob(ctx, jobID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListActualOutputsByRoll(ctx context.Context, rollID string) ([]rollstock.SlittingActualOutput, error) {
	var out []rollstock.SlittingActualOutput
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListActualOutputsByRoll(ctx, rollID)
		return err
	})
	return out, err
}

func (m *MemoryStorage) ListSlittingHistories(ctx context.Context, entityType, entityID string) ([]rollstock.SlittingHistory, error) {
	var out []rollstock.SlittingHistory
	err := m.locked(func(tx *memTx) error {
		var err error
		out, err = tx.ListSlittingHistories(ctx, entityType, entityID)
		return err
	})
	return out, err
}

// memTx operates directly on the live state. The store lock is held for the
// whole transaction, so plain reads double as locking reads.
// ライブ状態を直接操作する。ロックがトランザクション全体で保持されるため、
// 通常の読み取りがロック付き読み取りを兼ねる。
type memTx struct {
	state *memState
}

func (t *memTx) GetStock(_ context.Context, stockID string) (*rollstock.Stock, error) {
	s, ok := t.state.stocks[stockID]
	if !ok {
		return nil, rollstock.ErrStockNotFound
	}
	return &s, nil
}

func (t *memTx) ListStocksByItem(_ context.Context, itemID string) ([]rollstock.Stock, error) {
	var out []rollstock.Stock
	for _, s := range t.state.stocks {
		if s.ItemID == itemID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) ListMovementsByStock(_ context.Context, stockID string) ([]rollstock.StockMovement, error) {
	return append([]rollstock.StockMovement(nil), t.state.movements[stockID]...), nil
}

func (t *memTx) GetItem(_ context.Context, itemID string) (*rollstock.Item, error) {
	i, ok := t.state.items[itemID]
	if !ok {
		return nil, rollstock.ErrItemNotFound
	}
	return &i, nil
}

func (t *memTx) GetLocation(_ context.Context, locationID string) (*rollstock.Location, error) {
	l, ok := t.state.locations[locationID]
	if !ok {
		return nil, rollstock.ErrLocationNotFound
	}
	return &l, nil
}

func (t *memTx) GetMachine(_ context.Context, machineID string) (*rollstock.Machine, error) {
	m, ok := t.state.machines[machineID]
	if !ok {
		return nil, rollstock.ErrMachineNotFound
	}
	return &m, nil
}

func (t *memTx) GetOrder(_ context.Context, orderID string) (*rollstock.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return nil, rollstock.ErrOrderNotFound
	}
	o.Items = append([]rollstock.OrderItem(nil), t.state.orderItems[orderID]...)
	return &o, nil
}

func (t *memTx) ListOrders(_ context.Context, status *rollstock.OrderStatus, limit int) ([]rollstock.Order, error) {
	var out []rollstock.Order
	for id, o := range t.state.orders {
		if status != nil && o.Status != *status {
			continue
		}
		o.Items = append([]rollstock.OrderItem(nil), t.state.orderItems[id]...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) ListOrderHistories(_ context.Context, orderID string) ([]rollstock.OrderHistory, error) {
	return append([]rollstock.OrderHistory(nil), t.state.orderHistories[orderID]...), nil
}

func (t *memTx) GetSchedule(_ context.Context, scheduleID string) (*rollstock.SlittingSchedule, error) {
	s, ok := t.state.schedules[scheduleID]
	if !ok {
		return nil, rollstock.ErrScheduleNotFound
	}
	return &s, nil
}

func (t *memTx) ListSchedules(_ context.Context, limit int) ([]rollstock.SlittingSchedule, error) {
	var out []rollstock.SlittingSchedule
	for _, s := range t.state.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) GetJob(_ context.Context, jobID string) (*rollstock.SlittingJob, error) {
	j, ok := t.state.jobs[jobID]
	if !ok {
		return nil, rollstock.ErrJobNotFound
	}
	return &j, nil
}

func (t *memTx) ListJobsBySchedule(_ context.Context, scheduleID string) ([]rollstock.SlittingJob, error) {
	var out []rollstock.SlittingJob
	for _, j := range t.state.jobs {
		if j.ScheduleID == scheduleID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *memTx) GetRoll(_ context.Context, rollID string) (*rollstock.SlittingJobRoll, error) {
	r, ok := t.state.rolls[rollID]
	if !ok {
		return nil, rollstock.ErrRollNotFound
	}
	return &r, nil
}

func (t *memTx) ListRollsByJob(_ context.Context, jobID string) ([]rollstock.SlittingJobRoll, error) {
	var out []rollstock.SlittingJobRoll
	for _, r := range t.state.rolls {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *memTx) ListPlannedOutputsByJob(_ context.Context, jobID string) ([]rollstock.SlittingPlannedOutput, error) {
	return append([]rollstock.SlittingPlannedOutput(nil), t.state.plannedOutputs[jobID]...), nil
}

func (t *memTx) GetActualOutput(_ context.Context, outputID string) (*rollstock.SlittingActualOutput, error) {
	for _, o := range t.state.actualOutputs {
		if o.ID == outputID {
			out := o
			return &out, nil
		}
	}
	return nil, rollstock.ErrOutputNotFound
}

func (t *memTx) ListActualOutputsByJob(_ context.Context, jobID string) ([]rollstock.SlittingActualOutput, error) {
	var out []rollstock.SlittingActualOutput
	for _, o := range t.state.actualOutputs {
		if o.JobID == jobID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *memTx) ListActualOutputsByRoll(_ context.Context, rollID string) ([]rollstock.SlittingActualOutput, error) {
	var out []rollstock.SlittingActualOutput
	for _, o := range t.state.actualOutputs {
		if o.RollID != nil && *o.RollID == rollID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *memTx) ListSlittingHistories(_ context.Context, entityType, entityID string) ([]rollstock.SlittingHistory, error) {
	var out []rollstock.SlittingHistory
	for _, h := range t.state.slittingHistories {
		if h.EntityType == entityType && h.EntityID == entityID {
			out = append(out, h)
		}
	}
	return out, nil
}

// Locking reads / 行ロック付き読み取り

func (t *memTx) GetStockForUpdate(ctx context.Context, stockID string) (*rollstock.Stock, error) {
	return t.GetStock(ctx, stockID)
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, orderID string) (*rollstock.Order, error) {
	return t.GetOrder(ctx, orderID)
}

func (t *memTx) GetScheduleForUpdate(ctx context.Context, scheduleID string) (*rollstock.SlittingSchedule, error) {
	return t.GetSchedule(ctx, scheduleID)
}

func (t *memTx) GetJobForUpdate(ctx context.Context, jobID string) (*rollstock.SlittingJob, error) {
	return t.GetJob(ctx, jobID)
}

func (t *memTx) GetRollForUpdate(ctx context.Context, rollID string) (*rollstock.SlittingJobRoll, error) {
	return t.GetRoll(ctx, rollID)
}

func (t *memTx) GetMachineForUpdate(ctx context.Context, machineID string) (*rollstock.Machine, error) {
	return t.GetMachine(ctx, machineID)
}

// Sequence state / 連番状態

func (t *memTx) CountBatchNumbers(_ context.Context, prefix string) (int, error) {
	count := 0
	for _, s := range t.state.stocks {
		if strings.HasPrefix(s.BatchNumber, prefix) {
			count++
		}
	}
	return count, nil
}

func (t *memTx) CountOrderNumbers(_ context.Context, prefix string) (int, error) {
	count := 0
	for _, o := range t.state.orders {
		if strings.HasPrefix(o.OrderNumber, prefix) {
			count++
		}
	}
	return count, nil
}

func (t *memTx) MaxJobSeq(_ context.Context, scheduleID string) (int, error) {
	max := 0
	for _, j := range t.state.jobs {
		if j.ScheduleID == scheduleID && j.Seq > max {
			max = j.Seq
		}
	}
	return max, nil
}

func (t *memTx) MaxRollSeq(_ context.Context, jobID string) (int, error) {
	max := 0
	for _, r := range t.state.rolls {
		if r.JobID == jobID && r.Seq > max {
			max = r.Seq
		}
	}
	return max, nil
}

// Writes / 書き込み

func (t *memTx) CreateStock(_ context.Context, stock *rollstock.Stock) error {
	t.state.stocks[stock.ID] = *stock
	return nil
}

func (t *memTx) UpdateStock(_ context.Context, stock *rollstock.Stock) error {
	if _, ok := t.state.stocks[stock.ID]; !ok {
		return rollstock.ErrStockNotFound
	}
	t.state.stocks[stock.ID] = *stock
	return nil
}

func (t *memTx) CreateMovement(_ context.Context, movement *rollstock.StockMovement) error {
	t.state.movements[movement.StockID] = append(t.state.movements[movement.StockID], *movement)
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, order *rollstock.Order) error {
	o := *order
	o.Items = nil
	t.state.orders[order.ID] = o
	return nil
}

func (t *memTx) UpdateOrder(_ context.Context, order *rollstock.Order) error {
	if _, ok := t.state.orders[order.ID]; !ok {
		return rollstock.ErrOrderNotFound
	}
	o := *order
	o.Items = nil
	t.state.orders[order.ID] = o
	return nil
}

func (t *memTx) CreateOrderItem(_ context.Context, item *rollstock.OrderItem) error {
	t.state.orderItems[item.OrderID] = append(t.state.orderItems[item.OrderID], *item)
	return nil
}

func (t *memTx) UpdateOrderItem(_ context.Context, item *rollstock.OrderItem) error {
	lines := t.state.orderItems[item.OrderID]
	for i := range lines {
		if lines[i].ID == item.ID {
			lines[i] = *item
			return nil
		}
	}
	return rollstock.ErrOrderNotFound
}

func (t *memTx) CreateOrderHistory(_ context.Context, history *rollstock.OrderHistory) error {
	t.state.orderHistories[history.OrderID] = append(t.state.orderHistories[history.OrderID], *history)
	return nil
}

func (t *memTx) CreateSchedule(_ context.Context, schedule *rollstock.SlittingSchedule) error {
	t.state.schedules[schedule.ID] = *schedule
	return nil
}

func (t *memTx) UpdateSchedule(_ context.Context, schedule *rollstock.SlittingSchedule) error {
	if _, ok := t.state.schedules[schedule.ID]; !ok {
		return rollstock.ErrScheduleNotFound
	}
	t.state.schedules[schedule.ID] = *schedule
	return nil
}

func (t *memTx) CreateJob(_ context.Context, job *rollstock.SlittingJob) error {
	t.state.jobs[job.ID] = *job
	return nil
}

func (t *memTx) UpdateJob(_ context.Context, job *rollstock.SlittingJob) error {
	if _, ok := t.state.jobs[job.ID]; !ok {
		return rollstock.ErrJobNotFound
	}
	t.state.jobs[job.ID] = *job
	return nil
}

func (t *memTx) CreateRoll(_ context.Context, roll *rollstock.SlittingJobRoll) error {
	t.state.rolls[roll.ID] = *roll
	return nil
}

func (t *memTx) UpdateRoll(_ context.Context, roll *rollstock.SlittingJobRoll) error {
	if _, ok := t.state.rolls[roll.ID]; !ok {
		return rollstock.ErrRollNotFound
	}
	t.state.rolls[roll.ID] = *roll
	return nil
}

func (t *memTx) UpdateMachine(_ context.Context, machine *rollstock.Machine) error {
	if _, ok := t.state.machines[machine.ID]; !ok {
		return rollstock.ErrMachineNotFound
	}
	t.state.machines[machine.ID] = *machine
	return nil
}

func (t *memTx) CreatePlannedOutput(_ context.Context, output *rollstock.SlittingPlannedOutput) error {
	t.state.plannedOutputs[output.JobID] = append(t.state.plannedOutputs[output.JobID], *output)
	return nil
}

func (t *memTx) CreateActualOutput(_ context.Context, output *rollstock.SlittingActualOutput) error {
	t.state.actualOutputs = append(t.state.actualOutputs, *output)
	return nil
}

func (t *memTx) UpdateActualOutput(_ context.Context, output *rollstock.SlittingActualOutput) error {
	for i := range t.state.actualOutputs {
		if t.state.actualOutputs[i].ID == output.ID {
			t.state.actualOutputs[i] = *output
			return nil
		}
	}
	return rollstock.ErrOutputNotFound
}

func (t *memTx) CreateSlittingHistory(_ context.Context, history *rollstock.SlittingHistory) error {
	t.state.slittingHistories = append(t.state.slittingHistories, *history)
	return nil
}
