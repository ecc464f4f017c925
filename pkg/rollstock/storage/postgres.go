package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fujimino/rollzai/pkg/rollstock"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx. Every
// query method is written once against this interface and works both outside
// and inside a transaction.
// *sql.DBと*sql.Txが共通して持つ操作。クエリはこのインターフェースに対して
// 一度だけ書き、トランザクション内外の両方で使う。
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier implements every read and write against a dbtx
// dbtxに対する全ての読み書きを実装する
type querier struct {
	db dbtx
}

// PostgresStorage implements the Storage interface using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgresStorage struct {
	querier
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgresStorage(dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStorage{
		querier: querier{db: db},
		db:      db,
		logger:  logger,
	}, nil
}

// pgTx implements the Tx interface over a running *sql.Tx
// 実行中の*sql.Txの上でTxインターフェースを実装する
type pgTx struct {
	querier
	tx *sql.Tx
}

// WithinTx runs fn inside one database transaction. fn's writes either all
// commit or all roll back; a commit failure leaves the outcome unknown and is
// reported as a consistency fault for operator attention.
// fnを1つのデータベーストランザクション内で実行する。コミット失敗は結果が
// 不明なため整合性エラーとして報告する。
func (s *PostgresStorage) WithinTx(ctx context.Context, fn func(tx rollstock.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rollstock.NewStorageError("begin_tx", "トランザクション開始に失敗しました", err)
	}

	if err := fn(&pgTx{querier: querier{db: tx}, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return rollstock.NewConsistencyFault("commit_tx", "コミットに失敗しました", err)
	}
	return nil
}

// Ping checks database connectivity
// データベース接続を確認
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation
// PostgreSQLの一意制約違反かどうかを返す
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

const stockColumns = `id, item_id, location_id, width_mm, condition, quantity, weight_kg,
		status, is_active, batch_number, parent_stock_id, created_by, created_at, updated_at`

// scanStock scans one stock row
// 在庫行を1件スキャンする
func scanStock(row interface{ Scan(...interface{}) error }) (*rollstock.Stock, error) {
	stock := &rollstock.Stock{}
	err := row.Scan(
		&stock.ID,
		&stock.ItemID,
		&stock.LocationID,
		&stock.WidthMm,
		&stock.Condition,
		&stock.Quantity,
		&stock.WeightKg,
		&stock.Status,
		&stock.IsActive,
		&stock.BatchNumber,
		&stock.ParentStockID,
		&stock.CreatedBy,
		&stock.CreatedAt,
		&stock.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrStockNotFound
		}
		return nil, fmt.Errorf("在庫取得に失敗しました: %w", err)
	}
	return stock, nil
}

// GetStock retrieves one stock lot
// 在庫ロットを1件取得
func (q querier) GetStock(ctx context.Context, stockID string) (*rollstock.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE id = $1`
	return scanStock(q.db.QueryRowContext(ctx, query, stockID))
}

// GetStockForUpdate retrieves one stock lot with a row lock
// 在庫ロットを行ロック付きで1件取得
func (t *pgTx) GetStockForUpdate(ctx context.Context, stockID string) (*rollstock.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE id = $1 FOR UPDATE`
	return scanStock(t.db.QueryRowContext(ctx, query, stockID))
}

// ListStocksByItem retrieves all stock lots of an item in creation order
// 品目の全在庫ロットを作成順で取得
func (q querier) ListStocksByItem(ctx context.Context, itemID string) ([]rollstock.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE item_id = $1 ORDER BY created_at, id`

	rows, err := q.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("在庫一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var stocks []rollstock.Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, *stock)
	}
	return stocks, rows.Err()
}

// CreateStock inserts a new stock lot
// 新しい在庫ロットを挿入
func (q querier) CreateStock(ctx context.Context, stock *rollstock.Stock) error {
	query := `
		INSERT INTO stocks (id, item_id, location_id, width_mm, condition, quantity, weight_kg,
			status, is_active, batch_number, parent_stock_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := q.db.ExecContext(ctx, query,
		stock.ID,
		stock.ItemID,
		stock.LocationID,
		stock.WidthMm,
		stock.Condition,
		stock.Quantity,
		stock.WeightKg,
		stock.Status,
		stock.IsActive,
		stock.BatchNumber,
		stock.ParentStockID,
		stock.CreatedBy,
		stock.CreatedAt,
		stock.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("在庫ロットは既に存在します")
		}
		return fmt.Errorf("在庫作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStock updates an existing stock lot
// 既存の在庫ロットを更新
func (q querier) UpdateStock(ctx context.Context, stock *rollstock.Stock) error {
	query := `
		UPDATE stocks
		SET quantity = $2, weight_kg = $3, status = $4, is_active = $5, updated_at = $6
		WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query,
		stock.ID,
		stock.Quantity,
		stock.WeightKg,
		stock.Status,
		stock.IsActive,
		stock.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("在庫更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrStockNotFound
	}
	return nil
}

// CreateMovement appends one ledger entry. The movements table is append-only;
// there is deliberately no update or delete.
// 台帳エントリを1件追記する。移動テーブルは追記専用。
func (q querier) CreateMovement(ctx context.Context, movement *rollstock.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, stock_id, type, quantity_change, quantity_before,
			quantity_after, weight_change, weight_before, weight_after,
			reference_type, reference_id, reason, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := q.db.ExecContext(ctx, query,
		movement.ID,
		movement.StockID,
		movement.Type,
		movement.QuantityChange,
		movement.QuantityBefore,
		movement.QuantityAfter,
		movement.WeightChange,
		movement.WeightBefore,
		movement.WeightAfter,
		movement.ReferenceType,
		movement.ReferenceID,
		movement.Reason,
		movement.PerformedBy,
		movement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("移動記録の作成に失敗しました: %w", err)
	}
	return nil
}

// ListMovementsByStock retrieves the movement ledger of a stock lot in creation order
// 在庫ロットの移動台帳を作成順で取得
func (q querier) ListMovementsByStock(ctx context.Context, stockID string) ([]rollstock.StockMovement, error) {
	query := `
		SELECT id, stock_id, type, quantity_change, quantity_before, quantity_after,
			weight_change, weight_before, weight_after,
			reference_type, reference_id, reason, performed_by, created_at
		FROM stock_movements
		WHERE stock_id = $1
		ORDER BY created_at, id`

	rows, err := q.db.QueryContext(ctx, query, stockID)
	if err != nil {
		return nil, fmt.Errorf("移動記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var movements []rollstock.StockMovement
	for rows.Next() {
		m := rollstock.StockMovement{}
		err := rows.Scan(
			&m.ID,
			&m.StockID,
			&m.Type,
			&m.QuantityChange,
			&m.QuantityBefore,
			&m.QuantityAfter,
			&m.WeightChange,
			&m.WeightBefore,
			&m.WeightAfter,
			&m.ReferenceType,
			&m.ReferenceID,
			&m.Reason,
			&m.PerformedBy,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("移動記録のスキャンに失敗しました: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// CountBatchNumbers counts stock lots whose batch number starts with the prefix
// バッチ番号がプレフィックスで始まる在庫ロット数を数える
func (q querier) CountBatchNumbers(ctx context.Context, prefix string) (int, error) {
	query := `SELECT COUNT(*) FROM stocks WHERE batch_number LIKE $1 || '%'`
	var count int
	if err := q.db.QueryRowContext(ctx, query, prefix).Scan(&count); err != nil {
		return 0, fmt.Errorf("バッチ番号の集計に失敗しました: %w", err)
	}
	return count, nil
}

// GetItem retrieves one item master record
// 品目マスタを1件取得
func (q querier) GetItem(ctx context.Context, itemID string) (*rollstock.Item, error) {
	query := `SELECT id, name, code, is_active, created_at, updated_at FROM items WHERE id = $1`

	item := &rollstock.Item{}
	err := q.db.QueryRowContext(ctx, query, itemID).Scan(
		&item.ID,
		&item.Name,
		&item.Code,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrItemNotFound
		}
		return nil, fmt.Errorf("品目取得に失敗しました: %w", err)
	}
	return item, nil
}

// GetLocation retrieves one location master record
// 保管場所マスタを1件取得
func (q querier) GetLocation(ctx context.Context, locationID string) (*rollstock.Location, error) {
	query := `SELECT id, name, type, is_active, created_at, updated_at FROM locations WHERE id = $1`

	location := &rollstock.Location{}
	err := q.db.QueryRowContext(ctx, query, locationID).Scan(
		&location.ID,
		&location.Name,
		&location.Type,
		&location.IsActive,
		&location.CreatedAt,
		&location.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrLocationNotFound
		}
		return nil, fmt.Errorf("保管場所取得に失敗しました: %w", err)
	}
	return location, nil
}

// scanMachine scans one machine row
// 機械行を1件スキャンする
func scanMachine(row interface{ Scan(...interface{}) error }) (*rollstock.Machine, error) {
	machine := &rollstock.Machine{}
	err := row.Scan(
		&machine.ID,
		&machine.Name,
		&machine.Status,
		&machine.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rollstock.ErrMachineNotFound
		}
		return nil, fmt.Errorf("機械取得に失敗しました: %w", err)
	}
	return machine, nil
}

// GetMachine retrieves one machine record
// 機械を1件取得
func (q querier) GetMachine(ctx context.Context, machineID string) (*rollstock.Machine, error) {
	query := `SELECT id, name, status, updated_at FROM machines WHERE id = $1`
	return scanMachine(q.db.QueryRowContext(ctx, query, machineID))
}

// GetMachineForUpdate retrieves one machine record with a row lock
// 機械を行ロック付きで1件取得
func (t *pgTx) GetMachineForUpdate(ctx context.Context, machineID string) (*rollstock.Machine, error) {
	query := `SELECT id, name, status, updated_at FROM machines WHERE id = $1 FOR UPDATE`
	return scanMachine(t.db.QueryRowContext(ctx, query, machineID))
}

// UpdateMachine updates a machine's status
// 機械のステータスを更新
func (q querier) UpdateMachine(ctx context.Context, machine *rollstock.Machine) error {
	query := `UPDATE machines SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := q.db.ExecContext(ctx, query, machine.ID, machine.Status, machine.UpdatedAt)
	if err != nil {
		return fmt.Errorf("機械更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return rollstock.ErrMachineNotFound
	}
	return nil
}
