package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/irfndi/bidback-engine/internal/models"
)

// PgxIface is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TradeStore persists what the engine returns. The engine itself never
// writes; handlers call the engine, then hand the result here.
type TradeStore struct {
	db PgxIface
}

// NewTradeStore creates a store over a pgx pool (or a mock in tests).
func NewTradeStore(db PgxIface) *TradeStore {
	return &TradeStore{db: db}
}

// SaveSnapshot upserts one market-breadth snapshot, keyed by trading day:
// the import layer delivers exactly one per day, and re-imports replace it.
func (s *TradeStore) SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO market_snapshots (id, stocks_up_4pct, stocks_down_4pct, t2108, vix, date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date) DO UPDATE SET
			stocks_up_4pct = EXCLUDED.stocks_up_4pct,
			stocks_down_4pct = EXCLUDED.stocks_down_4pct,
			t2108 = EXCLUDED.t2108,
			vix = EXCLUDED.vix`,
		snapshot.ID, snapshot.StocksUp4Pct, snapshot.StocksDown4Pct,
		snapshot.T2108, snapshot.VIX, snapshot.Date)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot by trading day.
func (s *TradeStore) LatestSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, stocks_up_4pct, stocks_down_4pct, t2108, vix, date
		FROM market_snapshots
		ORDER BY date DESC
		LIMIT 1`)

	var snap models.MarketSnapshot
	err := row.Scan(&snap.ID, &snap.StocksUp4Pct, &snap.StocksDown4Pct, &snap.T2108, &snap.VIX, &snap.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return &snap, nil
}

// SnapshotHistory returns the most recent limit snapshots in chronological
// order, oldest first, for the breadth analyzer.
func (s *TradeStore) SnapshotHistory(ctx context.Context, limit int) ([]models.MarketSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, stocks_up_4pct, stocks_down_4pct, t2108, vix, date
		FROM (
			SELECT id, stocks_up_4pct, stocks_down_4pct, t2108, vix, date
			FROM market_snapshots
			ORDER BY date DESC
			LIMIT $1
		) recent
		ORDER BY date ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	defer rows.Close()

	var history []models.MarketSnapshot
	for rows.Next() {
		var snap models.MarketSnapshot
		if err := rows.Scan(&snap.ID, &snap.StocksUp4Pct, &snap.StocksDown4Pct, &snap.T2108, &snap.VIX, &snap.Date); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		history = append(history, snap)
	}
	return history, rows.Err()
}

// SaveTrade inserts a freshly planned trade.
func (s *TradeStore) SaveTrade(ctx context.Context, trade *models.PlannedTrade) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO planned_trades (
			id, symbol, entry_price, base_position_size, calculated_position_size,
			stocks_up_4pct, stocks_down_4pct, t2108, vix, snapshot_date,
			vix_regime, breadth_strength, vix_multiplier, breadth_multiplier,
			is_big_opportunity, avoid_entry, portfolio_heat_percent,
			stop_loss, profit_target_1, profit_target_2, max_hold_days, time_exit_date,
			status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		trade.ID, trade.Symbol, trade.EntryPrice, trade.BasePositionSize, trade.CalculatedPositionSize,
		trade.StocksUp4Pct, trade.StocksDown4Pct, trade.T2108, trade.VIX, trade.SnapshotDate,
		trade.VixRegime, trade.BreadthStrength, trade.VixMultiplier, trade.BreadthMultiplier,
		trade.IsBigOpportunity, trade.AvoidEntry, trade.PortfolioHeatPercent,
		trade.StopLoss, trade.ProfitTarget1, trade.ProfitTarget2, trade.MaxHoldDays, trade.TimeExitDate,
		trade.Status, trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// UpdateTradeStatus persists a status transition the tracker approved.
func (s *TradeStore) UpdateTradeStatus(ctx context.Context, id string, status models.TradeStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE planned_trades SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update trade status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTrade loads one planned trade by id.
func (s *TradeStore) GetTrade(ctx context.Context, id string) (*models.PlannedTrade, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, symbol, entry_price, base_position_size, calculated_position_size,
			stocks_up_4pct, stocks_down_4pct, t2108, vix, snapshot_date,
			vix_regime, breadth_strength, vix_multiplier, breadth_multiplier,
			is_big_opportunity, avoid_entry, portfolio_heat_percent,
			stop_loss, profit_target_1, profit_target_2, max_hold_days, time_exit_date,
			status, created_at
		FROM planned_trades WHERE id = $1`, id)

	var trade models.PlannedTrade
	err := row.Scan(
		&trade.ID, &trade.Symbol, &trade.EntryPrice, &trade.BasePositionSize, &trade.CalculatedPositionSize,
		&trade.StocksUp4Pct, &trade.StocksDown4Pct, &trade.T2108, &trade.VIX, &trade.SnapshotDate,
		&trade.VixRegime, &trade.BreadthStrength, &trade.VixMultiplier, &trade.BreadthMultiplier,
		&trade.IsBigOpportunity, &trade.AvoidEntry, &trade.PortfolioHeatPercent,
		&trade.StopLoss, &trade.ProfitTarget1, &trade.ProfitTarget2, &trade.MaxHoldDays, &trade.TimeExitDate,
		&trade.Status, &trade.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trade: %w", err)
	}
	return &trade, nil
}

// SavePosition upserts an open position, including its partial-exit history
// and the latest deterioration signals.
func (s *TradeStore) SavePosition(ctx context.Context, pos *models.OpenPosition) error {
	exits, err := json.Marshal(pos.PartialExits)
	if err != nil {
		return fmt.Errorf("failed to encode partial exits: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO open_positions (
			trade_id, position_status, quantity, remaining_quantity, entry_date,
			current_price, unrealized_pl, unrealized_pl_percent, position_age,
			partial_exits, avoid_signal_active, deterioration_score, recommendation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (trade_id) DO UPDATE SET
			position_status = EXCLUDED.position_status,
			remaining_quantity = EXCLUDED.remaining_quantity,
			current_price = EXCLUDED.current_price,
			unrealized_pl = EXCLUDED.unrealized_pl,
			unrealized_pl_percent = EXCLUDED.unrealized_pl_percent,
			position_age = EXCLUDED.position_age,
			partial_exits = EXCLUDED.partial_exits,
			avoid_signal_active = EXCLUDED.avoid_signal_active,
			deterioration_score = EXCLUDED.deterioration_score,
			recommendation = EXCLUDED.recommendation`,
		pos.ID, pos.PositionStatus, pos.Quantity, pos.RemainingQuantity, pos.EntryDate,
		pos.CurrentPrice, pos.UnrealizedPL, pos.UnrealizedPLPercent, pos.PositionAge,
		exits, pos.Deterioration.AvoidSignalActive, pos.Deterioration.DeteriorationScore,
		pos.Deterioration.Recommendation)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// GetPosition loads one open position with its planned-trade fields.
func (s *TradeStore) GetPosition(ctx context.Context, tradeID string) (*models.OpenPosition, error) {
	row := s.db.QueryRow(ctx, `
		SELECT t.id, t.symbol, t.entry_price, t.base_position_size, t.calculated_position_size,
			t.stocks_up_4pct, t.stocks_down_4pct, t.t2108, t.vix, t.snapshot_date,
			t.vix_regime, t.breadth_strength, t.vix_multiplier, t.breadth_multiplier,
			t.is_big_opportunity, t.avoid_entry, t.portfolio_heat_percent,
			t.stop_loss, t.profit_target_1, t.profit_target_2, t.max_hold_days, t.time_exit_date,
			t.status, t.created_at,
			p.position_status, p.quantity, p.remaining_quantity, p.entry_date,
			p.current_price, p.unrealized_pl, p.unrealized_pl_percent, p.position_age,
			p.partial_exits, p.avoid_signal_active, p.deterioration_score, p.recommendation
		FROM open_positions p
		JOIN planned_trades t ON t.id = p.trade_id
		WHERE p.trade_id = $1`, tradeID)

	pos, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	return pos, nil
}

// ListOpenPositions returns all positions that can still change.
func (s *TradeStore) ListOpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.symbol, t.entry_price, t.base_position_size, t.calculated_position_size,
			t.stocks_up_4pct, t.stocks_down_4pct, t.t2108, t.vix, t.snapshot_date,
			t.vix_regime, t.breadth_strength, t.vix_multiplier, t.breadth_multiplier,
			t.is_big_opportunity, t.avoid_entry, t.portfolio_heat_percent,
			t.stop_loss, t.profit_target_1, t.profit_target_2, t.max_hold_days, t.time_exit_date,
			t.status, t.created_at,
			p.position_status, p.quantity, p.remaining_quantity, p.entry_date,
			p.current_price, p.unrealized_pl, p.unrealized_pl_percent, p.position_age,
			p.partial_exits, p.avoid_signal_active, p.deterioration_score, p.recommendation
		FROM open_positions p
		JOIN planned_trades t ON t.id = p.trade_id
		WHERE p.position_status IN ('open', 'partial')
		ORDER BY p.entry_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	defer rows.Close()

	var positions []models.OpenPosition
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// TotalOpenHeat sums the heat of every open position. The portfolio-wide
// ceiling check needs visibility into all positions, so it lives here with
// the caller rather than inside the position sizer.
func (s *TradeStore) TotalOpenHeat(ctx context.Context) (decimal.Decimal, error) {
	positions, err := s.ListOpenPositions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range positions {
		total = total.Add(positions[i].PortfolioHeatPercent)
	}
	return total, nil
}

func scanPosition(row pgx.Row) (*models.OpenPosition, error) {
	var pos models.OpenPosition
	var exits []byte
	err := row.Scan(
		&pos.ID, &pos.Symbol, &pos.EntryPrice, &pos.BasePositionSize, &pos.CalculatedPositionSize,
		&pos.StocksUp4Pct, &pos.StocksDown4Pct, &pos.T2108, &pos.VIX, &pos.SnapshotDate,
		&pos.VixRegime, &pos.BreadthStrength, &pos.VixMultiplier, &pos.BreadthMultiplier,
		&pos.IsBigOpportunity, &pos.AvoidEntry, &pos.PortfolioHeatPercent,
		&pos.StopLoss, &pos.ProfitTarget1, &pos.ProfitTarget2, &pos.MaxHoldDays, &pos.TimeExitDate,
		&pos.Status, &pos.CreatedAt,
		&pos.PositionStatus, &pos.Quantity, &pos.RemainingQuantity, &pos.EntryDate,
		&pos.CurrentPrice, &pos.UnrealizedPL, &pos.UnrealizedPLPercent, &pos.PositionAge,
		&exits, &pos.Deterioration.AvoidSignalActive, &pos.Deterioration.DeteriorationScore,
		&pos.Deterioration.Recommendation)
	if err != nil {
		return nil, err
	}
	if len(exits) > 0 {
		if err := json.Unmarshal(exits, &pos.PartialExits); err != nil {
			return nil, fmt.Errorf("failed to decode partial exits: %w", err)
		}
	}
	return &pos, nil
}
