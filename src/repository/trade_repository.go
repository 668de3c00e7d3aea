package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"reboundtrader/src/database"
	"reboundtrader/src/model"
)

// TradeRepository handles read/write operations for the closed-trade ledger.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Debug("Creating TradeRepository with custom DB instance")

	return &TradeRepository{db: db}
}

// Create inserts a single closed trade into the ledger.
// The given trade will be updated with the generated ID and timestamps.
func (r *TradeRepository) Create(
	ctx context.Context,
	trade *model.ClosedTrade,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "Create",
		"market": trade.Market,
		"side":   trade.Side,
		"reason": trade.ExitReason,
	}).Debug("Recording closed trade")

	err := r.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to record closed trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"trade_id": trade.ID,
	}).Info("Closed trade recorded")

	return nil
}

// SaveRun inserts all trades of a replay in a single transaction, so a
// partially persisted run never appears in the ledger.
func (r *TradeRepository) SaveRun(
	ctx context.Context,
	trades []model.ClosedTrade,
) error {

	if len(trades) == 0 {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "SaveRun",
		"run_id": trades[0].RunID,
		"trades": len(trades),
	}).Info("Persisting replay trades")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range trades {
			if err := tx.Create(&trades[i]).Error; err != nil {
				logger.WithError(err).Error("Failed to persist trade inside transaction")
				return err
			}
		}
		return nil
	})
}

// FindByRunID returns all trades of one replay in close order.
func (r *TradeRepository) FindByRunID(
	ctx context.Context,
	runID string,
) ([]model.ClosedTrade, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "FindByRunID",
		"run_id": runID,
	}).Debug("Fetching trades for run")

	var trades []model.ClosedTrade

	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindByRunID",
			"run_id": runID,
		}).WithError(err).Error("Failed to fetch trades for run")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "FindByRunID",
		"run_id":      runID,
		"rows_return": len(trades),
	}).Info("Run trades fetched")

	return trades, nil
}

// FindLatest returns the latest closed trades ordered from newest to oldest.
func (r *TradeRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.ClosedTrade, error) {

	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "TradeRepository",
		"op":    "FindLatest",
		"limit": limit,
	}).Debug("Fetching latest closed trades")

	var trades []model.ClosedTrade

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest closed trades")

		return nil, err
	}

	return trades, nil
}

// FindLastByMarket fetches the most recent closed trade for a market.
// Returns (nil, nil) if no trade exists yet.
func (r *TradeRepository) FindLastByMarket(
	ctx context.Context,
	market string,
) (*model.ClosedTrade, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "FindLastByMarket",
		"market": market,
	}).Debug("Fetching last closed trade for market")

	var trade model.ClosedTrade

	err := r.db.WithContext(ctx).
		Where("market = ?", market).
		Order("id DESC").
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":   "TradeRepository",
				"op":     "FindLastByMarket",
				"market": market,
			}).Info("No closed trade found for market")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindLastByMarket",
			"market": market,
		}).WithError(err).Error("Failed to fetch last closed trade")

		return nil, err
	}

	return &trade, nil
}
