package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"reboundtrader/src/model"
)

func TestTradeRepositoryFindByRunID(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &TradeRepository{db: mockDB}

	createdAt := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	trades := []model.ClosedTrade{
		{ID: 1, RunID: "run-a", Market: "US500", Side: "LONG", ExitReason: "TP", NetPts: 40, CreatedAt: createdAt},
		{ID: 2, RunID: "run-a", Market: "US500", Side: "SHORT", ExitReason: "SL", NetPts: -80, CreatedAt: createdAt.Add(time.Hour)},
	}

	tradeRows := func(returned ...model.ClosedTrade) *sqlmock.Rows {
		rows := sqlmock.NewRows([]string{"id", "run_id", "market", "side", "exit_reason", "net_pts", "created_at"})
		for _, trade := range returned {
			rows.AddRow(trade.ID, trade.RunID, trade.Market, trade.Side, trade.ExitReason, trade.NetPts, trade.CreatedAt)
		}
		return rows
	}

	t.Run("returns trades in close order", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "closed_trades" WHERE run_id = $1 ORDER BY id ASC`)).
			WithArgs("run-a").
			WillReturnRows(tradeRows(trades[0], trades[1]))

		results, err := repo.FindByRunID(context.Background(), "run-a")
		if err != nil {
			t.Fatalf("unexpected error fetching run trades: %v", err)
		}

		if len(results) != 2 {
			t.Fatalf("expected 2 trades for run-a, got %d", len(results))
		}

		if results[0].ExitReason != "TP" || results[1].ExitReason != "SL" {
			t.Fatalf("trades not returned in expected order: %+v", results)
		}
	})

	t.Run("returns empty slice for unknown run", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "closed_trades" WHERE run_id = $1 ORDER BY id ASC`)).
			WithArgs("run-missing").
			WillReturnRows(tradeRows())

		results, err := repo.FindByRunID(context.Background(), "run-missing")
		if err != nil {
			t.Fatalf("unexpected error fetching run trades: %v", err)
		}

		if len(results) != 0 {
			t.Fatalf("expected no trades for unknown run, got %d", len(results))
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositoryFindLatest(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &TradeRepository{db: mockDB}

	rows := sqlmock.NewRows([]string{"id", "run_id", "market", "side", "exit_reason", "net_pts"}).
		AddRow(9, "run-b", "US500", "SHORT", "EOD", 12.5)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "closed_trades" ORDER BY id DESC LIMIT $1`)).
		WithArgs(5).
		WillReturnRows(rows)

	results, err := repo.FindLatest(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error fetching latest trades: %v", err)
	}

	if len(results) != 1 || results[0].ID != 9 {
		t.Fatalf("unexpected latest trades: %+v", results)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositorySaveRunEmpty(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &TradeRepository{db: mockDB}

	// No expectations registered: an empty run must not touch the database.
	if err := repo.SaveRun(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error saving empty run: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}
