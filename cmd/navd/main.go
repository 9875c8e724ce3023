package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/xaviergoby/bstdethintg-sub002/internal/adapter/calendar"
	"github.com/xaviergoby/bstdethintg-sub002/internal/adapter/repository/memory"
	"github.com/xaviergoby/bstdethintg-sub002/internal/adapter/repository/postgres"
	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/fee"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/ledger"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/nav"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/scheduler"
)

const (
	defaultCloseHour = 18
	defaultTimezone  = "UTC"
)

// repositories groups the persistence ports one backend provides.
type repositories struct {
	funds     domain.FundRepository
	holdings  domain.HoldingRepository
	transfers domain.TransferRepository
	trades    domain.TradeRepository
	navs      domain.NavRepository
	oracle    domain.PriceOracle
	tx        domain.TxManager
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Setup the booking-period calendar
	closeHour := defaultCloseHour
	if raw := os.Getenv("NAVD_CLOSE_HOUR"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("Invalid NAVD_CLOSE_HOUR %q: %v", raw, err)
		}
		closeHour = parsed
	}
	timezone := os.Getenv("NAVD_TIMEZONE")
	if timezone == "" {
		timezone = defaultTimezone
	}
	cal, err := calendar.New(closeHour, timezone)
	if err != nil {
		log.Fatalf("Failed to build calendar: %v", err)
	}

	// 2. Initialize Repositories
	repos, err := buildRepositories()
	if err != nil {
		log.Fatalf("Failed to connect storage: %v", err)
	}

	// 3. Initialize Services (Use Cases)
	ledgerService := ledger.NewService(
		repos.funds, repos.holdings, repos.transfers, repos.trades, repos.navs,
		cal, repos.oracle, ledger.StickyLayerAssignment{},
	)
	calculator := nav.NewCalculator(
		repos.funds, repos.holdings, repos.transfers, repos.navs,
		ledgerService, fee.NewHighWaterMark(), cal, repos.tx,
	)

	// 4. Run one close sweep over the active funds, dependencies first
	if err := closeSweep(ctx, repos, calculator); err != nil {
		log.Fatalf("Close sweep aborted: %v", err)
	}
	log.Println("Close sweep finished")
}

// buildRepositories selects the storage backend. NAVD_STORE=memory wires the
// in-memory store for dry runs; anything else connects postgres.
func buildRepositories() (*repositories, error) {
	if os.Getenv("NAVD_STORE") == "memory" {
		log.Println("Using in-memory store (dry run)")
		store := memory.NewStore()
		return &repositories{
			funds:     store.Funds(),
			holdings:  store.Holdings(),
			transfers: store.Transfers(),
			trades:    store.Trades(),
			navs:      store.Navs(),
			oracle:    store.Oracle(),
			tx:        store.Tx(),
		}, nil
	}

	db, err := postgres.NewDB(connectionString())
	if err != nil {
		return nil, err
	}
	return &repositories{
		funds:     postgres.NewFundRepository(db),
		holdings:  postgres.NewHoldingRepository(db),
		transfers: postgres.NewTransferRepository(db),
		trades:    postgres.NewTradeRepository(db),
		navs:      postgres.NewNavRepository(db),
		oracle:    postgres.NewPriceOracle(db),
		tx:        postgres.NewTxManager(db),
	}, nil
}

func connectionString() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}

	// If the explicit string is missing, build it from individual vars
	// (Docker friendly).
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "navd")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// closeSweep orders the active funds by their invests-in dependencies and
// closes every pending booking period, one dependency stage at a time. Funds
// within a stage are independent and close concurrently; funds caught in a
// dependency cycle are skipped and logged.
func closeSweep(ctx context.Context, repos *repositories, calculator *nav.Calculator) error {
	funds, err := repos.funds.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active funds: %w", err)
	}
	openHoldings, err := repos.holdings.ListOpenAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open holdings: %w", err)
	}

	order, err := scheduler.Order(funds, openHoldings)
	if err != nil {
		var cycleErr *domain.DependencyCycleError
		if !errors.As(err, &cycleErr) {
			return err
		}
		for _, fund := range order.Cyclic {
			log.Printf("Skipping fund %s (%s): %v", fund.Name, fund.ID, cycleErr)
		}
	}

	for _, stage := range order.Batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wg sync.WaitGroup
		for _, fund := range stage {
			wg.Add(1)
			go func(fund *domain.Fund) {
				defer wg.Done()
				lastClosed, err := calculator.CloseAllBookingPeriods(ctx, fund.ID)
				if err != nil {
					log.Printf("Fund %s (%s): close stopped after %s: %v", fund.Name, fund.ID, lastClosed, err)
					return
				}
				log.Printf("Fund %s (%s): closed up to %s", fund.Name, fund.ID, lastClosed)
			}(fund)
		}
		wg.Wait()
	}
	return nil
}
