package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/liuqk23/PileFlow/control_plane/auth"
	"github.com/liuqk23/PileFlow/control_plane/billing"
	"github.com/liuqk23/PileFlow/control_plane/idempotency"
	"github.com/liuqk23/PileFlow/control_plane/middleware"
	"github.com/liuqk23/PileFlow/control_plane/scheduler"
	"github.com/liuqk23/PileFlow/control_plane/store"
	"github.com/liuqk23/PileFlow/control_plane/timemock"
)

// defaultPileLayout is three trickle piles and two fast piles, ids 1..5.
const defaultPileLayout = "T,T,T,F,F"

func main() {
	ctx := context.Background()

	// Durable storage: Postgres when configured, memory otherwise.
	var s store.Store
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		pg, err := store.NewPostgresStore(ctx, connString)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		log.Println("Connected to Postgres")
		s = pg
	} else {
		log.Println("DATABASE_URL not set. Using in-memory store (dev mode, nothing survives restart).")
		s = store.NewMemoryStore()
	}

	if err := seedPiles(ctx, s); err != nil {
		log.Fatalf("Failed to seed piles: %v", err)
	}
	if err := seedAdmin(ctx, s); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	// Mock clock. All scheduling and billing time flows through it.
	rate := timemock.DefaultRate
	if rateStr := os.Getenv("CLOCK_RATE"); rateStr != "" {
		fmt.Sscanf(rateStr, "%d", &rate)
	}
	clock := timemock.New(rate)
	log.Printf("Mock clock running at %dx", clock.Rate())

	biller := billing.NewService(s, clock)

	piles, err := s.ListPiles(ctx)
	if err != nil {
		log.Fatalf("Failed to list piles: %v", err)
	}
	if len(piles) == 0 {
		log.Fatal("No piles configured")
	}

	sched := scheduler.NewScheduler(piles, biller, clock, scheduler.DefaultConfig())
	sched.Start(ctx)

	// Idempotency cache: Redis when available, memory otherwise.
	var idemStore *idempotency.Store
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr != "" {
		cache, err := store.NewRedisCache(redisAddr, "", 0)
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", redisAddr, err)
		}
		defer cache.Close()
		idemStore = idempotency.NewStore(cache)
		log.Printf("Using Redis at %s for idempotency store", redisAddr)
	} else {
		idemStore = idempotency.NewStore(nil)
		log.Println("Using in-memory idempotency store (ephemeral)")
	}

	api := NewAPI(s, sched, auth.NewService(s), idemStore)
	go api.wsHub.Run(ctx)

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	http.Handle("/metrics", promhttp.Handler())

	http.HandleFunc("/auth/register", api.handleRegister)
	http.HandleFunc("/auth/login", api.handleLogin)

	user := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.RequireRole(auth.RoleUser, h))
	}
	http.Handle("/user/submit_charging_request", user(api.withIdempotency(api.handleSubmitRequest)))
	http.Handle("/user/edit_charging_request", user(api.handleEditRequest))
	http.Handle("/user/end_charging_request", user(api.handleEndRequest))
	http.Handle("/user/preview_queue", user(api.handlePreviewQueue))
	http.Handle("/user/query_orders", user(api.handleQueryOrders))

	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.RequireRole(auth.RoleAdmin, h))
	}
	http.Handle("/admin/query_all_piles_stat", admin(api.handleQueryAllPilesStat))
	http.Handle("/admin/update_pile", admin(api.handleUpdatePile))
	http.Handle("/admin/query_report", admin(api.handleQueryReport))
	http.Handle("/admin/snapshot", admin(api.handleSnapshot))
	http.Handle("/admin/timeline", admin(api.handleTimeline))
	http.Handle("/admin/stream", admin(api.handleMonitorStream))

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	handler := middleware.CORSMiddleware(http.DefaultServeMux)
	log.Printf("PileFlow control plane listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}

// seedPiles installs the configured pile layout on first boot. PILE_LAYOUT
// is a comma list of T (trickle) and F (fast), assigned ids 1..n.
func seedPiles(ctx context.Context, s store.Store) error {
	layout := os.Getenv("PILE_LAYOUT")
	if layout == "" {
		layout = defaultPileLayout
	}
	var piles []*store.Pile
	for i, mode := range strings.Split(layout, ",") {
		var kind store.PileKind
		switch strings.TrimSpace(mode) {
		case "T":
			kind = store.KindSlow
		case "F":
			kind = store.KindFast
		default:
			return fmt.Errorf("invalid PILE_LAYOUT entry %q", mode)
		}
		piles = append(piles, &store.Pile{
			PileID:                   i + 1,
			Kind:                     kind,
			Status:                   store.StatusRunning,
			RegisterTime:             time.Now(),
			CumulativeChargingAmount: decimal.Zero,
		})
	}
	return s.SeedPiles(ctx, piles)
}

// seedAdmin provisions the operator account when ADMIN_USERNAME and
// ADMIN_PASSWORD are both set and the account does not exist yet.
func seedAdmin(ctx context.Context, s store.Store) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	svc := auth.NewService(s)
	if err := svc.Register(ctx, username, password, password); err != nil {
		return err
	}
	// Register only creates driver accounts; promote explicitly.
	return s.SetAdmin(ctx, username)
}
