package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ferrule-robotics/missiond/internal/api"
	"github.com/ferrule-robotics/missiond/internal/config"
	"github.com/ferrule-robotics/missiond/internal/db"
	"github.com/ferrule-robotics/missiond/internal/feed"
	"github.com/ferrule-robotics/missiond/internal/geom"
	"github.com/ferrule-robotics/missiond/internal/linkmux"
	"github.com/ferrule-robotics/missiond/internal/mission"
	"github.com/ferrule-robotics/missiond/internal/monitor"
	"github.com/ferrule-robotics/missiond/internal/version"
	"github.com/ferrule-robotics/missiond/internal/wire"
)

var (
	configPath    = flag.String("config", "missions.yaml", "Mission plan file")
	linkSpec      = flag.String("link", "mock", "Base link: serial device path, tcp://host:port, 'mock', or 'none'")
	listen        = flag.String("listen", ":8080", "Listen address for the introspection API")
	dbPath        = flag.String("db", "mission.db", "Mission log database path")
	udpFeedAddr   = flag.String("udp-feed", "", "Optional UDP pose feed listen address (e.g. :9999)")
	devMode       = flag.Bool("dev", false, "Replay fixtures.txt over a mock link instead of opening one")
	oneshot       = flag.Bool("oneshot", false, "Exit once the plan reaches a terminal outcome")
	autoMigrate   = flag.Bool("auto-migrate", true, "Apply pending mission log migrations on startup")
	poseRetention = flag.Duration("pose-retention", 7*24*time.Hour, "Prune stored poses older than this")
)

// openLink selects the base link from the -link flag. Dev mode replays the
// first line of fixtures.txt forever, which is enough to exercise the whole
// feed pipeline without hardware.
func openLink(cfg *config.Config) (linkmux.Mux, error) {
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			return nil, err
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		return linkmux.NewMockLinkMux([]byte(lines[0]+"\n"), 500*time.Millisecond), nil
	}

	switch {
	case *linkSpec == "none":
		return linkmux.NewDisabledLinkMux(), nil
	case *linkSpec == "mock":
		// A controller parked at the origin.
		line, err := wire.EncodePose(wire.NewPoseMessage(time.Now(), cfg.Planner.GetFrameID(), geom.Pose{}))
		if err != nil {
			return nil, err
		}
		return linkmux.NewMockLinkMux(line, 500*time.Millisecond), nil
	case strings.HasPrefix(*linkSpec, "tcp://"):
		return linkmux.NewTCPLinkMux(strings.TrimPrefix(*linkSpec, "tcp://"))
	default:
		opts, err := cfg.Link.Normalize()
		if err != nil {
			return nil, err
		}
		return linkmux.NewSerialLinkMux(*linkSpec, opts)
	}
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbPath)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("starting %s", version.String())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load mission plan: %v", err)
	}
	log.Printf("loaded %d missions from %s", len(cfg.Missions), *configPath)

	link, err := openLink(cfg)
	if err != nil {
		log.Fatalf("failed to open base link: %v", err)
	}
	defer link.Close()

	store, err := db.NewDBWithMigrationCheck(*dbPath, *autoMigrate)
	if err != nil {
		log.Fatalf("failed to open mission log: %v", err)
	}
	defer store.Close()

	recorder := db.NewRecorder(store)
	defer recorder.Close()

	tracker := mission.NewPoseTracker()
	publisher := feed.NewLinkPublisher(link, cfg.Planner.GetFrameID())

	plan, err := mission.BuildPlan(mission.PlanConfig{
		Missions:          cfg.Missions,
		Tracker:           tracker,
		Publisher:         publisher,
		Events:            recorder,
		DistanceTolerance: cfg.Planner.GetDistanceTolerance(),
		AngleTolerance:    cfg.Planner.GetAngleTolerance(),
		CountdownTicks:    cfg.Planner.GetCountdownTicks(),
		TickInterval:      cfg.Planner.GetTickInterval(),
		RetryAborted:      cfg.Planner.GetRetryAborted(),
		MissionRetries:    cfg.Planner.GetMissionRetries(),
	})
	if err != nil {
		log.Fatalf("failed to build mission plan: %v", err)
	}

	linkFeed := feed.NewLinkFeed(link, feed.Config{Tracker: tracker, Store: store})

	var udpFeed *feed.UDPFeed
	if *udpFeedAddr != "" {
		udpFeed = feed.NewUDPFeed(feed.UDPConfig{
			Address: *udpFeedAddr,
			Feed:    feed.Config{Tracker: tracker, Store: store},
		})
		if err := udpFeed.Listen(); err != nil {
			log.Fatalf("failed to open UDP pose feed: %v", err)
		}
	}

	pruner := db.NewPruneWorker(store, *poseRetention)
	pruner.Start()
	defer pruner.Stop()

	// Wait group covers the link monitor, the feeds, the plan runner and
	// the HTTP server.
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the base link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor base link: %v", err)
		}
		log.Print("link monitor routine terminated")
	}()

	// feed pose lines from the link into the tracker and the mission log
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := linkFeed.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("link feed error: %v", err)
		}
		log.Print("link feed routine terminated")
	}()

	if udpFeed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := udpFeed.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("UDP feed error: %v", err)
			}
			log.Print("UDP feed routine terminated")
		}()
	}

	// plan runner: one run from the first mission to a terminal outcome
	wg.Add(1)
	go func() {
		defer wg.Done()

		runID, err := store.StartRun(time.Now(), len(cfg.Missions))
		if err != nil {
			log.Printf("failed to record run start: %v", err)
		} else {
			recorder.SetRun(runID)
			linkFeed.SetRun(runID)
			if udpFeed != nil {
				udpFeed.SetRun(runID)
			}
		}

		outcome, err := plan.Execute(ctx)
		if err != nil {
			if err != context.Canceled {
				log.Printf("mission plan error: %v", err)
			}
			outcome = "Interrupted"
		}

		if runID > 0 {
			if err := store.FinishRun(runID, time.Now(), outcome); err != nil {
				log.Printf("failed to record run finish: %v", err)
			}
		}
		log.Printf("Mission plan terminated with outcome '%s'.", outcome)

		if *oneshot {
			stop()
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		// mount the introspection API, the admin routes and the
		// trajectory visualizations on one mux
		mux := api.NewServer(plan, publisher, store, cfg).ServeMux()

		link.AttachAdminRoutes(mux)
		store.AttachAdminRoutes(mux)
		monitor.NewMonitor(store, plan).AttachRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("introspection API listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
