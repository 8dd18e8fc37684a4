package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", DefaultUDPAddr, "UDP listen address")
	opsAddr := flag.String("ops", "", "ops monitor HTTP address (empty = disabled)")
	opsPass := flag.String("ops-pass", "", "ops monitor password (required with -ops)")
	dbPath := flag.String("db", "", "path to event journal database (empty = disabled)")
	lanes := flag.Int("lanes", laneCount, "simulation lane count")
	debug := flag.Bool("debug", false, "log every datagram")
	flag.Parse()

	var db *DB
	if *dbPath != "" {
		var err error
		db, err = OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()
	}

	var events *EventLog
	if db != nil {
		events = NewEventLog(db)
	}

	state := NewState(events, *debug)

	server, err := NewServer(state, *addr)
	if err != nil {
		log.Fatalf("listen udp: %v", err)
	}
	log.Printf("listening on udp %s", server.LocalAddr())

	sim := NewSimulation(state, *lanes)
	sim.Run()
	server.Run()

	var opsServer *http.Server
	if *opsAddr != "" {
		if *opsPass == "" {
			log.Fatal("-ops requires -ops-pass")
		}
		auth, err := NewOpsAuth(db, *opsPass)
		if err != nil {
			log.Fatalf("ops auth: %v", err)
		}
		monitor := NewMonitor(state, auth, db)
		opsServer = &http.Server{Addr: *opsAddr, Handler: monitor.SetupRoutes()}
		go func() {
			log.Printf("ops monitor on http %s", *opsAddr)
			if err := opsServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("ops monitor: %v", err)
			}
		}()
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")

	if opsServer != nil {
		opsServer.Close()
	}
	server.Stop()
	sim.Stop()
	events.Stop()
}
