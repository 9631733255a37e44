package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turbofan3360/neom8-dash/internal/neom8"
	"github.com/turbofan3360/neom8-dash/internal/server"
	"github.com/turbofan3360/neom8-dash/internal/transport"
	"github.com/turbofan3360/neom8-dash/web"
)

func main() {
	configPath := flag.String("config", "/etc/neom8-dash/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated receiver")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")

	// One-shot receiver commands: run against the configured port and exit.
	doSetup := flag.Bool("setup", false, "Apply the full receiver configuration and exit")
	doStart := flag.Bool("start", false, "Start the GNSS subsystem and exit")
	doStop := flag.Bool("stop", false, "Stop the GNSS subsystem and exit")
	rateHz := flag.Float64("rate", 0, "Set the receiver output rate in Hz and exit")
	baud := flag.Int("set-baud", 0, "Switch the receiver UART to this baud rate and exit")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] neom8dash starting")

	// Load config
	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.GNSS.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	port := newTransport(cfg)
	drv := neom8.New(port, neom8.Config{
		AcquireTimeout:   time.Duration(cfg.Driver.AcquireTimeoutMs) * time.Millisecond,
		AckTimeout:       time.Duration(cfg.Driver.AckTimeoutMs) * time.Millisecond,
		HorizontalNoiseM: cfg.Driver.HorizontalNoiseM,
		VerticalNoiseM:   cfg.Driver.VerticalNoiseM,
	})

	if *doSetup || *doStart || *doStop || *rateHz > 0 || *baud > 0 {
		runCommand(port, drv, *doSetup, *doStart, *doStop, *rateHz, *baud, cfg)
		return
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// Connect in the background with exponential backoff; the dashboard
	// starts regardless and shows no fix until the port comes up.
	go func() {
		connectWithRetry(ctx, "gnss", port, 10)
		if cfg.Driver.RateHz > 0 {
			res, err := drv.SetRate(cfg.Driver.RateHz, uint8(cfg.Driver.MeasurementsPerFix))
			if err != nil {
				log.Printf("[main] rate config rejected: %v", err)
			} else {
				log.Printf("[main] output rate %.1f Hz: %s", cfg.Driver.RateHz, res)
			}
		}
	}()

	srv := server.New(cfg, drv, web.FS)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
}

// connectable is the transport lifecycle the retry loop needs.
type connectable interface {
	Connect() error
	Close() error
}

func newTransport(cfg *server.Config) interface {
	neom8.Transport
	connectable
} {
	if cfg.GNSS.Type == "serial" {
		return transport.NewSerial(cfg.GNSS.PortPath, cfg.GNSS.BaudRate)
	}
	return transport.NewSim()
}

// runCommand executes a single receiver command against the configured port
// and reports the acknowledgement on stdout via the log.
func runCommand(port connectable, drv *neom8.Driver, doSetup, doStart, doStop bool, rateHz float64, baud int, cfg *server.Config) {
	if err := port.Connect(); err != nil {
		log.Fatalf("[main] connect failed: %v", err)
	}
	defer port.Close()

	var (
		res neom8.AckResult
		err error
	)
	switch {
	case doSetup:
		res, err = drv.Setup()
	case doStart:
		res, err = drv.Start()
	case doStop:
		res, err = drv.Stop()
	case rateHz > 0:
		res, err = drv.SetRate(rateHz, uint8(cfg.Driver.MeasurementsPerFix))
	case baud > 0:
		res, err = drv.SetBaud(uint32(baud))
	}
	if err != nil {
		log.Fatalf("[main] command failed: %v", err)
	}
	log.Printf("[main] receiver answered: %s", res)
	if res != neom8.Ack {
		os.Exit(1)
	}
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, name string, c connectable, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
					name, attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
					name, attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[%s] connected (attempt %d)", name, attempt+1)
			return
		}
	}
}
