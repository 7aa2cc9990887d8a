// Command heatgrid-sensor reads a thermometer on a serial port and reports
// every reading for one grid point to a heatgrid server.
//
// Usage:
//
//	heatgrid-sensor -port /dev/ttyACM0 -server http://localhost:8080 -x 3 -y 4 -type Boundary
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/sensor"
	"github.com/banshee-data/heatgrid/internal/serialmux"
)

var (
	port        = flag.String("port", "", "Serial port the thermometer is attached to")
	server      = flag.String("server", "http://localhost:8080", "Base URL of the heatgrid server")
	x           = flag.Int("x", -1, "X coordinate of this sensor")
	y           = flag.Int("y", -1, "Y coordinate of this sensor")
	kind        = flag.String("type", grid.Boundary.String(), "Point type (Boundary, GroundTruth or OutOfRange)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	devMode     = flag.Bool("dev", false, "Generate readings instead of opening a serial port")
	devBase     = flag.Float64("dev-base", 21.0, "Starting temperature for generated readings")
	devInterval = flag.Duration("dev-interval", time.Second, "Interval between generated readings")
	adminListen = flag.String("admin-listen", "", "Optional address for the serial debug pages")
)

// openSource opens the serial port, or a generator in dev mode.
func openSource(dev bool, path string, opts serialmux.PortOptions) (serialmux.SerialMuxInterface, error) {
	if dev {
		return serialmux.NewMockSerialMux(serialmux.MockReadings(*devBase, time.Now().UnixNano()), *devInterval), nil
	}
	if path == "" {
		return nil, errors.New("missing -port")
	}
	return serialmux.NewRealSerialMux(path, opts)
}

// pipe forwards every line read by mux to reporter until the port is
// exhausted or ctx is done. The mux is closed on return.
func pipe(ctx context.Context, mux serialmux.SerialMuxInterface, reporter *sensor.Reporter) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	var wg sync.WaitGroup
	var monitorErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitorErr = mux.Monitor(ctx)
		// closing the mux closes lines, which ends reporter.Run once the
		// buffered readings are drained
		if err := mux.Close(); err != nil {
			log.Printf("failed to close serial port: %v", err)
		}
	}()

	runErr := reporter.Run(ctx, lines)
	if runErr != nil {
		// reporter gave up first; stop the monitor
		_ = mux.Close()
	}
	wg.Wait()

	if monitorErr != nil && !errors.Is(monitorErr, context.Canceled) {
		return fmt.Errorf("serial monitor: %w", monitorErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func usage(msg string) {
	fmt.Fprintf(os.Stderr, "heatgrid-sensor: %s\n\n", msg)
	flag.Usage()
	if ports, err := serialmux.AvailablePorts(); err == nil && len(ports) > 0 {
		fmt.Fprintf(os.Stderr, "\nAvailable serial ports:\n  %s\n", strings.Join(ports, "\n  "))
	}
	os.Exit(2)
}

func main() {
	flag.Parse()

	pointKind, err := grid.ParseKind(*kind)
	if err != nil {
		usage(err.Error())
	}
	if *x < 0 || *y < 0 {
		usage("-x and -y are required")
	}

	reporter, err := sensor.NewReporter(*server, *x, *y, pointKind)
	if err != nil {
		usage(err.Error())
	}

	mux, err := openSource(*devMode, *port, serialmux.PortOptions{BaudRate: *baud})
	if err != nil {
		usage(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var admin *http.Server
	if *adminListen != "" {
		adminMux := http.NewServeMux()
		mux.AttachAdminRoutes(adminMux)
		admin = &http.Server{Addr: *adminListen, Handler: adminMux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("serial debug pages on %s/debug/", *adminListen)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("admin server error: %v", err)
			}
		}()
	}

	log.Printf("sensor %s reporting %s point (%d, %d) to %s", reporter.ID(), pointKind, *x, *y, reporter.Endpoint())
	err = pipe(ctx, mux, reporter)

	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Printf("admin server shutdown error: %v", err)
		}
		cancel()
	}

	stats := reporter.Stats()
	log.Printf("sent %d readings, %d failed, %d retries", stats.Sent, stats.Failed, stats.Retries)
	if err != nil {
		log.Fatalf("sensor stopped: %v", err)
	}
}
