// Command pelican drives a two-button pedestrian crossing: signal LEDs,
// audible countdown buzzers and status publishing over MQTT and HTTP.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/pelican/internal/config"
	"github.com/sweeney/pelican/internal/gpio"
	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/metrics"
	"github.com/sweeney/pelican/internal/mqtt"
	"github.com/sweeney/pelican/internal/output"
	"github.com/sweeney/pelican/internal/sched"
	"github.com/sweeney/pelican/internal/status"
	"github.com/sweeney/pelican/internal/web"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML or JSON config file")
	printConfig := fs.Bool("print-config", false, "Print the resolved configuration and exit")
	fs.Bool("simulate", false, "Run without GPIO hardware; read presses from stdin (a/b)")
	fs.String("http", "", `HTTP status address (overrides config; "off" disables)`)
	fs.String("broker", "", "MQTT broker address (overrides config)")
	fs.Bool("no-mqtt", false, "Disable MQTT publishing")
	fs.Duration("heartbeat", 0, "Heartbeat interval (overrides config; 0 disables)")
	fs.Parse(os.Args[1:])

	cfg, err := config.NewLoader().Load(*configPath, flagOverrides(fs))
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printConfig {
		data, err := cfg.YAML()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// flagOverrides maps explicitly set flags to config keys so that unset
// flags never mask the file or environment.
func flagOverrides(fs *flag.FlagSet) map[string]interface{} {
	overrides := map[string]interface{}{}
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.(flag.Getter).Get()
		switch f.Name {
		case "simulate":
			overrides["gpio.simulate"] = v
		case "http":
			addr := v.(string)
			if addr == "off" {
				addr = ""
			}
			overrides["http.addr"] = addr
		case "broker":
			overrides["mqtt.broker"] = v
		case "no-mqtt":
			overrides["mqtt.enabled"] = !v.(bool)
		case "heartbeat":
			overrides["heartbeat"] = v
		}
	})
	return overrides
}

func run(cfg *config.Config) error {
	loop := sched.New(time.Now())
	console := output.NewConsole(nil)
	mets := metrics.NewManager(metrics.DefaultConfig())
	tracker := status.NewTracker(loop.Now(), cfg.StatusConfig())

	// Signal outputs
	var hw gpio.Output
	if cfg.GPIO.Simulate {
		hw = gpio.NewNopOutput()
	} else {
		out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.Pins())
		if err != nil {
			return fmt.Errorf("init gpio output: %w", err)
		}
		hw = out
	}
	defer hw.Close()

	// MQTT
	var (
		publisher mqtt.Publisher
		emitter   *mqtt.Emitter
		connStat  mqtt.ConnectionStatus
	)
	if cfg.MQTT.Enabled {
		opts := cfg.MQTTOptions()
		opts.OnConnectionChange = func(connected bool) {
			mets.SetMQTTConnected(connected)
			tracker.SetMQTTConnected(connected)
		}
		pub, err := mqtt.NewRealPublisher(opts)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		publisher, connStat = pub, pub
		emitter = mqtt.NewEmitter(pub, cfg.MQTT.BufferSize, nil)
	}

	dm := newDaemon(cfg, loop, deps{
		out:        hw,
		tracker:    tracker,
		emitter:    emitter,
		mqttStatus: connStat,
		console:    console,
		metrics:    mets,
	})

	// Publish startup event with full status snapshot
	if publisher != nil {
		if err := publisher.PublishSystem(dm.systemEvent("STARTUP", "")); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	} else {
		dm.refresh()
	}

	// Button inputs
	var in gpio.Input
	if cfg.GPIO.Simulate {
		fake := gpio.NewFakeInput(func(s logic.Side) { dm.press(s) })
		go readPresses(os.Stdin, fake.Press)
		in = fake
	} else {
		buttons, err := gpio.NewRealInput(cfg.GPIO.Chip, cfg.Pins(), cfg.GPIO.Debounce, func(s logic.Side) { dm.press(s) })
		if err != nil {
			return fmt.Errorf("init gpio input: %w", err)
		}
		in = buttons
	}
	defer in.Close()

	// HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, dm.tracker, web.Options{
			Metrics: mets.Handler(),
			Press:   dm.press,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: red=%v green=%v yellow=%v warm_up=%v countdown=%ds simulate=%v mqtt=%v",
		cfg.Timing.RedHold, cfg.Timing.GreenHold, cfg.Timing.YellowHold, cfg.Timing.WarmUp,
		cfg.Timing.CountdownSeconds, cfg.GPIO.Simulate, cfg.MQTT.Enabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(dm, publisher, sigCh)
}

// runLoop starts the controller, drives the timer loop and the MQTT emitter,
// and returns after a signal once SHUTDOWN has been published.
func runLoop(dm *daemon, publisher mqtt.Publisher, sig <-chan os.Signal) error {
	dm.start()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dm.loop.Run(ctx)
	}()
	if dm.emitter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dm.emitter.Run(ctx)
		}()
	}

	s := <-sig
	log.Printf("received %v, shutting down", s)
	cancel()
	wg.Wait()

	if publisher == nil {
		return nil
	}
	name := signalName(s)
	if err := publisher.PublishSystem(dm.systemEvent("SHUTDOWN", name)); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// readPresses turns "a" and "b" lines from r into button presses.
func readPresses(r io.Reader, press func(logic.Side)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		side, err := logic.ParseSide(line)
		if err != nil {
			log.Printf("simulate: %v (type a or b)", err)
			continue
		}
		press(side)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
