// Command mattress-tracker tracks when mattresses were last flipped and
// rotated, and publishes their state to MQTT for Home Assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/mattress-tracker/internal/app"
	"github.com/sweeney/mattress-tracker/internal/config"
	"github.com/sweeney/mattress-tracker/internal/gpio"
	"github.com/sweeney/mattress-tracker/internal/mqtt"
	"github.com/sweeney/mattress-tracker/internal/status"
	"github.com/sweeney/mattress-tracker/internal/store"
	"github.com/sweeney/mattress-tracker/internal/web"
)

type options struct {
	configPath      string
	dbPath          string
	broker          string
	httpAddr        string
	refresh         time.Duration
	heartbeat       time.Duration
	gpioChip        string
	debounce        time.Duration
	discoveryPrefix string
	topicPrefix     string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "/etc/mattress-tracker/config.json", "Mattress config file")
	flag.StringVar(&o.dbPath, "db", "/var/lib/mattress-tracker/state.db", "SQLite state database (empty to disable persistence)")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.DurationVar(&o.refresh, "refresh", time.Hour, "State republish interval")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.gpioChip, "gpio-chip", gpio.DefaultChip, `GPIO chip for buttons ("" to disable)`)
	flag.DurationVar(&o.debounce, "debounce", gpio.DefaultDebounce, "Button debounce window")
	flag.StringVar(&o.discoveryPrefix, "discovery-prefix", mqtt.DefaultDiscoveryPrefix, "Home Assistant discovery prefix")
	flag.StringVar(&o.topicPrefix, "topic-prefix", mqtt.DefaultTopicPrefix, "MQTT topic prefix")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// validate rejects flag values the daemon cannot run with.
func (o options) validate() error {
	if o.refresh <= 0 {
		return fmt.Errorf("-refresh must be positive, got %v", o.refresh)
	}
	if o.heartbeat < 0 {
		return fmt.Errorf("-heartbeat must not be negative, got %v", o.heartbeat)
	}
	if o.debounce < 0 {
		return fmt.Errorf("-debounce must not be negative, got %v", o.debounce)
	}
	return nil
}

func run(o options) error {
	if err := o.validate(); err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	// Persistence
	var st app.Store
	if o.dbPath != "" {
		db, err := store.Open(o.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		st = db
	}

	// Initialize MQTT
	topics := mqtt.NewTopics(o.topicPrefix, o.discoveryPrefix)
	client, err := mqtt.NewRealClient(mqtt.Options{Broker: o.broker, Topics: topics})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	clock := clockwork.NewRealClock()
	a := app.New(app.Options{
		Publisher:  client,
		Subscriber: client,
		Topics:     topics,
		Store:      st,
		Clock:      clock,
	})
	if err := a.SubscribeServices(); err != nil {
		return err
	}
	if err := a.Reconcile(context.Background(), cfg); err != nil {
		log.Printf("setup: %v", err)
	}
	if err := a.PruneStore(context.Background(), cfg); err != nil {
		log.Printf("setup: %v", err)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clock, status.Config{
		RefreshMs:   o.refresh.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		DebounceMs:  o.debounce.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		DBPath:      o.dbPath,
		ConfigPath:  o.configPath,
	}, a)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, a)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	// Physical buttons
	debouncer := gpio.NewDebouncer(o.debounce)
	var buttons gpio.Buttons
	openButtons := func() {
		if buttons != nil {
			if err := buttons.Close(); err != nil {
				log.Printf("gpio: close: %v", err)
			}
			buttons = nil
		}
		if o.gpioChip == "" {
			return
		}
		defs := a.Buttons()
		if len(defs) == 0 {
			return
		}
		b, err := gpio.NewRealButtons(o.gpioChip, defs, debouncer, a.PressButton)
		if err != nil {
			log.Printf("gpio: buttons unavailable: %v", err)
			return
		}
		buttons = b
		log.Printf("gpio: watching %d buttons on %s", len(defs), o.gpioChip)
	}
	openButtons()
	defer func() {
		if buttons != nil {
			buttons.Close()
		}
	}()

	reload := func() {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			log.Printf("reload: %v", err)
			return
		}
		if err := a.Reconcile(context.Background(), cfg); err != nil {
			log.Printf("reload: %v", err)
		}
		openButtons()
		log.Printf("reload: %d mattresses configured", len(cfg.Mattresses))
	}

	log.Printf("started: mattresses=%d broker=%s refresh=%v heartbeat=%v", len(cfg.Mattresses), o.broker, o.refresh, o.heartbeat)

	refresh := time.NewTicker(o.refresh)
	defer refresh.Stop()

	var heartbeat <-chan time.Time
	if o.heartbeat > 0 {
		hb := time.NewTicker(o.heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	return runLoop(a, client, client, tracker, reload, clock, refresh.C, heartbeat, sigCh)
}

// runLoop services periodic work and signals until SIGINT or SIGTERM.
// A nil heartbeat channel disables heartbeats.
func runLoop(a *app.App, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, reload func(), clock clockwork.Clock, refresh, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				log.Printf("received SIGHUP, reloading config")
				if reload != nil {
					reload()
				}
				continue
			}

			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: clock.Now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-refresh:
			a.Refresh()
			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

		case <-heartbeat:
			hbEvent := mqtt.SystemEvent{
				Timestamp: clock.Now(),
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v mattresses=%d mqtt=%v",
					snap.Uptime().Truncate(time.Second), len(snap.Mattresses), snap.MQTTConnected)
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
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
