// Command ipmimex scans a local BMC's SDR repository and serves its
// sensor readings as Prometheus-compatible text metrics.
package main

import (
	"flag"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jelmd/ipmimex/pkg/collector"
	"github.com/jelmd/ipmimex/pkg/ipmi"
	"github.com/jelmd/ipmimex/pkg/sensor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML scan configuration")
	bmcPath := flag.String("bmc-path", "", "override the configured BMC device path")
	listen := flag.String("listen-address", "", "override the configured HTTP listen address")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	log := logrus.StandardLogger()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	if *bmcPath != "" {
		cfg.BMCPath = *bmcPath
	}
	if *listen != "" {
		cfg.ListenAddress = *listen
	}

	scanInterval, err := time.ParseDuration(cfg.ScanInterval)
	if err != nil {
		log.WithError(err).Fatal("parsing scan_interval")
	}

	scanOpts, err := scanOptionsFrom(cfg)
	if err != nil {
		log.WithError(err).Fatal("compiling include/exclude regex")
	}

	client, err := ipmi.NewClient(cfg.BMCPath)
	if err != nil {
		log.WithError(err).Error("opening BMC device, IPMI collection disabled for this session")
		client = nil
	}

	d := &daemon{cfg: cfg, scanOpts: scanOpts, client: client, log: log}
	if client != nil {
		if err := d.rebuild(); err != nil {
			log.WithError(err).Warn("initial SDR scan failed")
		}
		go d.watch(scanInterval)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ipmi", d.serveIPMI)
	mux.HandleFunc("/overview", d.serveOverview)

	log.WithField("addr", cfg.ListenAddress).Info("listening")
	if err := http.ListenAndServe(cfg.ListenAddress, mux); err != nil {
		log.WithError(err).Fatal("http server exited")
	}
}

// daemon owns the IPMI client, the live sensor list, and the change
// detector that decides when to rebuild it. Swapping in a new list
// requires exclusive access per spec §5.
type daemon struct {
	mu       sync.RWMutex
	cfg      Config
	scanOpts sensor.Options
	client   *ipmi.Client
	coll     *collector.Collector
	cd       sensor.ChangeDetector
	log      *logrus.Logger
}

// scanOptionsFrom compiles the configured include/exclude regexes into
// the scan option predicates.
func scanOptionsFrom(cfg Config) (sensor.Options, error) {
	opts := sensor.Options{
		IgnoreDisabled: cfg.IgnoreDisabled,
		DropNoRead:     cfg.DropNoRead,
		NoThresholds:   cfg.NoThresholds,
	}
	var err error
	if opts.ExcludeMetrics, err = predicate(cfg.ExcludeMetrics); err != nil {
		return opts, err
	}
	if opts.ExcludeSensors, err = predicate(cfg.ExcludeSensors); err != nil {
		return opts, err
	}
	if opts.IncludeMetrics, err = predicate(cfg.IncludeMetrics); err != nil {
		return opts, err
	}
	if opts.IncludeSensors, err = predicate(cfg.IncludeSensors); err != nil {
		return opts, err
	}
	return opts, nil
}

func (d *daemon) rebuild() error {
	list, err := sensor.Scan(d.client, d.scanOpts)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.coll == nil {
		d.coll = collector.New(d.client, list)
	} else {
		d.coll.SetList(list)
	}
	d.log.WithField("count", len(list)).Info("sensor list rebuilt")
	return nil
}

func (d *daemon) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		d.mu.RLock()
		var list sensor.List
		if d.coll != nil {
			list = d.coll.List()
		}
		d.mu.RUnlock()

		changed, err := d.cd.Changed(d.client, list)
		if err != nil {
			d.log.WithError(err).Warn("change detector failed")
			continue
		}
		if changed {
			if err := d.rebuild(); err != nil {
				d.log.WithError(err).Warn("sensor list rebuild failed")
			}
		}
	}
}

func (d *daemon) opts() collector.Options {
	return collector.Options{
		Compact:      d.cfg.Compact,
		NoState:      d.cfg.NoState,
		NoThresholds: d.cfg.NoThresholds,
		NoIPMI:       d.cfg.NoIPMI,
		NoDCMI:       d.cfg.NoDCMI,
		NoPowerStats: d.cfg.NoPowerStats,
	}
}

func (d *daemon) serveIPMI(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	coll := d.coll
	d.mu.RUnlock()
	if coll == nil {
		http.Error(w, "IPMI collection unavailable", http.StatusServiceUnavailable)
		return
	}
	sink := collector.NewStringSink()
	coll.Collect(sink, d.opts())
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(sink.String()))
}

func (d *daemon) serveOverview(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	coll := d.coll
	d.mu.RUnlock()
	if coll == nil {
		http.Error(w, "IPMI collection unavailable", http.StatusServiceUnavailable)
		return
	}
	sink := collector.NewStringSink()
	coll.Overview(sink, r.URL.Query().Get("verbose") == "1")
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(sink.String()))
}
