package client

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/attachment"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/crypto"
	"mercator-hq/callisto/pkg/delivery"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/redact"
	"mercator-hq/callisto/pkg/store/pending"
	"mercator-hq/callisto/pkg/store/replay"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// Client is the explicit context object owning every collaborator: the
// encryption engine, redactor, attachment service and sweeper, durable
// stores, policy cache, and delivery coordinator. Construct one with
// NewClient, capture through it, and release it with Close.
//
// The embedder owns the lifecycle; there is no implicit global state.
type Client struct {
	config   *config.Config
	logger   *slog.Logger
	engine   *crypto.Engine
	deviceID string

	redactorMu sync.RWMutex
	redactor   *redact.Redactor

	attachments *attachment.Service
	sweeper     *attachment.Sweeper
	pending     *pending.SQLiteStore
	replays     *replay.SQLiteStore
	policies    *policy.Cache
	collector   *delivery.Collector
	coordinator *delivery.Coordinator
	metrics     *metrics.Collector

	watcherMu   sync.Mutex
	watcher     *config.FileWatcher
	watcherDone chan struct{}

	// sample decides success sampling; replaced in tests.
	sample func() float64

	closeOnce sync.Once
	closeErr  error

	mu     sync.RWMutex
	closed bool
}

// NewClient constructs a fully wired client from the configuration.
// Defaults are applied and the configuration is validated; a nil or
// invalid configuration is a ConfigurationError.
//
// Construction opens both SQLite stores, creates the blob directory,
// starts the blob sweeper and the retry scheduler, and re-arms delivery
// of any rows left over from a previous process.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, delivery.NewConfigurationError("configuration cannot be nil")
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := configureLogging(&cfg.Telemetry.Logging); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "client")

	material, err := keyMaterial(&cfg.Encryption)
	if err != nil {
		return nil, err
	}
	engine, err := crypto.NewEngine(material)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption engine: %w", err)
	}

	deviceID := cfg.Client.DeviceID
	if deviceID == "" {
		deviceID, err = loadOrCreateDeviceID(deviceIDPath(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to establish device ID: %w", err)
		}
	}

	attachments, err := attachment.NewService(&attachment.Config{
		BlobDir:       cfg.Attachments.BlobDir,
		MaxPerEvent:   cfg.Attachments.MaxPerEvent,
		MaxFileSize:   cfg.Attachments.MaxFileSize,
		MaxTotalSize:  cfg.Attachments.MaxTotalSize,
		SweepSchedule: cfg.Attachments.SweepSchedule,
		MaxBlobAge:    cfg.Attachments.MaxBlobAge,
	}, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment service: %w", err)
	}

	pendingStore, err := pending.NewSQLiteStoreWithConfig(pending.SQLiteConfig{
		DBPath:      cfg.Storage.PendingDBPath,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pending store: %w", err)
	}

	replayStore, err := replay.NewSQLiteStore(&replay.Config{
		Path:        cfg.Storage.ReplayDBPath,
		MaxRows:     cfg.Storage.ReplayMaxRows,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		pendingStore.Close()
		return nil, fmt.Errorf("failed to open replay store: %w", err)
	}

	metricsCollector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	transport := delivery.NewHTTPTransport(cfg.Collector.Timeout)
	collector, err := delivery.NewCollector(transport, delivery.CollectorConfig{
		BaseURL: cfg.Collector.BaseURL,
		APIKey:  cfg.Collector.APIKey,
	})
	if err != nil {
		pendingStore.Close()
		replayStore.Close()
		return nil, err
	}

	policies := policy.NewCache(collector, &policy.Config{
		TTL:       cfg.Policy.TTL,
		CachePath: cfg.Policy.CachePath,
	})

	coordinator, err := delivery.NewCoordinator(
		collector, pendingStore, attachments, engine, replayStore,
		metricsCollector,
		&delivery.CoordinatorConfig{
			DeviceID:    deviceID,
			BaseDelay:   cfg.Delivery.BaseDelay,
			MaxAttempts: cfg.Delivery.MaxAttempts,
		},
	)
	if err != nil {
		pendingStore.Close()
		replayStore.Close()
		return nil, err
	}

	c := &Client{
		config:      cfg,
		logger:      logger,
		engine:      engine,
		deviceID:    deviceID,
		redactor:    newRedactor(&cfg.Redaction),
		attachments: attachments,
		pending:     pendingStore,
		replays:     replayStore,
		policies:    policies,
		collector:   collector,
		coordinator: coordinator,
		metrics:     metricsCollector,
		sample:      rand.Float64,
	}

	if cfg.Attachments.SweepSchedule != "" {
		c.sweeper = attachment.NewSweeper(attachments)
		if err := c.sweeper.Start(); err != nil {
			logger.Warn("Failed to start blob sweeper", "error", err)
			c.sweeper = nil
		}
	}

	if err := coordinator.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start delivery scheduler: %w", err)
	}

	logger.Info("Client initialized",
		"device_id", deviceID,
		"collector", cfg.Collector.BaseURL,
	)

	return c, nil
}

// Close releases every collaborator: the retry scheduler, the blob
// sweeper, and both SQLite stores. It is idempotent and safe to call
// concurrently; capture calls after Close fail with a
// ConfigurationError.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.watcherMu.Lock()
		if c.watcher != nil {
			if err := c.watcher.Stop(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
			<-c.watcherDone
			c.watcher = nil
		}
		c.watcherMu.Unlock()

		if c.coordinator != nil {
			if err := c.coordinator.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
		if c.sweeper != nil {
			c.sweeper.Stop()
		}
		if c.pending != nil {
			if err := c.pending.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
		if c.replays != nil {
			if err := c.replays.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}

		c.logger.Info("Client closed")
	})
	return c.closeErr
}

// DeviceID returns the installation identifier used for collector
// correlation.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// RefreshPolicy re-fetches the remote policy if its TTL has elapsed.
// Capture calls consult the cached policy; embedders that want fresher
// replay gating call this on their own cadence.
func (c *Client) RefreshPolicy(ctx context.Context) (*policy.Policy, error) {
	p, err := c.policies.RefreshIfNeeded(ctx)
	if err != nil {
		c.metrics.RecordPolicyFetch("failure")
		return p, err
	}
	c.metrics.RecordPolicyFetch("success")
	return p, nil
}

// WatchConfig watches the configuration file at path and hot-reloads
// the redaction rules on every change. The reloaded file goes through
// the full load/override/validate pipeline and replaces the process
// global; invalid writes are logged and the previous rules stay in
// effect. The watcher runs until Close.
func (c *Client) WatchConfig(path string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.watcherMu.Lock()
	defer c.watcherMu.Unlock()
	if c.watcher != nil {
		return delivery.NewConfigurationError("configuration watcher already running")
	}

	wc := config.DefaultFileWatcherConfig()
	wc.Path = path
	fw, err := config.NewFileWatcher(wc, c.logger.With("component", "config.watcher"))
	if err != nil {
		return fmt.Errorf("failed to start configuration watcher: %w", err)
	}

	c.watcher = fw
	c.watcherDone = make(chan struct{})
	go func() {
		defer close(c.watcherDone)
		err := fw.Watch(context.Background(), func() error {
			if err := config.ReloadConfig(path); err != nil {
				return err
			}
			c.ApplyRedaction(&config.GetConfig().Redaction)
			return nil
		})
		if err != nil {
			c.logger.Error("Configuration watcher exited", "error", err)
		}
	}()
	return nil
}

// ApplyRedaction replaces the redaction rules in effect for subsequent
// captures. In-flight captures keep the rules they started with.
// WatchConfig calls this on every successful reload.
func (c *Client) ApplyRedaction(rc *config.RedactionConfig) {
	r := newRedactor(rc)
	c.redactorMu.Lock()
	c.redactor = r
	c.redactorMu.Unlock()
	c.logger.Info("Redaction rules reloaded")
}

// MetricsHandler returns an HTTP handler exposing the client's
// Prometheus registry, for embedders that serve a metrics endpoint.
func (c *Client) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

// currentRedactor snapshots the redactor in effect for one capture.
func (c *Client) currentRedactor() *redact.Redactor {
	c.redactorMu.RLock()
	defer c.redactorMu.RUnlock()
	return c.redactor
}

// checkOpen fails with a ConfigurationError once the client is closed.
func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return delivery.NewConfigurationError("client is closed")
	}
	return nil
}

// configureLogging installs the configured logger as the process
// default, which scopes every component logger beneath it.
func configureLogging(cfg *config.LoggingConfig) error {
	redactValues := cfg.RedactValues == nil || *cfg.RedactValues
	log, err := logging.New(logging.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		AddSource:    cfg.AddSource,
		RedactValues: redactValues,
	})
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	log.SetDefault()
	return nil
}

// keyMaterial resolves the encryption key bytes from the configuration.
func keyMaterial(cfg *config.EncryptionConfig) ([]byte, error) {
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		return data, nil
	}
	return []byte(cfg.Key), nil
}

// newRedactor builds a redactor from the configuration section.
func newRedactor(rc *config.RedactionConfig) *redact.Redactor {
	patterns := make([]redact.Pattern, 0, len(rc.Patterns))
	for _, p := range rc.Patterns {
		patterns = append(patterns, redact.Pattern{Regex: p})
	}
	return redact.New(redact.Config{
		HeaderNames:         rc.HeaderNames,
		BodyFieldNames:      rc.BodyFieldNames,
		QueryParamNames:     rc.QueryParamNames,
		RedactAuthorization: rc.RedactAuthorization == nil || *rc.RedactAuthorization,
		Patterns:            patterns,
	})
}

// deviceIDPath places the persisted device ID beside the pending store.
func deviceIDPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Storage.PendingDBPath), "device_id")
}

// loadOrCreateDeviceID reads the persisted installation identifier,
// generating and persisting a fresh one on first use.
func loadOrCreateDeviceID(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if id := string(data); id != "" {
			return id, nil
		}
	}

	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", err
	}
	return id, nil
}
