// Package dispatcher implements the two RPC operations over the rest
// of the pool's components (spec.md §4.5).
package dispatcher

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"speechpool/cache"
	"speechpool/concurrentmap"
	"speechpool/config"
	"speechpool/delivery"
	"speechpool/eventbus"
	"speechpool/hashkey"
	"speechpool/logger"
	"speechpool/registry"
	"speechpool/stats"
	"speechpool/streambuf"
	"speechpool/ttsdriver"
)

// ErrTooManyConversions is returned by Start when a request misses the
// cache and the in-flight TTS Driver count is already at the
// configured limit (spec.md §4.5 step 4a, §7 "too many requests").
var ErrTooManyConversions = errors.New("too many requests")

// Dispatcher wires the Cache, the TTS Driver, the Delivery Registry and
// the Event Bus into the two operations the RPC surface exposes.
type Dispatcher struct {
	cfg      *config.Config
	cache    *cache.Cache
	registry *registry.Registry
	bus      eventbus.Bus
	driver   ttsdriver.Driver
	logger   logger.Logger
	stats    *stats.Recorder

	// mu serializes the whole admission decision — rid assignment,
	// cache lookup, and (for a miss) admission check and writer
	// creation — so that two concurrent Start calls can never both
	// believe they created the same new entry, and so that request_id
	// ordering tracks the order callers actually completed this
	// section (spec.md §4.5 step 3/step1 ordering note).
	mu        sync.Mutex
	counter   int64
	driverSeq int64

	// inflight is keyed by a per-driver id, not by cache key: spec §3
	// identifies a driver by the buffer it writes to, and a cache key
	// can be evicted and re-reserved (a fresh driver) while an older
	// driver for that same key is still draining from a prior
	// eviction. Keying by cache key would let the second driver's
	// registration silently overwrite the first's, undercounting
	// in-flight drivers.
	inflight *concurrentmap.Map[int64, struct{}]
}

// New builds a Dispatcher. A nil driver defaults to ttsdriver's
// in-process stub; a nil bus defaults to logging every event.
func New(cfg *config.Config, driver ttsdriver.Driver, bus eventbus.Bus, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default
	}
	if bus == nil {
		bus = eventbus.NewLogBus(log)
	}
	if driver == nil {
		driver = ttsdriver.NewUpperCaseDriver(cfg.DriverTickInterval, log)
	}
	recorder, err := stats.NewRecorder()
	if err != nil {
		log.Errorf("dispatcher: stats recorder unavailable: %v", err)
		recorder = nil
	}
	return &Dispatcher{
		cfg:      cfg,
		cache:    cache.New(cfg.MaxCacheItems),
		registry: registry.New(),
		bus:      bus,
		driver:   driver,
		logger:   log,
		stats:    recorder,
		inflight: concurrentmap.New[int64, struct{}](),
	}
}

// Start implements start_speek: hash text, atomically admit-or-attach
// to an existing conversion, launch a Delivery Task, and return its
// request id.
func (d *Dispatcher) Start(text, host string, port int, eventTag string) (int64, error) {
	d.mu.Lock()

	key := hashkey.Of(text, d.cfg.HashAlgorithm)

	// Decide hit-or-miss *before* reserving: GetOrReserve's underlying
	// Add can evict an unrelated LRU victim to make room, and if this
	// call is about to be rejected by admission control, that eviction
	// would leave the cache changed even though P7 requires a rejected
	// miss to leave it untouched.
	if !d.cache.Peek(key) && d.inflight.Len() >= d.cfg.TTSAPILimit {
		d.mu.Unlock()
		d.logger.Warnf("dispatcher: rejecting start, %d/%d conversions in flight",
			d.inflight.Len(), d.cfg.TTSAPILimit)
		return 0, ErrTooManyConversions
	}

	buf, created := d.cache.GetOrReserve(key)

	if created {
		writer, err := buf.MakeWriter()
		if err != nil {
			// A freshly reserved buffer is always in START state; a
			// failure here means the cache handed back a buffer it
			// shouldn't have.
			d.cache.Remove(key)
			d.mu.Unlock()
			d.logger.Errorf("dispatcher: invariant violation reserving %q: %v", key, err)
			return 0, err
		}

		d.driverSeq++
		driverID := d.driverSeq
		d.inflight.Set(driverID, struct{}{})
		go d.runDriver(driverID, text, writer)
	}

	d.counter++
	rid := d.counter

	d.mu.Unlock()

	reader := buf.MakeReader()
	clientAddr := net.JoinHostPort(host, strconv.Itoa(port))
	task := delivery.New(context.Background(), rid, clientAddr, eventTag, reader, d.bus, d.logger)
	d.registry.Register(task)
	go task.Run()

	return rid, nil
}

func (d *Dispatcher) runDriver(driverID int64, text string, writer *streambuf.Writer) {
	defer d.inflight.Del(driverID)
	d.driver.Convert(context.Background(), text, writer)
}

// Stop implements stop_speek.
func (d *Dispatcher) Stop(requestID int64) bool {
	return d.registry.Stop(requestID)
}

// CacheSize returns the current number of cached conversions.
func (d *Dispatcher) CacheSize() int { return d.cache.Len() }

// LiveConversions returns the current in-flight TTS Driver count.
func (d *Dispatcher) LiveConversions() int { return d.inflight.Len() }

// LiveDeliveries returns the current number of registered deliveries.
func (d *Dispatcher) LiveDeliveries() int { return d.registry.Len() }

// Heartbeat records and returns a fresh Snapshot of the pool's
// admission control state.
func (d *Dispatcher) Heartbeat() stats.Snapshot {
	snap := stats.Snapshot{
		CacheSize:       d.CacheSize(),
		InFlightDrivers: d.LiveConversions(),
		LiveDeliveries:  d.LiveDeliveries(),
		Timestamp:       time.Now(),
	}
	if d.stats != nil {
		if err := d.stats.Record(snap); err != nil {
			d.logger.Errorf("dispatcher: failed to record heartbeat: %v", err)
		}
	}
	return snap
}
