package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of digests to a topic. The Kafka producer satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries before an early flush
	Topic          string
	Service        string // stamped on every digest
	Publisher      Publisher
}

// ErrorDigest is one distinct error log line with its repeat count inside a flush window.
type ErrorDigest struct {
	Service   string                 `json:"service"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error logs and periodically publishes them as digests.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	entries map[string]*ErrorDigest
	flushCh chan []ErrorDigest
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}

	c := &LogCollector{
		config:  config,
		entries: make(map[string]*ErrorDigest),
		flushCh: make(chan []ErrorDigest, 8),
		stop:    make(chan struct{}),
	}

	c.wg.Add(2)
	go c.tick()
	go c.ship()

	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &ErrorDigest{
			Service:   c.config.Service,
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.config.CountThreshold {
		c.drainLocked()
	}
}

// Pending reports the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func digestKey(level, message string, fields map[string]interface{}, caller string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", level, message, caller)
	for _, k := range keys {
		v, _ := json.Marshal(fields[k])
		fmt.Fprintf(h, "|%s=%s", k, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// drainLocked hands the current window to the shipper. Caller holds c.mu.
func (c *LogCollector) drainLocked() {
	if len(c.entries) == 0 {
		return
	}
	batch := make([]ErrorDigest, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[string]*ErrorDigest)

	select {
	case c.flushCh <- batch:
	default:
		fmt.Fprintf(os.Stderr, "log collector: dropped %d digests, shipper busy\n", len(batch))
	}
}

func (c *LogCollector) tick() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.drainLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.drainLocked()
			c.mu.Unlock()
			close(c.flushCh)
			return
		}
	}
}

func (c *LogCollector) ship() {
	defer c.wg.Done()

	for batch := range c.flushCh {
		if c.config.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "log collector: publish to %s failed: %v\n", c.config.Topic, err)
		}
		cancel()
	}
}

// Close flushes what is pending and waits for the shipper to finish.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}
