// Package geoip resolves IP addresses through the ip-api.com batch endpoint.
package geoip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/kimhsiao/recordkit/internal/config"
	"github.com/kimhsiao/recordkit/internal/db"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/metrics"
	"github.com/kimhsiao/recordkit/internal/models"
)

const (
	// MaxBatch is the provider's limit of IPs per request.
	MaxBatch = 100

	headerRemaining = "X-Rl"
	headerTTL       = "X-Ttl"
)

// Client batches lookups and honours the provider's request budget.
type Client struct {
	http      *http.Client
	endpoint  string
	fields    string
	lang      string
	batchSize int
	margin    time.Duration
	retries   int

	limiter *rate.Limiter
	memory  *lru.Cache[string, models.GeoInfo]
	store   db.GeoCache

	// sleep and newBackOff are replaced in tests
	sleep      func(ctx context.Context, d time.Duration) error
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithStore enables the persistent cache.
func WithStore(s db.GeoCache) Option {
	return func(c *Client) { c.store = s }
}

// WithLimiter replaces the request pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func withSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = f }
}

func withBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

// New builds a Client from cfg.
func New(cfg config.GeoConfig, opts ...Option) (*Client, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	memory, err := lru.New[string, models.GeoInfo](size)
	if err != nil {
		return nil, fmt.Errorf("create geo cache: %w", err)
	}

	batch := cfg.BatchSize
	if batch <= 0 || batch > MaxBatch {
		batch = MaxBatch
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}

	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		endpoint:  cfg.Endpoint,
		fields:    cfg.Fields,
		lang:      cfg.Lang,
		batchSize: batch,
		margin:    cfg.SafetyMargin,
		retries:   cfg.Retries,
		limiter:   rate.NewLimiter(limit, 1),
		memory:    memory,
		sleep:     sleepCtx,
	}
	c.newBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	if c.retries < 0 {
		c.retries = 0
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Batches splits ips into consecutive groups of at most size.
func Batches(ips []string, size int) [][]string {
	if size <= 0 {
		size = MaxBatch
	}
	var out [][]string
	for start := 0; start < len(ips); start += size {
		end := start + size
		if end > len(ips) {
			end = len(ips)
		}
		out = append(out, ips[start:end])
	}
	return out
}

func dedupe(ips []string) []string {
	seen := make(map[string]struct{}, len(ips))
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}

// Lookup resolves ips. Cached answers are served first; the remainder is
// requested in batches. A failed batch is logged and skipped, so the
// returned map always holds every record obtained. The error, when not
// nil, lists the failed batches.
func (c *Client) Lookup(ctx context.Context, ips []string) (map[string]models.GeoInfo, error) {
	results := make(map[string]models.GeoInfo)

	var missing []string
	for _, ip := range dedupe(ips) {
		if info, ok := c.cached(ip); ok {
			results[ip] = info
			metrics.GeoCacheHits.Inc()
			continue
		}
		missing = append(missing, ip)
	}

	var errs []error
	for i, batch := range Batches(missing, c.batchSize) {
		infos, err := c.fetchBatch(ctx, batch)
		if err != nil {
			metrics.GeoBatches.WithLabelValues("failed").Inc()
			logging.Error("geolocation batch failed", err, map[string]interface{}{"batch": i, "size": len(batch)})
			errs = append(errs, &BatchError{IPs: batch, Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		metrics.GeoBatches.WithLabelValues("ok").Inc()

		for j, info := range infos {
			ip := info.Query
			if ip == "" && j < len(batch) {
				ip = batch[j]
				info.Query = ip
			}
			results[ip] = info
			if info.OK() {
				c.remember(info)
			}
		}
	}

	if len(errs) > 0 {
		return results, apperrors.Wrap(apperrors.ErrEnrichment, fmt.Sprintf("%d of %d batches failed", len(errs), len(Batches(missing, c.batchSize))), errors.Join(errs...))
	}
	return results, nil
}

func (c *Client) cached(ip string) (models.GeoInfo, bool) {
	if info, ok := c.memory.Get(ip); ok {
		return info, true
	}
	if c.store == nil {
		return models.GeoInfo{}, false
	}
	info, ok, err := c.store.GetGeoInfo(ip)
	if err != nil {
		logging.Warn("geo cache read failed", map[string]interface{}{"ip": ip, "error": err.Error()})
		return models.GeoInfo{}, false
	}
	if ok {
		c.memory.Add(ip, info)
	}
	return info, ok
}

func (c *Client) remember(info models.GeoInfo) {
	c.memory.Add(info.Query, info)
	if c.store == nil {
		return
	}
	if err := c.store.PutGeoInfo(info); err != nil {
		logging.Warn("geo cache write failed", map[string]interface{}{"ip": info.Query, "error": err.Error()})
	}
}

// fetchBatch posts one batch, retrying transient failures.
func (c *Client) fetchBatch(ctx context.Context, batch []string) ([]models.GeoInfo, error) {
	var infos []models.GeoInfo

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		res, err := c.post(ctx, batch)
		if err != nil {
			return err
		}
		infos = res
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if c.fields != "" {
		q.Set("fields", c.fields)
	}
	if c.lang != "" {
		q.Set("lang", c.lang)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) post(ctx context.Context, batch []string) ([]models.GeoInfo, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	target, err := c.requestURL()
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid endpoint: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	remaining := resp.Header.Get(headerRemaining)
	ttl := resp.Header.Get(headerTTL)

	if resp.StatusCode == http.StatusTooManyRequests {
		if err := c.waitBudget(ctx, ttl); err != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	if resp.StatusCode >= 500 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(&StatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var infos []models.GeoInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}

	if remaining == "0" || remaining == "1" {
		// a cancelled wait still keeps this batch; the next one fails on the limiter
		_ = c.waitBudget(ctx, ttl)
	}
	return infos, nil
}

// waitBudget suspends until the provider's window resets.
func (c *Client) waitBudget(ctx context.Context, ttl string) error {
	seconds, err := strconv.Atoi(strings.TrimSpace(ttl))
	if err != nil || seconds < 0 {
		seconds = 60
	}
	wait := time.Duration(seconds)*time.Second + c.margin
	logging.Info("request budget exhausted, waiting for reset", map[string]interface{}{"seconds": wait.Seconds()})
	return c.sleep(ctx, wait)
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected response: " + e.Status
}

// BatchError carries the IPs of a failed batch.
type BatchError struct {
	IPs []string
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch of %d ips: %v", len(e.IPs), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// WriteFailureReport writes the failed batches of a lookup next to the
// processed record so the operator can retry them by hand.
func WriteFailureReport(dir, service, identifier string, lookupErr error) (string, error) {
	var batches []*BatchError
	collect(lookupErr, &batches)
	if len(batches) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, be := range batches {
		fmt.Fprintf(&b, "error %v\n", be.Err)
		ips, _ := json.Marshal(be.IPs)
		fmt.Fprintf(&b, "ips list:\n%s\n", ips)
		var se *StatusError
		if errors.As(be.Err, &se) {
			fmt.Fprintf(&b, "status_code: %d\n", se.Code)
		}
	}

	name := fmt.Sprintf("error-%s-%s.text", service, identifier)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func collect(err error, out *[]*BatchError) {
	if err == nil {
		return
	}
	if be, ok := err.(*BatchError); ok {
		*out = append(*out, be)
		return
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			collect(e, out)
		}
	case interface{ Unwrap() error }:
		collect(x.Unwrap(), out)
	}
}
