package kol

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultRolloverInterval = time.Minute

// RolloverDetector tracks whether the site is inside its nightly maintenance
// window. While the site is up nothing probes periodically; probes are
// triggered by login failures. Once a probe observes the maintenance banner
// the detector re-probes on a fixed interval until the site comes back, then
// arms a one-shot resume signal that the next successful login consumes.
type RolloverDetector struct {
	httpClient *http.Client
	baseURL    string
	interval   time.Duration

	mu            sync.Mutex
	down          bool
	pendingResume bool
	probing       bool
	stopped       bool
	stop          chan struct{}
}

// NewRolloverDetector creates a detector probing the given site root.
func NewRolloverDetector(httpClient *http.Client, baseURL string) *RolloverDetector {
	return &RolloverDetector{
		httpClient: httpClient,
		baseURL:    baseURL,
		interval:   defaultRolloverInterval,
		stop:       make(chan struct{}),
	}
}

// Active reports the last observed maintenance state without probing.
func (d *RolloverDetector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.down
}

// Probe fetches the site root anonymously and updates the maintenance state.
// It returns the state after the probe. On an up-to-down transition it starts
// the periodic probe loop; on down-to-up it arms the resume signal. A probe
// that fails at the transport level keeps the previous state, since it says
// nothing about which banner the site is showing.
func (d *RolloverDetector) Probe(ctx context.Context) bool {
	down, err := d.checkDown(ctx)
	if err != nil {
		slog.Warn("rollover probe failed", "error", err)
		return d.Active()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.down && !down {
		d.pendingResume = true
		slog.Info("rollover complete, site is back up")
	}
	if !d.down && down {
		slog.Info("rollover detected, site is down for maintenance")
		// No loop after Stop: its channel is closed and the loop would exit
		// on the spot while looking alive.
		if !d.probing && !d.stopped {
			d.probing = true
			go d.probeLoop()
		}
	}
	d.down = down
	return down
}

// ConsumeResumeSignal reports whether a down-to-up transition happened since
// the last call, clearing the flag. Each transition fires exactly once.
func (d *RolloverDetector) ConsumeResumeSignal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	fired := d.pendingResume
	d.pendingResume = false
	return fired
}

// Stop shuts down the periodic probe loop and prevents new loops from
// starting; it is terminal and idempotent. Manual probes still update state.
func (d *RolloverDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	close(d.stop)
}

func (d *RolloverDetector) probeLoop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			d.mu.Lock()
			d.probing = false
			d.mu.Unlock()
			return
		case <-ticker.C:
			if !d.Probe(context.Background()) {
				d.mu.Lock()
				d.probing = false
				d.mu.Unlock()
				return
			}
		}
	}
}

// checkDown fetches the site root without credentials and matches the body
// against the maintenance banner.
func (d *RolloverDetector) checkDown(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	return RolloverBanner(string(body)), nil
}
