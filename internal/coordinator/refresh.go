package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/device"
)

// RefreshResult summarises one refresh cycle.
type RefreshResult struct {
	// Total is the number of devices in the batch.
	Total int

	// Refreshed is how many devices got a confirmed cloud reading.
	Refreshed int

	// Stale is how many devices kept their previous state after a failed
	// or abandoned fetch.
	Stale int

	// Duration is the wall time of the whole cycle.
	Duration time.Duration
}

// Refresh queries the state of every non-group device concurrently under one
// shared batch deadline and merges the results into the state store.
//
// Failure handling per device:
//   - Rate-limited, transient or deadline failures keep the previous state
//     tagged stale; a device with no previous state stays absent.
//   - An auth failure aborts the whole cycle: outstanding fetches are
//     cancelled (their devices go stale), already-merged results are kept,
//     the reauth signal fires once, and ErrAuthRequired is returned.
func (c *Coordinator) Refresh(ctx context.Context) (RefreshResult, error) {
	devices := c.directory.ListRefreshable()
	res := RefreshResult{Total: len(devices)}
	if len(devices) == 0 {
		return res, nil
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.batchDeadline)
	defer cancel()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i := range devices {
		dev := devices[i]
		g.Go(func() error {
			info, err := c.transport.GetDeviceState(gctx, dev.ID, dev.SKU)
			if err != nil {
				if errors.Is(err, cloud.ErrAuthFailed) {
					// Cancels the group; siblings see gctx close.
					return err
				}
				c.logger.Warn("state refresh failed; keeping previous state",
					"device", dev.ID,
					"error", err,
				)
				if c.markStale(dev.ID) {
					mu.Lock()
					res.Stale++
					mu.Unlock()
				}
				return nil
			}

			incoming := device.StateFromCloud(info)
			st := c.store.Apply(dev.ID, incoming, device.KindAPI)

			c.publisher.PublishState(dev.ID, st)
			c.recordState(&dev, st)

			mu.Lock()
			res.Refreshed++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	res.Duration = time.Since(start)

	c.telemetry.WriteRefreshCycle(res.Total, res.Refreshed, res.Stale, res.Duration)
	if c.limiter != nil {
		c.telemetry.WriteRateLimit(c.limiter.RemainingMinute(), c.limiter.RemainingDay())
	}

	if err != nil {
		c.signalReauth()
		return res, fmt.Errorf("%w: %s", ErrAuthRequired, err)
	}
	c.clearReauth()

	c.logger.Debug("refresh cycle complete",
		"total", res.Total,
		"refreshed", res.Refreshed,
		"stale", res.Stale,
		"duration", res.Duration,
	)
	return res, nil
}

// markStale re-tags a device's previous state as stale and publishes it.
// Returns false when the device has no previous state to keep.
func (c *Coordinator) markStale(deviceID string) bool {
	if _, ok := c.store.Get(deviceID); !ok {
		return false
	}
	st := c.store.Apply(deviceID, device.State{DeviceID: deviceID}, device.KindStale)
	c.publisher.PublishState(deviceID, st)
	return true
}
