package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/device"
)

// Scenes returns the dynamic scenes available to a device.
//
// Results are cached until forceRefresh is set; the cache never expires on
// its own. An empty list is a valid cached answer and does not trigger a
// refetch. On a cache miss the persisted snapshot is consulted before the
// cloud.
func (c *Coordinator) Scenes(ctx context.Context, deviceID string, forceRefresh bool) ([]cloud.Scene, error) {
	return c.scenesFor(ctx, deviceID, device.SceneKindDynamic, forceRefresh)
}

// DIYScenes returns the user-authored DIY scenes available to a device.
// Caching behaves exactly like Scenes, in a separate namespace.
func (c *Coordinator) DIYScenes(ctx context.Context, deviceID string, forceRefresh bool) ([]cloud.Scene, error) {
	return c.scenesFor(ctx, deviceID, device.SceneKindDIY, forceRefresh)
}

// ActivateScene sends a scene command by name, resolving the wire value from
// the scene cache.
//
// The optimistic state records the scene name; the raw cached value goes
// over the wire.
func (c *Coordinator) ActivateScene(ctx context.Context, deviceID, name string, kind device.SceneKind) error {
	dev, err := c.directory.Get(deviceID)
	if err != nil {
		return err
	}

	scenes, err := c.scenesFor(ctx, deviceID, kind, false)
	if err != nil {
		return err
	}

	var raw json.RawMessage
	found := false
	for _, s := range scenes {
		if s.Name == name {
			raw = s.Value
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %q on device %s", ErrSceneNotFound, name, deviceID)
	}

	instance := cloud.InstanceLightScene
	if kind == device.SceneKindDIY {
		instance = cloud.InstanceDIYScene
	}

	cmd := cloud.CapabilityCommand{
		Type:     cloud.CapabilityDynamicScene,
		Instance: instance,
		Value:    raw,
	}
	return c.dispatch(ctx, dev, cmd, name)
}

// scenesFor serves one scene namespace from cache, snapshot or cloud, in
// that order. Concurrent callers for the same device and namespace share a
// single fetch; callers for other devices proceed independently.
func (c *Coordinator) scenesFor(ctx context.Context, deviceID string, kind device.SceneKind, force bool) ([]cloud.Scene, error) {
	dev, err := c.directory.Get(deviceID)
	if err != nil {
		return nil, err
	}

	if !force {
		if scenes, ok := c.cachedScenes(deviceID, kind); ok {
			return copyScenes(scenes), nil
		}
	}

	key := string(kind) + "/" + deviceID
	v, err, _ := c.sceneFlight.Do(key, func() (any, error) {
		if !force {
			// A caller that queued behind the winning flight may find the
			// cache already filled.
			if scenes, ok := c.cachedScenes(deviceID, kind); ok {
				return scenes, nil
			}
			if c.repo != nil {
				scenes, err := c.repo.LoadScenes(ctx, deviceID, kind)
				if err == nil {
					c.storeScenes(deviceID, kind, scenes)
					return scenes, nil
				}
				if !errors.Is(err, device.ErrNoSnapshot) {
					c.logger.Warn("loading scene snapshot failed", "device", deviceID, "error", err)
				}
			}
		}

		fetch := c.transport.ListScenes
		if kind == device.SceneKindDIY {
			fetch = c.transport.ListDIYScenes
		}

		scenes, err := fetch(ctx, dev.ID, dev.SKU)
		if err != nil {
			if errors.Is(err, cloud.ErrAuthFailed) {
				c.signalReauth()
			}
			return nil, err
		}
		c.clearReauth()

		c.storeScenes(deviceID, kind, scenes)
		if c.repo != nil {
			if err := c.repo.SaveScenes(ctx, deviceID, kind, scenes); err != nil {
				c.logger.Warn("persisting scene cache failed", "device", deviceID, "error", err)
			}
		}

		c.logger.Debug("scene list fetched",
			"device", deviceID,
			"kind", string(kind),
			"count", len(scenes),
		)
		return scenes, nil
	})
	if err != nil {
		return nil, err
	}
	return copyScenes(v.([]cloud.Scene)), nil
}

// cachedScenes reads one namespace's cache entry under the cache mutex.
func (c *Coordinator) cachedScenes(deviceID string, kind device.SceneKind) ([]cloud.Scene, bool) {
	c.sceneMu.Lock()
	defer c.sceneMu.Unlock()

	cache := c.scenes
	if kind == device.SceneKindDIY {
		cache = c.diyScenes
	}
	scenes, ok := cache[deviceID]
	return scenes, ok
}

// storeScenes writes one namespace's cache entry under the cache mutex.
func (c *Coordinator) storeScenes(deviceID string, kind device.SceneKind, scenes []cloud.Scene) {
	c.sceneMu.Lock()
	defer c.sceneMu.Unlock()

	if kind == device.SceneKindDIY {
		c.diyScenes[deviceID] = scenes
		return
	}
	c.scenes[deviceID] = scenes
}

// copyScenes returns an independent copy so callers cannot mutate the cache.
func copyScenes(scenes []cloud.Scene) []cloud.Scene {
	if scenes == nil {
		return []cloud.Scene{}
	}
	out := make([]cloud.Scene, len(scenes))
	for i, s := range scenes {
		out[i] = cloud.Scene{
			Name:  s.Name,
			Value: append(json.RawMessage(nil), s.Value...),
		}
	}
	return out
}
