// Package influxdb records Lumen telemetry in InfluxDB v2.
//
// Three measurements are written:
//
//   - device_state: online/power/brightness per device, tagged with the
//     device id and the state source (api, optimistic, stale), giving a
//     queryable history of what each light was doing and how fresh the
//     reading was
//   - refresh_cycle: totals and duration of every refresh pass
//   - rate_limit: remaining per-minute and per-day cloud quota
//
// Points are batched and written asynchronously; the coordinator's write
// calls never block on the network. Telemetry is optional: when disabled
// in config, Connect returns ErrDisabled and the caller runs without it.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // degrade gracefully
//	}
//	client.SetOnError(func(err error) { log.Warn("influx write", "error", err) })
//	client.WriteRateLimit(95, 9871)
package influxdb
