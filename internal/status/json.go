package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	ID            string        `json:"id,omitempty"`
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Channels      []ChannelJSON `json:"channels"`
	Override      string        `json:"override"`
	UnlockAll     bool          `json:"unlock_all"`
	Clock         ClockJSON     `json:"clock"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON is the JSON representation of one compartment.
type ChannelJSON struct {
	Channel        int    `json:"channel"` // 1-based
	Time           string `json:"time"`
	Phase          string `json:"phase"`
	DispensedToday bool   `json:"dispensed_today"`
	AwaitingPickup bool   `json:"awaiting_pickup"`
	Indicator      bool   `json:"indicator"`
}

// ClockJSON reports clock health.
type ClockJSON struct {
	OK    bool   `json:"ok"`
	Time  string `json:"time,omitempty"`
	Error string `json:"error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Dispensed   int `json:"dispensed"`
	Pickups     int `json:"pickups"`
	UnlockAll   int `json:"unlock_all"`
	DailyResets int `json:"daily_resets"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Policy         string `json:"policy"`
	PollMs         int64  `json:"poll_ms"`
	UnlockMs       int64  `json:"unlock_ms"`
	AlertMs        int64  `json:"alert_ms"`
	OverrideHoldMs int64  `json:"override_hold_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	UTCOffset      string `json:"utc_offset"`
	ClockSource    string `json:"clock_source"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, ch := range snap.Channels {
		channels[i] = ChannelJSON{
			Channel:        ch.Index + 1,
			Time:           ch.Schedule.String(),
			Phase:          string(ch.Phase),
			DispensedToday: ch.DispensedToday,
			AwaitingPickup: ch.AwaitingPickup,
			Indicator:      ch.Indicator,
		}
	}

	override := string(snap.Override)
	if override == "" {
		override = "UNKNOWN"
	}

	clk := ClockJSON{OK: snap.ClockOK, Error: snap.ClockError}
	if !snap.WallTime.IsZero() {
		clk.Time = snap.WallTime.Format(time.RFC3339)
	}

	return StatusInner{
		Channels:      channels,
		Override:      override,
		UnlockAll:     snap.UnlockAll,
		Clock:         clk,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Dispensed:   snap.Counts.Dispensed,
			Pickups:     snap.Counts.Pickups,
			UnlockAll:   snap.Counts.UnlockAll,
			DailyResets: snap.Counts.DailyResets,
		},
		Config: ConfigJSON{
			Policy:         string(snap.Config.Policy),
			PollMs:         snap.Config.PollMs,
			UnlockMs:       snap.Config.UnlockMs,
			AlertMs:        snap.Config.AlertMs,
			OverrideHoldMs: snap.Config.OverrideHoldMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			UTCOffset:      snap.Config.UTCOffset,
			ClockSource:    snap.Config.ClockSource,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, id, event, reason string) []byte {
	inner := buildInner(snap)
	inner.ID = id
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
