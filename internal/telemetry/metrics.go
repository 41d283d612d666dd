// Package telemetry provides OpenTelemetry metrics for the realtime service.
package telemetry

import "github.com/pitabwire/frame/telemetry"

// Connection metrics track the WebSocket lifecycle.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var (
	ConnectionsActiveGauge = telemetry.DimensionlessMeasure(
		"",
		"realtime.connections.active",
		"Current number of active connections",
	)

	ConnectionsTotalCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.connections.total",
		"Total connection attempts",
	)

	ConnectionsRejectedCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.connections.rejected",
		"Connections rejected at the handshake",
	)

	ConnectionsCleanedCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.connections.cleaned",
		"Stale connections cleaned by the sweeper",
	)
)

// Message metrics track direct and group traffic.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var (
	MessagesSentCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.messages.sent",
		"Total direct messages accepted",
	)

	MessagesDeliveredCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.messages.delivered",
		"Direct messages delivered to an online receiver",
	)

	GroupMessagesSentCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.group_messages.sent",
		"Total group messages accepted",
	)

	GroupFanoutCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.group_messages.fanout",
		"Connections a group broadcast was enqueued to",
	)
)

// Call metrics track call session outcomes.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var (
	CallsInitiatedCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.calls.initiated",
		"Total call sessions initiated",
	)

	CallsAnsweredCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.calls.answered",
		"Call sessions that reached the ongoing state",
	)

	CallsMissedCounter = telemetry.DimensionlessMeasure(
		"",
		"realtime.calls.missed",
		"Call sessions that rang out unanswered",
	)
)
