/*
Package log provides structured logging for bucketsmdapi using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout or custom writer          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("dispatch")                │          │
	│  │  - WithMethod(l, "createobject")             │          │
	│  │  - WithRequestID(l, id)                      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "dispatch",                │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "starting fast server"        │          │
	│  │  }                                           │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Log Levels

Debug: Detailed per-request tracing (SQL text, claim latency) — development only.
Info: Server lifecycle, request counts — default production level.
Warn: Degraded-but-serving conditions (slow claim, retryable postgres error).
Error: PostgresError replies (driver failures, claim failures, decode failures).
Fatal: Unrecoverable startup failures (bad config, failed listen) — exits the process.

# Usage

Initializing the logger:

	import "github.com/cuemby/bucketsmdapi/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("fast server listening")
	log.Errorf("postgres claim failed: %v", err)

Structured logging:

	log.Logger.Info().
		Str("method", "createobject").
		Dur("claim_latency", d).
		Msg("request handled")

Component loggers:

	dispatchLog := log.WithComponent("dispatch")
	dispatchLog.Info().Str("address", addr).Msg("starting fast server")

	reqLog := log.WithMethod(dispatchLog, "getobject")
	if rid, ok := fast.PeekField(msg, "request_id"); ok {
		reqLog = log.WithRequestID(reqLog, rid)
	}
	reqLog.Debug().Msg("dispatching")

# Design Patterns

Global Logger Pattern: a single package-level Logger instance, initialized
once at process start, accessible from every package without threading a
logger through every call.

Context Logger Pattern: WithComponent/WithMethod/WithRequestID build child
loggers that carry fixed fields (component, RPC method, request ID) into
every subsequent line without repeating field calls at each call site.

Structured Logging Pattern: typed fields (.Str, .Err, .Dur) instead of
string concatenation, so log lines stay parseable by aggregation tools.

# Security

Never log secrets: connection strings are logged with credentials
stripped, and `content_md5`/`properties` object payloads are never
logged in full — only identifying fields (owner, bucket_id, name, id).
*/
package log
