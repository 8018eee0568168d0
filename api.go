// Package resourcez tracks the resource attached to every telemetry signal a
// process emits, and layers renewable sessions on top of it.
//
// resourcez keeps resource computation apart from span creation and export.
// Signal pipelines read the current resource from a Provider; session managers
// keep the provider in sync with the active session of each named channel.
//
// Core Components:
//   - Resource: Immutable attribute set with right-biased merge.
//   - Provider: Mutable cell holding the current Resource.
//   - Session: Opaque session id projected under session.<name>.id.
//   - Store: Persistence for sessions (cookie, memory, no-op, SQL).
//   - Manager: Session lifecycle against one Provider and one Store.
//   - Renewer: Periodic session renewal driven by a clock.
//
// Basic Usage:
//
//	provider := resourcez.NewProvider(resourcez.NewResource(map[string]any{
//		"service.name": "checkout",
//	}))
//
//	jar, _ := cookiejar.New(nil)
//	store := resourcez.NewCookieStore(resourcez.NewClientJar(jar, origin)).
//		WithMaxAge(30 * time.Minute)
//
//	manager := resourcez.NewManager("default", provider, store)
//	manager.CreateSession()
//
//	// Stamp outgoing signals.
//	attrs := provider.Resource().Attributes()
//
// Thread Safety:
//
// Resource values are immutable and safe to share. Provider is safe for
// concurrent use; Update is last-write-wins, Modify is a compare-and-swap loop.
// Manager serializes its own operations. Two managers for the same session
// name over one Provider are not coordinated - keep one manager per name.
//
// Failure Semantics:
//
// Missing or malformed persisted sessions mean "no session". Session
// operations never return errors.
package resourcez

// Version is reported as telemetry.sdk.version in Default.
const Version = "0.1.0"

// Well-known attribute keys.
const (
	ServiceNameKey     = "service.name"
	SDKNameKey         = "telemetry.sdk.name"
	SDKLanguageKey     = "telemetry.sdk.language"
	SDKVersionKey      = "telemetry.sdk.version"
	DefaultSessionName = "default"
)
