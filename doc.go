// Package surface is the Go SDK and service for the Surface
// attack-surface-management platform.
//
// The platform tracks a multi-tenant inventory of assets (domains,
// websites, cloud resources, repositories) and the security findings
// reported against them. Findings move through a fixed triage workflow;
// the finding package defines its transition table and the client package
// applies changes optimistically against the REST API with rollback on
// failure.
//
// Package layout:
//
//   - finding:   finding domain types, severity/status enums, workflow table
//   - asset:     asset and asset-group inventory aggregates with risk scores
//   - cache:     Redis-backed query cache with broad invalidation
//   - client:    REST API client and the optimistic mutation wrapper
//   - server:    the fiber REST API service backing the dashboard
//   - store:     gorm persistence for findings, assets and audit entries
//   - license:   plan/module gating with CEL gate rules
//   - audit:     append-only audit log entries
//   - triage:    AI-assisted triage suggestions
//   - registry:  etcd-backed scanner registry
//   - config:    YAML service configuration with hot reload
//   - health:    dependency health checks
//
// The root package carries the shared error types.
package surface
