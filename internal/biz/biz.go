// Package biz contains the business logic layer: name resolution, the
// circuit breaker, per-mode aggregation, and the refresh scheduler.
package biz
