/*
Package observability turns engine lifecycle hooks into Prometheus metrics.

Metrics registers its collectors on a caller supplied registerer and exposes the
matching domain.LifecycleHooks. Combine them with application hooks through Chain.
*/
package observability
