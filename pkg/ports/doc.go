/*
Package ports defines the driven ports (interfaces) of the speech rule engine.

These interfaces decouple the engine from concrete storage and rule sources.

# Key Interfaces

  - ResultCache: stores evaluated description sequences keyed by node, constraint and rule-base generation.
  - RuleLoader: produces rule batches (from files, embedded sets or memory).
  - Watchable: loaders that can signal when their source changed.
*/
package ports
