/*
Package domain contains the value types shared by the speech rule engine.

It is kept free of I/O and persistence. Adapters and the runtime depend on it,
never the other way around.

# Key Entities

  - Tree / Node: an already-classified semantic tree stored as an arena with stable integer ids.
  - Constraint: the (domain, style) pair selecting the active rule family, plus its fallback order.
  - Rule: a query, a constraint and an ordered action of Components.
  - Description: one spoken fragment with optional prosody, attributed to a source node.
*/
package domain
