/*
Package rulebase holds the indexed collection of speech rules.

Rules are partitioned by constraint and then by node kind, so a lookup touches only
the rules that can possibly match. Loads are validated up front and applied
all-or-nothing; every successful load bumps the generation counter that result
caches use to tell rule sets apart.
*/
package rulebase
