// Package codecheck validates generated Soroban contract source against a
// fixed catalogue of security and reliability antipatterns.
//
// The checks are lightweight static analysis over text: a small brace-depth
// scanner isolates function and impl bodies, and each AntipatternKind in the
// registry carries its own detector and message template. Validation is pure,
// deterministic and total; malformed or truncated source only means fewer
// findings.
package codecheck
