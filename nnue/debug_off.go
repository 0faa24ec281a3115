//go:build !nnuedebug

package nnue

// debugChecks enables board validation on every refresh and delta
// validation on every incremental update.
const debugChecks = false
