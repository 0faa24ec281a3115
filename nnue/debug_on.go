//go:build nnuedebug

package nnue

const debugChecks = true
