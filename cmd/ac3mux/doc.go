// Package main hosts the ac3mux CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into batch
// conversions, single-file plans, trailer downloads, subtitle extraction,
// environment checks, swap recovery and history queries. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
