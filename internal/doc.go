// Package internal runs flow analyses over source files.
//
// Engine is an analysis session. It owns the pieces every analysis of the
// session shares:
//
//   - the oracle and variable policy graphs are built with
//   - a ResultCache keyed by tree node, policy and build options, invalidated
//     when the session VersionClock advances
//   - a dataflow Analyzer configured with the session walk bounds
//   - the rules, each a Rule that reports Issues for one function
//
// Sources are Go files, lowered by package lower, or YAML tree files read by
// package treefile. Issues silenced by a nolint directive are dropped.
//
// Usage:
//
//	engine, err := internal.NewEngine(internal.DefaultEngineConfig(), internal.WithLogger(logger))
//	if err != nil {
//	    // handle error
//	}
//	issues, err := engine.Run(ctx, "path/to/file.go")
//
// Watch re-checks files as they change. Each change advances the clock, so
// graphs of the old content are never served again.
package internal
