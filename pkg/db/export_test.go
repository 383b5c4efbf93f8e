package db

// Resolve - exercise the source precedence directly.
var Resolve = resolve

// ResetTestMode - undo TestEnable between tests. The production switch is
// one-way; only tests get to reset it.
func ResetTestMode() { testMode.Store(false) }
