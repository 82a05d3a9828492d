// Package threshold classifies site power draw into alert levels.
//
// The evaluator is a pure function: consumers decide what to do with a
// Warning or Critical result. Defaults are 500 W warning and 1000 W
// critical on the site total, with an optional per-room ceiling whose
// breach takes precedence over the total-based levels.
package threshold
