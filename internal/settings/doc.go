// Package settings persists the user-editable configuration: power
// thresholds, electricity tier prices and the VAT rate. Everything
// lives in one SQLite row and is loaded or replaced as a whole unit.
package settings
