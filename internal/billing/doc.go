// Package billing implements the progressive residential electricity
// tariff: consumption fills each tier up to its capacity before
// spilling into the next, and VAT applies to the pre-tax total.
//
// The stock configuration is the six-tier EVN tariff with breakpoints
// at 50, 100, 200, 300 and 400 kWh and 8% VAT. Per-tier prices can be
// replaced at runtime through the settings store.
package billing
