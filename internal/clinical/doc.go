// Package clinical contains the pure computations derived from fetched
// records: ages, body-mass index, name normalization and duplicate
// detection, report date ranges and the lenient parsing used by the legacy
// importer. Nothing here performs I/O or keeps state between calls.
package clinical
