// Package textutil provides text normalization and filename sanitization
// helpers shared by the naming and metadata packages.
//
// Fold maps fullwidth forms to their ASCII equivalents and applies NFC so
// that visually identical names always produce identical ordering keys.
// SanitizeFileName strips characters that are unsafe in a single path
// segment on common filesystems.
package textutil
