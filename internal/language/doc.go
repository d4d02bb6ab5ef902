// Package language provides unified language code normalization and mapping.
//
// Translation units, terms, and alignment profiles all key on language codes
// that arrive from editors in mixed shapes ("en", "eng", "English",
// "en-US"). Everything is reduced to ISO 639-1 here so language pairs
// compare reliably across packages.
package language
