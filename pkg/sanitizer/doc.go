// Package sanitizer normalizes free-form input before validation and storage.
//
// All functions are idempotent. Input that cannot be normalized is returned trimmed but otherwise
// unchanged so that validation can reject it with a precise message.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number]), national numbers resolved against DefaultRegion
//   - Names: collapse whitespace, trim leading/trailing spaces
//   - Emails: trim and lowercase
//   - Specialties: collapse whitespace and lowercase
package sanitizer
