// Package textutil turns user-supplied display names into filesystem-safe
// file names.
package textutil
