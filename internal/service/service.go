// Package service holds the posts business rules.
//
// Handlers call it with validated input. It decides what counts as a
// missing post or a bad author reference and leaves SQL to the
// repository layer.
package service
