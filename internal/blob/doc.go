// Package blob stores upload and conversion bytes keyed by job id.
//
// Two backends implement Store: a local directory (root/container/key) and an
// S3 bucket. Put never overwrites an existing key. Replace swaps the content
// atomically so a concurrent reader observes either the previous bytes or the
// new bytes, never a partial write.
package blob
