// SPDX-License-Identifier: MPL-2.0

// Package download fetches the external artifacts declared by workspace
// projects, verifies their digests and runs their post-commands.
//
// Descriptors are identified by the SHA-256 digest of their JSON form, so
// identical declarations in several projects or configurations are fetched
// once. Completed descriptors are recorded in a YAML cache file next to the
// workspace; a later run with the cache enabled skips every descriptor that is
// recorded and whose destination still exists.
//
// A digest mismatch is an IntegrityError. It aborts the whole stage: no
// post-command of that descriptor runs and it is not recorded as complete.
package download
