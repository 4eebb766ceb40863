// SPDX-License-Identifier: MPL-2.0

// Package check runs compile probes and turns their outcome into
// preprocessor defines shared by every content project.
//
// A probe is built in a scratch directory that is recreated before each
// probe. Results are cached by the SHA-256 digest of the check's name and
// probe text, so an unchanged probe is built once while the cache is in use.
package check
