// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that fail fast on
// setup errors, reducing boilerplate in fixture code.
package testutil
