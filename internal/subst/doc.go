// SPDX-License-Identifier: MPL-2.0

// Package subst implements variable substitution over workspace trees.
//
// One engine (Substitute) replaces ${NAME} or ${QUALIFIER:NAME} tokens in
// every string leaf. Four passes use it, in this order:
//
//  1. InputPass: names listed under inputs, prompted for or read from the input cache.
//  2. EnvPass: ${ENV:NAME}, matched case-insensitively against the environment.
//  3. VariablePass: the workspace variables map.
//  4. BuiltinPass: per-record WORKING_DIR, OUTPUT_DIR, PROJECT_NAME and their variants.
//
// Builtins run last, so a workspace variable sharing a builtin's name is
// substituted first and the builtin fills any token still left.
package subst
