// SPDX-License-Identifier: MPL-2.0

package main

import cmd "kmake-cli/cmd/kmake"

func main() {
	cmd.Execute()
}
