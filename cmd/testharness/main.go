// Command testharness provisions PostgreSQL databases for manual testing.
package main

import "github.com/nifty-lil-tricks/testharness/cmd"

func main() {
	cmd.Execute()
}
