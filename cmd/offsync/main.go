// Command offsync inspects and synchronizes offline-first collections.
package main

import (
	"os"

	"github.com/roach88/offsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
