// The main package for the curator executable.
package main

import (
	"os"

	"github.com/JakeFAU/curation-crawler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
