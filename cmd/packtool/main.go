// packtool builds, inspects, forks and exports layered image packs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "packtool:", err)
		os.Exit(1)
	}
}
