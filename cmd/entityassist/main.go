// Command entityassist inspects the data-access layer's configuration, the
// lifecycle flag ranges and the ID coercion registry, and checks database
// connectivity.
package main

import (
	"os"

	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}
