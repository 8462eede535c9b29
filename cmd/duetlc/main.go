// Command duetlc synthesizes the light curve an orbiting UV telescope would
// record from a model light curve, and serves the same operations over HTTP.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
