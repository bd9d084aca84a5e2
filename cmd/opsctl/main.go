// Command opsctl loads and runs YAML-defined operational workflows
// (docker builds, Kubernetes rollouts, notifications) with dependency
// ordering, bounded parallelism, and retry/timeout handling.
package main

import "os"

func main() {
	os.Exit(Execute())
}
