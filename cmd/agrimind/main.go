// Agrimind router is a resilient routing layer for LLM inference
// requests.
//
// The router itself is embedded as a library; this binary provides the
// operator surface around it:
//   - Validate and inspect configuration files
//   - Query the attempt audit trail
//   - Prune audit rows past the retention window
//
// Usage:
//
//	# Validate a configuration file
//	agrimind validate --config router.yaml
//
//	# Show the retry chain of one request
//	agrimind audit query --request-id "7f3c..."
//
//	# Prune audit rows past retention
//	agrimind audit prune
//
//	# Show version information
//	agrimind version
package main

func main() {
	Execute()
}
