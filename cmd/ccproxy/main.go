// ccproxy is a protocol-translating reverse proxy: it accepts Claude
// Messages API requests and serves them against OpenAI-compatible chat
// completion backends, with prioritized multi-provider fallback.
//
// Usage:
//
//	# Start the proxy with default configuration
//	ccproxy run
//
//	# Start with a custom provider config file
//	ccproxy run --config /path/to/providers.json
//
//	# Show version information
//	ccproxy version
package main

func main() {
	Execute()
}
