/*
Package cli provides small command-line helpers shared by the ccproxy
binary: typed startup errors and graceful-shutdown signal handling.

Typed errors:

	return cli.NewConfigError("providers_path", "file not found")

Signal handling:

	ctx := cli.SetupSignalHandler()
	// or, to select alongside a server error channel:
	sigChan := cli.WaitForShutdown()
*/
package cli
