// Package cmd provides the sgmdse command line.
//
// Configuration System:
//
//	Values are resolved with clear precedence:
//	1. Command-line flags (--config, --workers, etc.) - highest priority
//	2. SGMDSE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SGMDSE_DISPATCH_WORKERS, SYSROOT, etc.)
//	4. Configuration file (.sgmdse.yml)
//	5. Built-in defaults, equal to the production design space - lowest priority
//
// Environment Variables:
//
//	SGMDSE_CONFIG_FILE: Path to custom configuration file
//	SGMDSE_DISPATCH_WORKERS: Override the worker count
//	SGMDSE_WORKSPACE_TEMPLATE_ROOT: Override the accelerator template directory
//	SYSROOT: Cross-compilation sysroot handed to the build tool
//	And every other key following the SGMDSE_<SECTION>_<OPTION> pattern
//
// # Available Commands
//
//   - init: Write a configuration file holding the production design space
//   - plan: Show the configuration set and each worker's ordered share
//   - sweep: Materialize and build every configuration on the worker pool
//   - materialize: Prepare and build one configuration from thirteen integers
//   - status: Show the latest outcome per configuration from the result log
//   - watch: Re-run the sweep when template files change
//   - validate: Report every configuration and template problem at once
//   - version: Show build information
//
// # Command Examples
//
//	// Preview the assignment for four workers
//	sgmdse plan -w 4
//
//	// Full sweep with SYSROOT from the environment
//	SYSROOT=/opt/sysroot sgmdse sweep
//
//	// Rebuild one configuration by hand
//	sgmdse materialize 374 1242 2 7 128 16 4 1 2 5 3 80 3200
//
//	// Only the failures of the last sweep, as JSON
//	sgmdse status --failed -f json
//
// # Exit Codes
//
//	0  every configuration succeeded
//	1  a configuration failed or the command could not run
//	2  malformed arguments to materialize
//
// # Security Considerations
//
// The build tool must be on the tool.allowed_commands allowlist. Arguments
// and extra environment assignments are checked for shell metacharacters
// before the tool runs, and workspace paths may not contain "..".
package cmd
