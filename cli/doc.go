/*
	Package cli hosts command plugins.  A plugin registers a Descriptor with a Registry
	owned by the host binary; the registry parses the command line, builds the plugin's
	control for a Context and runs the chosen subcommand.

	Commands follow the pattern:

		omero [global options] <command> <subcommand> [arguments] [--flags]

	Flags may be given before or after positional arguments.
*/
package cli
