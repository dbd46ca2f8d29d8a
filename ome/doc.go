/*
	Package ome provides types, constants, and functions that have no other dependencies
	and can be used by all packages within omerotools.  This includes logging, the error
	taxonomy shared by the command line and the script helpers, and TOML configuration.
*/
package ome
