/*
	Package server implements the image-data server contract declared in the service
	package on top of the storage package.  It is the reference backend for the command
	line tools: "omero serve" exposes it over RPC and tests open it in-process.

	Every entity is owned by the experimenter whose session saved it.  Experimenters may
	only modify their own entities unless they are admins.
*/
package server
