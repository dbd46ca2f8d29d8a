/*
Package omerotools holds command line plugins and script helpers for an image-data
server: disk usage quotas per user, file upload and download, pixel plane transfer,
directory import of 2D images, and import of detected objects as regions of interest.

Documentation of each package can be found with "go doc".

Commands

In the following documentation, the type of brackets designate
<required parameter> and [optional parameter].

	omero [options] serve [data path]

Starts a local server exposing the service contract over RPC.  Users, the blob
bucket and the secret key come from the [server] section of the TOML configuration.
Without a data path the store is kept in memory.

	omero quota status [obj] [--wait SECONDS] [--style sql|plain|csv|json] [--human]

Reports bytes used against each user's quota.  obj is "Experimenter:<id>[,<id>...]"
or "Experimenter:*"; "User" is accepted for "Experimenter".  Without obj the current
user is reported.

	omero quota update <obj> (--set MiB | --clear)

Sets or clears quotas.  Admins only; a negative quota exits with status 600.

	omero script upload <file> [--parent Dataset:<id>] [--mimetype M | --format <id>]
	omero script download <file id> [local path]
	omero script import-dir <dir> [--dataset <id>]
	omero script import-rois <file> --image <id>

Moves files and imports images and regions of interest with the script helpers.

Layout

	ome         logging, errors, configuration
	model       entities exchanged with the server
	service     service interfaces and client-side stores
	storage     badger key-value store and gocloud blob bucket
	server      reference implementation of the services
	rpc         gorpc transport for the services
	cli         plugin registry, command context, table output
	plugins/*   the quota and script commands
	scriptutil  script helpers
*/
package omerotools
