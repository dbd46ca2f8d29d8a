/*
	Package scriptutil holds helpers for scripts run against the image-data server:
	uploading and reading back original files, moving pixel planes, importing a
	directory of 2D images as one multi-dimensional image, turning object-detection
	output into regions of interest, and resetting rendering settings.

	Every helper is an independent operation on the service handles it is given.
	Nothing is cached between calls and failures are returned as soon as they occur;
	a partially uploaded file or image is left as is.
*/
package scriptutil
