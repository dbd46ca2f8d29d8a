/*
	Package storage holds the persistence layer of the reference server: a key-value
	store on Badger for entities and pixel planes, and a blob store on gocloud buckets for
	original file contents.
*/
package storage
