// Package model describes the base objects manipulated by panini.
//
// The object model for panini is composed of:
//
//	Entries:
//	  A logical file or directory of the namespace. A file entry points to the blob
//	  holding its committed content.
//
//	Catalog:
//	  The persistent record of all entries, reloaded when a workspace is opened.
//
// Blob references are described by package blob, assertions by package semantic.
package model
