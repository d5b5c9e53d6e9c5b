// Package textutil holds small string helpers for turning user supplied
// names into safe file and directory names.
package textutil
