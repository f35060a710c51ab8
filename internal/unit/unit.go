// Package unit defines the dispatch Unit and the line splitter that cuts a
// read chunk into units.
package unit

import "bytes"

// Unit is one atomic write: everything from the last dispatched boundary up
// to and including the next newline, or up to the end of the chunk.
type Unit struct {
	Bytes    []byte // aliases the chunk it was cut from
	Complete bool   // true when Bytes ends with '\n'
}

// String returns the unit content, mostly for test failure output.
func (u Unit) String() string {
	return string(u.Bytes)
}

// Split cuts chunk into units in left-to-right order and appends them to dst.
// Every unit but the last ends with a newline; the last one is a fragment
// (Complete == false) when chunk does not end with a newline.
// An empty chunk yields no units.
func Split(dst []Unit, chunk []byte) []Unit {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return append(dst, Unit{Bytes: chunk})
		}
		dst = append(dst, Unit{Bytes: chunk[:i+1], Complete: true})
		chunk = chunk[i+1:]
	}
	return dst
}
