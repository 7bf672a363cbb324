// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import "golang.org/x/exp/mmap"

// OpenFile memory maps the file and opens it as an archive.
// Close the archive to unmap it.
func OpenFile(name string) (*Archive, error) {
	r, err := mmap.Open(name)
	if err != nil {
		return nil, err
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	ar.closer = r
	return ar, nil
}
