// File: mbuf/bulk.go
// Package mbuf
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bulk allocation and release. Free groups buffers by owning pool so each
// pool sees a single bulk call.

package mbuf

import (
	"github.com/momentics/hioload-fwd/driver"
)

// AllocBulk returns n owned buffers from the calling core's bound pool, or
// an error and none.
func AllocBulk(n int) ([]*Buffer, error) {
	p, err := Bound()
	if err != nil {
		return nil, err
	}
	segs, err := p.raw.AllocBulk(n)
	if err != nil {
		return nil, err
	}
	bufs := make([]*Buffer, n)
	for i, s := range segs {
		bufs[i] = FromSeg(s)
	}
	return bufs, nil
}

// FreeBulk releases owned buffers, grouping them by owning pool. Borrowed
// buffers are skipped.
func FreeBulk(bufs []*Buffer) {
	groups := make(map[driver.Pool][]*driver.Seg)
	for _, b := range bufs {
		if b == nil || b.seg == nil || b.tag != Owned {
			continue
		}
		s := b.IntoSeg()
		if p := s.Pool(); p != nil {
			groups[p] = append(groups[p], s)
		}
	}
	for p, segs := range groups {
		p.FreeBulk(segs)
	}
}
