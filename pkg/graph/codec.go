package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/ritzau/syncgraph/pkg/model"
)

// CodecVersion is the payload version written by Codec.
const CodecVersion uint64 = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported target graph version")
	ErrMalformed          = errors.New("malformed target graph payload")
)

// Codec encodes a TargetGraph independently of its in-memory layout.
// The version tag itself is written by the store envelope.
//
// Version 1 layout (all integers are uvarints):
//
//	nextID
//	vertexCount { id labelLen labelBytes }
//	universeCount { id }
//	adjacencyCount { id successorCount { successorId } }
//
// Predecessor lists are rebuilt from successor lists on decode.
type Codec struct{}

// Version returns the format version written by Encode.
func (Codec) Version() uint64 {
	return CodecVersion
}

// Encode serialises g in the current format.
func (Codec) Encode(g *TargetGraph) ([]byte, error) {
	buf := make([]byte, 0, 64+g.Len()*32)
	buf = binary.AppendUvarint(buf, uint64(g.nextID))

	ids := g.VertexIDs()
	buf = binary.AppendUvarint(buf, uint64(len(ids)))
	for _, id := range ids {
		label := g.id2Label[id]
		buf = binary.AppendUvarint(buf, uint64(id))
		buf = binary.AppendUvarint(buf, uint64(len(label)))
		buf = append(buf, label...)
	}

	universe := g.Universe()
	buf = binary.AppendUvarint(buf, uint64(len(universe)))
	for _, id := range universe {
		buf = binary.AppendUvarint(buf, uint64(id))
	}

	sources := make([]int64, 0, len(g.successors))
	for id, succ := range g.successors {
		if len(succ) > 0 {
			sources = append(sources, id)
		}
	}
	slices.Sort(sources)
	buf = binary.AppendUvarint(buf, uint64(len(sources)))
	for _, id := range sources {
		succ := g.successors[id]
		buf = binary.AppendUvarint(buf, uint64(id))
		buf = binary.AppendUvarint(buf, uint64(len(succ)))
		for _, to := range succ {
			buf = binary.AppendUvarint(buf, uint64(to))
		}
	}

	return buf, nil
}

// Decode rebuilds a graph from data written with the given format version.
func (Codec) Decode(version uint64, data []byte) (*TargetGraph, error) {
	if version != CodecVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	r := &reader{data: data}
	g := NewTargetGraph()
	g.nextID = int64(r.uvarint())

	vertices := r.count()
	for i := 0; i < vertices && r.err == nil; i++ {
		id := int64(r.uvarint())
		label := model.Label(r.bytes())
		if r.err != nil {
			break
		}
		if id == EmptyID || id >= g.nextID {
			return nil, fmt.Errorf("%w: vertex id %d out of range", ErrMalformed, id)
		}
		if _, dup := g.id2Label[id]; dup {
			return nil, fmt.Errorf("%w: duplicate vertex id %d", ErrMalformed, id)
		}
		if _, dup := g.label2ID[label]; dup {
			return nil, fmt.Errorf("%w: duplicate label %s", ErrMalformed, label)
		}
		g.id2Label[id] = label
		g.label2ID[label] = id
	}

	roots := r.count()
	for i := 0; i < roots && r.err == nil; i++ {
		id := int64(r.uvarint())
		if r.err == nil && !g.isLive(id) {
			return nil, fmt.Errorf("%w: universe references unknown vertex %d", ErrMalformed, id)
		}
		g.universe[id] = struct{}{}
	}

	sources := r.count()
	for i := 0; i < sources && r.err == nil; i++ {
		from := int64(r.uvarint())
		n := r.count()
		for j := 0; j < n && r.err == nil; j++ {
			to := int64(r.uvarint())
			if r.err != nil {
				break
			}
			if !g.AddEdge(from, to) {
				return nil, fmt.Errorf("%w: edge %d -> %d references unknown vertex", ErrMalformed, from, to)
			}
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-r.off)
	}
	return g, nil
}

type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		r.err = fmt.Errorf("%w: truncated varint at offset %d", ErrMalformed, r.off)
		return 0
	}
	r.off += n
	return v
}

// count reads a length prefix and rejects values that cannot fit in the remaining input.
func (r *reader) count() int {
	n := r.uvarint()
	if r.err == nil && n > uint64(len(r.data)-r.off) {
		r.err = fmt.Errorf("%w: count %d exceeds remaining input", ErrMalformed, n)
		return 0
	}
	return int(n)
}

func (r *reader) bytes() []byte {
	n := r.count()
	if r.err != nil {
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}
