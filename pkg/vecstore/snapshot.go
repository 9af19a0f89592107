package vecstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Snapshot format: a little-endian binary dump of the graph. Recycled
// slots are compacted away on save, so a snapshot of a long-lived index
// is as small as a freshly built one.
//
//	magic    [4]byte "EHNW"
//	version  uint32
//	dim, m, efConstruction, efSearch  uint32 each
//	count    uint32
//	entry    int32 (compacted slot, -1 when empty)
//	count records of:
//	  idLen uint32, id [idLen]byte
//	  vector [dim]float32
//	  levels uint32
//	  levels lists of: n uint32, neighbors [n]uint32 (compacted slots)

var snapshotMagic = [4]byte{'E', 'H', 'N', 'W'}

const snapshotVersion = 1

// Save writes a snapshot of the index to w.
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if _, err := bw.Write(snapshotMagic[:]); err != nil {
		return fmt.Errorf("vecstore: write snapshot: %w", err)
	}
	header := []uint32{
		snapshotVersion,
		uint32(h.opts.Dim),
		uint32(h.opts.M),
		uint32(h.opts.EfConstruction),
		uint32(h.opts.EfSearch),
		uint32(h.size),
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vecstore: write snapshot: %w", err)
		}
	}

	// Renumber live slots to 0..size-1 so recycled holes vanish.
	remap := make(map[uint32]uint32, h.size)
	order := make([]uint32, 0, h.size)
	for slot, nd := range h.nodes {
		if nd == nil {
			continue
		}
		remap[uint32(slot)] = uint32(len(order))
		order = append(order, uint32(slot))
	}

	entry := int32(-1)
	if h.entry >= 0 {
		entry = int32(remap[uint32(h.entry)])
	}
	if err := binary.Write(bw, binary.LittleEndian, entry); err != nil {
		return fmt.Errorf("vecstore: write snapshot: %w", err)
	}

	for _, slot := range order {
		nd := h.nodes[slot]
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(nd.id))); err != nil {
			return fmt.Errorf("vecstore: write snapshot: %w", err)
		}
		if _, err := bw.WriteString(nd.id); err != nil {
			return fmt.Errorf("vecstore: write snapshot: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, nd.vector); err != nil {
			return fmt.Errorf("vecstore: write snapshot: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(nd.links))); err != nil {
			return fmt.Errorf("vecstore: write snapshot: %w", err)
		}
		for _, lv := range nd.links {
			mapped := make([]uint32, 0, len(lv))
			for _, nb := range lv {
				if to, ok := remap[nb]; ok {
					mapped = append(mapped, to)
				}
			}
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(mapped))); err != nil {
				return fmt.Errorf("vecstore: write snapshot: %w", err)
			}
			if err := binary.Write(bw, binary.LittleEndian, mapped); err != nil {
				return fmt.Errorf("vecstore: write snapshot: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("vecstore: write snapshot: %w", err)
	}
	return nil
}

// LoadHNSW reads a snapshot produced by [HNSW.Save] and reconstructs the
// index.
func LoadHNSW(r io.Reader) (*HNSW, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("vecstore: read snapshot: bad magic %q", magic[:])
	}

	var header [6]uint32
	for i := range header {
		if err := binary.Read(br, binary.LittleEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
		}
	}
	version, dim, m := header[0], header[1], header[2]
	efC, efS, count := header[3], header[4], header[5]
	if version != snapshotVersion {
		return nil, fmt.Errorf("vecstore: read snapshot: unsupported version %d", version)
	}
	if dim == 0 || dim > math.MaxInt32 {
		return nil, fmt.Errorf("vecstore: read snapshot: invalid dimension %d", dim)
	}
	if count > 1<<30 {
		return nil, fmt.Errorf("vecstore: read snapshot: implausible node count %d", count)
	}

	var entry int32
	if err := binary.Read(br, binary.LittleEndian, &entry); err != nil {
		return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
	}
	if entry >= int32(count) {
		return nil, fmt.Errorf("vecstore: read snapshot: entry %d out of range", entry)
	}

	h := NewHNSW(HNSWOptions{
		Dim:            int(dim),
		M:              int(m),
		EfConstruction: int(efC),
		EfSearch:       int(efS),
	})
	h.entry = entry
	h.size = int(count)
	h.nodes = make([]*node, count)

	for slot := uint32(0); slot < count; slot++ {
		var idLen uint32
		if err := binary.Read(br, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
		}
		if idLen > 1<<16 {
			return nil, fmt.Errorf("vecstore: read snapshot: id length %d out of range", idLen)
		}
		idBuf := make([]byte, idLen)
		if _, err := io.ReadFull(br, idBuf); err != nil {
			return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
		}

		vector := make([]float32, dim)
		if err := binary.Read(br, binary.LittleEndian, vector); err != nil {
			return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
		}

		var levels uint32
		if err := binary.Read(br, binary.LittleEndian, &levels); err != nil {
			return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
		}
		if levels == 0 || levels > 64 {
			return nil, fmt.Errorf("vecstore: read snapshot: node %d has %d levels", slot, levels)
		}
		links := make([][]uint32, levels)
		for lv := range links {
			var n uint32
			if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
				return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
			}
			if n > count {
				return nil, fmt.Errorf("vecstore: read snapshot: node %d level %d has %d links", slot, lv, n)
			}
			nbs := make([]uint32, n)
			if err := binary.Read(br, binary.LittleEndian, nbs); err != nil {
				return nil, fmt.Errorf("vecstore: read snapshot: %w", err)
			}
			for _, nb := range nbs {
				if nb >= count {
					return nil, fmt.Errorf("vecstore: read snapshot: node %d links to missing slot %d", slot, nb)
				}
			}
			links[lv] = nbs
		}

		id := string(idBuf)
		h.nodes[slot] = &node{id: id, vector: vector, links: links}
		h.slots[id] = slot
	}
	return h, nil
}
