package zone

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const DefaultRefPoolBlockSize = 4096

// linkID is a handle to a link in a RefPool. 0 is the nil link.
type linkID uint32

type linkKind uint8

const (
	linkFree linkKind = iota
	linkMember
	linkSentinel
)

// link is the membership record of one object in one zone. A link sits in
// two lists at once: the bin of its zone and the chain of its object. Each
// bin is headed by a sentinel link whose object is the zone owner.
type link struct {
	kind      linkKind
	zone      ZoneID
	object    ObjectID
	prevInBin linkID
	nextInBin linkID
	nextInObj linkID
}

func (l *link) isLinked() bool {
	return l.prevInBin != 0 || l.nextInBin != 0 || l.nextInObj != 0
}

// RefPool allocates links in fixed size blocks. Blocks are never returned;
// freed links go to a free list threaded through nextInObj.
type RefPool struct {
	blockSize int
	maxBlocks int
	blocks    [][]link
	free      linkID
	inUse     int
}

// NewRefPool creates a pool with one block. maxBlocks caps the number of
// blocks, 0 means unlimited.
func NewRefPool(blockSize int, maxBlocks int) *RefPool {
	if blockSize <= 0 {
		blockSize = DefaultRefPoolBlockSize
	}

	p := &RefPool{
		blockSize: blockSize,
		maxBlocks: maxBlocks,
	}
	p.addBlock()
	return p
}

func (p *RefPool) addBlock() bool {
	if p.maxBlocks > 0 && len(p.blocks) >= p.maxBlocks {
		return false
	}

	base := len(p.blocks) * p.blockSize
	block := make([]link, p.blockSize)
	p.blocks = append(p.blocks, block)

	// Thread the new block in reverse so allocation hands out ascending ids.
	for i := p.blockSize - 1; i >= 0; i-- {
		block[i].nextInObj = p.free
		p.free = linkID(base + i + 1)
	}
	return true
}

// Allocate returns a cleared link.
func (p *RefPool) Allocate() (linkID, error) {
	if p.free == 0 && !p.addBlock() {
		return 0, errors.New("zone link pool exhausted").
			WithType(ErrTypePoolExhausted).
			WithTag("blocks", len(p.blocks)).
			WithTag("block_size", p.blockSize)
	}

	id := p.free
	l := p.get(id)
	p.free = l.nextInObj
	*l = link{kind: linkMember}
	p.inUse++
	return id, nil
}

// Free returns a link to the pool. The link must be fully unlinked from its
// bin and its object chain.
func (p *RefPool) Free(id linkID) error {
	l := p.get(id)
	if l == nil || l.kind == linkFree {
		return errors.New("freeing a link that is not allocated").
			WithType(ErrTypeInvariant).
			WithTag("link", id)
	}
	if l.isLinked() {
		return errors.New("freeing a link that is still linked").
			WithType(ErrTypeInvariant).
			WithTag("link", id).
			WithTag("zone", l.zone).
			WithTag("object", l.object)
	}

	*l = link{kind: linkFree, nextInObj: p.free}
	p.free = id
	p.inUse--
	return nil
}

func (p *RefPool) get(id linkID) *link {
	if id == 0 {
		return nil
	}
	i := int(id) - 1
	b := i / p.blockSize
	if b >= len(p.blocks) {
		return nil
	}
	return &p.blocks[b][i%p.blockSize]
}

func (p *RefPool) InUse() int {
	return p.inUse
}

func (p *RefPool) Blocks() int {
	return len(p.blocks)
}

func (p *RefPool) Capacity() int {
	return len(p.blocks) * p.blockSize
}

// freeCount walks the free list.
func (p *RefPool) freeCount() int {
	n := 0
	for id := p.free; id != 0; id = p.get(id).nextInObj {
		n++
		if n > p.Capacity() {
			break
		}
	}
	return n
}
