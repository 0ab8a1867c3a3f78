package quantity

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// IdGenerator produces compact, process-unique identifiers used for
// request ids and similar bookkeeping (spec §3, "Request record... an
// assigned unique id"). Ids are not globally unique across processes;
// they only need to be unique, monotonically informative, and cheap to
// generate within one running instance.
type IdGenerator struct {
	prefix  string
	counter atomic.Uint64
	seed    uint64
}

// NewIdGenerator returns a new IdGenerator whose ids are tagged with the
// given prefix (typically the owning component's name).
func NewIdGenerator(prefix string) *IdGenerator {
	return &IdGenerator{
		prefix: prefix,
		seed:   uint64(time.Now().UnixNano()),
	}
}

// Next returns the next id from the generator.
func (g *IdGenerator) Next() string {
	n := g.counter.Add(1)

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], g.seed)
	binary.LittleEndian.PutUint64(buf[8:16], n)

	digest := xxhash.Sum64(buf[:])

	if g.prefix == "" {
		return fmt.Sprintf("%016x", digest)
	}

	return fmt.Sprintf("%s-%016x", g.prefix, digest)
}
