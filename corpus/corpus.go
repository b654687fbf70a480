// Package corpus maintains the ordered set of admitted chromosomes: the
// campaign's working population, ranked by fitness and capped at a
// configured size, plus the separate, eviction-immune set of crashes.
package corpus

import (
	"math"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/coverage"
	"github.com/choronzon/choronzon/fitness"
	"github.com/choronzon/choronzon/internal/invariant"
)

// contentHash identifies a chromosome by its serialized bytes, so the
// corpus can enforce "no two members with identical serialized bytes"
// without re-serializing every existing member on each admission check.
type contentHash [32]byte

func hashOf(serialized []byte) contentHash {
	return blake2b.Sum256(serialized)
}

// entry augments a Chromosome with the bookkeeping the corpus's ordering
// and dedupe invariants need but that does not belong in the evolutionary
// metadata itself.
type entry struct {
	chromosome *chromo.Chromosome
	hash       contentHash
	seq        uint64 // insertion sequence; lower is older
	coverage   coverage.Set
}

// Corpus is the ordered multiset of admitted chromosomes, keyed by fitness
// descending with ties broken oldest-first, capped at Capacity.
type Corpus struct {
	mu sync.Mutex

	Capacity int

	members []*entry
	byHash  map[contentHash]bool
	nextSeq uint64

	// Crashes maps a crash site to one representative chromosome. Members
	// here are kept apart from members and are never evicted by
	// evictWorstLocked.
	Crashes map[coverage.Hit]*chromo.Chromosome
}

// New creates an empty Corpus capped at capacity.
func New(capacity int) *Corpus {
	invariant.Precondition(capacity > 0, "corpus capacity must be positive")
	return &Corpus{
		Capacity: capacity,
		byHash:   make(map[contentHash]bool),
		Crashes:  make(map[coverage.Hit]*chromo.Chromosome),
	}
}

// Decision records why a trial's chromosome was or was not admitted, for
// the per-trial log line the scheduler writes.
type Decision struct {
	Admitted bool
	Rule     string // "crash", "novelty", "fitness", "duplicate", "none"
}

// Len returns the current corpus size, excluding crashes.
func (c *Corpus) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// MinFitness returns the lowest fitness currently in the corpus, or
// negative infinity if the corpus is empty (so rule 3 always admits into
// an empty corpus).
func (c *Corpus) MinFitness() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.members) == 0 {
		return negInf
	}
	return c.members[len(c.members)-1].chromosome.Fitness
}

var negInf = math.Inf(-1)

// Has reports whether serialized bytes identical to data are already
// present in the corpus.
func (c *Corpus) Has(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byHash[hashOf(data)]
}

// Admit evaluates admission rules 1–4 against a trial's outcome and, if
// admitted, inserts the chromosome and evicts the worst member if the
// corpus now exceeds Capacity. A termination of Timeout restricts
// admission to rules 1 and 2 only.
func (c *Corpus) Admit(
	ch *chromo.Chromosome,
	serialized []byte,
	cov coverage.Set,
	termination coverage.Reason,
	g *fitness.Map,
) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := hashOf(serialized)
	if c.byHash[hash] {
		return Decision{Admitted: false, Rule: "duplicate"}
	}

	score := g.Score(cov)
	ch.Fitness = score
	ch.Executed = true

	if termination == coverage.FatalSignal {
		c.insertLocked(ch, hash, cov)
		return Decision{Admitted: true, Rule: "crash"}
	}

	if g.HasNovelEdge(cov) {
		c.insertLocked(ch, hash, cov)
		return Decision{Admitted: true, Rule: "novelty"}
	}

	if termination == coverage.Timeout {
		// Rule 3 (fitness alone) is disabled for timed-out trials so slow
		// inputs are never rewarded purely for running long.
		return Decision{Admitted: false, Rule: "none"}
	}

	if score > c.minFitnessLocked() {
		c.insertLocked(ch, hash, cov)
		return Decision{Admitted: true, Rule: "fitness"}
	}

	return Decision{Admitted: false, Rule: "none"}
}

// RecordCrash registers ch as the representative chromosome for the crash
// site key, if no representative is already recorded. Crash-set members
// are immune to eviction.
func (c *Corpus) RecordCrash(key coverage.Hit, ch *chromo.Chromosome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.Crashes[key]; !exists {
		c.Crashes[key] = ch
	}
}

func (c *Corpus) minFitnessLocked() float64 {
	if len(c.members) == 0 {
		return negInf
	}
	return c.members[len(c.members)-1].chromosome.Fitness
}

func (c *Corpus) insertLocked(ch *chromo.Chromosome, hash contentHash, cov coverage.Set) {
	e := &entry{chromosome: ch, hash: hash, seq: c.nextSeq, coverage: cov}
	c.nextSeq++
	c.byHash[hash] = true
	c.members = append(c.members, e)
	c.resort()

	if len(c.members) > c.Capacity {
		c.evictWorstLocked()
	}
}

// resort orders members by fitness descending, ties broken by recency
// ascending (older first) — the corpus's canonical display order.
func (c *Corpus) resort() {
	sort.SliceStable(c.members, func(i, j int) bool {
		if c.members[i].chromosome.Fitness != c.members[j].chromosome.Fitness {
			return c.members[i].chromosome.Fitness > c.members[j].chromosome.Fitness
		}
		return c.members[i].seq < c.members[j].seq
	})
}

// evictWorstLocked drops the lowest-fitness member. Eviction's tie-break
// is the opposite of the corpus's display order: among members sharing
// the minimum fitness, the oldest is evicted first to keep the corpus
// fresh, so eviction scans for that member explicitly rather than
// trusting array position.
func (c *Corpus) evictWorstLocked() {
	worstIdx := len(c.members) - 1
	minFitness := c.members[worstIdx].chromosome.Fitness
	for i := len(c.members) - 1; i >= 0 && c.members[i].chromosome.Fitness == minFitness; i-- {
		if c.members[i].seq < c.members[worstIdx].seq {
			worstIdx = i
		}
	}
	victim := c.members[worstIdx]
	c.members = append(c.members[:worstIdx], c.members[worstIdx+1:]...)
	delete(c.byHash, victim.hash)
}

// Top returns the highest-fitness member, or nil if the corpus is empty.
// The corpus invariant guarantees this member has always been executed.
func (c *Corpus) Top() *chromo.Chromosome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.members) == 0 {
		return nil
	}
	return c.members[0].chromosome
}

// All returns every member chromosome, in corpus order (fittest first).
func (c *Corpus) All() []*chromo.Chromosome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chromo.Chromosome, len(c.members))
	for i, e := range c.members {
		out[i] = e.chromosome
	}
	return out
}

// Seed inserts a chromosome directly, bypassing admission rules — used
// when loading seed files or restoring a checkpoint, where every member
// was already admitted in a prior run or is the campaign's starting
// material.
func (c *Corpus) Seed(ch *chromo.Chromosome, serialized []byte, cov coverage.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash := hashOf(serialized)
	if c.byHash[hash] {
		return
	}
	c.insertLocked(ch, hash, cov)
}

// Tournament picks k members uniformly at random and returns the
// highest-fitness one — the scheduler's parent-selection primitive.
func (c *Corpus) Tournament(k int, pick func(n int) int) *chromo.Chromosome {
	c.mu.Lock()
	defer c.mu.Unlock()
	invariant.Precondition(len(c.members) > 0, "cannot run a tournament over an empty corpus")
	if k > len(c.members) {
		k = len(c.members)
	}
	best := c.members[pick(len(c.members))]
	for i := 1; i < k; i++ {
		candidate := c.members[pick(len(c.members))]
		if candidate.chromosome.Fitness > best.chromosome.Fitness {
			best = candidate
		}
	}
	return best.chromosome
}
