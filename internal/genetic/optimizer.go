// Package genetic minimizes a candidate test suite with a coverage-guided
// genetic search. Individuals are bit vectors over the immutable candidate
// pool; fitness trades rule coverage against suite size.
package genetic

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/policyprobe/policyprobe/internal/testgen"
)

// Config controls the search. Zero values fall back to the defaults below;
// Run clamps out-of-range values rather than failing.
type Config struct {
	// PopulationSize is the number of individuals per generation.
	PopulationSize int

	// Generations is the fixed generation bound. The search always runs this
	// many generations unless Plateau stops it early.
	Generations int

	// Elite individuals survive each generation verbatim.
	Elite int

	// ParentPool is how many of the fittest individuals are eligible as
	// crossover parents.
	ParentPool int

	// CrossoverRate is the probability a child is produced by single-point
	// crossover rather than copied from its first parent.
	CrossoverRate float64

	// MutationRate is the independent per-bit flip probability applied after
	// crossover.
	MutationRate float64

	// Alpha and Beta weight coverage against suite size in the fitness
	// function: alpha*coverage - beta*(selected/pool).
	Alpha float64
	Beta  float64

	// Plateau stops the search after this many generations without an
	// improvement in best fitness. Zero disables early stopping, which is the
	// default: a fixed generation count is the reference behavior.
	Plateau int

	// Seed makes the run reproducible. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns the standard search parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 20,
		Generations:    50,
		Elite:          2,
		ParentPool:     10,
		CrossoverRate:  0.9,
		MutationRate:   0.05,
		Alpha:          0.8,
		Beta:           0.2,
	}
}

// Progress describes the best individual after one generation.
type Progress struct {
	Generation   int
	BestFitness  float64
	BestCoverage float64
	BestSize     int
}

// Result is the outcome of a search.
type Result struct {
	// Suite holds the selected vectors in original candidate order.
	Suite []testgen.Vector

	// Fitness and Coverage describe the winning individual.
	Fitness  float64
	Coverage float64

	// Generations is how many generations actually ran.
	Generations int
}

// Optimizer searches subsets of a fixed candidate pool. The pool is shared and
// read-only; individuals are index selections over it.
type Optimizer struct {
	cfg     Config
	pool    []testgen.Vector
	ruleIDs []string
	rng     *rand.Rand

	// OnProgress, when set, is invoked after every generation with the current
	// best individual's statistics.
	OnProgress func(Progress)
}

// New builds an optimizer over the candidate pool. The configuration is
// sanitized once here.
func New(pool []testgen.Vector, ruleIDs []string, cfg Config) *Optimizer {
	cfg = sanitize(cfg)
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Optimizer{
		cfg:     cfg,
		pool:    pool,
		ruleIDs: ruleIDs,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func sanitize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = def.PopulationSize
	}
	if cfg.Generations <= 0 {
		cfg.Generations = def.Generations
	}
	if cfg.Elite <= 0 {
		cfg.Elite = def.Elite
	}
	if cfg.Elite > cfg.PopulationSize {
		cfg.Elite = cfg.PopulationSize
	}
	if cfg.ParentPool < 2 {
		cfg.ParentPool = def.ParentPool
	}
	if cfg.ParentPool > cfg.PopulationSize {
		cfg.ParentPool = cfg.PopulationSize
	}
	if cfg.CrossoverRate <= 0 || cfg.CrossoverRate > 1 {
		cfg.CrossoverRate = def.CrossoverRate
	}
	if cfg.MutationRate < 0 || cfg.MutationRate >= 1 {
		cfg.MutationRate = def.MutationRate
	}
	if cfg.Alpha == 0 && cfg.Beta == 0 {
		cfg.Alpha = def.Alpha
		cfg.Beta = def.Beta
	}
	if cfg.Plateau < 0 {
		cfg.Plateau = 0
	}
	return cfg
}

type genome []bool

// Run executes the search and returns the best individual found. An empty
// candidate pool short-circuits to an empty suite: zero-length genomes never
// reach the crossover operator. Cancelling ctx returns the best individual so
// far along with the context error.
func (o *Optimizer) Run(ctx context.Context) (Result, error) {
	if len(o.pool) == 0 {
		return Result{}, nil
	}

	population := make([]genome, o.cfg.PopulationSize)
	for i := range population {
		g := make(genome, len(o.pool))
		for j := range g {
			g[j] = o.rng.Intn(2) == 1
		}
		population[i] = g
	}

	var (
		best        genome
		bestFitness float64
		stale       int
		ran         int
	)

	for gen := 0; gen < o.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return o.result(best, bestFitness, ran), err
		}

		o.sortByFitness(population)
		ran = gen + 1

		top := population[0]
		topFitness := o.fitness(top)
		if best == nil || topFitness > bestFitness {
			best = append(genome(nil), top...)
			bestFitness = topFitness
			stale = 0
		} else {
			stale++
		}

		if o.OnProgress != nil {
			selected := o.decode(top)
			o.OnProgress(Progress{
				Generation:   ran,
				BestFitness:  topFitness,
				BestCoverage: testgen.Coverage(selected, o.ruleIDs),
				BestSize:     len(selected),
			})
		}

		if o.cfg.Plateau > 0 && stale >= o.cfg.Plateau {
			break
		}
		if gen == o.cfg.Generations-1 {
			break
		}

		population = o.nextGeneration(population)
	}

	// The final population is already sorted; its head is the first-occurrence
	// winner. Elitism guarantees it is at least as fit as any earlier best.
	if final := population[0]; o.fitness(final) >= bestFitness {
		best = final
		bestFitness = o.fitness(final)
	}

	return o.result(best, bestFitness, ran), nil
}

// nextGeneration keeps the elite verbatim and fills the remainder with mutated
// crossover children of parents drawn from the fittest ParentPool individuals.
// The population must already be sorted by fitness.
func (o *Optimizer) nextGeneration(population []genome) []genome {
	next := make([]genome, 0, o.cfg.PopulationSize)
	for i := 0; i < o.cfg.Elite; i++ {
		next = append(next, population[i])
	}

	for len(next) < o.cfg.PopulationSize {
		p1 := population[o.rng.Intn(o.cfg.ParentPool)]
		p2 := population[o.rng.Intn(o.cfg.ParentPool)]
		child := o.crossover(p1, p2)
		o.mutate(child)
		next = append(next, child)
	}
	return next
}

// crossover performs single-point crossover with probability CrossoverRate.
// Genomes shorter than two bits cannot host a cut point, so the child is a
// plain copy of the first parent.
func (o *Optimizer) crossover(p1, p2 genome) genome {
	child := append(genome(nil), p1...)
	if len(p1) < 2 || o.rng.Float64() >= o.cfg.CrossoverRate {
		return child
	}
	point := 1 + o.rng.Intn(len(p1)-1)
	copy(child[point:], p2[point:])
	return child
}

func (o *Optimizer) mutate(g genome) {
	for i := range g {
		if o.rng.Float64() < o.cfg.MutationRate {
			g[i] = !g[i]
		}
	}
}

// fitness scores an individual: alpha*coverage - beta*(selected/pool). The
// all-zero genome scores exactly 0.
func (o *Optimizer) fitness(g genome) float64 {
	selected := 0
	for _, bit := range g {
		if bit {
			selected++
		}
	}
	if selected == 0 {
		return 0
	}

	covered := make(map[string]bool)
	for i, bit := range g {
		if !bit {
			continue
		}
		for id := range o.pool[i].Covers {
			covered[id] = true
		}
	}
	coverage := 0.0
	if len(o.ruleIDs) > 0 {
		n := 0
		for _, id := range o.ruleIDs {
			if covered[id] {
				n++
			}
		}
		coverage = float64(n) / float64(len(o.ruleIDs))
	}

	penalty := float64(selected) / float64(len(o.pool))
	return o.cfg.Alpha*coverage - o.cfg.Beta*penalty
}

// sortByFitness orders the population fittest first. The sort is stable so
// ties resolve by population order, not randomly.
func (o *Optimizer) sortByFitness(population []genome) {
	scores := make([]float64, len(population))
	for i, g := range population {
		scores[i] = o.fitness(g)
	}
	idx := make([]int, len(population))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	sorted := make([]genome, len(population))
	for i, j := range idx {
		sorted[i] = population[j]
	}
	copy(population, sorted)
}

func (o *Optimizer) decode(g genome) []testgen.Vector {
	var out []testgen.Vector
	for i, bit := range g {
		if bit {
			out = append(out, o.pool[i])
		}
	}
	return out
}

func (o *Optimizer) result(best genome, fitness float64, generations int) Result {
	if best == nil {
		return Result{Generations: generations}
	}
	suite := o.decode(best)
	return Result{
		Suite:       suite,
		Fitness:     fitness,
		Coverage:    testgen.Coverage(suite, o.ruleIDs),
		Generations: generations,
	}
}
