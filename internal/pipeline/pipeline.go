// Package pipeline provides the generic Processor/Pipeline machinery shared
// by the FLV and HLS processing chains: a sequence of named transforms, each
// able to emit zero or more items downstream, run to exhaustion and then
// finalized in order.
package pipeline

// Emit is how a Processor hands an item to whatever comes next in the chain.
type Emit[T any] func(T) error

// Processor transforms a stream of T, emitting zero or more items downstream
// for each one it consumes, and optionally emitting more when the stream
// ends (e.g. a buffering processor flushing its tail).
type Processor[T any] interface {
	// Process handles one input item, calling emit for each item it wants to
	// pass downstream. It may emit zero, one, or many items.
	Process(item T, emit Emit[T]) error
	// Finish is called once after the input is exhausted, in processor
	// order, giving each stage a chance to flush buffered state.
	Finish(emit Emit[T]) error
	// Name identifies the processor for logging and error context.
	Name() string
}

// Pipeline runs input items through an ordered sequence of Processors into
// a final sink.
type Pipeline[T any] struct {
	stages []Processor[T]
}

// New builds a Pipeline that runs items through stages in order.
func New[T any](stages ...Processor[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// chain returns an Emit that feeds into stage i's Process, recursively
// chaining through the remaining stages and finally into sink.
func (p *Pipeline[T]) chain(i int, sink Emit[T]) Emit[T] {
	if i >= len(p.stages) {
		return sink
	}
	stage := p.stages[i]
	next := p.chain(i+1, sink)
	return func(item T) error {
		return stage.Process(item, next)
	}
}

// Process runs a single input item through the full chain of stages.
func (p *Pipeline[T]) Process(item T, sink Emit[T]) error {
	return p.chain(0, sink)(item)
}

// Finish flushes every stage in order. A stage's Finish emit chains into
// later stages' Process (not Finish) and finally into sink, so a finalizing
// stage's output is still transformed by everything downstream of it.
func (p *Pipeline[T]) Finish(sink Emit[T]) error {
	for i, stage := range p.stages {
		downstream := p.chain(i+1, sink)
		if err := stage.Finish(downstream); err != nil {
			return err
		}
	}
	return nil
}

// Run drains input through Process for every item, then Finish, stopping at
// the first error. Already-emitted items are not rolled back.
func (p *Pipeline[T]) Run(input func() (T, bool, error), sink Emit[T]) error {
	for {
		item, ok, err := input()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := p.Process(item, sink); err != nil {
			return err
		}
	}
	return p.Finish(sink)
}

// Stages returns the processor names in pipeline order, for logging.
func (p *Pipeline[T]) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
