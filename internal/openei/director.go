package openei

import "context"

// Director sequences request execution and response processing. It adds no
// behavior of its own; errors from either side propagate unchanged.
type Director struct {
	builder   Builder
	processor Processor
}

func NewDirector(builder Builder, processor Processor) *Director {
	return &Director{builder: builder, processor: processor}
}

// Request executes the builder.
func (d *Director) Request(ctx context.Context) (*Response, error) {
	return d.builder.Execute(ctx)
}

// Process hands resp to the processor.
func (d *Director) Process(ctx context.Context, resp *Response) (*Result, error) {
	return d.processor.Process(ctx, resp)
}
