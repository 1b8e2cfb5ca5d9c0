package upstream

import "context"

// FallbackClient wraps a Client so that a streaming call which fails
// before producing any chunks is retried as a single non-streaming Query,
// emitted as one chunk. A stream that has already delivered partial text
// is left to fail normally: there is no good way to splice a query result
// onto output already sent to the caller.
type FallbackClient struct {
	inner Client
}

// NewFallbackClient wraps inner with stream-to-query fallback behavior.
func NewFallbackClient(inner Client) *FallbackClient {
	return &FallbackClient{inner: inner}
}

func (f *FallbackClient) Name() string          { return f.inner.Name() }
func (f *FallbackClient) CheckConfig() []string { return f.inner.CheckConfig() }

func (f *FallbackClient) Query(ctx context.Context, req Request) (string, error) {
	return f.inner.Query(ctx, req)
}

func (f *FallbackClient) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		innerChunks, innerErrs := f.inner.Stream(ctx, req)
		delivered := false

		for innerChunks != nil || innerErrs != nil {
			select {
			case chunk, ok := <-innerChunks:
				if !ok {
					innerChunks = nil
					continue
				}
				delivered = true
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			case err, ok := <-innerErrs:
				if !ok {
					innerErrs = nil
					continue
				}
				if err == nil {
					continue
				}
				// Chunks sent before the error still count as delivered.
				if innerChunks != nil {
					for chunk := range innerChunks {
						delivered = true
						select {
						case chunks <- chunk:
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
				if delivered {
					errs <- err
					return
				}
				text, qerr := f.inner.Query(ctx, req)
				if qerr != nil {
					errs <- qerr
					return
				}
				select {
				case chunks <- text:
				case <-ctx.Done():
					errs <- ctx.Err()
				}
				return
			}
		}
	}()

	return chunks, errs
}

var _ Client = (*FallbackClient)(nil)
