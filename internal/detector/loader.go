package detector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// onceLoader runs load until it succeeds, then caches the value for the
// lifetime of the process. Unlike sync.Once a failure is not cached.
type onceLoader[T any] struct {
	load func(ctx context.Context) (T, error)

	mu     sync.Mutex
	loaded bool
	value  T
}

func (l *onceLoader[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}
	v, err := l.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value = v
	l.loaded = true
	return v, nil
}

// fetchCascade downloads the cascade weights.
func fetchCascade(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cascade: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch cascade: %s returned %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("cascade at %s is empty", url)
	}
	return data, nil
}
