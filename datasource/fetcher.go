// Package datasource retrieves the remote carts document under the three
// retrieval policies: client, dynamic (no-store) and static (ISR).
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cart-service/models"
)

const fetchFailedMessage = "Failed to fetch carts"

// FetchError 唯一的错误类型：非 2xx 状态码、网络错误或无法解析的响应
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string { return fetchFailedMessage }

func (e *FetchError) Unwrap() error { return e.Err }

type Fetcher struct {
	URL    string
	Client *http.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs a single GET with no retry. Records are not validated beyond JSON decoding.
func (f *Fetcher) Fetch(ctx context.Context, header http.Header) (*models.CartsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var data models.CartsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode carts: %w", err)}
	}
	return &data, nil
}

// IsFetchError 判断错误是否为拉取失败
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
