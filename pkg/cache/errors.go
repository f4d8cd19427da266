package cache

import "errors"

var (
	ErrNilFetcher   = errors.New("cache: fetcher is required")
	ErrFetchFailed  = errors.New("cache: fetcher failed")
	ErrCorruptEntry = errors.New("cache: cached entry is not decodable")
)
