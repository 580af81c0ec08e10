package cache

import "context"

// NoopStore never holds anything; every lookup is a miss.
type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (NoopStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopStore) Set(context.Context, string, []byte) error {
	return nil
}

func (NoopStore) Stats() map[string]interface{} {
	return map[string]interface{}{"backend": "disabled"}
}

func (NoopStore) Close() error {
	return nil
}
