package store

import (
	"context"
	"strings"
	"time"
)

// namespaced prepends a fixed prefix to every key, giving each component
// an isolated logical keyspace inside one physical store. It owns no
// state of its own.
type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced wraps inner so that all operations act under prefix. Keys
// returned by List have the prefix stripped, making the wrapper
// transparent to callers. Closing a namespaced store closes the shared
// inner store.
func Namespaced(inner Store, prefix string) Store {
	return &namespaced{inner: inner, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, value, ttl)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	entries, err := n.inner.List(ctx, n.prefix+prefix, opts)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Key = strings.TrimPrefix(entries[i].Key, n.prefix)
	}

	return entries, nil
}

func (n *namespaced) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return n.inner.Update(ctx, n.prefix+key, fn)
}

func (n *namespaced) Close() error {
	return n.inner.Close()
}
