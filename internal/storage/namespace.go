package storage

import "context"

// Namespaced prefixes every key so one backing store can hold the slots of
// many browser profiles.
type Namespaced struct {
	base   Store
	prefix string
}

func Namespace(base Store, client string) *Namespaced {
	return &Namespaced{base: base, prefix: client + ":"}
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.base.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.base.Delete(ctx, n.prefix+key)
}
