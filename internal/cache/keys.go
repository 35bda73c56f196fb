package cache

// KeyBuilder produces namespaced Redis keys so that multiple deployments
// can share a Redis instance without clashing.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// Link returns the key holding the cached redirect entry for a short code.
func (k *KeyBuilder) Link(code string) string {
	key := "url:" + code
	if k.namespace != "" {
		key = k.namespace + ":" + key
	}

	return key
}
