package snapshot

// Keyspace:
//
//	queue/{name}  - the queue's ordered task collection
//	meta/next_id  - next task id to hand out (8B BE)
const (
	prefixQueue = "queue/"
	keyNextID   = "meta/next_id"
)

func queueKey(name string) []byte {
	key := make([]byte, 0, len(prefixQueue)+len(name))
	key = append(key, prefixQueue...)
	return append(key, name...)
}

func queuePrefix() []byte { return []byte(prefixQueue) }

// queueNameFromKey is the inverse of queueKey. Names may contain '/' and may
// be empty.
func queueNameFromKey(key []byte) (string, bool) {
	if len(key) < len(prefixQueue) || string(key[:len(prefixQueue)]) != prefixQueue {
		return "", false
	}
	return string(key[len(prefixQueue):]), true
}
