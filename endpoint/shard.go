package endpoint

import "hash/fnv"

// shardIndex computes the deterministic hash of a connection ID used to
// assign a connection to an owning loop.
func shardIndex(cid []byte, numShards int) int {
	h := fnv.New32a()
	h.Write(cid)
	return int(h.Sum32() % uint32(numShards))
}
