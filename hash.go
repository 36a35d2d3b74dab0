package client

import "hash/crc32"

// bucketHash maps a wire key to a bucket index seed in [0, 0x7FFF]. The
// CRC32/IEEE-then-mask construction is shared with the other client
// implementations pointed at the same pool; changing it re-maps every key.
func bucketHash(key string) uint32 {
	return (crc32.ChecksumIEEE([]byte(key)) >> 16) & 0x7fff
}
