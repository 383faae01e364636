package monitor

import (
	"crypto/md5"
	"encoding/hex"
)

func pathKey(abs string) string {
	sum := md5.Sum([]byte(abs))
	return hex.EncodeToString(sum[:])
}
