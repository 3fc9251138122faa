package utils

import (
	"math/rand"
	"strconv"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// GenStringId returns an opaque id safe to mint from concurrent accept paths.
func GenStringId() string {
	return strconv.FormatInt(rand.Int63(), 16)
}
