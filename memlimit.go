// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"math"
	"os"
	"strconv"
)

// memLimit caps how much a compressed input may expand to.
var memLimit int = calcMemLimit()

// cacheEntries sizes the in-memory tier of the conversion cache.
const cacheEntries = 512

func calcMemLimit() int {
	if e := os.Getenv("RFMB"); e != "" {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			panic("malformed RFMB environment variable, should be a number of megabytes: " + e)
		}
		return int(f * 1024 * 1024)
	}
	return 256 * 1024 * 1024 // a resource fork cannot exceed 16 MiB, so be generous
}
