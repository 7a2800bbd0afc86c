// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import "sort"

// CombineScores averages each service's score over only the sources that named it.
// A source that does not mention a service does not count as a zero.
func CombineScores(sources ...map[string]float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, source := range sources {
		for service, score := range source {
			sums[service] += score
			counts[service]++
		}
	}

	combined := make(map[string]float64, len(sums))
	for service, sum := range sums {
		combined[service] = sum / float64(counts[service])
	}
	return combined
}

// SelectBest returns the service with the highest combined score. Ties go to the
// lexicographically smallest service name. ok is false for an empty map.
func SelectBest(combined map[string]float64) (service string, score float64, ok bool) {
	if len(combined) == 0 {
		return "", 0, false
	}
	names := make([]string, 0, len(combined))
	for name := range combined {
		names = append(names, name)
	}
	sort.Strings(names)

	service, score = names[0], combined[names[0]]
	for _, name := range names[1:] {
		if combined[name] > score {
			service, score = name, combined[name]
		}
	}
	return service, score, true
}
