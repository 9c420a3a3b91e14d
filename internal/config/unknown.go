package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys maps each section to its valid keys.
var knownKeys = map[string]map[string]bool{
	"auth": {
		"client_id": true, "client_secret": true, "token_url": true,
		"token_timeout": true, "safety_margin": true,
	},
	"network": {
		"timeout": true, "max_retries": true, "base_delay": true, "retryable_statuses": true,
		"user_agent": true, "catalog_url": true, "download_url": true,
	},
	"transfers": {
		"mode": true, "parallel": true, "max_workers": true, "max_concurrent": true,
		"skip_existing": true, "verify_checksum": true, "chunk_size": true,
		"bandwidth_limit": true, "output_dir": true,
	},
	"ledger": {
		"enabled": true, "path": true,
	},
	"logging": {
		"log_level": true,
	},
}

// knownSectionsList is sorted for deterministic suggestions when two
// candidates have the same edit distance.
var knownSectionsList = sortedKeys(knownKeys)

// knownAllKeysList holds every key of every section, for suggesting the
// right key when it was written outside any section.
var knownAllKeysList = func() []string {
	var keys []string
	for _, section := range knownKeys {
		keys = append(keys, sortedKeys(section)...)
	}

	sort.Strings(keys)

	return keys
}()

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		errs = append(errs, buildKeyError(key))
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for one undecoded key,
// suggesting the closest known section or key.
func buildKeyError(key toml.Key) error {
	if len(key) == 1 {
		name := key[0]

		if suggestion := closestMatch(name, knownSectionsList); suggestion != "" {
			return fmt.Errorf("unknown config key %q: did you mean [%s]?", name, suggestion)
		}

		if suggestion := closestMatch(name, knownAllKeysList); suggestion != "" {
			return fmt.Errorf("unknown config key %q: keys belong in a section, did you mean %q?", name, suggestion)
		}

		return fmt.Errorf("unknown config key %q", name)
	}

	section, field := key[0], key[1]

	keys, ok := knownKeys[section]
	if !ok {
		if suggestion := closestMatch(section, knownSectionsList); suggestion != "" {
			return fmt.Errorf("unknown config section [%s]: did you mean [%s]?", section, suggestion)
		}

		return fmt.Errorf("unknown config section [%s]", section)
	}

	if suggestion := closestMatch(field, sortedKeys(keys)); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization: two rows instead of a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
