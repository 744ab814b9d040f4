package util

import (
	"fmt"
	"sort"
	"strconv"
)

// CompressRanges collapses names that share a prefix and end in consecutive
// numbers into ranges, for compact display:
//   - ["Ethernet1", "Ethernet2", "Ethernet3"] -> ["Ethernet1-3"]
//   - ["eth0", "eth2", "mgmt"] -> ["eth0", "eth2", "mgmt"]
//
// Names without a numeric suffix are kept as-is. The result is sorted by
// prefix, then by number.
func CompressRanges(names []string) []string {
	type numbered struct {
		prefix string
		num    int
		name   string
	}
	var items []numbered
	var plain []string
	for _, n := range names {
		prefix, num, ok := splitNumericSuffix(n)
		if !ok {
			plain = append(plain, n)
			continue
		}
		items = append(items, numbered{prefix, num, n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].prefix != items[j].prefix {
			return items[i].prefix < items[j].prefix
		}
		return items[i].num < items[j].num
	})

	var result []string
	for i := 0; i < len(items); {
		j := i
		for j+1 < len(items) && items[j+1].prefix == items[i].prefix && items[j+1].num <= items[j].num+1 {
			j++
		}
		if items[j].num == items[i].num {
			result = append(result, items[i].name)
		} else {
			result = append(result, fmt.Sprintf("%s%d-%d", items[i].prefix, items[i].num, items[j].num))
		}
		i = j + 1
	}

	sort.Strings(plain)
	return append(result, dedupStrings(plain)...)
}

// splitNumericSuffix splits "Ethernet12" into ("Ethernet", 12). Leading
// zeros are not treated as numeric so "eth01" is kept verbatim.
func splitNumericSuffix(s string) (string, int, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) || (s[i] == '0' && i < len(s)-1) {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}

func dedupStrings(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}
	result := []string{sorted[0]}
	for _, s := range sorted[1:] {
		if s != result[len(result)-1] {
			result = append(result, s)
		}
	}
	return result
}
