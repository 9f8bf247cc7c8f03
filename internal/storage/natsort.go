package storage

import (
	"sort"

	"github.com/maruel/natural"
)

// NaturalSort orders keys so that digit runs compare by value: "file2" < "file10".
// Keys that compare equal, such as "img2" and "img02", keep their listing order.
func NaturalSort(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool { return natural.Less(keys[i], keys[j]) })
}
