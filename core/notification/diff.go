package notification

import (
	"github.com/thesisman/backend/core"
)

// DiffCoSupervisors compares two co-supervisor lists after normalizing them
// (comma split, trimmed, lower-cased, de-duplicated) and returns the emails
// only present in new and those only present in old.
func DiffCoSupervisors(old, new []string) (added, removed []string) {
	oldSet := toSet(core.CleanList(old, true /* lower */))
	newList := core.CleanList(new, true /* lower */)
	newSet := toSet(newList)

	for _, email := range newList {
		if _, ok := oldSet[email]; !ok {
			added = append(added, email)
		}
	}
	for _, email := range core.CleanList(old, true /* lower */) {
		if _, ok := newSet[email]; !ok {
			removed = append(removed, email)
		}
	}
	return added, removed
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
