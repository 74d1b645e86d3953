package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffCoSupervisors(t *testing.T) {
	tests := []struct {
		name        string
		old, new    []string
		wantAdded   []string
		wantRemoved []string
	}{
		{
			name:        "one in one out",
			old:         []string{"a@x.it", "b@x.it", "c@x.it"},
			new:         []string{"b@x.it", "c@x.it", "d@x.it"},
			wantAdded:   []string{"d@x.it"},
			wantRemoved: []string{"a@x.it"},
		},
		{
			name: "formatting differences",
			old:  []string{"a@x.it", "b@x.it "},
			new:  []string{" B@X.IT ", "A@x.it", "", "a@x.it"},
		},
		{
			name:      "from nothing",
			new:       []string{"b@x.it", "a@x.it"},
			wantAdded: []string{"a@x.it", "b@x.it"},
		},
		{
			name:        "to nothing",
			old:         []string{"a@x.it"},
			new:         []string{" ", ""},
			wantRemoved: []string{"a@x.it"},
		},
		{name: "both empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := DiffCoSupervisors(tt.old, tt.new)
			assert.Equal(t, tt.wantAdded, added)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}
