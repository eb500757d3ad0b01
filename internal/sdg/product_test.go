package sdg

import (
	"reflect"
	"testing"
)

func TestCartesian(t *testing.T) {
	tests := []struct {
		name  string
		lists [][]string
		want  [][]string
	}{
		{
			name:  "two dimensions, last fastest",
			lists: [][]string{{"F", "M"}, {"Y15", "Y25", "Y65"}},
			want: [][]string{
				{"F", "Y15"}, {"F", "Y25"}, {"F", "Y65"},
				{"M", "Y15"}, {"M", "Y25"}, {"M", "Y65"},
			},
		},
		{
			name:  "single dimension",
			lists: [][]string{{"URBAN", "RURAL"}},
			want:  [][]string{{"URBAN"}, {"RURAL"}},
		},
		{
			name:  "empty dimension",
			lists: [][]string{{"F"}, {}},
			want:  [][]string{},
		},
		{
			name:  "no dimensions",
			lists: nil,
			want:  [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cartesian(tt.lists)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Cartesian() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCartesian_Size(t *testing.T) {
	got := Cartesian([][]int{{1, 2}, {1, 2, 3}, {1, 2, 3, 4}})
	if len(got) != 24 {
		t.Errorf("len = %d, want 24", len(got))
	}
	if !reflect.DeepEqual(got[len(got)-1], []int{2, 3, 4}) {
		t.Errorf("last = %v, want [2 3 4]", got[len(got)-1])
	}
}
