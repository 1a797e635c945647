package doctree

import "testing"

func TestListMarker(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name string
		list *List
		want []string
	}{
		{
			name: "bulleted",
			list: &List{ListKind: ListBullet, Items: []ListItem{{}, {}}},
			want: []string{"- ", "- "},
		},
		{
			name: "numbered from start",
			list: &List{ListKind: ListNumbered, Start: 9, Items: []ListItem{{}, {}}},
			want: []string{"9. ", "10. "},
		},
		{
			name: "checkbox",
			list: &List{ListKind: ListCheckbox, Items: []ListItem{{Checked: &yes}, {Checked: &no}, {}}},
			want: []string{"[x] ", "[ ] ", "[ ] "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				if got := tt.list.Marker(i); got != want {
					t.Errorf("item %d: expected %q, got %q", i, want, got)
				}
			}
		})
	}
}
