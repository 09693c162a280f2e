package repository

import "testing"

func TestFilterMatches(t *testing.T) {
	doc := Document{"docType": "T", "done": true, "order": float64(2)}
	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"equal", Filter{"docType": "T", "done": true}, true},
		{"numeric types", Filter{"order": 2}, true},
		{"different value", Filter{"done": false}, false},
		{"missing key", Filter{"name": "x"}, false},
		{"number vs string", Filter{"order": "2"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(doc); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterKeyIsCanonical(t *testing.T) {
	a := Filter{"docType": "T", "done": true}
	b := Filter{"done": true, "docType": "T"}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	if want := `"docType"=str:"T"&"done"=bool:true`; a.Key() != want {
		t.Fatalf("unexpected key %q, want %q", a.Key(), want)
	}
}

func TestFilterKeySeparatesValueTypes(t *testing.T) {
	distinct := [][2]Filter{
		{{"done": true}, {"done": "true"}},
		{{"order": 2}, {"order": "2"}},
		{{"a": "x&b=y"}, {"a": "x", "b": "y"}},
		{{"a": nil}, {"a": "<nil>"}},
	}
	for _, pair := range distinct {
		if pair[0].Key() == pair[1].Key() {
			t.Fatalf("filters %v and %v share key %q", pair[0], pair[1], pair[0].Key())
		}
	}
	if (Filter{"order": 2}).Key() != (Filter{"order": float64(2)}).Key() {
		t.Fatal("equal numbers of different types should share a key")
	}
}
