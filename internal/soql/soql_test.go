package soql

import "testing"

func TestQueryString(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{
			name: "minimal",
			q:    Query{Object: "Account"},
			want: "SELECT Id FROM Account",
		},
		{
			name: "fields and where",
			q:    Query{Fields: []string{"Id", "Name"}, Object: "Account", Where: "Name = 'x'"},
			want: "SELECT Id, Name FROM Account WHERE Name = 'x'",
		},
		{
			name: "all clauses",
			q: Query{
				Fields:  []string{"Id"},
				Object:  "Contact",
				Scope:   "everything",
				Where:   "AccountId != null",
				OrderBy: "CreatedDate DESC",
				Limit:   10,
				Offset:  5,
			},
			want: "SELECT Id FROM Contact USING SCOPE everything WHERE AccountId != null ORDER BY CreatedDate DESC LIMIT 10 OFFSET 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	if got := Quote("O'Hare"); got != `'O\'Hare'` {
		t.Errorf("Quote = %s", got)
	}
	if got := Quote(`a\b`); got != `'a\\b'` {
		t.Errorf("Quote backslash = %s", got)
	}
}

func TestIn(t *testing.T) {
	if got := In("Name", []string{"a", "b", "a", ""}); got != "Name IN ('a', 'b')" {
		t.Errorf("In = %q", got)
	}
	if got := In("Name", nil); got != "" {
		t.Errorf("In with no values = %q, want empty", got)
	}
	if got := In("Name", []string{"", ""}); got != "" {
		t.Errorf("In with blank values = %q, want empty", got)
	}
}

func TestAndOr(t *testing.T) {
	if got := And("a = 1", "", "b = 2"); got != "a = 1 AND b = 2" {
		t.Errorf("And = %q", got)
	}
	if got := Or("", ""); got != "" {
		t.Errorf("Or of empties = %q, want empty", got)
	}
	if got := Or("x", "y"); got != "x OR y" {
		t.Errorf("Or = %q", got)
	}
}
