package query

import (
	"testing"

	"spatialdb/pkg/predicate"
)

func TestParseSelect(t *testing.T) {
	tests := []struct {
		sql    string
		table  string
		limit  int
		offset int
		hasW   bool
		err    bool
	}{
		{"SELECT * FROM world", "world", -1, 0, false, false},
		{"select * from world", "world", -1, 0, false, false},
		{"SELECT * FROM world;", "world", -1, 0, false, false},
		{"  SELECT * FROM bodies  ", "bodies", -1, 0, false, false},
		{"SELECT * FROM world LIMIT 10", "world", 10, 0, false, false},
		{"SELECT * FROM world LIMIT 10 OFFSET 20", "world", 10, 20, false, false},
		{"SELECT * FROM world WHERE x >= 100", "world", -1, 0, true, false},
		{"SELECT * FROM world WHERE x BETWEEN 1 AND 2 LIMIT 5", "world", 5, 0, true, false},
		{"SELECT * FROM world WHERE kind = 'ship' OFFSET 3", "world", -1, 3, true, false},
		{"SELECT * FROM world WHERE x >", "", 0, 0, false, true},
		{"SELECT * FROM ", "", 0, 0, false, true},
		{"SELECT a FROM world", "", 0, 0, false, true},
		{"INSERT INTO world", "", 0, 0, false, true},
		{"", "", 0, 0, false, true},
	}
	for _, tt := range tests {
		stmt, err := Parse(tt.sql)
		if tt.err {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tt.sql)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.sql, err)
			continue
		}
		if stmt.Table != tt.table {
			t.Errorf("Parse(%q): table=%q, want %q", tt.sql, stmt.Table, tt.table)
		}
		if stmt.Limit != tt.limit {
			t.Errorf("Parse(%q): limit=%d, want %d", tt.sql, stmt.Limit, tt.limit)
		}
		if stmt.Offset != tt.offset {
			t.Errorf("Parse(%q): offset=%d, want %d", tt.sql, stmt.Offset, tt.offset)
		}
		if (stmt.Where != nil) != tt.hasW {
			t.Errorf("Parse(%q): where=%v, want hasWhere=%v", tt.sql, stmt.Where, tt.hasW)
		}
	}
}

func TestParseWhereMatches(t *testing.T) {
	rec := predicate.MapRecord{"x": 5.0, "y": -2.5, "kind": "ship"}
	tests := []struct {
		expr string
		want bool
	}{
		{"x = 5", true},
		{"x != 5", false},
		{"x <> 4", true},
		{"x < 5", false},
		{"x <= 5", true},
		{"x > 4.5", true},
		{"y >= -2.5", true},
		{"y > -1e1", true},
		{"x BETWEEN 1 AND 5", true},
		{"x BETWEEN 6 AND 9", false},
		{"kind = 'ship'", true},
		{`kind = "rock"`, false},
		{"NOT kind = 'rock'", true},
		{"TRUE", true},
		{"false", false},
		// AND binds tighter than OR
		{"x = 1 OR x = 5 AND kind = 'ship'", true},
		{"(x = 1 OR x = 5) AND kind = 'rock'", false},
		{"x = 1 OR x = 2 AND TRUE", false},
		{"NOT (x > 1 AND y > 1)", true},
		{"not not x = 5", true},
		{"missing = 1", false},
	}
	for _, tt := range tests {
		p, err := ParseWhere(tt.expr)
		if err != nil {
			t.Errorf("ParseWhere(%q): %v", tt.expr, err)
			continue
		}
		if got := p.Match(rec); got != tt.want {
			t.Errorf("ParseWhere(%q) = %s matched %v, want %v", tt.expr, p, got, tt.want)
		}
	}
}

func TestParseWhereShape(t *testing.T) {
	p, err := ParseWhere("x != 3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	not, ok := p.(predicate.Not)
	if !ok {
		t.Fatalf("!= should parse to NOT, got %T", p)
	}
	if _, ok := not.Arg.(predicate.Eq); !ok {
		t.Fatalf("!= should wrap EQ, got %T", not.Arg)
	}

	p, err = ParseWhere("a = 1 OR b = 2 OR c = 3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if or, ok := p.(predicate.Or); !ok || len(or.Args) != 3 {
		t.Fatalf("chained OR should flatten, got %s", p)
	}
}

func TestParseWhereErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"x",
		"x =",
		"x = 'open",
		"(x = 1",
		"x = 1)",
		"x BETWEEN 1 5",
		"x ! 3",
		"x = 1 AND",
		"x # 1",
		"= 3",
	} {
		if _, err := ParseWhere(expr); err == nil {
			t.Errorf("ParseWhere(%q): expected error", expr)
		}
	}
}
