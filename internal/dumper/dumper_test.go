package dumper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/recmig/recmig/internal/client"
	"github.com/recmig/recmig/internal/describe"
	"github.com/recmig/recmig/internal/types"
)

// fakeData answers queries through a handler and records the SOQL it
// saw
type fakeData struct {
	mu      sync.Mutex
	queries []string
	handler func(soql string) ([]types.Row, error)
}

func (f *fakeData) Query(_ context.Context, soql string, _ int) ([]types.Row, error) {
	f.mu.Lock()
	f.queries = append(f.queries, soql)
	f.mu.Unlock()
	if f.handler == nil {
		return nil, nil
	}
	return f.handler(soql)
}

func (f *fakeData) Create(context.Context, string, []types.Record) ([]client.SaveResult, error) {
	return nil, errors.New("dumper must not create records")
}

type fakeSchema map[string]*types.ObjectDescription

func (f fakeSchema) Describe(_ context.Context, name string) (*types.ObjectDescription, error) {
	if d, ok := f[name]; ok {
		return d, nil
	}
	return nil, client.ErrNotFound
}

func testSchemas() fakeSchema {
	return fakeSchema{
		"User": {Name: "User", Fields: []types.FieldDescription{
			{Name: "Id", Type: types.FieldTypeID},
			{Name: "Name", Type: types.FieldTypeString, Createable: true},
		}},
		"Account": {Name: "Account", Fields: []types.FieldDescription{
			{Name: "Id", Type: types.FieldTypeID},
			{Name: "Name", Type: types.FieldTypeString, Createable: true},
			{Name: "OwnerId", Type: types.FieldTypeReference, Createable: true, ReferenceTo: []string{"User"}},
		}},
		"Contact": {Name: "Contact", Fields: []types.FieldDescription{
			{Name: "Id", Type: types.FieldTypeID},
			{Name: "LastName", Type: types.FieldTypeString, Createable: true},
			{Name: "AccountId", Type: types.FieldTypeReference, Createable: true, ReferenceTo: []string{"Account"}},
			{Name: "OwnerId", Type: types.FieldTypeReference, Createable: true, ReferenceTo: []string{"User"}},
		}},
	}
}

func testDescriber(t *testing.T, objects ...string) *describe.Describer {
	t.Helper()
	d, err := describe.Describe(context.Background(), testSchemas(), objects, "")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	return d
}

func csvLines(t *testing.T, csv string) []string {
	t.Helper()
	return strings.Split(strings.TrimRight(csv, "\n"), "\n")
}

func TestDumpSeedOnly(t *testing.T) {
	data := &fakeData{handler: func(string) ([]types.Row, error) {
		return []types.Row{
			{"Id": "A1", "Name": "Acme", "OwnerId": "U1"},
			{"Id": "A2", "Name": "Globex", "OwnerId": ""},
		}, nil
	}}
	d := New(testDescriber(t, "Account"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account", Condition: "Name LIKE 'A%'"},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d", len(out))
	}

	lines := csvLines(t, out[0])
	if lines[0] != "Id,Name,OwnerId" {
		t.Errorf("header = %q, want schema field order", lines[0])
	}
	if len(lines) != 3 || lines[1] != "A1,Acme,U1" || lines[2] != "A2,Globex," {
		t.Errorf("rows = %v", lines[1:])
	}
	if len(data.queries) != 1 {
		t.Fatalf("queries = %v", data.queries)
	}
	for _, want := range []string{"SELECT Id, Name, OwnerId FROM Account", "WHERE Name LIKE 'A%'"} {
		if !strings.Contains(data.queries[0], want) {
			t.Errorf("query %q missing %q", data.queries[0], want)
		}
	}
}

func TestDumpRelatedExpansion(t *testing.T) {
	data := &fakeData{handler: func(soql string) ([]types.Row, error) {
		switch {
		case strings.Contains(soql, "FROM Account"):
			return []types.Row{{"Id": "A1", "Name": "Acme", "OwnerId": ""}}, nil
		case strings.Contains(soql, "FROM Contact") && strings.Contains(soql, "AccountId IN ('A1')"):
			return []types.Row{{"Id": "C1", "LastName": "Doe", "AccountId": "A1", "OwnerId": ""}}, nil
		}
		return nil, nil
	}}
	d := New(testDescriber(t, "Account", "Contact"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account"},
		{Object: "Contact", Target: types.TargetRelated},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	contacts := csvLines(t, out[1])
	if len(contacts) != 2 || contacts[1] != "C1,Doe,A1," {
		t.Errorf("contact rows = %v", contacts)
	}
}

func TestDumpDependentExpansion(t *testing.T) {
	// The seeded contact points at an account that no seed fetched; the
	// related account query must pull it in by id.
	data := &fakeData{handler: func(soql string) ([]types.Row, error) {
		switch {
		case strings.Contains(soql, "FROM Contact") && strings.Contains(soql, "WHERE"):
			return []types.Row{{"Id": "C1", "LastName": "Doe", "AccountId": "A9", "OwnerId": ""}}, nil
		case strings.Contains(soql, "FROM Account") && strings.Contains(soql, "Id IN ('A9')"):
			return []types.Row{{"Id": "A9", "Name": "Parent", "OwnerId": ""}}, nil
		}
		return nil, nil
	}}
	d := New(testDescriber(t, "Account", "Contact"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Contact", Condition: "LastName='Doe'"},
		{Object: "Account", Target: types.TargetRelated},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	accounts := csvLines(t, out[1])
	if len(accounts) != 2 || accounts[1] != "A9,Parent," {
		t.Errorf("account rows = %v", accounts)
	}
}

func TestDumpClosureChain(t *testing.T) {
	// Account -> Contact (related) -> User (dependent through OwnerId):
	// the user only becomes reachable after the contact round, so the
	// loop must keep going until nothing new arrives.
	data := &fakeData{handler: func(soql string) ([]types.Row, error) {
		switch {
		case strings.Contains(soql, "FROM Account"):
			return []types.Row{{"Id": "A1", "Name": "Acme", "OwnerId": ""}}, nil
		case strings.Contains(soql, "FROM Contact") && strings.Contains(soql, "AccountId IN ('A1')"):
			return []types.Row{{"Id": "C1", "LastName": "Doe", "AccountId": "A1", "OwnerId": "U9"}}, nil
		case strings.Contains(soql, "FROM User") && strings.Contains(soql, "Id IN ('U9')"):
			return []types.Row{{"Id": "U9", "Name": "Owner"}}, nil
		}
		return nil, nil
	}}
	d := New(testDescriber(t, "Account", "Contact", "User"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account"},
		{Object: "Contact", Target: types.TargetRelated},
		{Object: "User", Target: types.TargetRelated},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	users := csvLines(t, out[2])
	if len(users) != 2 || users[1] != "U9,Owner" {
		t.Errorf("user rows = %v", users)
	}
}

func TestDumpDeduplicatesAcrossRounds(t *testing.T) {
	// Both accounts point at the same contact; it must be fetched into
	// the output exactly once.
	calls := 0
	data := &fakeData{handler: func(soql string) ([]types.Row, error) {
		switch {
		case strings.Contains(soql, "FROM Account"):
			return []types.Row{
				{"Id": "A1", "Name": "Acme", "OwnerId": "U1"},
				{"Id": "A2", "Name": "Globex", "OwnerId": "U1"},
			}, nil
		case strings.Contains(soql, "FROM User"):
			calls++
			return []types.Row{{"Id": "U1", "Name": "Owner"}}, nil
		}
		return nil, nil
	}}
	d := New(testDescriber(t, "Account", "User"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account"},
		{Object: "User", Target: types.TargetRelated},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	users := csvLines(t, out[1])
	if len(users) != 2 {
		t.Errorf("user rows = %v", users)
	}
	if calls != 1 {
		t.Errorf("user queried %d times, want 1", calls)
	}
}

func TestDumpFieldSelection(t *testing.T) {
	data := &fakeData{handler: func(soql string) ([]types.Row, error) {
		if !strings.HasPrefix(soql, "SELECT Id, Name FROM Account") {
			t.Errorf("fetch must include the id field: %q", soql)
		}
		return []types.Row{{"Id": "A1", "Name": "Acme"}}, nil
	}}
	d := New(testDescriber(t, "Account"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account", Fields: types.FieldList{"Name"}},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	lines := csvLines(t, out[0])
	if lines[0] != "Name" || lines[1] != "Acme" {
		t.Errorf("selected columns = %v", lines)
	}
}

func TestDumpIgnoreFields(t *testing.T) {
	data := &fakeData{handler: func(string) ([]types.Row, error) {
		return []types.Row{{"Id": "A1", "Name": "Acme", "OwnerId": "U1"}}, nil
	}}
	d := New(testDescriber(t, "Account"), data, Options{})

	out, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account", IgnoreFields: types.FieldList{"ownerid"}},
	})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	lines := csvLines(t, out[0])
	if lines[0] != "Id,Name" {
		t.Errorf("header = %q, ignoreFields should match case-insensitively", lines[0])
	}
}

func TestDumpReverseRewriting(t *testing.T) {
	// A dump taken from the target instance with the load's id map
	// restores source-instance ids in id and reference columns.
	idMap := types.NewIDMap()
	idMap.Set("src-A1", "tgt-A1")
	idMap.Set("src-U1", "tgt-U1")

	data := &fakeData{handler: func(string) ([]types.Row, error) {
		return []types.Row{{"Id": "tgt-A1", "Name": "tgt-A1", "OwnerId": "tgt-U1"}}, nil
	}}
	d := New(testDescriber(t, "Account"), data, Options{IDMap: idMap})

	out, err := d.Dump(context.Background(), []types.DumpQuery{{Object: "Account"}})
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	lines := csvLines(t, out[0])
	// Name holds the same text as the id but is a string field, so it
	// stays untouched.
	if lines[1] != "src-A1,tgt-A1,src-U1" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestDumpUnknownObject(t *testing.T) {
	d := New(testDescriber(t, "Account"), &fakeData{}, Options{})
	_, err := d.Dump(context.Background(), []types.DumpQuery{{Object: "Ghost"}})
	var serr *types.SchemaNotFoundError
	if !errors.As(err, &serr) {
		t.Fatalf("want SchemaNotFoundError, got %v", err)
	}
}

func TestDumpProgressReporting(t *testing.T) {
	var events []types.DumpProgress
	data := &fakeData{handler: func(soql string) ([]types.Row, error) {
		if strings.Contains(soql, "FROM Account") {
			return []types.Row{{"Id": "A1", "Name": "Acme", "OwnerId": ""}}, nil
		}
		return nil, nil
	}}
	d := New(testDescriber(t, "Account", "Contact"), data, Options{
		RunID:          "run-1",
		ReportProgress: func(p types.DumpProgress) { events = append(events, p) },
	})

	if _, err := d.Dump(context.Background(), []types.DumpQuery{
		{Object: "Account"},
		{Object: "Contact", Target: types.TargetRelated},
	}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no progress reported")
	}
	first := events[0]
	if first.RunID != "run-1" || first.FetchedCount != 1 || first.FetchedCountPerObject["account"] != 1 {
		t.Errorf("first event = %+v", first)
	}
	last := events[len(events)-1]
	if last.FetchedCount != 1 {
		t.Errorf("final count = %+v", last)
	}
}
