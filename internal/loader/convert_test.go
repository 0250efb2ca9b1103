package loader

import (
	"testing"

	"github.com/recmig/recmig/internal/types"
)

func TestConvertRowCoercions(t *testing.T) {
	d := testDescriber(t, "Account", "User")
	idMap := types.NewIDMap()
	idMap.Set("U1", "tgt-user")

	ds := dataset("Account",
		[]string{"Id", "Name", "NumberOfEmployees", "AnnualRevenue", "IsActive", "FoundedDate", "LegacyCode", "OwnerId", "Unknown"},
	)
	row := []string{"A1", "Acme", "42", "1250.5", "Y", "2001-05-01", "legacy", "U1", "junk"}

	pair, err := convertRow(ds, d, row, idMap)
	if err != nil {
		t.Fatalf("convertRow: %v", err)
	}
	if pair.OrigID != "A1" {
		t.Errorf("OrigID = %s", pair.OrigID)
	}
	rec := pair.Record
	if _, ok := rec["Id"]; ok {
		t.Error("id cell must not be written to the record")
	}
	if _, ok := rec["Unknown"]; ok {
		t.Error("unknown headers must be skipped")
	}
	if _, ok := rec["LegacyCode"]; ok {
		t.Error("non-createable fields must be skipped")
	}
	if v := rec["NumberOfEmployees"]; v.Kind() != types.KindInt || v.AsInt() != 42 {
		t.Errorf("int field = %+v", v)
	}
	if v := rec["AnnualRevenue"]; v.Kind() != types.KindFloat || v.AsFloat() != 1250.5 {
		t.Errorf("currency field = %+v", v)
	}
	if v := rec["IsActive"]; v.Kind() != types.KindBool || !v.AsBool() {
		t.Errorf("boolean field = %+v", v)
	}
	if v := rec["FoundedDate"]; v.AsString() != "2001-05-01" {
		t.Errorf("date field = %+v", v)
	}
	if v := rec["OwnerId"]; v.AsString() != "tgt-user" {
		t.Errorf("reference not rewritten: %+v", v)
	}
}

func TestConvertRowBooleanTable(t *testing.T) {
	tests := []struct {
		cell string
		want bool
	}{
		{"", false},
		{"0", false},
		{"n", false},
		{"N", false},
		{"f", false},
		{"false", false},
		{"FALSE", false},
		{"1", true},
		{"true", true},
		{"yes", true},
		{"anything", true},
	}
	d := testDescriber(t, "Account")
	ds := dataset("Account", []string{"Id", "IsActive"})
	for _, tt := range tests {
		t.Run("cell_"+tt.cell, func(t *testing.T) {
			pair, err := convertRow(ds, d, []string{"A1", tt.cell}, types.NewIDMap())
			if err != nil {
				t.Fatal(err)
			}
			if got := pair.Record["IsActive"].AsBool(); got != tt.want {
				t.Errorf("cell %q -> %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func TestConvertRowNumericGarbageOmitted(t *testing.T) {
	d := testDescriber(t, "Account")
	ds := dataset("Account", []string{"Id", "NumberOfEmployees", "AnnualRevenue"})
	pair, err := convertRow(ds, d, []string{"A1", "not-a-number", ""}, types.NewIDMap())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pair.Record["NumberOfEmployees"]; ok {
		t.Error("unparseable int should be omitted")
	}
	if _, ok := pair.Record["AnnualRevenue"]; ok {
		t.Error("empty currency should be omitted")
	}
}

func TestConvertRowEmptyDateOmitted(t *testing.T) {
	d := testDescriber(t, "Account")
	ds := dataset("Account", []string{"Id", "FoundedDate"})
	pair, err := convertRow(ds, d, []string{"A1", ""}, types.NewIDMap())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pair.Record["FoundedDate"]; ok {
		t.Error("empty date should be omitted")
	}
}

func TestConvertRowUnmappedReferenceIsNull(t *testing.T) {
	d := testDescriber(t, "Account", "User")
	ds := dataset("Account", []string{"Id", "OwnerId"})
	pair, err := convertRow(ds, d, []string{"A1", "U-unknown"}, types.NewIDMap())
	if err != nil {
		t.Fatal(err)
	}
	v, ok := pair.Record["OwnerId"]
	if !ok || !v.IsNull() {
		t.Errorf("unmapped reference = %+v, want explicit null", v)
	}
}

func TestConvertRowMissingID(t *testing.T) {
	d := testDescriber(t, "Account")
	ds := dataset("Account", []string{"Name"})
	_, err := convertRow(ds, d, []string{"x"}, types.NewIDMap())
	if _, ok := err.(*types.MissingIDColumnError); !ok {
		t.Fatalf("want MissingIDColumnError, got %v", err)
	}
}
