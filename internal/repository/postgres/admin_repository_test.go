package postgres

import (
	"reflect"
	"testing"

	"admin-service/internal/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestBuildUpdateSet(t *testing.T) {
	tests := []struct {
		name        string
		patch       *model.AdminPatch
		wantClauses []string
		wantArgs    []interface{}
	}{
		{
			name:        "single field",
			patch:       &model.AdminPatch{Status: strPtr("suspended")},
			wantClauses: []string{"status = $1"},
			wantArgs:    []interface{}{"suspended"},
		},
		{
			name: "multiple fields keep declaration order",
			patch: &model.AdminPatch{
				FullName:   strPtr("A One"),
				Timezone:   strPtr("UTC"),
				Require2FA: boolPtr(true),
			},
			wantClauses: []string{"full_name = $1", "timezone = $2", "require_2fa = $3"},
			wantArgs:    []interface{}{"A One", "UTC", true},
		},
		{
			name: "password hash rides along with profile fields",
			patch: &model.AdminPatch{
				Language:     strPtr("de"),
				PasswordHash: strPtr("$2a$12$hash"),
			},
			wantClauses: []string{"language = $1", "password_hash = $2"},
			wantArgs:    []interface{}{"de", "$2a$12$hash"},
		},
		{
			name:        "secondary auth hash alone",
			patch:       &model.AdminPatch{SecondaryAuthHash: strPtr("rotated")},
			wantClauses: []string{"secondary_auth_hash = $1"},
			wantArgs:    []interface{}{"rotated"},
		},
		{
			name:        "empty patch yields nothing",
			patch:       &model.AdminPatch{},
			wantClauses: nil,
			wantArgs:    nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clauses, args := buildUpdateSet(test.patch)
			if !reflect.DeepEqual(clauses, test.wantClauses) {
				t.Errorf("clauses = %v, want %v", clauses, test.wantClauses)
			}
			if !reflect.DeepEqual(args, test.wantArgs) {
				t.Errorf("args = %v, want %v", args, test.wantArgs)
			}
		})
	}
}

func TestPatchWithDoesNotMutateOriginal(t *testing.T) {
	original := &model.AdminPatch{Email: strPtr("a@x.com")}
	sealed := "sealed-envelope"

	copied := patchWith(original, func(p *model.AdminPatch) { p.Email = &sealed })

	if *original.Email != "a@x.com" {
		t.Errorf("original patch mutated: email = %q", *original.Email)
	}
	if *copied.Email != "sealed-envelope" {
		t.Errorf("copied patch email = %q, want sealed value", *copied.Email)
	}
}
