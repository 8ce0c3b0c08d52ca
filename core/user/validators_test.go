package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
)

func TestChangePassword_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	form := func(pwd, confirm string) ChangePassword {
		return ChangePassword{
			CurrentPassword: "Old-pass1",
			Password:        pwd,
			PasswordConfirm: confirm,
			Name:            "Jonathan",
			Email:           "user3@test.cd",
		}
	}

	tests := []struct {
		name    string
		form    ChangePassword
		wantErr map[string]string
	}{
		{
			name:    "required fields",
			form:    ChangePassword{},
			wantErr: map[string]string{"currentPassword": "this field is required", "password": "this field is required", "passwordConfirm": "this field is required"},
		},
		{name: "min len", form: form("lol", "lol"), wantErr: map[string]string{"password": "password must contain at least 8 characters"}},
		{name: "no whitespace", form: form("l o loll", "l o loll"), wantErr: map[string]string{"password": "password must not contain whitespace"}},
		{name: "not all numeric", form: form("12345678", "12345678"), wantErr: map[string]string{"password": "password cannot be entirely numeric"}},
		{
			name: "complexity", form: form("lol12345", "lol12345"),
			wantErr: map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		},
		{name: "too similar to name", form: form("Jonathan1!", "Jonathan1!"), wantErr: map[string]string{"password": "password cannot be similar to user attributes"}},
		{name: "too common", form: form("P@$$w0rd", "P@$$w0rd"), wantErr: map[string]string{"password": "password is too common"}},
		{name: "reused", form: form("Old-pass1", "Old-pass1"), wantErr: map[string]string{"password": "new password must differ from the current one"}},
		{name: "confirm mismatch", form: form("LolC@t123", "lol"), wantErr: map[string]string{"passwordConfirm": "passwordConfirm must be equal to Password"}},
		{name: "valid", form: form("LolC@t123", "LolC@t123")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate(validate)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validator.ValidationErrors, got %T", err)
			assert.Equal(t, tt.wantErr, core.TranslateValidationErrors(vErrs, translator))
		})
	}
}

func TestProfile_Roles(t *testing.T) {
	tests := []struct {
		role      string
		wantNorm  string
		dashboard string
	}{
		{role: "admin", wantNorm: RoleAdmin, dashboard: "/dashboard/admin"},
		{role: "admin:principal", wantNorm: RoleAdmin, dashboard: "/dashboard/admin"},
		{role: " Teacher ", wantNorm: RoleTeacher, dashboard: "/dashboard/teacher"},
		{role: "student", wantNorm: RoleStudent, dashboard: "/dashboard/student"},
		{role: "parent", wantNorm: "", dashboard: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			p := Profile{Role: tt.role}
			assert.Equal(t, tt.wantNorm, NormalizeRole(tt.role))
			assert.Equal(t, tt.dashboard, p.DashboardPath())
			if tt.wantNorm != "" {
				assert.True(t, p.HasAnyRole(tt.wantNorm))
			}
			assert.True(t, p.HasAnyRole())
		})
	}
	assert.False(t, Profile{Role: "parent"}.HasAnyRole("parent"))
	assert.False(t, Profile{Role: RoleStudent}.HasAnyRole(RoleAdmin, RoleTeacher))
}
