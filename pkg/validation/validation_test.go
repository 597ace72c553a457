package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,e164"`
	Password string `json:"password" validate:"required,min=8,strong_password"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, RegisterOn(v))
	return v
}

func TestIsStrongPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Secret123!", true},
		{"secret123!", false},
		{"SECRET123!", false},
		{"Secret!!!!", false},
		{"Secret1234", false},
		{"Пароль123$", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsStrongPassword(tt.in), tt.in)
	}
}

func TestRegisterOn_Messages(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Struct(signup{Email: "a@example.com", Password: "Secret123!"}))
	assert.NoError(t, v.Struct(signup{Phone: "+14155550100", Password: "Secret123!"}))

	err := v.Struct(signup{Phone: "0812345", Password: "weakpass"})
	require.Error(t, err)

	msgs := Messages(err)
	assert.Contains(t, msgs, "phone must be an E.164 phone number such as +14155550100")
	assert.Contains(t, msgs, "password must contain upper and lower case letters, a digit and a symbol")

	err = v.Struct(signup{Password: "Secret123!"})
	require.Error(t, err)
	assert.Contains(t, Messages(err), "email is required when phone is empty")
}

func TestMessages_NonValidationError(t *testing.T) {
	assert.Equal(t, []string{"request body is not valid JSON"}, Messages(errors.New("unexpected EOF")))
}
