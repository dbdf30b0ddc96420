package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHash(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   HashFormat
	}{
		{name: "empty", stored: "", want: HashFormatNone},
		{name: "legacy", stored: "$$$rounds=1000$abc", want: HashFormatLegacy},
		{name: "bcrypt 2a", stored: "$2a$10$abcdefghijklmnopqrstuv", want: HashFormatModern},
		{name: "bcrypt 2b", stored: "$2b$12$abcdefghijklmnopqrstuv", want: HashFormatModern},
		{name: "bcrypt 2y", stored: "$2y$12$abcdefghijklmnopqrstuv", want: HashFormatModern},
		{name: "near legacy", stored: "$$rounds=1000$abc", want: HashFormatUnknown},
		{name: "argon", stored: "$argon2id$v=19$m=65536,t=1,p=4$a$b", want: HashFormatUnknown},
		{name: "plaintext", stored: "hunter2", want: HashFormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHash(tt.stored))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}

func TestUser_HasCredential(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.HasCredential())
	assert.False(t, (&User{}).HasCredential())
	assert.True(t, (&User{PasswordHash: "$2a$04$x"}).HasCredential())
}
