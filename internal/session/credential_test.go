package session

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_NeverFormatsValue(t *testing.T) {
	cred := NewCredential("Vital_password", "s3cret!")

	assert.Equal(t, "[redacted]", cred.String())
	assert.Equal(t, "[redacted]", fmt.Sprintf("%v", cred))
	assert.Equal(t, "[redacted]", fmt.Sprintf("%#v", cred))
	assert.NotContains(t, fmt.Sprintf("%+v", cred), "s3cret!")

	data, err := json.Marshal(struct {
		Login    string     `json:"login"`
		Password Credential `json:"password"`
	}{Login: "trader", Password: cred})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret!")
	assert.Contains(t, string(data), "[redacted]")
}

func TestSecretMap_SkipsEmptyAndPreservesNames(t *testing.T) {
	m := secretMap([]Credential{
		NewCredential("login", "trader"),
		NewCredential("password", ""),
	})
	assert.Equal(t, map[string]string{"login": "trader"}, m)

	assert.Nil(t, secretMap(nil))
}
