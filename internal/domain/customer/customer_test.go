package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	cases := []struct {
		first, last, email, want string
	}{
		{"Ana", "Silva", "ana@x.io", "Ana Silva"},
		{" Ana ", "", "ana@x.io", "Ana"},
		{"", "Silva", "ana@x.io", "Silva"},
		{"Silva", "Silva", "", "Silva"},
		{" ", " ", " ana@x.io ", "ana@x.io"},
		{"", "", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DisplayName(tc.first, tc.last, tc.email))
	}
}

func TestExternalReference(t *testing.T) {
	assert.Equal(t, "user_42", ExternalReference(42))
}

func TestPartitionKey(t *testing.T) {
	id := int64(9)
	assert.Equal(t, "9", CustomerCreationRequestedEvent{UserID: &id}.PartitionKey())
	assert.Equal(t, "", CustomerCreationRequestedEvent{}.PartitionKey())
}

func TestFirstNonBlank(t *testing.T) {
	assert.Equal(t, "b", FirstNonBlank(" ", " b ", "c"))
	assert.Equal(t, "", FirstNonBlank())
}
