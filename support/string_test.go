package support

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnake(t *testing.T) {
	assert.Equal(t, "first_name", Str.Snake("FirstName"))
	assert.Equal(t, "status", Str.Snake("Status"))
	assert.Equal(t, "order_total", Str.Snake("OrderTotal"))
	assert.Equal(t, "already_snake", Str.Snake("already_snake"))
	assert.Equal(t, "kebab_case", Str.Snake("kebab-case"))
}
