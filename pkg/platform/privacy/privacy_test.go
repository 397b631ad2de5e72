package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0/24", AnonymizeIP("203.0.113.77"))
	assert.Equal(t, "2001:db8:1:2::/64", AnonymizeIP("2001:db8:1:2:3:4:5:6"))
	assert.Equal(t, "192.0.2.0/24", AnonymizeIP("::ffff:192.0.2.9"))
	assert.Equal(t, "invalid", AnonymizeIP("not-an-ip"))
	assert.Equal(t, "", AnonymizeIP(""))
}
