package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type named string

func (n named) EventName() string { return string(n) }

type keyed struct{ named }

func (keyed) AggregateKey() string { return "ord-7" }

func TestKeyOf(t *testing.T) {
	assert.Equal(t, "ord-7", KeyOf(keyed{named("order.placed")}))
	assert.Empty(t, KeyOf(named("order.placed")))
}
