package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromWithoutTransaction(t *testing.T) {
	ctx := WithTx(context.Background(), nil)
	_, ok := From(ctx)
	assert.False(t, ok, "nil transactions are not stored")

	assert.Nil(t, Querier(ctx, nil))
}
